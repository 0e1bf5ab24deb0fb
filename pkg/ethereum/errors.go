package ethereum

import "errors"

// Sentinel errors for Ethereum client operations.
var (
	// ErrNoHealthyNode indicates no healthy execution node is available.
	ErrNoHealthyNode = errors.New("no healthy execution node available")

	// ErrNoExecutionNodes indicates the pool was configured without nodes.
	ErrNoExecutionNodes = errors.New("no execution nodes configured")
)
