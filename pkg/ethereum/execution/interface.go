package execution

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// Node is a source of step logs and contract state.
//
// Lifecycle:
//  1. Create the node with NewRPCNode
//  2. Register OnReady callbacks before calling Start
//  3. Call Start; callbacks run once metadata is available
//  4. Call Stop for graceful shutdown
//
// All methods must be safe for concurrent use.
type Node interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	OnReady(ctx context.Context, callback func(ctx context.Context) error)

	// DebugTraceTransaction returns the struct log trace of a mined transaction.
	DebugTraceTransaction(ctx context.Context, hash string, opts TraceOptions) (*TraceTransaction, error)

	// TransactionByHash returns the envelope of a mined transaction.
	TransactionByHash(ctx context.Context, hash string) (*Transaction, error)

	// CallContract executes a read-only call against the latest block.
	CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error)

	// CodeAt returns the deployed bytecode of an account.
	CodeAt(ctx context.Context, account common.Address) ([]byte, error)

	// ChainID returns the chain ID reported by the client, 0 before it is known.
	ChainID() int32

	// ClientType returns the client version string, e.g. "Geth/v1.14.0".
	ClientType() string

	// Name returns the configured name for this node.
	Name() string
}
