package ethereum

import (
	"fmt"

	"github.com/ethpandaops/structlog-decoder/pkg/ethereum/execution"
)

type Config struct {
	// Execution lists the nodes traces are fetched from.
	Execution []*execution.Config `yaml:"execution"`
}

func (c *Config) Validate() error {
	for i, execution := range c.Execution {
		if err := execution.Validate(); err != nil {
			return fmt.Errorf("invalid execution configuration at index %d: %w", i, err)
		}
	}

	return nil
}
