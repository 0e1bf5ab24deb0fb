package redis

import (
	"fmt"
)

type Config struct {
	// Address is host:port, optionally prefixed with redis://.
	Address string `yaml:"address"`
	// Prefix namespaces every key written by the decoder.
	Prefix string `yaml:"prefix"`
}

func (c *Config) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("redis address is required")
	}

	if c.Prefix == "" {
		c.Prefix = "structlog-decoder"
	}

	return nil
}
