package execution

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Config describes one execution client endpoint.
type Config struct {
	// Name identifies the node in logs and metrics.
	Name string `yaml:"name" default:"default"`
	// NodeAddress is the JSON-RPC URL of the client.
	NodeAddress string `yaml:"nodeAddress"`
	// NodeHeaders are added to every request, e.g. for authentication.
	NodeHeaders map[string]string `yaml:"nodeHeaders"`
	// TraceTimeout bounds a debug_traceTransaction call when the caller's
	// context has no deadline.
	TraceTimeout time.Duration `yaml:"traceTimeout" default:"60s"`
	// CallTimeout bounds eth_call and eth_getCode requests.
	CallTimeout time.Duration `yaml:"callTimeout" default:"10s"`
	// RetryMaxElapsed caps the total time spent retrying a failing request.
	RetryMaxElapsed time.Duration `yaml:"retryMaxElapsed" default:"30s"`
}

func (c *Config) Validate() error {
	if c.NodeAddress == "" {
		return errors.New("nodeAddress is required")
	}

	if _, err := url.ParseRequestURI(c.NodeAddress); err != nil {
		return fmt.Errorf("invalid nodeAddress %q: %w", c.NodeAddress, err)
	}

	if c.TraceTimeout <= 0 {
		return errors.New("traceTimeout must be positive")
	}

	if c.CallTimeout <= 0 {
		return errors.New("callTimeout must be positive")
	}

	return nil
}
