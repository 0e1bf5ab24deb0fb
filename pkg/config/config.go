// Package config provides the configuration types for structlog-decoder.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"

	"github.com/ethpandaops/structlog-decoder/pkg/ethereum"
	"github.com/ethpandaops/structlog-decoder/pkg/nametag"
	"github.com/ethpandaops/structlog-decoder/pkg/redis"
	"github.com/ethpandaops/structlog-decoder/pkg/tracer"
)

// Config is the main configuration for structlog-decoder.
type Config struct {
	// MetricsAddr is the address to listen on for metrics.
	MetricsAddr string `yaml:"metricsAddr" default:":9090"`
	// HealthCheckAddr is the address to listen on for healthcheck.
	HealthCheckAddr *string `yaml:"healthCheckAddr"`
	// PProfAddr is the address to listen on for pprof.
	PProfAddr *string `yaml:"pprofAddr"`
	// APIAddr is the address to listen on for the API server.
	APIAddr string `yaml:"apiAddr" default:":8080"`
	// LoggingLevel is the logging level to use.
	LoggingLevel string `yaml:"logging" default:"info"`
	// Ethereum lists the execution nodes traces are fetched from.
	Ethereum ethereum.Config `yaml:"ethereum"`
	// Decoder controls opcode selection and address attribution.
	Decoder tracer.Config `yaml:"decoder"`
	// NameTags configures address naming.
	NameTags nametag.Config `yaml:"nameTags"`
	// Redis is only needed by the redis name tag store.
	Redis *redis.Config `yaml:"redis"`
	// MemoryMonitor periodically reports process memory.
	MemoryMonitor MemoryMonitorConfig `yaml:"memoryMonitor"`
	// ShutdownTimeout is the timeout for shutting down the server.
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" default:"10s"`
}

// MemoryMonitorConfig configures the memory stats collector.
type MemoryMonitorConfig struct {
	Enabled            bool          `yaml:"enabled" default:"false"`
	Interval           time.Duration `yaml:"interval" default:"1m"`
	WarningThresholdMB uint64        `yaml:"warningThresholdMB" default:"2048"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Ethereum.Validate(); err != nil {
		return fmt.Errorf("invalid ethereum configuration: %w", err)
	}

	if err := c.Decoder.Validate(); err != nil {
		return fmt.Errorf("invalid decoder configuration: %w", err)
	}

	if err := c.NameTags.Validate(); err != nil {
		return fmt.Errorf("invalid name tag configuration: %w", err)
	}

	if c.NameTags.Store == nametag.StoreRedis {
		if c.Redis == nil {
			return fmt.Errorf("redis configuration is required for the redis name tag store")
		}

		if err := c.Redis.Validate(); err != nil {
			return fmt.Errorf("invalid redis configuration: %w", err)
		}
	}

	if c.MemoryMonitor.Enabled && c.MemoryMonitor.Interval <= 0 {
		return fmt.Errorf("memoryMonitor.interval must be positive")
	}

	return nil
}

// Default returns a configuration with every default applied.
func Default() (*Config, error) {
	config := &Config{}

	if err := defaults.Set(config); err != nil {
		return nil, err
	}

	return config, nil
}

// Load reads a YAML file on top of the defaults. An empty path yields the
// defaults alone.
func Load(file string) (*Config, error) {
	config, err := Default()
	if err != nil {
		return nil, err
	}

	if file == "" {
		return config, nil
	}

	yamlFile, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}

	type plain Config

	if err := yaml.Unmarshal(yamlFile, (*plain)(config)); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", file, err)
	}

	// Defaults for list entries only exist once the list is parsed.
	for _, exec := range config.Ethereum.Execution {
		if err := defaults.Set(exec); err != nil {
			return nil, err
		}
	}

	return config, nil
}
