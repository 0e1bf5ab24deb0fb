package tracer

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/structlog-decoder/pkg/decoder"
)

const (
	AddressContextCode    = "code"
	AddressContextStorage = "storage"

	CreateAddressesStack   = "stack"
	CreateAddressesDerived = "derived"
)

// Config controls how traces are decoded.
type Config struct {
	// Opcodes adds leaf opcodes to the verbosity preset, e.g. ["MSTORE"].
	Opcodes []string `yaml:"opcodes"`
	// Verbosity selects a preset: 1 and 3 record events, 2 and 4 add storage.
	// 0 records everything.
	Verbosity int `yaml:"verbosity" default:"0"`
	// MaxMemoryRead caps a single memory read in bytes.
	MaxMemoryRead uint64 `yaml:"maxMemoryRead" default:"4194304"`
	// AddressContext is "code" or "storage".
	AddressContext string `yaml:"addressContext" default:"code"`
	// CreateAddresses is "stack" or "derived".
	CreateAddresses string `yaml:"createAddresses" default:"stack"`
	// Concurrency bounds DecodeMany.
	Concurrency int `yaml:"concurrency" default:"4"`
}

func (c *Config) Validate() error {
	if c.Verbosity < 0 || c.Verbosity > 4 {
		return fmt.Errorf("verbosity must be between 0 and 4, got %d", c.Verbosity)
	}

	for _, name := range c.Opcodes {
		if _, ok := decoder.ParseOpcode(name); !ok {
			return fmt.Errorf("unsupported opcode %q in decoder config", name)
		}
	}

	switch c.AddressContext {
	case AddressContextCode, AddressContextStorage:
	default:
		return fmt.Errorf("invalid addressContext %q", c.AddressContext)
	}

	switch c.CreateAddresses {
	case CreateAddressesStack, CreateAddressesDerived:
	default:
		return fmt.Errorf("invalid createAddresses %q", c.CreateAddresses)
	}

	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive")
	}

	return nil
}

// DecoderOptions translates the config into decoder options.
func (c *Config) DecoderOptions(log logrus.FieldLogger) (decoder.Options, error) {
	opts := decoder.Options{
		MaxMemoryRead: c.MaxMemoryRead,
		Log:           log,
	}

	// Verbosity 0 records everything, so extra opcodes only extend a preset.
	if opcodes := decoder.OpcodesForVerbosity(c.Verbosity); opcodes != nil {
		for _, name := range c.Opcodes {
			op, ok := decoder.ParseOpcode(name)
			if !ok {
				return decoder.Options{}, fmt.Errorf("unsupported opcode %q", name)
			}

			opcodes = append(opcodes, op)
		}

		opts.Opcodes = opcodes
	}

	if c.AddressContext == AddressContextStorage {
		opts.AddressContext = decoder.StorageAddressContext{}
	}

	if c.CreateAddresses == CreateAddressesDerived {
		opts.CreateAddresses = decoder.DerivedCreateAddresses{}
	}

	return opts, nil
}
