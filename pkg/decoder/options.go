package decoder

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// DefaultMaxMemoryRead caps a single memory slice taken from a step.
const DefaultMaxMemoryRead = 4 << 20

// Options tunes a decode pass. The zero value is usable.
type Options struct {
	// Opcodes restricts which leaf opcodes are recorded. Call opcodes are
	// always recorded. Empty means all.
	Opcodes []Opcode
	// RootAddress is the address executing the outermost frame, used as the
	// emitter of root-level events. Zero when unknown.
	RootAddress common.Address
	// AddressContext yields the executing address of a new frame.
	// Defaults to CodeAddressContext.
	AddressContext AddressContext
	// CreateAddresses resolves created contract addresses.
	// Defaults to StackCreateAddresses.
	CreateAddresses CreateAddressResolver
	// MaxMemoryRead defaults to DefaultMaxMemoryRead.
	MaxMemoryRead uint64
	// Log receives recovered problems at debug level.
	Log logrus.FieldLogger
}

func (o Options) withDefaults() Options {
	if o.AddressContext == nil {
		o.AddressContext = CodeAddressContext{}
	}

	if o.CreateAddresses == nil {
		o.CreateAddresses = StackCreateAddresses{}
	}

	if o.MaxMemoryRead == 0 {
		o.MaxMemoryRead = DefaultMaxMemoryRead
	}

	return o
}

// opcodeFilter reports whether a leaf opcode should be recorded.
func (o Options) opcodeFilter() func(Opcode) bool {
	if len(o.Opcodes) == 0 {
		return func(Opcode) bool { return true }
	}

	allowed := make(map[Opcode]struct{}, len(o.Opcodes))
	for _, op := range o.Opcodes {
		allowed[op] = struct{}{}
	}

	return func(op Opcode) bool {
		if op.IsCall() {
			return true
		}

		_, ok := allowed[op]

		return ok
	}
}
