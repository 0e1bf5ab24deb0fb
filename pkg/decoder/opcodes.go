package decoder

import "strings"

// Opcode identifies an instruction the decoder understands.
type Opcode uint8

// Decoded opcodes. Anything else in a step log is ignored.
const (
	OpUnknown Opcode = iota
	OpCALL
	OpCALLCODE
	OpDELEGATECALL
	OpSTATICCALL
	OpCREATE
	OpCREATE2
	OpLOG0
	OpLOG1
	OpLOG2
	OpLOG3
	OpLOG4
	OpSLOAD
	OpSSTORE
	OpMLOAD
	OpMSTORE
	OpSHA3
)

var opcodeNames = [...]string{
	OpUnknown:      "UNKNOWN",
	OpCALL:         "CALL",
	OpCALLCODE:     "CALLCODE",
	OpDELEGATECALL: "DELEGATECALL",
	OpSTATICCALL:   "STATICCALL",
	OpCREATE:       "CREATE",
	OpCREATE2:      "CREATE2",
	OpLOG0:         "LOG0",
	OpLOG1:         "LOG1",
	OpLOG2:         "LOG2",
	OpLOG3:         "LOG3",
	OpLOG4:         "LOG4",
	OpSLOAD:        "SLOAD",
	OpSSTORE:       "SSTORE",
	OpMLOAD:        "MLOAD",
	OpMSTORE:       "MSTORE",
	OpSHA3:         "SHA3",
}

var opcodeByName = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opcodeNames)+1)

	for op, name := range opcodeNames {
		if Opcode(op) == OpUnknown {
			continue
		}

		m[name] = Opcode(op)
	}

	// Geth renamed SHA3 to KECCAK256.
	m["KECCAK256"] = OpSHA3

	return m
}()

// ParseOpcode maps a struct log mnemonic to an Opcode. The second return is
// false for mnemonics the decoder does not record.
func ParseOpcode(mnemonic string) (Opcode, bool) {
	op, ok := opcodeByName[strings.ToUpper(mnemonic)]

	return op, ok
}

func (o Opcode) String() string {
	if int(o) < len(opcodeNames) {
		return opcodeNames[o]
	}

	return opcodeNames[OpUnknown]
}

// MarshalText encodes the opcode as its mnemonic.
func (o Opcode) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText parses a mnemonic.
func (o *Opcode) UnmarshalText(text []byte) error {
	op, ok := ParseOpcode(string(text))
	if !ok {
		*o = OpUnknown

		return nil
	}

	*o = op

	return nil
}

// IsCall reports whether the opcode opens a new call frame.
func (o Opcode) IsCall() bool {
	switch o {
	case OpCALL, OpCALLCODE, OpDELEGATECALL, OpSTATICCALL, OpCREATE, OpCREATE2:
		return true
	default:
		return false
	}
}

// IsCreate reports whether the opcode deploys a contract.
func (o Opcode) IsCreate() bool {
	return o == OpCREATE || o == OpCREATE2
}

// TransfersValue reports whether the opcode takes a value operand.
func (o Opcode) TransfersValue() bool {
	switch o {
	case OpCALL, OpCALLCODE, OpCREATE, OpCREATE2:
		return true
	default:
		return false
	}
}

// IsLog reports whether the opcode emits an event.
func (o Opcode) IsLog() bool {
	return o >= OpLOG0 && o <= OpLOG4
}

// TopicCount returns the number of topics a LOG opcode pops.
func (o Opcode) TopicCount() int {
	if !o.IsLog() {
		return 0
	}

	return int(o - OpLOG0)
}

// IsStorage reports whether the opcode touches contract storage.
func (o Opcode) IsStorage() bool {
	return o == OpSLOAD || o == OpSSTORE
}

// Opcode groups used by the verbosity presets.
var (
	LogOpcodes     = []Opcode{OpLOG0, OpLOG1, OpLOG2, OpLOG3, OpLOG4}
	StorageOpcodes = []Opcode{OpSLOAD, OpSSTORE}
	MemoryOpcodes  = []Opcode{OpMLOAD, OpMSTORE}
)

// OpcodesForVerbosity returns the leaf opcodes recorded at a verbosity level.
// Levels 1 and 3 record events, levels 2 and 4 add storage access. Level 0
// means everything the decoder understands.
func OpcodesForVerbosity(level int) []Opcode {
	switch level {
	case 1, 3:
		return append([]Opcode{}, LogOpcodes...)
	case 2, 4:
		return append(append([]Opcode{}, LogOpcodes...), StorageOpcodes...)
	default:
		return nil
	}
}
