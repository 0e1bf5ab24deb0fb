package decoder

import (
	"errors"
	"fmt"
)

// ErrEmptyTrace is returned by Build when there are no steps to decode.
var ErrEmptyTrace = errors.New("step log is empty")

// Reasons recorded on MalformedTraceError.
const (
	ReasonStackUnderflow = "stack underflow"
	ReasonBadOperand     = "bad operand"
	ReasonMemoryRead     = "memory read failed"
	ReasonMissingStep    = "look-ahead step missing"
	ReasonDepthChanged   = "look-ahead step left the frame"
	ReasonNoReturn       = "call never returned"
	ReasonNegativeGas    = "gas after return exceeds gas before call"
)

// MalformedTraceError describes one recovered decode failure. It never aborts
// a decode pass; the offending item is replaced by a fault marker.
type MalformedTraceError struct {
	Index  int    `json:"index"`
	Opcode string `json:"opcode"`
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

func (e *MalformedTraceError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("malformed trace at step %d (%s): %s: %s", e.Index, e.Opcode, e.Reason, e.Detail)
	}

	return fmt.Sprintf("malformed trace at step %d (%s): %s", e.Index, e.Opcode, e.Reason)
}

func malformed(index int, opcode, reason string, cause error) *MalformedTraceError {
	e := &MalformedTraceError{Index: index, Opcode: opcode, Reason: reason}
	if cause != nil {
		e.Detail = cause.Error()
	}

	return e
}
