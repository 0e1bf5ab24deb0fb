package execution

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrEmptyInput is returned when a struct log document holds no steps.
var ErrEmptyInput = errors.New("struct log input is empty")

// TraceTransaction is the result of debug_traceTransaction with the
// struct logger, stack and memory capture enabled.
type TraceTransaction struct {
	Gas         uint64  `json:"gas"`
	Failed      bool    `json:"failed"`
	ReturnValue *string `json:"returnValue"`

	Structlogs []StructLog `json:"structLogs"`
}

// Transaction is the part of eth_getTransactionByHash the decoder uses.
type Transaction struct {
	Hash  common.Hash    `json:"hash"`
	From  common.Address `json:"from"`
	Nonce hexutil.Uint64 `json:"nonce"`
	// To is nil for contract creations.
	To *common.Address `json:"to"`
}

// Target returns the address executing the outermost frame: the recipient,
// or the created contract for deployments.
func (t *Transaction) Target() common.Address {
	if t.To != nil {
		return *t.To
	}

	return crypto.CreateAddress(t.From, uint64(t.Nonce))
}

// StructLog is a single execution step as captured by the struct logger.
// It is read-only input for the decoder.
type StructLog struct {
	PC      uint64 `json:"pc"`
	Op      string `json:"op"`
	Gas     uint64 `json:"gas"`
	GasCost uint64 `json:"gasCost"`
	Depth   uint64 `json:"depth"`

	// Stack holds hex words, the last element is the top of the stack.
	Stack []string `json:"stack,omitempty"`

	// Memory holds 32-byte words as hex strings, concatenated in order.
	Memory []string `json:"memory,omitempty"`

	ReturnData *string `json:"returnData,omitempty"`
	Refund     *uint64 `json:"refund,omitempty"`
	Error      *string `json:"error,omitempty"`
}

// StackTop returns the n-th word from the top of the stack (0 = top).
func (s *StructLog) StackTop(n int) (string, bool) {
	if n < 0 || n >= len(s.Stack) {
		return "", false
	}

	return s.Stack[len(s.Stack)-1-n], true
}

// HasError reports whether the step carries an execution error.
func (s *StructLog) HasError() bool {
	return s.Error != nil && *s.Error != ""
}

// ParseStructLogs accepts either a bare JSON array of struct logs or a
// debug_traceTransaction result object and returns the trace.
func ParseStructLogs(data []byte) (*TraceTransaction, error) {
	var probe json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("invalid struct log document: %w", err)
	}

	trace := &TraceTransaction{}

	if len(probe) > 0 && probe[0] == '[' {
		if err := json.Unmarshal(data, &trace.Structlogs); err != nil {
			return nil, fmt.Errorf("invalid struct log array: %w", err)
		}
	} else {
		// Some clients wrap the result in a JSON-RPC envelope.
		var envelope struct {
			Result *TraceTransaction `json:"result"`
		}

		if err := json.Unmarshal(data, &envelope); err == nil && envelope.Result != nil {
			trace = envelope.Result
		} else if err := json.Unmarshal(data, trace); err != nil {
			return nil, fmt.Errorf("invalid trace result: %w", err)
		}
	}

	if len(trace.Structlogs) == 0 {
		return nil, ErrEmptyInput
	}

	return trace, nil
}
