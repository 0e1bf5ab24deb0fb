package decoder

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/ethpandaops/structlog-decoder/pkg/ethereum/execution"
)

// ConsoleLogAddress is the debug sink used by hardhat's console.log. Calls to
// it are host-side prints and are left out of the tree.
var ConsoleLogAddress = common.HexToAddress("0x000000000000000000636f6e736f6c652e6c6f67")

var errStackUnderflow = errors.New("stack underflow")

// Decoded is the result of an opcode decoder: either an immediate parameter
// record or a pending decode that needs a later step.
type Decoded struct {
	Params  Params
	Pending *Pending
}

// Pending is an awaited decode. Resolve is invoked with the step Lookahead
// positions after the one that produced it.
type Pending struct {
	Lookahead int
	Resolve   func(next *execution.StructLog) (Params, error)
}

func immediate(p Params) Decoded {
	return Decoded{Params: p}
}

func await(lookahead int, resolve func(next *execution.StructLog) (Params, error)) Decoded {
	return Decoded{Pending: &Pending{Lookahead: lookahead, Resolve: resolve}}
}

// decodeError carries the failure reason up to the builder, which attaches the
// step index and opcode.
type decodeError struct {
	reason string
	err    error
}

func (e *decodeError) Error() string {
	return fmt.Sprintf("%s: %v", e.reason, e.err)
}

func (e *decodeError) Unwrap() error {
	return e.err
}

func failure(reason string, err error) error {
	return &decodeError{reason: reason, err: err}
}

// stepInput is what a decoder may read: the step itself, lazily parsed memory
// and the executing address supplied by the builder.
type stepInput struct {
	step          *execution.StructLog
	emitter       common.Address
	maxMemoryRead uint64

	memory    []byte
	memoryErr error
	parsed    bool
}

func newStepInput(step *execution.StructLog, emitter common.Address, maxMemoryRead uint64) *stepInput {
	return &stepInput{step: step, emitter: emitter, maxMemoryRead: maxMemoryRead}
}

func (in *stepInput) mem() ([]byte, error) {
	if !in.parsed {
		in.memory, in.memoryErr = ParseMemory(in.step.Memory)
		in.parsed = true
	}

	return in.memory, in.memoryErr
}

// read slices memory using offset and size stack words.
func (in *stepInput) read(offsetWord, sizeWord string) ([]byte, error) {
	size, err := ParseNumber(sizeWord)
	if err != nil {
		return nil, failure(ReasonBadOperand, err)
	}

	if size == 0 {
		return []byte{}, nil
	}

	offset, err := ParseNumber(offsetWord)
	if err != nil {
		return nil, failure(ReasonBadOperand, err)
	}

	return in.readAt(offset, size)
}

func (in *stepInput) readAt(offset, size uint64) ([]byte, error) {
	memory, err := in.mem()
	if err != nil {
		return nil, failure(ReasonMemoryRead, err)
	}

	out, err := SliceMemory(memory, offset, size, in.maxMemoryRead)
	if err != nil {
		return nil, failure(ReasonMemoryRead, err)
	}

	return out, nil
}

// stack pops words from a copy of a stack snapshot, top first.
type stack struct {
	words []string
}

func newStack(words []string) *stack {
	return &stack{words: words}
}

func (s *stack) require(n int) error {
	if len(s.words) < n {
		return failure(ReasonStackUnderflow, fmt.Errorf("%w: have %d, need %d", errStackUnderflow, len(s.words), n))
	}

	return nil
}

func (s *stack) pop() string {
	w := s.words[len(s.words)-1]
	s.words = s.words[:len(s.words)-1]

	return w
}

func (s *stack) popNumber() (uint64, error) {
	v, err := ParseNumber(s.pop())
	if err != nil {
		return 0, failure(ReasonBadOperand, err)
	}

	return v, nil
}

func (s *stack) popUint() (*uint256.Int, error) {
	v, err := ParseUint(s.pop())
	if err != nil {
		return nil, failure(ReasonBadOperand, err)
	}

	return v, nil
}

func (s *stack) popAddress() (common.Address, error) {
	a, err := ParseAddress(s.pop())
	if err != nil {
		return common.Address{}, failure(ReasonBadOperand, err)
	}

	return a, nil
}

func (s *stack) popBytes32() (common.Hash, error) {
	h, err := ParseBytes32(s.pop())
	if err != nil {
		return common.Hash{}, failure(ReasonBadOperand, err)
	}

	return h, nil
}

// leafDecoder decodes a non-call opcode.
type leafDecoder func(op Opcode, in *stepInput) (Decoded, error)

// leafDecoders is the dispatch table for non-call opcodes. Opcodes missing
// from the table are not recorded.
var leafDecoders = map[Opcode]leafDecoder{
	OpLOG0:   decodeLog,
	OpLOG1:   decodeLog,
	OpLOG2:   decodeLog,
	OpLOG3:   decodeLog,
	OpLOG4:   decodeLog,
	OpSLOAD:  decodeSload,
	OpSSTORE: decodeSstore,
	OpMLOAD:  decodeMload,
	OpMSTORE: decodeMstore,
	OpSHA3:   decodeSha3,
}

func decodeLog(op Opcode, in *stepInput) (Decoded, error) {
	st := newStack(in.step.Stack)
	topics := op.TopicCount()

	if err := st.require(2 + topics); err != nil {
		return Decoded{}, err
	}

	offsetWord, sizeWord := st.pop(), st.pop()

	params := &LogParams{
		Topics:  make([]common.Hash, 0, topics),
		Emitter: in.emitter,
	}

	for range topics {
		topic, err := st.popBytes32()
		if err != nil {
			return Decoded{}, err
		}

		params.Topics = append(params.Topics, topic)
	}

	data, err := in.read(offsetWord, sizeWord)
	if err != nil {
		return Decoded{}, err
	}

	params.Data = data

	return immediate(params), nil
}

// nextTop reads the value an opcode pushed, visible on the following step.
func nextTop(next *execution.StructLog) (common.Hash, error) {
	word, ok := next.StackTop(0)
	if !ok {
		return common.Hash{}, failure(ReasonStackUnderflow, errors.New("following step has an empty stack"))
	}

	h, err := ParseBytes32(word)
	if err != nil {
		return common.Hash{}, failure(ReasonBadOperand, err)
	}

	return h, nil
}

func decodeSload(_ Opcode, in *stepInput) (Decoded, error) {
	st := newStack(in.step.Stack)
	if err := st.require(1); err != nil {
		return Decoded{}, err
	}

	key, err := st.popBytes32()
	if err != nil {
		return Decoded{}, err
	}

	cold := classifySload(in.step.GasCost)

	return await(1, func(next *execution.StructLog) (Params, error) {
		value, err := nextTop(next)
		if err != nil {
			return nil, err
		}

		return &StorageParams{Key: key, Value: value, Cold: cold}, nil
	}), nil
}

func decodeSstore(_ Opcode, in *stepInput) (Decoded, error) {
	st := newStack(in.step.Stack)
	if err := st.require(2); err != nil {
		return Decoded{}, err
	}

	key, err := st.popBytes32()
	if err != nil {
		return Decoded{}, err
	}

	value, err := st.popBytes32()
	if err != nil {
		return Decoded{}, err
	}

	return immediate(&StorageParams{Key: key, Value: value, Cold: classifySstore(in.step.GasCost)}), nil
}

func decodeMload(_ Opcode, in *stepInput) (Decoded, error) {
	st := newStack(in.step.Stack)
	if err := st.require(1); err != nil {
		return Decoded{}, err
	}

	offset, err := st.popBytes32()
	if err != nil {
		return Decoded{}, err
	}

	return await(1, func(next *execution.StructLog) (Params, error) {
		value, err := nextTop(next)
		if err != nil {
			return nil, err
		}

		return &MemoryParams{Offset: offset, Value: value}, nil
	}), nil
}

func decodeMstore(_ Opcode, in *stepInput) (Decoded, error) {
	st := newStack(in.step.Stack)
	if err := st.require(2); err != nil {
		return Decoded{}, err
	}

	offset, err := st.popBytes32()
	if err != nil {
		return Decoded{}, err
	}

	value, err := st.popBytes32()
	if err != nil {
		return Decoded{}, err
	}

	return immediate(&MemoryParams{Offset: offset, Value: value}), nil
}

func decodeSha3(_ Opcode, in *stepInput) (Decoded, error) {
	st := newStack(in.step.Stack)
	if err := st.require(2); err != nil {
		return Decoded{}, err
	}

	offset, err := st.popNumber()
	if err != nil {
		return Decoded{}, err
	}

	size, err := st.popNumber()
	if err != nil {
		return Decoded{}, err
	}

	input, err := in.readAt(offset, size)
	if err != nil {
		return Decoded{}, err
	}

	return await(1, func(next *execution.StructLog) (Params, error) {
		hash, err := nextTop(next)
		if err != nil {
			return nil, err
		}

		return &HashParams{Offset: offset, Size: size, Input: input, Hash: hash}, nil
	}), nil
}

// callEntry is a decoded call plus what is needed to finish it at its return
// boundary.
type callEntry struct {
	params    *CallParams
	retOffset uint64
	retSize   uint64
}

// decodeCall decodes the operands of a call-type opcode. The caller's memory on
// the call step supplies the input (calldata or init code).
func decodeCall(op Opcode, in *stepInput) (*callEntry, error) {
	switch op {
	case OpCREATE, OpCREATE2:
		return decodeCreate(op, in)
	}

	need := 6
	if op.TransfersValue() {
		need = 7
	}

	st := newStack(in.step.Stack)
	if err := st.require(need); err != nil {
		return nil, err
	}

	gas, err := st.popUint()
	if err != nil {
		return nil, err
	}

	to, err := st.popAddress()
	if err != nil {
		return nil, err
	}

	value := new(uint256.Int)

	if op.TransfersValue() {
		if value, err = st.popUint(); err != nil {
			return nil, err
		}
	}

	argsOffset, argsSize := st.pop(), st.pop()

	retOffset, err := st.popNumber()
	if err != nil {
		return nil, err
	}

	retSize, err := st.popNumber()
	if err != nil {
		return nil, err
	}

	input, err := in.read(argsOffset, argsSize)
	if err != nil {
		return nil, err
	}

	// "Forward all remaining gas" is encoded as a word larger than any real gas amount.
	gasProvided := gas.Uint64()
	if !gas.IsUint64() {
		gasProvided = in.step.Gas
	}

	return &callEntry{
		params: &CallParams{
			Kind:        op,
			To:          &to,
			Input:       input,
			Value:       value,
			GasProvided: gasProvided,
		},
		retOffset: retOffset,
		retSize:   retSize,
	}, nil
}

func decodeCreate(op Opcode, in *stepInput) (*callEntry, error) {
	need := 3
	if op == OpCREATE2 {
		need = 4
	}

	st := newStack(in.step.Stack)
	if err := st.require(need); err != nil {
		return nil, err
	}

	value, err := st.popUint()
	if err != nil {
		return nil, err
	}

	offsetWord, sizeWord := st.pop(), st.pop()

	params := &CallParams{
		Kind:  op,
		Value: value,
		// The struct logger reports the gas handed to the child frame as gasCost.
		GasProvided: in.step.GasCost,
	}

	if op == OpCREATE2 {
		salt, err := st.popBytes32()
		if err != nil {
			return nil, err
		}

		params.Salt = &salt
	}

	initCode, err := in.read(offsetWord, sizeWord)
	if err != nil {
		return nil, err
	}

	params.Input = initCode

	return &callEntry{params: params}, nil
}
