package decoder

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/structlog-decoder/pkg/ethereum/execution"
)

// pendingSlot is an item placed in the tree whose params arrive on a later step.
type pendingSlot struct {
	item    *Item
	depth   uint64
	resolve func(next *execution.StructLog) (Params, error)
}

type builder struct {
	steps   []execution.StructLog
	opts    Options
	record  func(Opcode) bool
	gas     []uint64
	tree    *Tree
	tracker *callTracker
	pending map[int][]pendingSlot
}

// Build decodes a step log into a call tree. Malformed steps do not abort the
// pass: they become fault markers and are listed in Tree.Problems. Build only
// fails when steps is empty.
func Build(steps []execution.StructLog, opts Options) (*Tree, error) {
	if len(steps) == 0 {
		return nil, ErrEmptyTrace
	}

	opts = opts.withDefaults()

	b := &builder{
		steps:   steps,
		opts:    opts,
		record:  opts.opcodeFilter(),
		gas:     ComputeOpcodeGas(steps),
		tree:    &Tree{Items: []*Item{}, RootDepth: steps[0].Depth},
		tracker: newCallTracker(opts.RootAddress),
		pending: make(map[int][]pendingSlot),
	}

	for i := range steps {
		b.step(i)
	}

	for _, frame := range b.tracker.closeAll() {
		b.closeFrame(frame, len(steps))
	}

	b.tree.reindex()

	return b.tree, nil
}

func (b *builder) step(i int) {
	s := &b.steps[i]

	b.resolvePending(i)

	// Return boundary for every frame opened at this depth or deeper.
	for _, frame := range b.tracker.closeTo(s.Depth) {
		b.closeFrame(frame, i)
	}

	op, ok := ParseOpcode(s.Op)
	if !ok {
		return
	}

	current := b.tracker.current()

	if current.hidden {
		if op.IsCall() {
			b.tracker.open(&callFrame{Depth: s.Depth, Index: i, hidden: true})
		}

		return
	}

	if op.IsCall() {
		b.openCall(i, op, current)

		return
	}

	decode, ok := leafDecoders[op]
	if !ok || !b.record(op) {
		return
	}

	item := b.newItem(i, op, current)
	in := newStepInput(s, current.address, b.opts.MaxMemoryRead)

	decoded, err := decode(op, in)

	switch {
	case err != nil:
		b.fault(item, err)
	case decoded.Pending != nil:
		target := i + decoded.Pending.Lookahead
		if target >= len(b.steps) {
			b.fault(item, failure(ReasonMissingStep, fmt.Errorf("step %d is past the end of the trace", target)))

			break
		}

		b.pending[target] = append(b.pending[target], pendingSlot{
			item:    item,
			depth:   s.Depth,
			resolve: decoded.Pending.Resolve,
		})
	default:
		item.Params = decoded.Params
	}

	if logParams, ok := item.Params.(*LogParams); ok && current.entry != nil && current.entry.params.Kind.IsCreate() {
		current.deferred = append(current.deferred, logParams)
	}

	b.attach(current, item)
}

// resolvePending fills slots that were waiting for step i.
func (b *builder) resolvePending(i int) {
	slots, ok := b.pending[i]
	if !ok {
		return
	}

	delete(b.pending, i)

	next := &b.steps[i]

	for _, slot := range slots {
		if next.Depth != slot.depth {
			b.fault(slot.item, failure(ReasonDepthChanged, fmt.Errorf("step %d is at depth %d, expected %d", i, next.Depth, slot.depth)))

			continue
		}

		params, err := slot.resolve(next)
		if err != nil {
			b.fault(slot.item, err)

			continue
		}

		slot.item.Params = params
	}
}

func (b *builder) openCall(i int, op Opcode, current *callFrame) {
	s := &b.steps[i]

	entry, err := decodeCall(op, newStepInput(s, current.address, b.opts.MaxMemoryRead))
	if err != nil {
		item := b.newItem(i, op, current)
		b.fault(item, err)
		b.attach(current, item)

		// The callee still runs. Its steps go under the marker with an
		// unknown executing address until the return boundary.
		b.tracker.open(&callFrame{Depth: s.Depth, Index: i, item: item})

		return
	}

	if to := entry.params.To; to != nil && *to == ConsoleLogAddress {
		b.tracker.open(&callFrame{Depth: s.Depth, Index: i, hidden: true})

		return
	}

	item := b.newItem(i, op, current)
	item.Params = entry.params
	b.attach(current, item)

	b.tracker.open(&callFrame{
		Depth:   s.Depth,
		Index:   i,
		item:    item,
		entry:   entry,
		address: b.opts.AddressContext.FrameAddress(entry.params, current.address),
		caller:  current.address,
	})
}

// closeFrame finalizes the call of frame at return boundary j. A j past the
// end of the trace means the call never returned.
func (b *builder) closeFrame(frame *callFrame, j int) {
	if frame.hidden || frame.entry == nil {
		return
	}

	call := frame.entry.params

	if j >= len(b.steps) {
		call.Truncated = true
		b.problem(frame.item, ReasonNoReturn, errors.New("trace ended inside the call"))

		return
	}

	boundary := &b.steps[j]
	call.Success = b.callSucceeded(frame, j)

	output, err := b.returnData(frame, j)
	if err != nil {
		b.problem(frame.item, ReasonMemoryRead, err)
	} else {
		call.Output = output
	}

	if call.Kind.IsCreate() {
		site := CreateSite{Call: call, Creator: frame.caller, Boundary: boundary}
		if addr, ok := b.opts.CreateAddresses.CreatedAddress(site); ok {
			call.To = &addr

			for _, l := range frame.deferred {
				l.Emitter = addr
			}
		}
	}

	gasUsed, err := callGasUsed(b.steps, frame.Index, j)
	if err != nil {
		b.problem(frame.item, ReasonNegativeGas, err)
	} else {
		call.GasUsed = &gasUsed
	}
}

// callSucceeded reads the success flag the call pushed on the caller's stack.
// Without a boundary stack it falls back to how the callee's frame ended.
func (b *builder) callSucceeded(frame *callFrame, j int) bool {
	if word, ok := b.steps[j].StackTop(0); ok {
		if v, err := ParseUint(word); err == nil {
			return !v.IsZero()
		}
	}

	last := j - 1
	if last <= frame.Index || b.steps[last].Depth != frame.Depth+1 {
		return false
	}

	callee := &b.steps[last]
	if callee.HasError() {
		return false
	}

	switch callee.Op {
	case "RETURN", "STOP", "SELFDESTRUCT":
		return true
	default:
		return false
	}
}

// returnData reads a call's output. Message calls read the caller's memory at
// the boundary, where the callee's return data was copied. When the boundary
// step did not capture that range, or for creations, the callee's final
// RETURN or REVERT payload is used.
func (b *builder) returnData(frame *callFrame, j int) ([]byte, error) {
	entry := frame.entry
	boundary := &b.steps[j]

	if !entry.params.Kind.IsCreate() {
		if entry.retSize == 0 {
			return []byte{}, nil
		}

		captured := uint64(len(boundary.Memory)) * 32
		if entry.retOffset <= captured && entry.retSize <= captured-entry.retOffset {
			return newStepInput(boundary, common.Address{}, b.opts.MaxMemoryRead).readAt(entry.retOffset, entry.retSize)
		}
	}

	last := j - 1
	if last <= frame.Index || b.steps[last].Depth <= frame.Depth {
		// The callee executed nothing.
		return []byte{}, nil
	}

	callee := &b.steps[last]
	in := newStepInput(callee, common.Address{}, b.opts.MaxMemoryRead)

	if callee.Op == "RETURN" || callee.Op == "REVERT" {
		st := newStack(callee.Stack)
		if err := st.require(2); err == nil {
			offsetWord, sizeWord := st.pop(), st.pop()

			payload, err := in.read(offsetWord, sizeWord)
			if err != nil {
				return nil, err
			}

			if entry.params.Kind.IsCreate() {
				return payload, nil
			}

			// The caller only sees retSize bytes.
			out := make([]byte, entry.retSize)
			copy(out, payload)

			return out, nil
		}
	}

	if entry.params.Kind.IsCreate() {
		return []byte{}, nil
	}

	return in.readAt(entry.retOffset, entry.retSize)
}

func (b *builder) newItem(i int, op Opcode, parent *callFrame) *Item {
	s := &b.steps[i]

	depth := uint64(0)
	if s.Depth > b.tree.RootDepth {
		depth = s.Depth - b.tree.RootDepth
	}

	return &Item{
		Opcode:  op,
		Index:   i,
		Depth:   depth,
		Parent:  parent.Index,
		GasCost: b.gas[i],
	}
}

func (b *builder) attach(frame *callFrame, item *Item) {
	if frame.item == nil {
		b.tree.Items = append(b.tree.Items, item)

		return
	}

	frame.item.Children = append(frame.item.Children, item)
}

// fault replaces the item's params with a fault marker and records the problem.
func (b *builder) fault(item *Item, err error) {
	reason := ReasonBadOperand

	var de *decodeError
	if errors.As(err, &de) {
		reason = de.reason
		err = de.err
	}

	item.Params = &FaultParams{Reason: reason}
	b.problem(item, reason, err)
}

func (b *builder) problem(item *Item, reason string, err error) {
	p := malformed(item.Index, item.Opcode.String(), reason, err)
	b.tree.Problems = append(b.tree.Problems, p)

	if b.opts.Log != nil {
		b.opts.Log.WithFields(logrus.Fields{
			"index":  p.Index,
			"opcode": p.Opcode,
			"path":   b.tracker.CurrentPath(),
		}).WithError(err).Debug(reason)
	}
}
