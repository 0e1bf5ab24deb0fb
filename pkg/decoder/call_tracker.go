package decoder

import (
	"github.com/ethereum/go-ethereum/common"
)

// callFrame is an open call frame during a decode pass.
type callFrame struct {
	ID    uint32 // Sequential frame ID within the trace, 0 is the root
	Depth uint64 // Depth of the step that opened the frame
	Index int    // Step index of the call, NoParent for the root

	item  *Item
	entry *callEntry

	// address is the executing address inside the frame, caller the one
	// outside it.
	address common.Address
	caller  common.Address
	// hidden frames and everything beneath them are not recorded.
	hidden bool
	// deferred holds events emitted before a CREATE address was known.
	deferred []*LogParams
}

// callTracker keeps the stack of open frames. The root frame is never popped.
type callTracker struct {
	stack  []*callFrame
	nextID uint32
	path   []uint32
}

func newCallTracker(rootAddress common.Address) *callTracker {
	return &callTracker{
		stack:  []*callFrame{{ID: 0, Index: NoParent, address: rootAddress}},
		nextID: 1,
		path:   []uint32{0},
	}
}

// current returns the innermost open frame.
func (ct *callTracker) current() *callFrame {
	return ct.stack[len(ct.stack)-1]
}

// open pushes a frame and assigns its ID.
func (ct *callTracker) open(frame *callFrame) {
	frame.ID = ct.nextID
	ct.nextID++

	ct.stack = append(ct.stack, frame)
	ct.path = append(ct.path, frame.ID)
}

// closeTo pops every frame opened at a depth >= depth, innermost first.
func (ct *callTracker) closeTo(depth uint64) []*callFrame {
	var closed []*callFrame

	for len(ct.stack) > 1 && ct.current().Depth >= depth {
		closed = append(closed, ct.current())
		ct.stack = ct.stack[:len(ct.stack)-1]
		ct.path = ct.path[:len(ct.path)-1]
	}

	return closed
}

// closeAll pops every frame except the root, innermost first.
func (ct *callTracker) closeAll() []*callFrame {
	closed := make([]*callFrame, 0, len(ct.stack)-1)

	for len(ct.stack) > 1 {
		closed = append(closed, ct.current())
		ct.stack = ct.stack[:len(ct.stack)-1]
		ct.path = ct.path[:len(ct.path)-1]
	}

	return closed
}

// CurrentPath returns a copy of the frame IDs from the root to the active frame.
func (ct *callTracker) CurrentPath() []uint32 {
	pathCopy := make([]uint32, len(ct.path))
	copy(pathCopy, ct.path)

	return pathCopy
}
