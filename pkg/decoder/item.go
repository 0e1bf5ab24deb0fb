package decoder

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/hashicorp/go-multierror"
	"github.com/holiman/uint256"
)

// NoParent marks an item at the root of the tree.
const NoParent = -1

// Item is one decoded node of the tree.
type Item struct {
	Opcode Opcode `json:"opcode"`
	// Index is the step index the item was decoded from.
	Index int `json:"index"`
	// Depth is the step depth relative to the first step of the trace.
	Depth uint64 `json:"depth"`
	// Parent is the step index of the enclosing call item, or NoParent.
	// It is a presentation aid; ownership runs through Children only.
	Parent int `json:"parent"`
	// GasCost is the gas consumed by the opcode itself (see ComputeOpcodeGas).
	GasCost uint64 `json:"gasCost"`

	Params   Params  `json:"params"`
	Children []*Item `json:"children,omitempty"`
}

// Call returns the call parameters, or nil when the item is not a call.
func (i *Item) Call() *CallParams {
	p, _ := i.Params.(*CallParams)

	return p
}

// Faulty reports whether the item is a fault marker.
func (i *Item) Faulty() bool {
	_, ok := i.Params.(*FaultParams)

	return ok
}

// Params is implemented by every opcode-specific parameter record.
type Params interface {
	params()
}

// CallParams describes a message call or contract creation.
type CallParams struct {
	Kind Opcode `json:"kind"`
	// To is nil for CREATE/CREATE2 until the created address is resolved.
	To          *common.Address `json:"to"`
	Input       hexutil.Bytes   `json:"input"`
	Output      hexutil.Bytes   `json:"output"`
	Value       *uint256.Int    `json:"value"`
	GasProvided uint64          `json:"gasProvided"`
	// GasUsed is nil when the call never returned or its gas was inconsistent.
	GasUsed *uint64      `json:"gasUsed"`
	Salt    *common.Hash `json:"salt,omitempty"`
	Success bool         `json:"success"`
	// Truncated is set when the trace ended before the call returned.
	Truncated bool `json:"truncated,omitempty"`
}

// LogParams describes an emitted event.
type LogParams struct {
	Topics  []common.Hash  `json:"topics"`
	Data    hexutil.Bytes  `json:"data"`
	Emitter common.Address `json:"emitter"`
}

// StorageParams describes SLOAD and SSTORE.
type StorageParams struct {
	Key   common.Hash `json:"key"`
	Value common.Hash `json:"value"`
	Cold  bool        `json:"cold"`
}

// MemoryParams describes MLOAD and MSTORE.
type MemoryParams struct {
	Offset common.Hash `json:"offset"`
	Value  common.Hash `json:"value"`
}

// HashParams describes SHA3 (KECCAK256).
type HashParams struct {
	Offset uint64        `json:"offset"`
	Size   uint64        `json:"size"`
	Input  hexutil.Bytes `json:"input"`
	Hash   common.Hash   `json:"hash"`
}

// FaultParams marks an opcode that could not be decoded.
type FaultParams struct {
	Reason string `json:"reason"`
}

func (*CallParams) params()    {}
func (*LogParams) params()     {}
func (*StorageParams) params() {}
func (*MemoryParams) params()  {}
func (*HashParams) params()    {}
func (*FaultParams) params()   {}

// Tree is the result of a decode pass.
type Tree struct {
	Items     []*Item                `json:"items"`
	RootDepth uint64                 `json:"rootDepth"`
	Problems  []*MalformedTraceError `json:"problems,omitempty"`

	byIndex map[int]*Item
}

// Walk visits every item in program order. Returning false from fn skips the
// item's children.
func (t *Tree) Walk(fn func(item *Item) bool) {
	var walk func(items []*Item)

	walk = func(items []*Item) {
		for _, item := range items {
			if fn(item) {
				walk(item.Children)
			}
		}
	}

	walk(t.Items)
}

// Count returns the number of items in the tree.
func (t *Tree) Count() int {
	n := 0

	t.Walk(func(*Item) bool {
		n++

		return true
	})

	return n
}

// Calls returns every call item in program order.
func (t *Tree) Calls() []*Item {
	var calls []*Item

	t.Walk(func(item *Item) bool {
		if item.Call() != nil {
			calls = append(calls, item)
		}

		return true
	})

	return calls
}

// Item returns the item decoded from the step at index.
func (t *Tree) Item(index int) (*Item, bool) {
	if t.byIndex == nil {
		t.reindex()
	}

	item, ok := t.byIndex[index]

	return item, ok
}

// reindex rebuilds the step index table. Build calls it before returning, so
// lookups on a built tree are read-only.
func (t *Tree) reindex() {
	t.byIndex = make(map[int]*Item)

	t.Walk(func(item *Item) bool {
		t.byIndex[item.Index] = item

		return true
	})
}

// Parent returns the enclosing call item.
func (t *Tree) Parent(item *Item) (*Item, bool) {
	if item.Parent == NoParent {
		return nil, false
	}

	return t.Item(item.Parent)
}

// Addresses returns the distinct addresses referenced by calls and events.
func (t *Tree) Addresses() []common.Address {
	seen := make(map[common.Address]struct{})

	var out []common.Address

	add := func(a common.Address) {
		if _, ok := seen[a]; ok {
			return
		}

		seen[a] = struct{}{}
		out = append(out, a)
	}

	t.Walk(func(item *Item) bool {
		switch p := item.Params.(type) {
		case *CallParams:
			if p.To != nil {
				add(*p.To)
			}
		case *LogParams:
			add(p.Emitter)
		}

		return true
	})

	return out
}

// Err aggregates the problems recovered during decoding, nil when there were none.
func (t *Tree) Err() error {
	var result *multierror.Error

	for _, p := range t.Problems {
		result = multierror.Append(result, p)
	}

	return result.ErrorOrNil()
}
