package decoder

import (
	"fmt"

	"github.com/ethpandaops/structlog-decoder/pkg/ethereum/execution"
)

// =============================================================================
// GAS ACCOUNTING
// =============================================================================
//
// Each step carries two gas fields:
//
// Gas
//   Gas remaining before the step executes.
//
// GasCost
//   For ordinary opcodes, the static cost charged for the opcode.
//   For CALL/CREATE opcodes, the gas handed to the child frame.
//
// From those the decoder derives:
//
// Item.GasCost (ComputeOpcodeGas)
//   gas[i] - gas[next step at the same depth]. For a call this includes the
//   whole child frame.
//
// CallParams.GasUsed (callGasUsed)
//   gas on the call step minus gas on the first step after the return
//   boundary. When that step is missing the boundary step itself is used.
//
// SelfGas
//   A call's GasUsed minus the GasUsed of its direct child calls.
//
// =============================================================================

// EIP-2929 storage access costs.
const (
	coldSloadCost = 2100
)

// ComputeOpcodeGas returns the gas consumed by each step, taken as the
// difference to the next step at the same depth. The last step of a frame has
// no same-depth successor and keeps its reported GasCost.
func ComputeOpcodeGas(steps []execution.StructLog) []uint64 {
	if len(steps) == 0 {
		return nil
	}

	gasUsed := make([]uint64, len(steps))

	for i := range steps {
		gasUsed[i] = steps[i].GasCost
	}

	// pending holds one entry per open depth: the step waiting for its
	// same-depth successor.
	type waiting struct {
		depth uint64
		idx   int
	}

	pending := make([]waiting, 0, 16)

	for i := range steps {
		depth := steps[i].Depth

		// Returned from deeper frames: their last steps keep GasCost.
		for len(pending) > 0 && pending[len(pending)-1].depth > depth {
			pending = pending[:len(pending)-1]
		}

		if n := len(pending); n > 0 && pending[n-1].depth == depth {
			prevIdx := pending[n-1].idx

			// Out-of-order gas keeps the reported cost instead of wrapping.
			if steps[prevIdx].Gas >= steps[i].Gas {
				gasUsed[prevIdx] = steps[prevIdx].Gas - steps[i].Gas
			}

			pending[n-1].idx = i

			continue
		}

		pending = append(pending, waiting{depth: depth, idx: i})
	}

	return gasUsed
}

// callGasUsed computes the gas consumed by the call at step i whose frame
// returns at boundary step j.
func callGasUsed(steps []execution.StructLog, i, j int) (uint64, error) {
	after := j
	if j+1 < len(steps) && steps[j+1].Depth == steps[j].Depth {
		after = j + 1
	}

	before, remaining := steps[i].Gas, steps[after].Gas
	if remaining > before {
		return 0, fmt.Errorf("gas %d at step %d exceeds gas %d at call step %d", remaining, after, before, i)
	}

	return before - remaining, nil
}

// SelfGas returns the gas a call spent outside its child calls. Non-call items
// and calls without a known GasUsed report zero.
func SelfGas(item *Item) uint64 {
	call := item.Call()
	if call == nil || call.GasUsed == nil {
		return 0
	}

	var children uint64

	for _, child := range item.Children {
		if c := child.Call(); c != nil && c.GasUsed != nil {
			children += *c.GasUsed
		}
	}

	if children > *call.GasUsed {
		return 0
	}

	return *call.GasUsed - children
}

// classifySload reports a cold SLOAD (EIP-2929).
func classifySload(gasCost uint64) bool {
	return gasCost >= coldSloadCost
}

// classifySstore reports a cold SSTORE.
// Cold costs: 22100 (set), 5000 (reset), 2200 (no-op).
// Warm costs: 20000 (set), 2900 (reset), 100 (no-op).
func classifySstore(gasCost uint64) bool {
	switch gasCost {
	case 22100, 5000, 2200:
		return true
	default:
		return false
	}
}
