package decoder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/structlog-decoder/pkg/ethereum/execution"
)

func TestComputeOpcodeGas_Empty(t *testing.T) {
	assert.Nil(t, ComputeOpcodeGas(nil))
}

func TestComputeOpcodeGas_SameDepth(t *testing.T) {
	steps := []execution.StructLog{
		{Op: "PUSH1", Gas: 100, GasCost: 3, Depth: 1},
		{Op: "PUSH1", Gas: 97, GasCost: 3, Depth: 1},
		{Op: "ADD", Gas: 94, GasCost: 3, Depth: 1},
		{Op: "STOP", Gas: 91, GasCost: 0, Depth: 1},
	}

	assert.Equal(t, []uint64{3, 3, 3, 0}, ComputeOpcodeGas(steps))
}

func TestComputeOpcodeGas_CallIncludesChild(t *testing.T) {
	steps := []execution.StructLog{
		{Op: "CALL", Gas: 10000, GasCost: 7000, Depth: 1},
		{Op: "PUSH1", Gas: 6900, GasCost: 3, Depth: 2},
		{Op: "RETURN", Gas: 6897, GasCost: 0, Depth: 2},
		{Op: "POP", Gas: 9000, GasCost: 2, Depth: 1},
	}

	got := ComputeOpcodeGas(steps)
	require.Len(t, got, 4)
	assert.Equal(t, uint64(1000), got[0])
	assert.Equal(t, uint64(3), got[1])
	// Last step of the child frame keeps its reported cost.
	assert.Equal(t, uint64(0), got[2])
	assert.Equal(t, uint64(2), got[3])
}

func TestComputeOpcodeGas_OutOfOrderKeepsCost(t *testing.T) {
	steps := []execution.StructLog{
		{Op: "PUSH1", Gas: 100, GasCost: 3, Depth: 1},
		{Op: "PUSH1", Gas: 200, GasCost: 3, Depth: 1},
	}

	assert.Equal(t, []uint64{3, 3}, ComputeOpcodeGas(steps))
}

func TestComputeOpcodeGas_HugeDepth(t *testing.T) {
	steps := []execution.StructLog{
		{Op: "PUSH1", Gas: 100, GasCost: 3, Depth: 1},
		{Op: "STOP", Gas: 97, GasCost: 0, Depth: 1 << 62},
		{Op: "STOP", Gas: 90, GasCost: 0, Depth: 1},
	}

	assert.Equal(t, []uint64{10, 0, 0}, ComputeOpcodeGas(steps))
}

func TestComputeOpcodeGas_SkippedDepths(t *testing.T) {
	steps := []execution.StructLog{
		{Op: "CALL", Gas: 1000, GasCost: 700, Depth: 1},
		{Op: "PUSH1", Gas: 600, GasCost: 3, Depth: 3},
		{Op: "PUSH1", Gas: 597, GasCost: 3, Depth: 2},
		{Op: "POP", Gas: 590, GasCost: 2, Depth: 2},
		{Op: "POP", Gas: 500, GasCost: 2, Depth: 1},
	}

	assert.Equal(t, []uint64{500, 3, 7, 2, 2}, ComputeOpcodeGas(steps))
}

func TestCallGasUsed(t *testing.T) {
	steps := []execution.StructLog{
		{Op: "CALL", Gas: 1000, Depth: 1},
		{Op: "STOP", Gas: 400, Depth: 2},
		{Op: "POP", Gas: 800, Depth: 1},
		{Op: "PUSH1", Gas: 798, Depth: 1},
	}

	got, err := callGasUsed(steps, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(202), got)

	// Without a following step the boundary gas is used.
	got, err = callGasUsed(steps[:3], 0, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(200), got)

	_, err = callGasUsed([]execution.StructLog{{Gas: 10, Depth: 1}, {Gas: 20, Depth: 1}}, 0, 1)
	require.Error(t, err)
}

func TestColdClassification(t *testing.T) {
	assert.True(t, classifySload(2100))
	assert.False(t, classifySload(100))

	for _, cost := range []uint64{22100, 5000, 2200} {
		assert.True(t, classifySstore(cost), cost)
	}

	for _, cost := range []uint64{20000, 2900, 100} {
		assert.False(t, classifySstore(cost), cost)
	}
}

func TestSelfGas(t *testing.T) {
	used := func(v uint64) *uint64 { return &v }

	item := &Item{
		Opcode: OpCALL,
		Params: &CallParams{Kind: OpCALL, GasUsed: used(1000)},
		Children: []*Item{
			{Opcode: OpCALL, Params: &CallParams{Kind: OpCALL, GasUsed: used(300)}},
			{Opcode: OpSSTORE, Params: &StorageParams{}},
			{Opcode: OpCALL, Params: &CallParams{Kind: OpCALL}},
		},
	}

	assert.Equal(t, uint64(700), SelfGas(item))
	assert.Equal(t, uint64(0), SelfGas(item.Children[1]))
}
