package decoder

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOpcode(t *testing.T) {
	tests := []struct {
		mnemonic string
		want     Opcode
		ok       bool
	}{
		{"CALL", OpCALL, true},
		{"delegatecall", OpDELEGATECALL, true},
		{"SHA3", OpSHA3, true},
		{"KECCAK256", OpSHA3, true},
		{"LOG4", OpLOG4, true},
		{"ADD", OpUnknown, false},
		{"UNKNOWN", OpUnknown, false},
		{"", OpUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.mnemonic, func(t *testing.T) {
			got, ok := ParseOpcode(tt.mnemonic)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpcode_Classification(t *testing.T) {
	for _, op := range []Opcode{OpCALL, OpCALLCODE, OpDELEGATECALL, OpSTATICCALL, OpCREATE, OpCREATE2} {
		assert.True(t, op.IsCall(), op.String())
	}

	assert.False(t, OpSLOAD.IsCall())
	assert.True(t, OpCREATE2.IsCreate())
	assert.False(t, OpCALL.IsCreate())
	assert.True(t, OpCALLCODE.TransfersValue())
	assert.False(t, OpSTATICCALL.TransfersValue())
	assert.False(t, OpDELEGATECALL.TransfersValue())

	for i, op := range LogOpcodes {
		assert.True(t, op.IsLog())
		assert.Equal(t, i, op.TopicCount())
	}

	assert.Equal(t, 0, OpSSTORE.TopicCount())
	assert.True(t, OpSSTORE.IsStorage())
	assert.Equal(t, "UNKNOWN", Opcode(200).String())
}

func TestOpcode_JSON(t *testing.T) {
	b, err := json.Marshal(OpSTATICCALL)
	require.NoError(t, err)
	assert.JSONEq(t, `"STATICCALL"`, string(b))

	var op Opcode
	require.NoError(t, json.Unmarshal([]byte(`"KECCAK256"`), &op))
	assert.Equal(t, OpSHA3, op)
}

func TestOpcodesForVerbosity(t *testing.T) {
	assert.Equal(t, LogOpcodes, OpcodesForVerbosity(1))
	assert.Equal(t, LogOpcodes, OpcodesForVerbosity(3))
	assert.Equal(t, append(append([]Opcode{}, LogOpcodes...), StorageOpcodes...), OpcodesForVerbosity(2))
	assert.Len(t, OpcodesForVerbosity(4), 7)
	assert.Nil(t, OpcodesForVerbosity(0))
}
