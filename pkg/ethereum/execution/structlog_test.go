package execution

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStructLogs_BareArray(t *testing.T) {
	data := []byte(` [
		{"pc": 0, "op": "PUSH1", "gas": 100, "gasCost": 3, "depth": 1, "stack": []},
		{"pc": 2, "op": "STOP", "gas": 97, "gasCost": 0, "depth": 1, "stack": ["0x80"]}
	]`)

	trace, err := ParseStructLogs(data)
	require.NoError(t, err)
	require.Len(t, trace.Structlogs, 2)

	assert.Equal(t, "STOP", trace.Structlogs[1].Op)
	assert.Equal(t, uint64(97), trace.Structlogs[1].Gas)
	assert.Equal(t, []string{"0x80"}, trace.Structlogs[1].Stack)
}

func TestParseStructLogs_TraceResult(t *testing.T) {
	data := []byte(`{
		"gas": 21000,
		"failed": false,
		"returnValue": "",
		"structLogs": [
			{"pc": 0, "op": "SSTORE", "gas": 30000, "gasCost": 22100, "depth": 1,
			 "stack": ["0x2", "0x1"], "memory": ["0000000000000000000000000000000000000000000000000000000000000000"]}
		]
	}`)

	trace, err := ParseStructLogs(data)
	require.NoError(t, err)

	assert.Equal(t, uint64(21000), trace.Gas)
	require.Len(t, trace.Structlogs, 1)
	assert.Len(t, trace.Structlogs[0].Memory, 1)
}

func TestParseStructLogs_RPCEnvelope(t *testing.T) {
	data := []byte(`{"jsonrpc":"2.0","id":1,"result":{"gas":1,"structLogs":[{"op":"STOP","depth":1}]}}`)

	trace, err := ParseStructLogs(data)
	require.NoError(t, err)
	require.Len(t, trace.Structlogs, 1)
	assert.Equal(t, "STOP", trace.Structlogs[0].Op)
}

func TestParseStructLogs_Empty(t *testing.T) {
	_, err := ParseStructLogs([]byte(`[]`))
	require.ErrorIs(t, err, ErrEmptyInput)

	_, err = ParseStructLogs([]byte(`{"structLogs": []}`))
	require.ErrorIs(t, err, ErrEmptyInput)

	_, err = ParseStructLogs([]byte(`not json`))
	require.Error(t, err)
}

func TestStructLog_StackTop(t *testing.T) {
	sl := StructLog{Stack: []string{"0x1", "0x2", "0x3"}}

	top, ok := sl.StackTop(0)
	require.True(t, ok)
	assert.Equal(t, "0x3", top)

	second, ok := sl.StackTop(2)
	require.True(t, ok)
	assert.Equal(t, "0x1", second)

	_, ok = sl.StackTop(3)
	assert.False(t, ok)
}

func TestTransaction_Target(t *testing.T) {
	to := common.HexToAddress("0xb2")
	from := common.HexToAddress("0xa1")

	call := Transaction{From: from, To: &to}
	assert.Equal(t, to, call.Target())

	deploy := Transaction{From: from, Nonce: 7}
	assert.Equal(t, crypto.CreateAddress(from, 7), deploy.Target())
}
