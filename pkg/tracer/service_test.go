package tracer

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/creasty/defaults"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/structlog-decoder/internal/testutil"
	"github.com/ethpandaops/structlog-decoder/pkg/decoder"
	"github.com/ethpandaops/structlog-decoder/pkg/ethereum/execution"
	"github.com/ethpandaops/structlog-decoder/pkg/nametag"
)

var (
	rootAddr   = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	calleeAddr = common.HexToAddress("0x00000000000000000000000000000000000000bb")
)

func word(v uint64) string {
	return fmt.Sprintf("0x%x", v)
}

func stack(topFirst ...string) []string {
	out := slices.Clone(topFirst)
	slices.Reverse(out)

	return out
}

// sampleTrace calls calleeAddr, which emits one event and returns.
func sampleTrace() *execution.TraceTransaction {
	return &execution.TraceTransaction{
		Gas: 30000,
		Structlogs: []execution.StructLog{
			{Op: "CALL", Depth: 1, Gas: 21000, GasCost: 100, Stack: stack(word(10000), calleeAddr.Hex(), word(0), word(0), word(0), word(0), word(0))},
			{Op: "LOG1", Depth: 2, Gas: 9900, GasCost: 750, Stack: stack(word(0), word(0), word(7))},
			{Op: "STOP", Depth: 2, Gas: 9150},
			{Op: "SSTORE", Depth: 1, Gas: 20000, GasCost: 99999999, Stack: stack(word(1), word(2))},
			{Op: "STOP", Depth: 1, Gas: 0},
		},
	}
}

type stubNode struct {
	execution.Node
	trace *execution.TraceTransaction
	tx    *execution.Transaction
	err   error
}

func (n *stubNode) Name() string { return "stub" }

func (n *stubNode) TransactionByHash(context.Context, string) (*execution.Transaction, error) {
	if n.err != nil {
		return nil, n.err
	}

	return n.tx, nil
}

func (n *stubNode) DebugTraceTransaction(context.Context, string, execution.TraceOptions) (*execution.TraceTransaction, error) {
	return n.trace, nil
}

type stubSource struct {
	node execution.Node
}

func (s stubSource) WaitForHealthyExecutionNode(context.Context) (execution.Node, error) {
	return s.node, nil
}

func newConfig(t *testing.T) *Config {
	t.Helper()

	c := &Config{}
	require.NoError(t, defaults.Set(c))

	return c
}

func newService(t *testing.T, nodes NodeSource, resolver nametag.Resolver) *Service {
	t.Helper()

	s, err := New(testutil.NewLogger(t), newConfig(t), nodes, resolver, 2)
	require.NoError(t, err)

	return s
}

func TestService_Decode(t *testing.T) {
	tags, err := nametag.NewTags(map[string]string{calleeAddr.Hex(): "Callee"})
	require.NoError(t, err)

	trace := sampleTrace()
	s := newService(t, nil, tags)

	result, err := s.Decode(context.Background(), trace, rootAddr)
	require.NoError(t, err)

	require.Len(t, result.Tree.Items, 2)

	call := result.Tree.Items[0]
	require.NotNil(t, call.Call())
	require.Len(t, call.Children, 1)

	event, ok := call.Children[0].Params.(*decoder.LogParams)
	require.True(t, ok)
	assert.Equal(t, calleeAddr, event.Emitter)

	assert.Equal(t, nametag.Names{calleeAddr: "Callee"}, result.Names)

	// input is left untouched by gas cost sanitizing
	assert.Equal(t, uint64(99999999), trace.Structlogs[3].GasCost)
}

func TestService_DecodeEmptyTrace(t *testing.T) {
	s := newService(t, nil, nil)

	result, err := s.Decode(context.Background(), &execution.TraceTransaction{Gas: 21000}, rootAddr)
	require.NoError(t, err)
	assert.Empty(t, result.Tree.Items)
	assert.Nil(t, result.Names)
}

func TestService_DecodeMany(t *testing.T) {
	s := newService(t, nil, nil)

	traces := []*execution.TraceTransaction{sampleTrace(), {}, sampleTrace()}

	results, err := s.DecodeMany(context.Background(), traces)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Len(t, results[0].Tree.Items, 2)
	assert.Empty(t, results[1].Tree.Items)
	assert.Len(t, results[2].Tree.Items, 2)
}

func TestService_TraceTransaction(t *testing.T) {
	to := rootAddr
	node := &stubNode{
		trace: sampleTrace(),
		tx:    &execution.Transaction{To: &to},
	}

	s := newService(t, stubSource{node: node}, nil)

	result, err := s.TraceTransaction(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.Equal(t, "0xabc", result.Hash)
	assert.Equal(t, uint64(30000), result.Gas)
	assert.Len(t, result.Tree.Items, 2)
}

func TestService_TraceTransactionErrors(t *testing.T) {
	s := newService(t, nil, nil)

	_, err := s.TraceTransaction(context.Background(), "0xabc")
	require.ErrorIs(t, err, ErrNoTraceSource)

	node := &stubNode{err: execution.ErrTransactionNotFound}
	s = newService(t, stubSource{node: node}, nil)

	_, err = s.TraceTransaction(context.Background(), "0xabc")
	require.ErrorIs(t, err, execution.ErrTransactionNotFound)
}

// failingResolver always errors.
type failingResolver struct{}

func (failingResolver) Name() string { return "failing" }

func (failingResolver) Resolve(context.Context, common.Address) (string, error) {
	return "", errors.New("boom")
}

func TestService_ResolverError(t *testing.T) {
	s := newService(t, nil, failingResolver{})

	_, err := s.Decode(context.Background(), sampleTrace(), rootAddr)
	require.ErrorContains(t, err, "boom")
}

func TestConfig(t *testing.T) {
	c := newConfig(t)
	require.NoError(t, c.Validate())

	opts, err := c.DecoderOptions(testutil.NewLogger(t))
	require.NoError(t, err)
	assert.Nil(t, opts.Opcodes)
	assert.Nil(t, opts.AddressContext)
	assert.Equal(t, uint64(decoder.DefaultMaxMemoryRead), opts.MaxMemoryRead)

	c.Verbosity = 1
	c.Opcodes = []string{"mstore"}
	c.AddressContext = AddressContextStorage
	c.CreateAddresses = CreateAddressesDerived
	require.NoError(t, c.Validate())

	opts, err = c.DecoderOptions(testutil.NewLogger(t))
	require.NoError(t, err)
	assert.Contains(t, opts.Opcodes, decoder.OpMSTORE)
	assert.Contains(t, opts.Opcodes, decoder.OpLOG0)
	assert.NotContains(t, opts.Opcodes, decoder.OpSSTORE)
	assert.IsType(t, decoder.StorageAddressContext{}, opts.AddressContext)
	assert.IsType(t, decoder.DerivedCreateAddresses{}, opts.CreateAddresses)

	c.Opcodes = []string{"JUMP"}
	require.Error(t, c.Validate())

	c.Opcodes = nil
	c.Verbosity = 9
	require.Error(t, c.Validate())
}
