package execution

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/structlog-decoder/internal/version"
)

type rpcRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      json.RawMessage   `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcHandler func(params []json.RawMessage) (any, *rpcError)

// fakeRPC is a minimal JSON-RPC server answering single and batched requests.
type fakeRPC struct {
	mu       sync.Mutex
	handlers map[string]rpcHandler
	headers  []http.Header
	requests []rpcRequest
}

func newFakeRPC(t *testing.T, handlers map[string]rpcHandler) (*fakeRPC, *httptest.Server) {
	t.Helper()

	f := &fakeRPC{handlers: handlers}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)

	return f, srv
}

func (f *fakeRPC) serve(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)

		return
	}

	f.mu.Lock()
	f.headers = append(f.headers, r.Header.Clone())
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	if len(body) > 0 && body[0] == '[' {
		var reqs []rpcRequest
		if err := json.Unmarshal(body, &reqs); err != nil {
			w.WriteHeader(http.StatusBadRequest)

			return
		}

		out := make([]rpcResponse, 0, len(reqs))
		for _, req := range reqs {
			out = append(out, f.answer(req))
		}

		_ = json.NewEncoder(w).Encode(out)

		return
	}

	var req rpcRequest
	if err := json.Unmarshal(body, &req); err != nil {
		w.WriteHeader(http.StatusBadRequest)

		return
	}

	_ = json.NewEncoder(w).Encode(f.answer(req))
}

func (f *fakeRPC) answer(req rpcRequest) rpcResponse {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	handler, ok := f.handlers[req.Method]
	f.mu.Unlock()

	rsp := rpcResponse{JSONRPC: "2.0", ID: req.ID}

	if !ok {
		rsp.Error = &rpcError{Code: -32601, Message: "the method " + req.Method + " does not exist/is not available"}

		return rsp
	}

	result, rerr := handler(req.Params)
	if rerr != nil {
		rsp.Error = rerr

		return rsp
	}

	rsp.Result = result

	return rsp
}

func (f *fakeRPC) lastRequest(method string) (rpcRequest, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := len(f.requests) - 1; i >= 0; i-- {
		if f.requests[i].Method == method {
			return f.requests[i], true
		}
	}

	return rpcRequest{}, false
}

func newTestNode(t *testing.T, url string) *RPCNode {
	t.Helper()

	node := NewRPCNode(logrus.New(), &Config{
		Name:            "test",
		NodeAddress:     url,
		NodeHeaders:     map[string]string{"Authorization": "Bearer secret"},
		TraceTimeout:    5 * time.Second,
		CallTimeout:     5 * time.Second,
		RetryMaxElapsed: time.Second,
	})
	require.NoError(t, node.Connect())

	return node
}

func TestRPCNode_NotConnected(t *testing.T) {
	node := NewRPCNode(logrus.New(), &Config{Name: "test", NodeAddress: "http://127.0.0.1:1"})

	_, err := node.CodeAt(context.Background(), common.Address{})
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestRPCNode_DebugTraceTransaction(t *testing.T) {
	f, srv := newFakeRPC(t, map[string]rpcHandler{
		"debug_traceTransaction": func(_ []json.RawMessage) (any, *rpcError) {
			return map[string]any{
				"gas":         21000,
				"failed":      false,
				"returnValue": "",
				"structLogs": []map[string]any{
					{"pc": 0, "op": "PUSH1", "gas": 100, "gasCost": 3, "depth": 1, "stack": []string{}},
					{"pc": 2, "op": "SSTORE", "gas": 97, "gasCost": 20000, "depth": 1, "stack": []string{"0x2", "0x1"}},
				},
			}, nil
		},
	})

	node := newTestNode(t, srv.URL)

	trace, err := node.DebugTraceTransaction(context.Background(), "0xabc", DecodeTraceOptions())
	require.NoError(t, err)
	require.Len(t, trace.Structlogs, 2)
	assert.Equal(t, "SSTORE", trace.Structlogs[1].Op)
	assert.Equal(t, []string{"0x2", "0x1"}, trace.Structlogs[1].Stack)
	assert.Nil(t, trace.ReturnValue)

	req, ok := f.lastRequest("debug_traceTransaction")
	require.True(t, ok)
	require.Len(t, req.Params, 2)

	var tracerConfig map[string]any
	require.NoError(t, json.Unmarshal(req.Params[1], &tracerConfig))
	assert.Equal(t, true, tracerConfig["enableMemory"])
	assert.Equal(t, false, tracerConfig["disableStack"])

	f.mu.Lock()
	assert.Equal(t, "Bearer secret", f.headers[0].Get("Authorization"))
	assert.Equal(t, version.UserAgent(), f.headers[0].Get("User-Agent"))
	f.mu.Unlock()
}

func TestRPCNode_TraceNotFound(t *testing.T) {
	_, srv := newFakeRPC(t, map[string]rpcHandler{
		"debug_traceTransaction": func(_ []json.RawMessage) (any, *rpcError) {
			return nil, &rpcError{Code: -32000, Message: "transaction 0xabc not found"}
		},
	})

	node := newTestNode(t, srv.URL)

	_, err := node.DebugTraceTransaction(context.Background(), "0xabc", DecodeTraceOptions())
	require.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestRPCNode_CallContractAndCode(t *testing.T) {
	token := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	f, srv := newFakeRPC(t, map[string]rpcHandler{
		"eth_call": func(_ []json.RawMessage) (any, *rpcError) {
			return "0x0102", nil
		},
		"eth_getCode": func(_ []json.RawMessage) (any, *rpcError) {
			return "0x6001", nil
		},
	})

	node := newTestNode(t, srv.URL)

	out, err := node.CallContract(context.Background(), token, []byte{0x95, 0xd8, 0x9b, 0x41})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02}, out)

	req, ok := f.lastRequest("eth_call")
	require.True(t, ok)

	var msg map[string]string
	require.NoError(t, json.Unmarshal(req.Params[0], &msg))
	assert.Equal(t, "0x95d89b41", msg["data"])
	assert.Equal(t, token.Hex(), msg["to"])

	code, err := node.CodeAt(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x60, 0x01}, code)
}

func TestRPCNode_TransactionByHash(t *testing.T) {
	_, srv := newFakeRPC(t, map[string]rpcHandler{
		"eth_getTransactionByHash": func(_ []json.RawMessage) (any, *rpcError) {
			return map[string]any{
				"hash": "0x00000000000000000000000000000000000000000000000000000000000000ab",
				"from": "0x00000000000000000000000000000000000000a1",
				"to":   "0x00000000000000000000000000000000000000b2",
			}, nil
		},
	})

	node := newTestNode(t, srv.URL)

	tx, err := node.TransactionByHash(context.Background(), "0xab")
	require.NoError(t, err)
	require.NotNil(t, tx.To)
	assert.Equal(t, common.HexToAddress("0xb2"), *tx.To)
	assert.Equal(t, common.HexToAddress("0xa1"), tx.From)
}

func TestRPCNode_RevertIsPermanent(t *testing.T) {
	var calls atomic.Int32

	_, srv := newFakeRPC(t, map[string]rpcHandler{
		"eth_call": func(_ []json.RawMessage) (any, *rpcError) {
			calls.Add(1)

			return nil, &rpcError{Code: 3, Message: "execution reverted"}
		},
	})

	node := newTestNode(t, srv.URL)

	_, err := node.CallContract(context.Background(), common.Address{}, nil)
	require.ErrorIs(t, err, ErrExecutionReverted)
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{NodeAddress: "http://localhost:8545", TraceTimeout: time.Second, CallTimeout: time.Second}
	require.NoError(t, valid.Validate())

	missing := valid
	missing.NodeAddress = ""
	require.Error(t, missing.Validate())

	badTimeout := valid
	badTimeout.CallTimeout = 0
	require.Error(t, badTimeout.Validate())
}
