package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/creasty/defaults"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/structlog-decoder/internal/testutil"
	"github.com/ethpandaops/structlog-decoder/pkg/api"
	"github.com/ethpandaops/structlog-decoder/pkg/nametag"
	"github.com/ethpandaops/structlog-decoder/pkg/tracer"
)

const emitterHex = "0x00000000000000000000000000000000000000cc"

// One root level event: LOG1 with topic 0x7 and no data.
const structLogs = `[
	{"pc": 0, "op": "LOG1", "gas": 1000, "gasCost": 750, "depth": 1, "stack": ["0x7", "0x0", "0x0"]},
	{"pc": 1, "op": "STOP", "gas": 250, "gasCost": 0, "depth": 1, "stack": []}
]`

func newServer(t *testing.T) *httptest.Server {
	t.Helper()

	log := testutil.NewLogger(t)

	conf := &tracer.Config{}
	require.NoError(t, defaults.Set(conf))

	tags, err := nametag.NewTags(map[string]string{emitterHex: "Emitter"})
	require.NoError(t, err)

	svc, err := tracer.New(log, conf, nil, tags, 1)
	require.NoError(t, err)

	mux := http.NewServeMux()
	api.NewHandler(log, svc).RegisterRoutes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv
}

func TestDecode_JSON(t *testing.T) {
	srv := newServer(t)

	rsp, err := http.Post(srv.URL+"/api/v1/decode?root="+emitterHex, "application/json", strings.NewReader(structLogs))
	require.NoError(t, err)

	defer rsp.Body.Close()

	require.Equal(t, http.StatusOK, rsp.StatusCode)

	var result struct {
		Tree struct {
			Items []struct {
				Opcode string `json:"opcode"`
				Params struct {
					Emitter common.Address `json:"emitter"`
				} `json:"params"`
			} `json:"items"`
		} `json:"tree"`
		Names map[string]string `json:"names"`
	}

	require.NoError(t, json.NewDecoder(rsp.Body).Decode(&result))
	require.Len(t, result.Tree.Items, 1)
	assert.Equal(t, "LOG1", result.Tree.Items[0].Opcode)
	assert.Equal(t, common.HexToAddress(emitterHex), result.Tree.Items[0].Params.Emitter)
	assert.Equal(t, map[string]string{emitterHex: "Emitter"}, result.Names)
}

func TestDecode_Text(t *testing.T) {
	srv := newServer(t)

	rsp, err := http.Post(srv.URL+"/api/v1/decode?format=text&gas=true&root="+emitterHex, "application/json", strings.NewReader(structLogs))
	require.NoError(t, err)

	defer rsp.Body.Close()

	require.Equal(t, http.StatusOK, rsp.StatusCode)
	assert.Contains(t, rsp.Header.Get("Content-Type"), "text/plain")

	buf := new(bytes.Buffer)
	_, err = buf.ReadFrom(rsp.Body)
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "EVENT Emitter(")
	assert.Contains(t, buf.String(), "(cost: 750)")
}

func TestDecode_BadInput(t *testing.T) {
	srv := newServer(t)

	tests := []struct {
		name string
		path string
		body string
	}{
		{name: "not json", path: "/api/v1/decode", body: "nope"},
		{name: "empty", path: "/api/v1/decode", body: "[]"},
		{name: "bad root", path: "/api/v1/decode?root=0x12", body: structLogs},
		{name: "empty batch", path: "/api/v1/decode/batch", body: `{"traces": []}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rsp, err := http.Post(srv.URL+tt.path, "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)

			defer rsp.Body.Close()

			assert.Equal(t, http.StatusBadRequest, rsp.StatusCode)

			var e api.ErrorResponse
			require.NoError(t, json.NewDecoder(rsp.Body).Decode(&e))
			assert.NotEmpty(t, e.Error)
		})
	}
}

func TestDecodeBatch(t *testing.T) {
	srv := newServer(t)

	body := `{"traces": [{"gas": 1, "structLogs": ` + structLogs + `}, {"gas": 2, "structLogs": []}]}`

	rsp, err := http.Post(srv.URL+"/api/v1/decode/batch", "application/json", strings.NewReader(body))
	require.NoError(t, err)

	defer rsp.Body.Close()

	require.Equal(t, http.StatusOK, rsp.StatusCode)

	var out struct {
		Results []struct {
			Gas  uint64 `json:"gas"`
			Tree struct {
				Items []json.RawMessage `json:"items"`
			} `json:"tree"`
		} `json:"results"`
	}

	require.NoError(t, json.NewDecoder(rsp.Body).Decode(&out))
	require.Len(t, out.Results, 2)
	assert.Equal(t, uint64(1), out.Results[0].Gas)
	assert.Len(t, out.Results[0].Tree.Items, 1)
	assert.Empty(t, out.Results[1].Tree.Items)
}

func TestTrace(t *testing.T) {
	srv := newServer(t)

	rsp, err := http.Get(srv.URL + "/api/v1/trace/0x1234")
	require.NoError(t, err)
	rsp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, rsp.StatusCode)

	hash := common.HexToHash("0xabc").Hex()

	rsp, err = http.Get(srv.URL + "/api/v1/trace/" + hash)
	require.NoError(t, err)

	defer rsp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, rsp.StatusCode)

	var e api.ErrorResponse
	require.NoError(t, json.NewDecoder(rsp.Body).Decode(&e))
	assert.Equal(t, hash, e.Hash)
}
