package cmd

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/structlog-decoder/internal/testutil"
)

const stepsFile = `{"gas": 1000, "failed": false, "structLogs": [
	{"pc": 0, "op": "SSTORE", "gas": 1000, "gasCost": 900, "depth": 1, "stack": ["0x2", "0x1"]},
	{"pc": 1, "op": "STOP", "gas": 100, "gasCost": 0, "depth": 1, "stack": []}
]}`

func runRoot(t *testing.T, args ...string) string {
	t.Helper()

	var out bytes.Buffer

	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)

	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())

	return out.String()
}

func TestDecodeCommand(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "trace.json", stepsFile)
	conf := testutil.WriteFile(t, dir, "config.yaml", "logging: error\nnameTags:\n  store: none\n")

	text := runRoot(t, "--config", conf, "decode", path, "--gas")
	assert.Contains(t, text, "SSTORE 0x0000000000000000000000000000000000000000000000000000000000000001 <= (")
	assert.Contains(t, text, "(cost: 900)")

	raw := runRoot(t, "--config", conf, "decode", path, "-o", "json", "--gas=false")

	var result struct {
		Gas  uint64 `json:"gas"`
		Tree struct {
			Items []json.RawMessage `json:"items"`
		} `json:"tree"`
	}

	require.NoError(t, json.Unmarshal([]byte(raw), &result))
	assert.Equal(t, uint64(1000), result.Gas)
	assert.Len(t, result.Tree.Items, 1)
}

func TestVersionCommand(t *testing.T) {
	out := runRoot(t, "version")
	assert.Contains(t, out, "Version: dev")
}
