package devserver

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/bale/internal/core/domain"
)

func decodeFrame(t *testing.T, frame []byte) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(frame, &m))
	return m
}

func TestSyncFrame(t *testing.T) {
	manifest := &domain.AssetManifest{
		Revision:  3,
		Mode:      domain.ModeDevelopment,
		ShellName: "index.html",
		Chunks: []domain.OutputChunk{
			{Name: "main", Ext: "js", Hash: "1234567890abcdef"},
		},
	}

	m := decodeFrame(t, syncFrame(3, manifest))

	assert.Equal(t, "sync", m["type"])
	assert.Equal(t, float64(3), m["revision"])

	summary, ok := m["manifest"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "development", summary["mode"])
	assert.Equal(t, "index.html", summary["shell"])
	assert.Equal(t, []any{"main.12345678.js", "index.html"}, summary["files"])
}

func TestSyncFrame_NoManifest(t *testing.T) {
	m := decodeFrame(t, syncFrame(0, nil))

	assert.Equal(t, "sync", m["type"])
	assert.Equal(t, float64(0), m["revision"])
	_, present := m["manifest"]
	assert.False(t, present)
}

func TestUpdateFrame(t *testing.T) {
	update := domain.ModuleUpdate{
		Unit: domain.NewInternedString("src/main.js"),
		Code: "__bale_register(...)",
	}

	m := decodeFrame(t, updateFrame(7, update))

	assert.Equal(t, "update", m["type"])
	assert.Equal(t, float64(7), m["revision"])
	assert.Equal(t, "src/main.js", m["moduleId"])
	assert.Equal(t, "__bale_register(...)", m["newSource"])
}

func TestSwapFrame(t *testing.T) {
	swaps := []domain.ChunkSwap{{Old: "styles.11111111.css", New: "styles.22222222.css"}}

	m := decodeFrame(t, swapFrame(2, swaps))

	assert.Equal(t, "css-swap", m["type"])
	wire, ok := m["swaps"].([]any)
	require.True(t, ok)
	require.Len(t, wire, 1)
	first, ok := wire[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "styles.11111111.css", first["old"])
	assert.Equal(t, "styles.22222222.css", first["new"])
}

func TestReloadFrame(t *testing.T) {
	m := decodeFrame(t, reloadFrame(9))

	assert.Equal(t, "full-reload", m["type"])
	assert.Equal(t, float64(9), m["revision"])
	_, present := m["moduleId"]
	assert.False(t, present)
}

func TestErrorFrame(t *testing.T) {
	diags := []domain.Diagnostic{
		{
			Severity: domain.SeverityError,
			Unit:     domain.NewInternedString("src/broken.js"),
			Line:     12,
			Message:  "unterminated string literal",
		},
		{
			Severity: domain.SeverityWarning,
			Message:  "build-level warning",
		},
	}

	m := decodeFrame(t, errorFrame(4, diags))

	assert.Equal(t, "error", m["type"])
	wire, ok := m["diagnostics"].([]any)
	require.True(t, ok)
	require.Len(t, wire, 2)

	first, ok := wire[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "error", first["severity"])
	assert.Equal(t, "src/broken.js", first["unit"])
	assert.Equal(t, float64(12), first["line"])
	assert.Equal(t, "unterminated string literal", first["message"])

	second, ok := wire[1].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "warning", second["severity"])
	_, present := second["unit"]
	assert.False(t, present)
}
