package fs_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/bale/internal/adapters/fs"
	"go.trai.ch/bale/internal/core/domain"
)

func TestReader_Snapshot(t *testing.T) {
	tmpDir := t.TempDir()
	content := []byte("import './other.js'\n")
	require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, "src"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "src", "main.js"), content, 0o600))

	reader := fs.NewReader(tmpDir)

	unit, err := reader.Snapshot("src/main.js")
	require.NoError(t, err)
	assert.Equal(t, "src/main.js", unit.ID.String())
	assert.Equal(t, domain.UnitScript, unit.Kind)
	assert.Equal(t, content, unit.Data)
	assert.Equal(t, fs.HashBytes(content), unit.Hash)
	assert.Len(t, unit.Hash, 16)
}

func TestReader_Snapshot_Missing(t *testing.T) {
	tmpDir := t.TempDir()
	reader := fs.NewReader(tmpDir)

	_, err := reader.Snapshot("src/gone.js")
	require.Error(t, err)
	require.ErrorContains(t, err, domain.ErrFileOpenFailed.Error())
}

func TestReader_Exists(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "app.css"), []byte("body {}"), 0o600))

	reader := fs.NewReader(tmpDir)

	assert.True(t, reader.Exists("app.css"))
	assert.False(t, reader.Exists("gone.css"))
}

func TestHashBytes_Deterministic(t *testing.T) {
	a := fs.HashBytes([]byte("same input"))
	b := fs.HashBytes([]byte("same input"))
	c := fs.HashBytes([]byte("other input"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 16)
}
