package fs_test

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/bale/internal/adapters/fs"
	"go.trai.ch/zerr"
)

func TestWalker_Dirs(t *testing.T) {
	tmpDir := t.TempDir()
	for _, dir := range []string{"src/components", "src/styles", ".git/objects", "node_modules/preact", "dist"} {
		require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, dir), 0o750))
	}

	walker := fs.NewWalker()

	var dirs []string
	for dir := range walker.Dirs(tmpDir, []string{"dist"}) {
		rel, err := filepath.Rel(tmpDir, dir)
		require.NoError(t, err)
		dirs = append(dirs, filepath.ToSlash(rel))
	}

	assert.Contains(t, dirs, ".")
	assert.Contains(t, dirs, "src")
	assert.Contains(t, dirs, "src/components")
	assert.Contains(t, dirs, "src/styles")
	assert.NotContains(t, dirs, ".git")
	assert.NotContains(t, dirs, ".git/objects")
	assert.NotContains(t, dirs, "node_modules")
	assert.NotContains(t, dirs, "dist")
}

func TestWalker_Dirs_EarlyStop(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, "a/b/c"), 0o750))

	walker := fs.NewWalker()

	count := 0
	for range walker.Dirs(tmpDir, nil) {
		count++
		if count == 2 {
			break
		}
	}

	assert.Equal(t, 2, count)
}

func TestSink_WriteAndExists(t *testing.T) {
	tmpDir := t.TempDir()
	sink := fs.NewSink()

	require.NoError(t, sink.Write(tmpDir, "main.4f2a91bc.js", []byte("console.log(1)")))

	assert.True(t, sink.Exists(tmpDir, "main.4f2a91bc.js"))
	assert.False(t, sink.Exists(tmpDir, "main.deadbeef.js"))

	data, err := os.ReadFile(filepath.Join(tmpDir, "main.4f2a91bc.js"))
	require.NoError(t, err)
	assert.Equal(t, "console.log(1)", string(data))
}

func TestSink_Write_CreatesParents(t *testing.T) {
	tmpDir := t.TempDir()
	sink := fs.NewSink()

	require.NoError(t, sink.Write(tmpDir, "assets/logo.0a1b2c3d.svg", []byte("<svg/>")))
	assert.True(t, sink.Exists(tmpDir, "assets/logo.0a1b2c3d.svg"))
}

func TestSink_Write_RejectsEscape(t *testing.T) {
	tmpDir := t.TempDir()
	sink := fs.NewSink()

	err := sink.Write(tmpDir, "../escape.js", []byte("nope"))
	require.Error(t, err)

	var zerrErr *zerr.Error
	require.ErrorAs(t, err, &zerrErr)
	assert.Equal(t, "../escape.js", zerrErr.Metadata()["name"])
}

func TestSink_Prune(t *testing.T) {
	tmpDir := t.TempDir()
	sink := fs.NewSink()

	require.NoError(t, sink.Write(tmpDir, "main.11111111.js", []byte("old")))
	require.NoError(t, sink.Write(tmpDir, "main.22222222.js", []byte("new")))
	require.NoError(t, sink.Write(tmpDir, "index.html", []byte("<html/>")))
	require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, "assets"), 0o750))

	removed, err := sink.Prune(tmpDir, []string{"main.22222222.js", "index.html"})
	require.NoError(t, err)
	assert.Equal(t, []string{"main.11111111.js"}, removed)

	assert.False(t, sink.Exists(tmpDir, "main.11111111.js"))
	assert.True(t, sink.Exists(tmpDir, "main.22222222.js"))

	// Directories survive pruning.
	info, err := os.Stat(filepath.Join(tmpDir, "assets"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestSink_Prune_MissingDirIsNoop(t *testing.T) {
	tmpDir := t.TempDir()
	sink := fs.NewSink()

	removed, err := sink.Prune(filepath.Join(tmpDir, "never-created"), nil)
	require.NoError(t, err)
	assert.True(t, slices.Equal(removed, nil))
}
