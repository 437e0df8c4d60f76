package fs_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/bale/internal/adapters/fs"
	"go.trai.ch/bale/internal/core/domain"
	"go.trai.ch/zerr"
)

func writeFixture(t *testing.T, root, rel string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte("export {}\n"), 0o600))
}

func defaultRules() domain.ResolveRules {
	return domain.ResolveRules{
		Extensions: []string{".js", ".mjs", ".css"},
	}
}

func TestResolver_Resolve_RelativeExact(t *testing.T) {
	tmpDir := t.TempDir()
	writeFixture(t, tmpDir, "src/components/button.js")

	resolver := fs.NewResolver(tmpDir, defaultRules())

	id, external, err := resolver.Resolve("./button.js", "src/components")
	require.NoError(t, err)
	assert.False(t, external)
	assert.Equal(t, "src/components/button.js", id)
}

func TestResolver_Resolve_ExtensionCandidates(t *testing.T) {
	tmpDir := t.TempDir()
	writeFixture(t, tmpDir, "src/util.mjs")

	resolver := fs.NewResolver(tmpDir, defaultRules())

	id, external, err := resolver.Resolve("./util", "src")
	require.NoError(t, err)
	assert.False(t, external)
	assert.Equal(t, "src/util.mjs", id)
}

func TestResolver_Resolve_ExtensionPriority(t *testing.T) {
	tmpDir := t.TempDir()

	// Both candidates exist; the earlier extension in the rules wins.
	writeFixture(t, tmpDir, "src/util.js")
	writeFixture(t, tmpDir, "src/util.mjs")

	resolver := fs.NewResolver(tmpDir, defaultRules())

	id, _, err := resolver.Resolve("./util", "src")
	require.NoError(t, err)
	assert.Equal(t, "src/util.js", id)
}

func TestResolver_Resolve_ExactBeforeExtensions(t *testing.T) {
	tmpDir := t.TempDir()
	writeFixture(t, tmpDir, "src/icon.svg")
	writeFixture(t, tmpDir, "src/icon.svg.js")

	resolver := fs.NewResolver(tmpDir, defaultRules())

	id, _, err := resolver.Resolve("./icon.svg", "src")
	require.NoError(t, err)
	assert.Equal(t, "src/icon.svg", id)
}

func TestResolver_Resolve_DirectoryIndex(t *testing.T) {
	tmpDir := t.TempDir()
	writeFixture(t, tmpDir, "src/widgets/index.js")

	resolver := fs.NewResolver(tmpDir, defaultRules())

	id, _, err := resolver.Resolve("./widgets", "src")
	require.NoError(t, err)
	assert.Equal(t, "src/widgets/index.js", id)
}

func TestResolver_Resolve_RootRelative(t *testing.T) {
	tmpDir := t.TempDir()
	writeFixture(t, tmpDir, "src/main.js")

	resolver := fs.NewResolver(tmpDir, defaultRules())

	id, _, err := resolver.Resolve("/src/main.js", "src/deep/nested")
	require.NoError(t, err)
	assert.Equal(t, "src/main.js", id)
}

func TestResolver_Resolve_ParentTraversal(t *testing.T) {
	tmpDir := t.TempDir()
	writeFixture(t, tmpDir, "src/shared/log.js")
	writeFixture(t, tmpDir, "src/pages/home.js")

	resolver := fs.NewResolver(tmpDir, defaultRules())

	id, _, err := resolver.Resolve("../shared/log.js", "src/pages")
	require.NoError(t, err)
	assert.Equal(t, "src/shared/log.js", id)
}

func TestResolver_Resolve_Alias(t *testing.T) {
	tmpDir := t.TempDir()
	writeFixture(t, tmpDir, "src/lib/math.js")

	rules := defaultRules()
	rules.Alias = map[string]string{"@": "src"}
	resolver := fs.NewResolver(tmpDir, rules)

	id, external, err := resolver.Resolve("@/lib/math", "src/pages")
	require.NoError(t, err)
	assert.False(t, external)
	assert.Equal(t, "src/lib/math.js", id)
}

func TestResolver_Resolve_AliasLongestPrefixWins(t *testing.T) {
	tmpDir := t.TempDir()
	writeFixture(t, tmpDir, "src/ui/button.js")
	writeFixture(t, tmpDir, "src/button.js")

	rules := defaultRules()
	rules.Alias = map[string]string{
		"@":    "src",
		"@/ui": "src/ui",
	}
	resolver := fs.NewResolver(tmpDir, rules)

	id, _, err := resolver.Resolve("@/ui/button", "src")
	require.NoError(t, err)
	assert.Equal(t, "src/ui/button.js", id)
}

func TestResolver_Resolve_BareSpecifierIsExternal(t *testing.T) {
	tmpDir := t.TempDir()

	resolver := fs.NewResolver(tmpDir, defaultRules())

	id, external, err := resolver.Resolve("preact/hooks", "src")
	require.NoError(t, err)
	assert.True(t, external)
	assert.Equal(t, "preact/hooks", id)
}

func TestResolver_Resolve_EscapesRoot(t *testing.T) {
	tmpDir := t.TempDir()

	resolver := fs.NewResolver(tmpDir, defaultRules())

	_, _, err := resolver.Resolve("../../outside.js", "src")
	require.Error(t, err)

	var zerrErr *zerr.Error
	require.ErrorAs(t, err, &zerrErr)
	assert.Equal(t, "escapes project root", zerrErr.Metadata()["reason"])
}

func TestResolver_Resolve_NotFound(t *testing.T) {
	tmpDir := t.TempDir()

	resolver := fs.NewResolver(tmpDir, defaultRules())

	id, external, err := resolver.Resolve("./missing", "src")
	require.Error(t, err)
	require.ErrorContains(t, err, domain.ErrResolveFailed.Error())

	// The would-be ID comes back with the error so callers can record the
	// dangling reference.
	assert.Equal(t, "src/missing", id)
	assert.False(t, external)

	var zerrErr *zerr.Error
	require.ErrorAs(t, err, &zerrErr)
	assert.Equal(t, "./missing", zerrErr.Metadata()["specifier"])
	assert.Equal(t, "src", zerrErr.Metadata()["from"])
}
