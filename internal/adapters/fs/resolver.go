package fs

import (
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"go.trai.ch/bale/internal/core/domain"
	"go.trai.ch/bale/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Resolver = (*Resolver)(nil)

// Resolver maps import specifiers to canonical unit IDs. Resolution is a
// pure function of the specifier, the importing directory, and the configured
// rules; it consults the filesystem but never follows anything outside the
// project root.
type Resolver struct {
	root      string
	rules     domain.ResolveRules
	aliasKeys []string
}

// NewResolver creates a new Resolver for the given root and rules. Alias
// prefixes are matched longest-first, so "@components/" wins over "@/".
func NewResolver(root string, rules domain.ResolveRules) *Resolver {
	keys := make([]string, 0, len(rules.Alias))
	for k := range rules.Alias {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return &Resolver{root: root, rules: rules, aliasKeys: keys}
}

// Resolve maps a specifier written in fromDir to a canonical unit ID.
// The candidate order is fixed: exact path, then each configured extension
// in priority order, then a directory index file. Specifiers without a
// relative or absolute prefix resolve as external references after aliasing.
func (r *Resolver) Resolve(specifier, fromDir string) (string, bool, error) {
	spec := r.applyAlias(specifier)

	var base string
	switch {
	case strings.HasPrefix(spec, "./"), strings.HasPrefix(spec, "../"):
		base = path.Join(fromDir, spec)
	case strings.HasPrefix(spec, "/"):
		base = strings.TrimPrefix(spec, "/")
	case spec != specifier:
		// An alias rewrote the specifier; the replacement is root-relative.
		base = spec
	default:
		return specifier, true, nil
	}

	base = path.Clean(base)
	if base == ".." || strings.HasPrefix(base, "../") {
		return "", false, zerr.With(
			zerr.With(domain.ErrResolveFailed, "specifier", specifier),
			"reason", "escapes project root",
		)
	}

	if id, ok := r.tryCandidates(base); ok {
		return id, false, nil
	}

	// No candidate exists yet. Return the cleaned base alongside the error
	// so callers can record the ID the specifier would occupy and pick the
	// import up when the file appears.
	err := zerr.With(domain.ErrResolveFailed, "specifier", specifier)
	return base, false, zerr.With(err, "from", fromDir)
}

// applyAlias rewrites the specifier through the longest matching alias prefix.
func (r *Resolver) applyAlias(specifier string) string {
	for _, prefix := range r.aliasKeys {
		if strings.HasPrefix(specifier, prefix) {
			return r.rules.Alias[prefix] + specifier[len(prefix):]
		}
	}
	return specifier
}

// tryCandidates probes the fixed candidate order for a root-relative base path.
func (r *Resolver) tryCandidates(base string) (string, bool) {
	if r.isFile(base) {
		return base, true
	}
	for _, ext := range r.rules.Extensions {
		if candidate := base + ext; r.isFile(candidate) {
			return candidate, true
		}
	}
	if r.isDir(base) {
		for _, ext := range r.rules.Extensions {
			if candidate := path.Join(base, "index"+ext); r.isFile(candidate) {
				return candidate, true
			}
		}
	}
	return "", false
}

func (r *Resolver) isFile(rel string) bool {
	info, err := os.Stat(filepath.Join(r.root, filepath.FromSlash(rel)))
	return err == nil && info.Mode().IsRegular()
}

func (r *Resolver) isDir(rel string) bool {
	info, err := os.Stat(filepath.Join(r.root, filepath.FromSlash(rel)))
	return err == nil && info.IsDir()
}
