package domain

import (
	"fmt"
	"slices"

	"github.com/cespare/xxhash/v2"
)

// ImportKind classifies how one unit references another.
type ImportKind uint8

const (
	// ImportStatic is a top-level import that must be satisfied before the
	// importing unit can run.
	ImportStatic ImportKind = iota
	// ImportDynamic is a deferred import; the target loads on demand.
	ImportDynamic
	// ImportSideEffect is a static import evaluated only for its effects,
	// with no bindings.
	ImportSideEffect
)

// String returns the lowercase name of the import kind.
func (k ImportKind) String() string {
	switch k {
	case ImportStatic:
		return "static"
	case ImportDynamic:
		return "dynamic"
	case ImportSideEffect:
		return "side-effect"
	}
	return "unknown"
}

// Lazy reports whether the target may load after the importer has started
// running. Only dynamic imports are lazy; side-effect imports still bind the
// target into the importer's evaluation order.
func (k ImportKind) Lazy() bool {
	return k == ImportDynamic
}

// ImportRef is a dependency reference discovered during a transform, before
// specifier resolution has run.
type ImportRef struct {
	// Specifier is the raw import string as written in the source.
	Specifier string
	// Kind classifies the reference.
	Kind ImportKind
	// Bindings lists the exported names the importer uses from the target.
	// "default" marks a default import and "*" marks a namespace, dynamic,
	// or re-export-star reference that reaches every export. Empty for
	// side-effect imports.
	Bindings []string
}

// Edge is a resolved dependency edge between two source units. Specifier
// keeps the raw import string so emitters can map occurrences in
// transformed code back to the resolved target, and Bindings carries the
// names the importer uses so unreferenced exports can be dropped.
type Edge struct {
	From      InternedString
	To        InternedString
	Kind      ImportKind
	Specifier string
	Bindings  []string
}

// FingerprintEdges computes a stable digest over a unit's outgoing edges.
// Two edge sets with the same targets and kinds in the same order produce
// the same fingerprint.
func FingerprintEdges(edges []Edge) string {
	d := xxhash.New()
	for _, e := range edges {
		d.WriteString(e.To.String())
		d.WriteString("\x00")
		d.WriteString(e.Kind.String())
		d.WriteString("\x00")
	}
	return hexDigest(d.Sum64())
}

// TransformResult is the output of transforming a single source unit. Results
// are deterministic: the same unit bytes and options always produce the same
// result, which is what makes them cacheable.
type TransformResult struct {
	// Code is the transformed content.
	Code []byte
	// SourceMap is an optional mapping back to the original source.
	SourceMap []byte
	// Imports lists the dependency references discovered in the source, in
	// declaration order.
	Imports []ImportRef
	// Exports lists the names the unit exports, in declaration order.
	// "default" marks a default export.
	Exports []string
	// Diagnostics carries recoverable problems found during the transform.
	Diagnostics []Diagnostic
}

// TransformOptions is the full option set handed to a transform. It is part
// of the cache key: any change to it invalidates prior results for the kind.
type TransformOptions struct {
	// Kind is the unit kind the options apply to.
	Kind UnitKind
	// Mode is the build mode.
	Mode Mode
	// Define maps identifiers to replacement string values.
	Define map[string]string
	// Options carries the per-kind settings from the configuration.
	Options map[string]string
}

// Fingerprint computes a stable digest over the options. Map entries are
// folded in sorted key order so the digest is independent of map iteration.
func (o TransformOptions) Fingerprint() string {
	d := xxhash.New()
	d.WriteString(o.Kind.String())
	d.WriteString("\x00")
	d.WriteString(string(o.Mode))
	d.WriteString("\x00")
	writeSortedMap(d, o.Define)
	writeSortedMap(d, o.Options)
	return hexDigest(d.Sum64())
}

func writeSortedMap(d *xxhash.Digest, m map[string]string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		d.WriteString(k)
		d.WriteString("=")
		d.WriteString(m[k])
		d.WriteString("\x00")
	}
	d.WriteString("\x01")
}

func hexDigest(sum uint64) string {
	return fmt.Sprintf("%016x", sum)
}
