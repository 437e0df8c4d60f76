package domain

import (
	"path"
	"strconv"
)

// UnitKind classifies a source unit by the transform family that handles it.
type UnitKind uint8

const (
	// UnitScript is an executable module in the ES-module subset.
	UnitScript UnitKind = iota
	// UnitStyle is a stylesheet.
	UnitStyle
	// UnitMarkup is a markup document (markdown or HTML).
	UnitMarkup
	// UnitAsset is an opaque asset copied through unchanged.
	UnitAsset
)

// String returns the lowercase name of the kind.
func (k UnitKind) String() string {
	switch k {
	case UnitScript:
		return "script"
	case UnitStyle:
		return "style"
	case UnitMarkup:
		return "markup"
	case UnitAsset:
		return "asset"
	}
	return "unknown"
}

// kindByExtension maps file extensions to unit kinds. Anything not listed
// is treated as an opaque asset.
var kindByExtension = map[string]UnitKind{
	".js":   UnitScript,
	".mjs":  UnitScript,
	".cjs":  UnitScript,
	".css":  UnitStyle,
	".md":   UnitMarkup,
	".html": UnitMarkup,
	".htm":  UnitMarkup,
}

// KindForPath derives the unit kind from the path's extension.
func KindForPath(p string) UnitKind {
	if k, ok := kindByExtension[path.Ext(p)]; ok {
		return k
	}
	return UnitAsset
}

// SourceUnit is an immutable snapshot of one source file at a point in time.
// A changed file produces a new SourceUnit; units are never mutated in place.
// It uses InternedString for the ID because unit paths are repeated across
// the graph, the cache, and every manifest.
type SourceUnit struct {
	// ID is the canonical identity: a slash-separated path relative to the
	// project root.
	ID InternedString
	// Kind selects the transform family.
	Kind UnitKind
	// Data is the raw file content at snapshot time.
	Data []byte
	// Hash is the content digest of Data in fixed-width hex.
	Hash string
}

// Severity grades a diagnostic.
type Severity uint8

const (
	// SeverityWarning marks a recoverable problem; the build continues.
	SeverityWarning Severity = iota
	// SeverityError marks a fatal problem; the revision cannot commit.
	SeverityError
)

// String returns the lowercase name of the severity.
func (s Severity) String() string {
	if s == SeverityError {
		return "error"
	}
	return "warning"
}

// Diagnostic is a structured build message attached to a unit or to the
// build as a whole.
type Diagnostic struct {
	// Severity grades the diagnostic.
	Severity Severity
	// Unit is the source unit the diagnostic belongs to, or the zero value
	// for build-level diagnostics.
	Unit InternedString
	// Line is the 1-based source line, or 0 when unknown.
	Line int
	// Message is the human-readable description.
	Message string
}

// String renders the diagnostic as "unit:line: severity: message".
func (d Diagnostic) String() string {
	out := ""
	if u := d.Unit.String(); u != "" {
		out = u
		if d.Line > 0 {
			out += ":" + strconv.Itoa(d.Line)
		}
		out += ": "
	}
	return out + d.Severity.String() + ": " + d.Message
}

// HasErrors reports whether any diagnostic in the slice is fatal.
func HasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}
