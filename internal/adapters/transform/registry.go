// Package transform implements the per-kind source transforms.
package transform

import (
	"go.trai.ch/bale/internal/core/domain"
	"go.trai.ch/bale/internal/core/ports"
	"go.trai.ch/zerr"
)

// Registry dispatches source units to the transformer registered for their
// kind. The set is fixed at construction.
type Registry struct {
	byKind map[domain.UnitKind]ports.Transformer
}

// NewRegistry creates a Registry with the four reference transformers.
func NewRegistry() *Registry {
	r := &Registry{byKind: map[domain.UnitKind]ports.Transformer{}}
	for _, t := range []ports.Transformer{
		NewScript(),
		NewStyle(),
		NewMarkup(),
		NewAsset(),
	} {
		r.byKind[t.Kind()] = t
	}
	return r
}

// Lookup returns the transformer for kind.
func (r *Registry) Lookup(kind domain.UnitKind) (ports.Transformer, error) {
	t, ok := r.byKind[kind]
	if !ok {
		return nil, zerr.With(domain.ErrUnsupportedKind, "kind", kind.String())
	}
	return t, nil
}
