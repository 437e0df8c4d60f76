package transform

import (
	"context"

	"go.trai.ch/bale/internal/core/domain"
	"go.trai.ch/bale/internal/core/ports"
)

var _ ports.Transformer = (*Asset)(nil)

// Asset passes bytes through untouched. Assets have no dependencies; their
// hashed output name is their entire contribution to the build.
type Asset struct{}

// NewAsset creates the asset transformer.
func NewAsset() *Asset {
	return &Asset{}
}

// Kind returns the unit kind this transformer accepts.
func (t *Asset) Kind() domain.UnitKind {
	return domain.UnitAsset
}

// Transform returns the input bytes unchanged.
func (t *Asset) Transform(_ context.Context, unit domain.SourceUnit, _ domain.TransformOptions) (*domain.TransformResult, error) {
	return &domain.TransformResult{Code: unit.Data}, nil
}
