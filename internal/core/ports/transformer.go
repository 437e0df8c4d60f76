package ports

import (
	"context"

	"go.trai.ch/bale/internal/core/domain"
)

// Transformer converts one source unit into output code plus discovered
// dependencies. Implementations are registered per unit kind and must be
// deterministic: the same unit bytes and options always produce the same
// result. Recoverable problems are reported as diagnostics on the result;
// only unrecoverable ones return an error.
//
//go:generate mockgen -source=transformer.go -destination=mocks/mock_transformer.go -package=mocks
type Transformer interface {
	// Kind returns the unit kind this transformer handles.
	Kind() domain.UnitKind

	// Transform processes the unit under the given options.
	Transform(ctx context.Context, unit domain.SourceUnit, opts domain.TransformOptions) (*domain.TransformResult, error)
}
