package ports

import "go.trai.ch/bale/internal/core/domain"

// CacheKey identifies one transform result. A result is reusable only when
// the unit identity, its content, and the transform options all match.
type CacheKey struct {
	// Unit is the canonical unit ID.
	Unit domain.InternedString
	// ContentHash is the unit's content digest.
	ContentHash string
	// OptionsHash is the transform options fingerprint.
	OptionsHash string
}

// CacheStats reports cache effectiveness for one build pass.
type CacheStats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Entries   int
	Bytes     int64
}

// TransformCache defines the interface for the content-addressed transform
// result cache.
//
//go:generate mockgen -source=cache.go -destination=mocks/mock_cache.go -package=mocks
type TransformCache interface {
	// Get retrieves a cached result. A hit is byte-identical to what a fresh
	// transform would produce. Entries that fail their integrity check, and
	// entries that cannot be read, count as misses; Get never fails.
	Get(key CacheKey) (*domain.TransformResult, bool)

	// Put stores a result. Eviction of older entries may run to keep the
	// cache within its configured bounds.
	Put(key CacheKey, result *domain.TransformResult) error

	// Stats returns current cache counters.
	Stats() CacheStats
}
