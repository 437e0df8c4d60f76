package ports

import "go.trai.ch/bale/internal/core/domain"

// SourceReader defines the interface for snapshotting source files into
// immutable units.
//
//go:generate mockgen -source=reader.go -destination=mocks/mock_reader.go -package=mocks
type SourceReader interface {
	// Snapshot reads the file identified by the root-relative unit ID and
	// returns an immutable unit with its content digest and derived kind.
	Snapshot(id string) (domain.SourceUnit, error)

	// Exists reports whether the root-relative path is a regular file.
	Exists(id string) bool
}
