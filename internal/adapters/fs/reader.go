// Package fs provides filesystem adapters: source snapshotting and import
// specifier resolution.
package fs

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/bale/internal/core/domain"
	"go.trai.ch/bale/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.SourceReader = (*Reader)(nil)

// Reader snapshots source files under a project root into immutable units.
type Reader struct {
	root string
}

// NewReader creates a new Reader rooted at the given project directory.
func NewReader(root string) *Reader {
	return &Reader{root: root}
}

// Snapshot reads the file identified by the root-relative unit ID and returns
// an immutable unit carrying its content digest and derived kind.
func (r *Reader) Snapshot(id string) (domain.SourceUnit, error) {
	path := filepath.Join(r.root, filepath.FromSlash(id))
	data, err := os.ReadFile(path) //nolint:gosec // Path is rooted at the project directory
	if err != nil {
		return domain.SourceUnit{}, zerr.With(zerr.Wrap(err, domain.ErrFileOpenFailed.Error()), "unit", id)
	}

	return domain.SourceUnit{
		ID:   domain.NewInternedString(id),
		Kind: domain.KindForPath(id),
		Data: data,
		Hash: HashBytes(data),
	}, nil
}

// Exists reports whether the root-relative path is a regular file.
func (r *Reader) Exists(id string) bool {
	info, err := os.Stat(filepath.Join(r.root, filepath.FromSlash(id)))
	return err == nil && info.Mode().IsRegular()
}

// HashBytes computes the content digest of a byte slice in fixed-width hex.
func HashBytes(data []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}
