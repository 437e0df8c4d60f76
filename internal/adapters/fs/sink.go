package fs

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.trai.ch/bale/internal/core/domain"
	"go.trai.ch/bale/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.OutputSink = (*Sink)(nil)

// Sink writes build outputs to disk.
type Sink struct{}

// NewSink creates a new Sink.
func NewSink() *Sink {
	return &Sink{}
}

// Write stores data under dir/name after verifying the cleaned path does
// not escape dir.
func (s *Sink) Write(dir, name string, data []byte) error {
	path, err := s.secureJoin(dir, name)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrOutputWriteFailed.Error()), "path", path)
	}

	//nolint:gosec // Path is validated against the output directory above
	if err := os.WriteFile(path, data, domain.FilePerm); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrOutputWriteFailed.Error()), "path", path)
	}

	return nil
}

// Exists reports whether dir/name is present on disk.
func (s *Sink) Exists(dir, name string) bool {
	path, err := s.secureJoin(dir, name)
	if err != nil {
		return false
	}

	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Prune removes regular files directly under dir whose names are not in
// keep. Subdirectories are left alone.
func (s *Sink) Prune(dir string, keep []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, zerr.With(zerr.Wrap(err, domain.ErrOutputWriteFailed.Error()), "path", dir)
	}

	var removed []string
	for _, entry := range entries {
		if entry.IsDir() || slices.Contains(keep, entry.Name()) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
			return removed, zerr.With(zerr.Wrap(err, domain.ErrOutputWriteFailed.Error()), "path", entry.Name())
		}
		removed = append(removed, entry.Name())
	}

	slices.Sort(removed)
	return removed, nil
}

func (s *Sink) secureJoin(dir, name string) (string, error) {
	cleaned := filepath.Clean(filepath.Join(dir, name))
	if cleaned != dir && !strings.HasPrefix(cleaned, dir+string(filepath.Separator)) {
		err := zerr.With(domain.ErrOutputPathOutsideRoot, "dir", dir)
		return "", zerr.With(err, "name", name)
	}
	return cleaned, nil
}
