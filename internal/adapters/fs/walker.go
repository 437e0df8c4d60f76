package fs

import (
	"io/fs"
	"iter"
	"path/filepath"

	"go.trai.ch/bale/internal/core/ports"
)

var _ ports.Walker = (*Walker)(nil)

// Walker enumerates directories under a project root. The watcher uses it
// to register recursive watches, since inotify only watches single
// directories.
type Walker struct{}

// NewWalker creates a new Walker.
func NewWalker() *Walker {
	return &Walker{}
}

// Dirs yields every directory under root, including root itself, skipping
// version control metadata and the names listed in ignores. Ignores are
// matched with filepath.Match against the base name.
func (w *Walker) Dirs(root string, ignores []string) iter.Seq[string] {
	return func(yield func(string) bool) {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				// Continue walking even if a directory cannot be read.
				return nil //nolint:nilerr // unreadable entries are skipped, not fatal
			}

			if !d.IsDir() {
				return nil
			}

			if w.ignored(d.Name(), ignores) && path != root {
				return filepath.SkipDir
			}

			if !yield(path) {
				return filepath.SkipAll
			}

			return nil
		})
	}
}

func (w *Walker) ignored(name string, ignores []string) bool {
	switch name {
	case ".git", ".jj", "node_modules":
		return true
	}

	for _, ignore := range ignores {
		matched, _ := filepath.Match(ignore, name)
		if matched {
			return true
		}
	}

	return false
}
