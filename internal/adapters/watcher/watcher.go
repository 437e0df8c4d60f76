package watcher

import (
	"context"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unique"

	"github.com/fsnotify/fsnotify"
	"go.trai.ch/zerr"

	"go.trai.ch/bale/internal/core/domain"
	"go.trai.ch/bale/internal/core/ports"
)

var _ ports.Watcher = (*Watcher)(nil)

// shouldSkipDirectories are directories that are never watched.
var shouldSkipDirectories = map[string]bool{
	".git":         true,
	".jj":          true,
	".bale":        true,
	"node_modules": true,
}

const batchChannelBuffer = 8

// Watcher implements debounced file system watching using fsnotify. Raw
// events pass through a Debouncer so that a burst of writes surfaces as a
// single batch on Events.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	walker    ports.Walker
	ignores   []string
	root      unique.Handle[string]
	debouncer *Debouncer
	batches   chan []ports.WatchEvent
	events    chan []ports.WatchEvent
	done      chan struct{}
}

// NewWatcher creates a new file system watcher. Directories whose name
// matches one of the ignore patterns are not watched; window is the
// coalescing window applied to raw events.
func NewWatcher(walker ports.Walker, window time.Duration, ignores ...string) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, zerr.Wrap(err, domain.ErrWatcherStartFailed.Error())
	}

	w := &Watcher{
		fsWatcher: fsWatcher,
		walker:    walker,
		ignores:   ignores,
		batches:   make(chan []ports.WatchEvent, batchChannelBuffer),
		events:    make(chan []ports.WatchEvent, batchChannelBuffer),
		done:      make(chan struct{}),
	}
	w.debouncer = NewDebouncer(window, w.enqueue)

	return w, nil
}

// Start begins watching the given root directory recursively.
func (w *Watcher) Start(ctx context.Context, root string) error {
	w.root = unique.Make(root)

	// Walk the directory tree and add all directories to the watcher.
	for dir := range w.walker.Dirs(root, w.ignores) {
		if err := w.fsWatcher.Add(dir); err != nil {
			return zerr.With(zerr.Wrap(err, domain.ErrWatcherStartFailed.Error()), "dir", dir)
		}
	}

	// Start processing events in a goroutine.
	go w.processEvents(ctx)

	return nil
}

// Stop stops the watcher and releases all resources.
func (w *Watcher) Stop() error {
	return w.fsWatcher.Close()
}

// Events returns an iterator of debounced event batches, each sorted by
// path.
func (w *Watcher) Events() iter.Seq[[]ports.WatchEvent] {
	return func(yield func([]ports.WatchEvent) bool) {
		for batch := range w.events {
			if !yield(batch) {
				return
			}
		}
	}
}

// enqueue hands a debounced batch back to the processing goroutine, which is
// the only sender on the events channel.
func (w *Watcher) enqueue(batch []ports.WatchEvent) {
	select {
	case w.batches <- batch:
	case <-w.done:
	}
}

// processEvents feeds raw fsnotify events into the debouncer and forwards
// debounced batches to the output channel.
func (w *Watcher) processEvents(ctx context.Context) {
	defer close(w.events)
	defer close(w.done)

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleRawEvent(event)

		case batch := <-w.batches:
			select {
			case w.events <- batch:
			case <-ctx.Done():
				return
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			// Log error to stderr and continue processing.
			fmt.Fprintf(os.Stderr, "watcher: file system error: %v\n", err)
		}
	}
}

// handleRawEvent filters and converts one raw event, then feeds it to the
// debouncer. Newly created directories are added to the watch set.
func (w *Watcher) handleRawEvent(event fsnotify.Event) {
	if ignoreEvent(event.Name) {
		return
	}

	watchEvent := convertEvent(event)
	if watchEvent == nil {
		return
	}
	w.debouncer.Add(*watchEvent)

	// If a new directory was created, add it and its subtree to the watcher.
	if watchEvent.Operation == ports.OpCreate {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() && !w.skipDir(info.Name()) {
			for dir := range w.walker.Dirs(event.Name, w.ignores) {
				_ = w.fsWatcher.Add(dir)
			}
		}
	}
}

// skipDir returns true if a directory with the given base name should not be
// watched.
func (w *Watcher) skipDir(name string) bool {
	if shouldSkipDirectories[name] {
		return true
	}

	for _, ignore := range w.ignores {
		matched, _ := filepath.Match(ignore, name)
		if matched {
			return true
		}
	}

	return false
}

// ignoreEvent returns true for file system events that should never trigger
// a rebuild. Editors produce writes to swap and backup files during saves.
func ignoreEvent(path string) bool {
	base := filepath.Base(path)

	// Hidden files, including editor lock files like .#main.js.
	if strings.HasPrefix(base, ".") {
		return true
	}

	// Editor temp/swap files.
	if strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".swx") ||
		strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#") {
		return true
	}

	return base == "Thumbs.db"
}

// convertEvent converts an fsnotify event to a ports.WatchEvent.
func convertEvent(event fsnotify.Event) *ports.WatchEvent {
	path := event.Name

	if event.Op&fsnotify.Write == fsnotify.Write {
		return &ports.WatchEvent{
			Path:      path,
			Operation: ports.OpWrite,
		}
	}

	if event.Op&fsnotify.Create == fsnotify.Create {
		return &ports.WatchEvent{
			Path:      path,
			Operation: ports.OpCreate,
		}
	}

	if event.Op&fsnotify.Remove == fsnotify.Remove {
		return &ports.WatchEvent{
			Path:      path,
			Operation: ports.OpRemove,
		}
	}

	if event.Op&fsnotify.Rename == fsnotify.Rename {
		return &ports.WatchEvent{
			Path:      path,
			Operation: ports.OpRename,
		}
	}

	return nil
}
