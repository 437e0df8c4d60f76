// Package watcher observes the project tree and batches change events for
// incremental rebuilds.
package watcher

import (
	"slices"
	"strings"
	"sync"
	"time"
	"unique"

	"go.trai.ch/bale/internal/core/ports"
)

// Debouncer coalesces rapid file system events into batches. Editors write
// several times during a single save; each burst should trigger one rebuild,
// not one per write.
type Debouncer struct {
	mu       sync.Mutex
	pending  map[unique.Handle[string]]ports.WatchOp
	timer    *time.Timer
	window   time.Duration
	callback func(batch []ports.WatchEvent)
}

// NewDebouncer creates a new debouncer with the given time window and callback.
func NewDebouncer(window time.Duration, callback func(batch []ports.WatchEvent)) *Debouncer {
	return &Debouncer{
		pending:  make(map[unique.Handle[string]]ports.WatchOp),
		window:   window,
		callback: callback,
	}
}

// Add records a file system event and restarts the window. Events for the
// same path collapse into one; the most recent operation wins.
func (d *Debouncer) Add(event ports.WatchEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	// Interned handles deduplicate paths within the pending set.
	d.pending[unique.Make(event.Path)] = event.Operation

	// Reset the timer if it exists, or create a new one.
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.fire)
}

// fire is called when the debounce window expires.
func (d *Debouncer) fire() {
	d.mu.Lock()

	// Check if there's anything to deliver (protects against race with Flush).
	if len(d.pending) == 0 {
		d.timer = nil
		d.mu.Unlock()
		return
	}

	batch := d.drainLocked()
	d.timer = nil
	d.mu.Unlock()

	// Deliver the coalesced batch (asynchronously to match Flush behavior).
	if len(batch) > 0 && d.callback != nil {
		go d.callback(batch)
	}
}

// Flush immediately delivers all pending events. It blocks until the callback
// completes, making it suitable for graceful shutdown scenarios where work
// must finish before proceeding.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if d.timer != nil {
		if !d.timer.Stop() {
			// Timer already fired, let it complete rather than delivering twice.
			d.mu.Unlock()
			return
		}
		d.timer = nil
	}

	batch := d.drainLocked()
	d.mu.Unlock()

	// Call the callback synchronously (blocks until complete).
	if len(batch) > 0 && d.callback != nil {
		d.callback(batch)
	}
}

// drainLocked converts the pending set into a path-sorted batch and clears it.
// Sorting keeps batches deterministic for logging and tests.
func (d *Debouncer) drainLocked() []ports.WatchEvent {
	batch := make([]ports.WatchEvent, 0, len(d.pending))
	for handle, op := range d.pending {
		batch = append(batch, ports.WatchEvent{Path: handle.Value(), Operation: op})
	}
	slices.SortFunc(batch, func(a, b ports.WatchEvent) int {
		return strings.Compare(a.Path, b.Path)
	})

	d.pending = make(map[unique.Handle[string]]ports.WatchOp)

	return batch
}
