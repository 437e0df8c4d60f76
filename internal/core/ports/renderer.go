package ports

import (
	"context"
	"time"
)

// Renderer is the abstraction for output rendering.
// It decouples telemetry collection from presentation logic,
// allowing the same event stream to drive either a rich TUI or linear CI logs.
//
//go:generate mockgen -source=renderer.go -destination=mocks/mock_renderer.go -package=mocks
type Renderer interface {
	// Start initializes the renderer and begins its lifecycle.
	// For asynchronous renderers (like TUI), this may launch background goroutines.
	Start(ctx context.Context) error

	// Stop signals the renderer to stop accepting new events and prepare for shutdown.
	// It should flush any buffered output.
	Stop() error

	// Wait blocks until the renderer has fully terminated.
	// For synchronous renderers, this may return immediately.
	Wait() error

	// OnPlanEmit is called when a build revision has planned its work.
	// units: the unit IDs the revision will process, in processing order
	// deps: dependency map (unit -> list of direct dependencies)
	// entries: the configured entry points
	OnPlanEmit(units []string, deps map[string][]string, entries []string)

	// OnUnitStart is called when work on a unit begins.
	// spanID: unique identifier for this piece of work
	// parentID: spanID of the enclosing work (empty if root)
	// name: human-readable unit name
	// startTime: when the work started
	OnUnitStart(spanID, parentID, name string, startTime time.Time)

	// OnUnitLog is called when work on a unit emits output.
	// spanID: identifier for the work
	// data: raw log bytes (may contain partial lines or ANSI sequences)
	OnUnitLog(spanID string, data []byte)

	// OnUnitComplete is called when work on a unit finishes.
	// spanID: identifier for the work
	// endTime: when the work completed
	// err: nil if successful, error otherwise
	// cached: true when the result was served from the transform cache
	OnUnitComplete(spanID string, endTime time.Time, err error, cached bool)
}
