// Package linear provides a synchronous, line-buffered renderer for CI environments.
package linear

import (
	"bytes"
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"sync"
	"time"

	"github.com/muesli/termenv"
)

// prefixPalette holds the colors assigned to unit name prefixes.
// Red and bright variants are reserved for status symbols.
var prefixPalette = []termenv.Color{
	termenv.ANSIBlue,
	termenv.ANSIMagenta,
	termenv.ANSICyan,
	termenv.ANSIYellow,
	termenv.ANSIGreen,
}

// Renderer implements ports.Renderer for CI/non-interactive environments.
// It outputs linear, chronological logs with unit name prefixes.
type Renderer struct {
	stdout io.Writer
	stderr io.Writer
	output *termenv.Output

	mu      sync.Mutex
	units   map[string]*unitState // spanID -> unit state
	buffers map[string]*bytes.Buffer
}

type unitState struct {
	name      string
	prefix    string // pre-styled "[name]" prefix
	startTime time.Time
}

// NewRenderer creates a new linear Renderer writing logs to stdout and
// status messages to stderr.
func NewRenderer(stdout, stderr io.Writer) *Renderer {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	profile := colorProfile()
	output := termenv.NewOutput(stderr, termenv.WithProfile(profile))

	return &Renderer{
		stdout:  stdout,
		stderr:  stderr,
		output:  output,
		units:   make(map[string]*unitState),
		buffers: make(map[string]*bytes.Buffer),
	}
}

// colorProfile returns the color profile based on environment.
func colorProfile() termenv.Profile {
	if os.Getenv("NO_COLOR") != "" {
		return termenv.Ascii
	}
	// ANSI covers basic color support in CI
	return termenv.ANSI
}

// Start is a no-op for linear renderer (synchronous).
func (r *Renderer) Start(_ context.Context) error {
	return nil
}

// Stop flushes all remaining buffers.
func (r *Renderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for spanID := range r.buffers {
		r.flushBufferLocked(spanID)
	}

	return nil
}

// Wait is a no-op for linear renderer (synchronous).
func (r *Renderer) Wait() error {
	return nil
}

// OnPlanEmit prints the planned units.
func (r *Renderer) OnPlanEmit(units []string, _ map[string][]string, entries []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, _ = fmt.Fprintf(r.stderr, "Planning to build %d unit(s) for entry point(s): %v\n",
		len(units), entries)
}

// OnUnitStart prints a unit start message.
func (r *Renderer) OnUnitStart(spanID, _ /* parentID */, name string, startTime time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prefix := r.output.String(fmt.Sprintf("[%s]", name)).
		Foreground(prefixColor(name)).
		String()

	r.units[spanID] = &unitState{
		name:      name,
		prefix:    prefix,
		startTime: startTime,
	}
	r.buffers[spanID] = new(bytes.Buffer)

	_, _ = fmt.Fprintf(r.stderr, "%s Starting...\n", prefix)
}

// OnUnitLog buffers log data and prints complete lines with the unit prefix.
func (r *Renderer) OnUnitLog(spanID string, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	unit, ok := r.units[spanID]
	if !ok {
		return
	}

	buf := r.buffers[spanID]
	buf.Write(data)

	for {
		line, err := buf.ReadBytes('\n')
		if err != nil {
			// Incomplete line, put it back
			if len(line) > 0 {
				newBuf := new(bytes.Buffer)
				newBuf.Write(line)
				r.buffers[spanID] = newBuf
			}
			break
		}

		r.printLineLocked(unit.prefix, line)
	}
}

// OnUnitComplete flushes the remaining buffer and prints the completion status.
func (r *Renderer) OnUnitComplete(spanID string, endTime time.Time, err error, cached bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	unit, ok := r.units[spanID]
	if !ok {
		return
	}

	r.flushBufferLocked(spanID)

	duration := endTime.Sub(unit.startTime)

	switch {
	case err != nil:
		symbol := r.output.String("✗").Foreground(termenv.ANSIRed).String()
		_, _ = fmt.Fprintf(r.stderr, "%s %s Failed after %v: %v\n",
			unit.prefix, symbol, duration, err)
	case cached:
		symbol := r.output.String("~").Faint().String()
		_, _ = fmt.Fprintf(r.stderr, "%s %s Cached in %v\n",
			unit.prefix, symbol, duration)
	default:
		symbol := r.output.String("✓").Foreground(termenv.ANSIGreen).String()
		_, _ = fmt.Fprintf(r.stderr, "%s %s Completed in %v\n",
			unit.prefix, symbol, duration)
	}

	delete(r.units, spanID)
	delete(r.buffers, spanID)
}

// flushBufferLocked flushes any remaining data in the buffer for a unit.
// Must be called with r.mu held.
func (r *Renderer) flushBufferLocked(spanID string) {
	unit, ok := r.units[spanID]
	if !ok {
		return
	}

	buf := r.buffers[spanID]
	if buf.Len() > 0 {
		r.printLineLocked(unit.prefix, buf.Bytes())
		buf.Reset()
	}
}

// printLineLocked prints a line with the unit name prefix.
// Must be called with r.mu held.
func (r *Renderer) printLineLocked(prefix string, line []byte) {
	line = bytes.TrimSuffix(line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))

	if len(line) == 0 {
		return
	}

	_, _ = fmt.Fprintf(r.stdout, "%s %s\n", prefix, string(line))
}

// prefixColor deterministically assigns a palette color to a unit name,
// so a unit keeps its color across revisions.
func prefixColor(name string) termenv.Color {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return prefixPalette[h.Sum32()%uint32(len(prefixPalette))]
}
