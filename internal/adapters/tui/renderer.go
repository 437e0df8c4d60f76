package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"go.trai.ch/bale/internal/adapters/telemetry"
)

// Renderer wraps the Bubble Tea dashboard as a ports.Renderer.
type Renderer struct {
	program *tea.Program
	model   *Model
	errCh   chan error
}

// NewRenderer creates a new TUI renderer.
func NewRenderer(model *Model, opts ...tea.ProgramOption) *Renderer {
	program := tea.NewProgram(model, opts...)
	return &Renderer{
		program: program,
		model:   model,
		errCh:   make(chan error, 1),
	}
}

// Start launches the dashboard in a background goroutine.
func (r *Renderer) Start(_ context.Context) error {
	go func() {
		_, err := r.program.Run()
		r.errCh <- err
	}()
	return nil
}

// Stop signals the dashboard to quit.
func (r *Renderer) Stop() error {
	r.program.Quit()
	return nil
}

// Wait blocks until the dashboard has terminated.
func (r *Renderer) Wait() error {
	return <-r.errCh
}

// OnPlanEmit forwards the build plan to the dashboard.
func (r *Renderer) OnPlanEmit(units []string, deps map[string][]string, entries []string) {
	r.program.Send(telemetry.MsgInitUnits{
		Units:        units,
		Dependencies: deps,
		Entries:      entries,
	})
}

// OnUnitStart forwards unit start events to the dashboard.
func (r *Renderer) OnUnitStart(spanID, parentID, name string, startTime time.Time) {
	r.program.Send(telemetry.MsgUnitStart{
		SpanID:    spanID,
		ParentID:  parentID,
		Name:      name,
		StartTime: startTime,
	})
}

// OnUnitLog forwards unit log output to the dashboard.
func (r *Renderer) OnUnitLog(spanID string, data []byte) {
	r.program.Send(telemetry.MsgUnitLog{
		SpanID: spanID,
		Data:   data,
	})
}

// OnUnitComplete forwards unit completion events to the dashboard.
func (r *Renderer) OnUnitComplete(spanID string, endTime time.Time, err error, cached bool) {
	r.program.Send(telemetry.MsgUnitComplete{
		SpanID:  spanID,
		EndTime: endTime,
		Err:     err,
		Cached:  cached,
	})
}

// Program returns the underlying tea.Program for testing.
func (r *Renderer) Program() *tea.Program {
	return r.program
}
