// Package tui renders the build as an interactive terminal dashboard.
package tui

import (
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
)

const defaultTickInterval = 100

// NewModel creates a new TUI model with default settings.
func NewModel(w io.Writer) Model {
	if w == nil {
		w = os.Stderr
	}

	out := NewOutput(w)
	lipgloss.SetColorProfile(out.Profile)

	return Model{
		Units:        make([]*UnitNode, 0),
		UnitMap:      make(map[string]*UnitNode),
		SpanMap:      make(map[string]*UnitNode),
		TreeRoots:    make([]*UnitNode, 0),
		FlatList:     make([]*UnitNode, 0),
		Output:       out,
		AutoScroll:   true,
		ViewMode:     ViewModeTree,
		FollowMode:   true,
		TickInterval: defaultTickInterval * time.Millisecond,
	}
}

// WithDisableTick disables the periodic redraw tick. Tests use this to
// keep Update deterministic.
func (m Model) WithDisableTick() Model {
	m.DisableTick = true
	return m
}
