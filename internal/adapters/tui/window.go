package tui

import (
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// LogWindow is a scrollable window over the log lines of a single unit.
// Writes append to the line buffer; the view shows Height lines starting
// at Offset. A window scrolled to the bottom stays pinned there as new
// lines arrive.
type LogWindow struct {
	Offset int
	Height int
	Width  int
	Prefix string

	mu      sync.Mutex
	lines   []string
	partial string
}

// NewLogWindow creates an empty log window.
func NewLogWindow() *LogWindow {
	return &LogWindow{}
}

// Write implements io.Writer. Data is split into lines; a trailing
// fragment without a newline is kept as an open line until completed.
func (w *LogWindow) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	stickToBottom := w.Offset >= w.maxOffset()

	w.partial += string(p)
	for {
		idx := strings.IndexByte(w.partial, '\n')
		if idx < 0 {
			break
		}
		w.lines = append(w.lines, strings.TrimSuffix(w.partial[:idx], "\r"))
		w.partial = w.partial[idx+1:]
	}

	if stickToBottom {
		w.Offset = w.maxOffset()
	}

	return len(p), nil
}

// SetHeight updates the view height and adjusts scrolling.
func (w *LogWindow) SetHeight(h int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if h < 1 {
		h = 1
	}

	stickToBottom := w.Offset >= w.maxOffset()

	w.Height = h

	if stickToBottom {
		w.Offset = w.maxOffset()
	} else {
		// Clamp offset if the new height makes the current offset invalid
		limit := w.maxOffset()
		if w.Offset > limit {
			w.Offset = limit
		}
	}
}

// SetWidth updates the window width. Lines wider than the window minus
// the prefix are truncated at render time.
func (w *LogWindow) SetWidth(width int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if width < 1 {
		width = 1
	}
	w.Width = width
}

// UsedHeight returns the total number of lines in the buffer, counting an
// open trailing fragment as one line.
func (w *LogWindow) UsedHeight() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.usedHeight()
}

// View handles standard Bubble Tea view rendering.
func (w *LogWindow) View() string {
	w.mu.Lock()
	defer w.mu.Unlock()

	// Ensure offset is valid before rendering
	if w.Offset < 0 {
		w.Offset = 0
	}
	if limit := w.maxOffset(); w.Offset > limit {
		w.Offset = limit
	}

	cols := 0
	if w.Width > 0 {
		cols = w.Width - len(w.Prefix)
		if cols < 1 {
			cols = 1
		}
	}

	var b strings.Builder
	used := w.usedHeight()
	for i := 0; i < w.Height; i++ {
		row := w.Offset + i
		if row >= used {
			break
		}

		if i > 0 {
			b.WriteByte('\n')
		}

		b.WriteString(w.Prefix)
		b.WriteString(w.renderLine(row, cols))
	}

	return b.String()
}

// Update handles incoming events, specifically for scrolling.
func (w *LogWindow) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "up", "k":
			w.Offset--
		case "down", "j":
			w.Offset++
		case "pgup":
			w.Offset -= w.Height
		case "pgdown":
			w.Offset += w.Height
		case "home":
			w.Offset = 0
		case "end":
			w.Offset = w.maxOffset()
		}
	}

	// Clamp after adjustment
	if w.Offset < 0 {
		w.Offset = 0
	}
	if limit := w.maxOffset(); w.Offset > limit {
		w.Offset = limit
	}

	return nil, nil
}

func (w *LogWindow) renderLine(row, cols int) string {
	line := w.partial
	if row < len(w.lines) {
		line = w.lines[row]
	}
	if cols > 0 {
		if r := []rune(line); len(r) > cols {
			line = string(r[:cols])
		}
	}
	return line
}

func (w *LogWindow) usedHeight() int {
	if w.partial != "" {
		return len(w.lines) + 1
	}
	return len(w.lines)
}

func (w *LogWindow) maxOffset() int {
	maxOff := w.usedHeight() - w.Height
	if maxOff < 0 {
		return 0
	}
	return maxOff
}
