package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"go.trai.ch/bale/internal/ui/style"
)

// View renders the UI.
func (m *Model) View() string {
	if m.ListHeight == 0 {
		return "Initializing..."
	}

	if m.ViewMode == ViewModeLogs {
		return m.logView()
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.unitList(),
		m.logPane(),
	)
}

func (m *Model) unitList() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("UNITS") + "\n\n")

	if len(m.FlatList) == 0 {
		s.WriteString(unitPendingStyle.Render("No units planned"))
		return listStyle.Render(s.String())
	}

	start := m.ListOffset
	end := m.ListOffset + m.ListHeight
	if end > len(m.FlatList) {
		end = len(m.FlatList)
	}
	if start > end {
		start = end
	}

	nameWidth := m.CalculateMaxNameWidth(start, end)
	for i := start; i < end; i++ {
		s.WriteString(m.renderUnitRow(i, m.FlatList[i], nameWidth) + "\n")
	}

	return listStyle.Render(s.String())
}

func (m *Model) renderUnitRow(index int, node *UnitNode, nameWidth int) string {
	live := node.live()
	icon := m.unitIcon(node)
	rowStyle := m.unitStyle(live)

	// Highlight the selected unit
	var cursor string
	if index == m.SelectedIdx {
		cursor = selectedStyle.Render("> ")
		// If not Done/Error, highlight the text as well
		if live.Status != StatusDone && live.Status != StatusError {
			rowStyle = selectedStyle
		}
	} else {
		cursor = "  "
	}

	var b strings.Builder
	b.WriteString(strings.Repeat("  ", node.Depth))
	if node.Depth > 0 {
		b.WriteString("└── ")
	}
	b.WriteString(icon)
	b.WriteString(" ")
	b.WriteString(node.Name)

	// Pad so the status column lines up across the visible window
	padding := nameWidth - CalculateRowNameWidth(node) + 1
	if padding < 1 {
		padding = 1
	}

	return cursor + rowStyle.Render(b.String()) +
		strings.Repeat(" ", padding) + statusStyle.Render(m.formatStatus(live))
}

func (m *Model) unitIcon(node *UnitNode) string {
	// Units with dependencies show their expansion state instead of a
	// status icon; the status column still carries their state.
	if len(node.Children) > 0 {
		if node.IsExpanded {
			return "▼"
		}
		return "▶"
	}

	live := node.live()
	if live.Cached {
		return style.Tilde
	}

	switch live.Status {
	case StatusRunning:
		return style.Dot
	case StatusDone:
		return style.Check
	case StatusError:
		return style.Cross
	default: // Pending
		return style.Circle
	}
}

func (m *Model) unitStyle(live *UnitNode) lipgloss.Style {
	if live.Cached {
		return unitCachedStyle
	}

	switch live.Status {
	case StatusRunning:
		return unitRunningStyle
	case StatusDone:
		return unitDoneStyle
	case StatusError:
		return unitErrorStyle
	default: // Pending
		return unitPendingStyle
	}
}

func (m *Model) formatStatus(live *UnitNode) string {
	switch {
	case live.Status == StatusError:
		return "[Failed " + formatDuration(live.EndTime.Sub(live.StartTime)) + "]"
	case live.Cached:
		return "[Cached]"
	case live.Status == StatusDone:
		return "[Took " + formatDuration(live.EndTime.Sub(live.StartTime)) + "]"
	case live.Status == StatusRunning:
		if live.StartTime.IsZero() {
			return "[Running]"
		}
		return "[Running " + formatDuration(time.Since(live.StartTime)) + "]"
	default:
		return "[Pending]"
	}
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	if d >= time.Second {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dms", d.Milliseconds())
}

func (m *Model) logPane() string {
	var header string
	var content string

	if m.ActiveUnitName != "" {
		if node, ok := m.UnitMap[m.ActiveUnitName]; ok {
			mode := " (Following)"
			if !m.FollowMode {
				mode = " (Manual)"
			}
			header = m.logTitle(node, "LOGS: "+m.ActiveUnitName+mode)
			content = node.Log.View()
		} else {
			header = titleStyle.Render("LOGS: " + m.ActiveUnitName)
			content = "Unit not found"
		}
	} else {
		header = titleStyle.Render("LOGS (Waiting...)")
	}

	return logStyle.Render(
		lipgloss.JoinVertical(
			lipgloss.Left,
			header,
			content,
		),
	)
}

// logView renders the selected unit's logs across the full screen.
func (m *Model) logView() string {
	if m.ActiveUnitName == "" {
		return titleStyle.Render("LOGS") + "\n\nNo unit selected"
	}

	node, ok := m.UnitMap[m.ActiveUnitName]
	if !ok {
		return titleStyle.Render("LOGS") + "\n\nUnit not found"
	}

	header := m.logTitle(node, "LOGS: "+node.Name+" "+m.formatStatus(node))

	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		node.Log.View(),
	)
}

func (m *Model) logTitle(node *UnitNode, text string) string {
	if node.Status == StatusError {
		return failureTitleStyle.Render(text)
	}
	return titleStyle.Render(text)
}

// CalculateRowNameWidth returns the printed width of a row up to and
// including the unit name: cursor, indent, branch glyph, icon and name.
func CalculateRowNameWidth(node *UnitNode) int {
	width := 2 + node.Depth*2
	if node.Depth > 0 {
		width += 4
	}
	return width + 1 + 1 + len(node.Name)
}

// CalculateMaxNameWidth returns the widest row in the visible window,
// used to align the status column.
func (m *Model) CalculateMaxNameWidth(start, end int) int {
	maxWidth := 0
	for i := start; i < end && i < len(m.FlatList); i++ {
		if w := CalculateRowNameWidth(m.FlatList[i]); w > maxWidth {
			maxWidth = w
		}
	}
	return maxWidth
}
