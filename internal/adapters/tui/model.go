package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"go.trai.ch/bale/internal/adapters/telemetry"
)

const (
	unitListWidthRatio = 0.3
	logPaneBorderWidth = 4
)

// UnitStatus represents the current state of a unit build.
type UnitStatus string

const (
	// StatusPending indicates the unit is waiting to be built.
	StatusPending UnitStatus = "Pending"
	// StatusRunning indicates the unit is currently being built.
	StatusRunning UnitStatus = "Running"
	// StatusDone indicates the unit build completed successfully.
	StatusDone UnitStatus = "Done"
	// StatusError indicates the unit build failed.
	StatusError UnitStatus = "Error"
)

// ViewMode selects which layout the dashboard renders.
type ViewMode string

const (
	// ViewModeTree shows the unit tree next to the log pane.
	ViewModeTree ViewMode = "tree"
	// ViewModeLogs shows the logs of the selected unit full screen.
	ViewModeLogs ViewMode = "logs"
)

// UnitNode represents a single unit in the UI. Tree positions are clones
// of the canonical node; live state (status, times, logs) is always read
// through CanonicalNode.
type UnitNode struct {
	Name   string
	Status UnitStatus
	Log    *LogWindow
	Cached bool

	StartTime time.Time
	EndTime   time.Time

	Depth         int
	Children      []*UnitNode
	IsExpanded    bool
	Parent        *UnitNode
	CanonicalNode *UnitNode
}

// live resolves the node carrying this unit's live state.
func (n *UnitNode) live() *UnitNode {
	if n.CanonicalNode != nil {
		return n.CanonicalNode
	}
	return n
}

// Model represents the main TUI state.
type Model struct {
	Units   []*UnitNode
	UnitMap map[string]*UnitNode
	SpanMap map[string]*UnitNode

	// TreeRoots holds one subtree per entry point; FlatList is the
	// currently visible row list derived from it.
	TreeRoots []*UnitNode
	FlatList  []*UnitNode

	Output *termenv.Output

	AutoScroll     bool
	ActiveUnitName string
	SelectedIdx    int
	ListOffset     int
	ListHeight     int
	LogWidth       int
	LogHeight      int
	FollowMode     bool
	ViewMode       ViewMode
	TickInterval   time.Duration
	DisableTick    bool
}

// tickMsg drives periodic redraws so running durations stay live.
type tickMsg time.Time

// Init initializes the model.
func (m *Model) Init() tea.Cmd {
	if m.DisableTick {
		return nil
	}
	return m.tick()
}

func (m *Model) tick() tea.Cmd {
	interval := m.TickInterval
	if interval <= 0 {
		interval = defaultTickInterval * time.Millisecond
	}
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles incoming messages and updates the model state.
//
//nolint:cyclop // cyclop ignored
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.resize(msg)

	case tickMsg:
		if !m.DisableTick {
			cmd = m.tick()
		}

	case telemetry.MsgInitUnits:
		m.initUnits(msg)

	case telemetry.MsgUnitStart:
		if node, ok := m.UnitMap[msg.Name]; ok {
			node.Status = StatusRunning
			node.StartTime = msg.StartTime
			m.SpanMap[msg.SpanID] = node

			// Focus follows activity only while FollowMode is on.
			if m.FollowMode {
				m.ActiveUnitName = msg.Name
				for i, n := range m.FlatList {
					if n.Name == msg.Name {
						m.SelectedIdx = i
						break
					}
				}
				m.ensureVisible()
				m.updateActiveView()
			}
		}

	case telemetry.MsgUnitLog:
		if node, ok := m.SpanMap[msg.SpanID]; ok {
			_, _ = node.Log.Write(msg.Data)
		}

	case telemetry.MsgUnitComplete:
		if node, ok := m.SpanMap[msg.SpanID]; ok {
			node.EndTime = msg.EndTime
			node.Cached = msg.Cached
			if msg.Err != nil {
				node.Status = StatusError
			} else {
				node.Status = StatusDone
			}
		}
	}

	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "tab":
		if m.ViewMode == ViewModeLogs {
			m.ViewMode = ViewModeTree
		} else {
			m.ViewMode = ViewModeLogs
		}

	case "esc":
		m.FollowMode = true
		// Jump to the currently running unit if any.
		for i, n := range m.FlatList {
			if n.live().Status == StatusRunning {
				m.SelectedIdx = i
				break
			}
		}
		m.ensureVisible()
		m.updateActiveView()

	default:
		if m.ViewMode == ViewModeLogs {
			m.forwardKey(msg)
			return m, nil
		}
		m.handleListKey(msg)
	}

	return m, nil
}

func (m *Model) handleListKey(msg tea.KeyMsg) {
	switch msg.String() {
	case "k", "up":
		if m.SelectedIdx > 0 {
			m.SelectedIdx--
			m.FollowMode = false
			m.ensureVisible()
			m.updateActiveView()
		}
	case "j", "down":
		if m.SelectedIdx < len(m.FlatList)-1 {
			m.SelectedIdx++
			m.FollowMode = false
			m.ensureVisible()
			m.updateActiveView()
		}
	case "enter", " ":
		m.toggleExpand()
	default:
		m.forwardKey(msg)
	}
}

func (m *Model) toggleExpand() {
	node := m.selectedUnit()
	if node == nil || len(node.Children) == 0 {
		return
	}

	node.IsExpanded = !node.IsExpanded
	m.FlatList = flattenTree(m.TreeRoots)
	if m.SelectedIdx >= len(m.FlatList) {
		m.SelectedIdx = len(m.FlatList) - 1
	}
	if m.SelectedIdx < 0 {
		m.SelectedIdx = 0
	}
	m.ensureVisible()
}

// forwardKey hands scroll keys to the selected unit's log window.
func (m *Model) forwardKey(msg tea.KeyMsg) {
	if m.ActiveUnitName == "" {
		return
	}
	if node, ok := m.UnitMap[m.ActiveUnitName]; ok && node.Log != nil {
		node.Log.Update(msg)
	}
}

func (m *Model) resize(msg tea.WindowSizeMsg) {
	// Split screen: 30% for the unit list, the rest for logs
	listWidth := int(float64(msg.Width) * unitListWidthRatio)
	logWidth := msg.Width - listWidth - logPaneBorderWidth

	headerHeight := lipgloss.Height(titleStyle.Render("LOGS"))
	logHeight := msg.Height - headerHeight

	m.LogWidth = logWidth
	m.LogHeight = logHeight

	// The list header includes the title plus a blank spacer line
	fullHeader := titleStyle.Render("UNITS") + "\n\n"
	m.ListHeight = msg.Height - lipgloss.Height(fullHeader)
	m.ensureVisible()

	for _, node := range m.Units {
		node.Log.SetWidth(logWidth)
		node.Log.SetHeight(logHeight)
	}
}

func (m *Model) initUnits(msg telemetry.MsgInitUnits) {
	m.Units = make([]*UnitNode, len(msg.Units))
	m.UnitMap = make(map[string]*UnitNode, len(msg.Units))
	m.SpanMap = make(map[string]*UnitNode)

	for i, name := range msg.Units {
		log := NewLogWindow()
		// If we know the dimensions, set them immediately
		if m.LogWidth > 0 && m.LogHeight > 0 {
			log.SetWidth(m.LogWidth)
			log.SetHeight(m.LogHeight)
		}

		m.Units[i] = &UnitNode{
			Name:   name,
			Status: StatusPending,
			Log:    log,
		}
		m.UnitMap[name] = m.Units[i]
	}

	// Entry points root the tree; a plan without explicit entries shows
	// every unit at the top level.
	entries := msg.Entries
	if len(entries) == 0 {
		entries = msg.Units
	}
	m.TreeRoots = buildTree(entries, msg.Dependencies, m.UnitMap)
	m.FlatList = flattenTree(m.TreeRoots)
}

func (m *Model) ensureVisible() {
	if m.ListHeight <= 0 {
		return
	}
	if m.SelectedIdx < m.ListOffset {
		m.ListOffset = m.SelectedIdx
	} else if m.SelectedIdx >= m.ListOffset+m.ListHeight {
		m.ListOffset = m.SelectedIdx - m.ListHeight + 1
	}
}

func (m *Model) selectedUnit() *UnitNode {
	if m.SelectedIdx >= 0 && m.SelectedIdx < len(m.FlatList) {
		return m.FlatList[m.SelectedIdx]
	}
	return nil
}

func (m *Model) updateActiveView() {
	node := m.selectedUnit()
	if node == nil {
		return
	}
	m.ActiveUnitName = node.Name

	if m.FollowMode && m.AutoScroll {
		log := node.live().Log
		if log == nil {
			return
		}
		maxOff := log.UsedHeight() - log.Height
		if maxOff < 0 {
			maxOff = 0
		}
		log.Offset = maxOff
	}
}
