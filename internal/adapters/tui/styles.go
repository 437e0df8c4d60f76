package tui

import (
	"github.com/charmbracelet/lipgloss"

	"go.trai.ch/bale/internal/ui/style"
)

var (
	unitPendingStyle = lipgloss.NewStyle().
				Foreground(style.Slate)

	unitRunningStyle = lipgloss.NewStyle().
				Foreground(style.Iris).
				Bold(true)

	unitDoneStyle = lipgloss.NewStyle().
			Foreground(style.Green)

	unitErrorStyle = lipgloss.NewStyle().
			Foreground(style.Red)

	unitCachedStyle = lipgloss.NewStyle().
			Foreground(style.Slate).
			Faint(true)

	selectedStyle = lipgloss.NewStyle().
			Foreground(style.Iris).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(style.Slate)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1).
			Background(style.Iris).
			Foreground(style.White)

	failureTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Padding(0, 1).
				Background(style.Red).
				Foreground(style.White)

	listStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, true, false, false).
			BorderForeground(style.Slate).
			MarginRight(1).
			PaddingRight(1)

	logStyle = lipgloss.NewStyle().
			PaddingLeft(1)
)
