// Package detector selects the rendering mode for build output.
package detector

import (
	"os"

	"golang.org/x/term"
)

// OutputMode represents the rendering mode for build progress.
type OutputMode int

const (
	// ModeAuto automatically detects the appropriate mode.
	ModeAuto OutputMode = iota
	// ModeTUI forces the interactive dashboard renderer.
	ModeTUI
	// ModeLinear forces the line-oriented CI renderer.
	ModeLinear
)

// DetectEnvironment returns the recommended output mode based on the
// environment. Interactive terminals get the dashboard, CI runners and
// piped output get plain lines.
func DetectEnvironment() OutputMode {
	isTTY := term.IsTerminal(int(os.Stdout.Fd()))

	ci := os.Getenv("CI")
	isCI := ci == "true" || ci == "1"

	if !isTTY || isCI {
		return ModeLinear
	}
	return ModeTUI
}

// ResolveMode applies a user override flag to auto-detection.
// userFlag should be one of: "auto", "tui", "linear", "ci", or empty.
func ResolveMode(autoDetected OutputMode, userFlag string) OutputMode {
	switch userFlag {
	case "tui":
		return ModeTUI
	case "linear", "ci":
		return ModeLinear
	case "auto", "":
		return autoDetected
	default:
		return autoDetected
	}
}
