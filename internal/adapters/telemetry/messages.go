package telemetry

import (
	"time"
)

// MsgUnitStart indicates a new unit (span) has started.
type MsgUnitStart struct {
	SpanID    string
	ParentID  string // May be empty if root
	Name      string
	StartTime time.Time
}

// MsgUnitComplete indicates a unit (span) has finished.
type MsgUnitComplete struct {
	SpanID  string
	EndTime time.Time
	Err     error
	Cached  bool
}

// MsgUnitLog carries a chunk of log output for a specific unit.
type MsgUnitLog struct {
	SpanID string
	Data   []byte
}

// MsgInitUnits serves as a signal to initialize or reset the unit list in the UI.
type MsgInitUnits struct {
	Units        []string
	Dependencies map[string][]string
	Entries      []string
}
