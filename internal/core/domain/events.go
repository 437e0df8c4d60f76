package domain

import (
	"slices"
	"time"
)

// BuildEventType classifies build lifecycle notifications.
type BuildEventType int

const (
	// BuildStarted is emitted when a rebuild batch begins.
	BuildStarted BuildEventType = iota
	// BuildSucceeded is emitted after a revision was committed.
	BuildSucceeded
	// BuildFailed is emitted when a rebuild produced errors and was
	// discarded.
	BuildFailed
)

// String returns the event type name.
func (t BuildEventType) String() string {
	switch t {
	case BuildStarted:
		return "started"
	case BuildSucceeded:
		return "succeeded"
	case BuildFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// BuildEvent notifies subscribers about a build lifecycle transition.
// Manifest is only set for BuildSucceeded, Diagnostics only for
// BuildFailed.
type BuildEvent struct {
	Type        BuildEventType
	Revision    Revision
	Manifest    *AssetManifest
	Diagnostics []Diagnostic
	Duration    time.Duration
}

// ModuleUpdate describes a single module whose body changed between two
// revisions while its public shape stayed intact. Clients re-execute the
// new code in place.
type ModuleUpdate struct {
	Unit InternedString `json:"unit"`
	Code string         `json:"code"`
}

// ChunkSwap records an output chunk replaced between two revisions.
// Stylesheet swaps are applied by exchanging the link tag targets.
type ChunkSwap struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// DiffManifests compares two committed manifests and decides how running
// clients catch up: targeted module updates and stylesheet swaps when the
// graph shape is stable, or a full reload when it is not.
//
// A full reload is required when old is nil, the shell changed, modules
// were added or removed, an import edge set or export list changed, or a
// unit that cannot be re-executed in place (markup, binary assets)
// changed.
func DiffManifests(old, next *AssetManifest) ([]ModuleUpdate, []ChunkSwap, bool) {
	if old == nil || next == nil {
		return nil, nil, true
	}

	if old.ShellName != next.ShellName || !slices.Equal(old.Shell, next.Shell) {
		return nil, nil, true
	}

	if len(old.Modules) != len(next.Modules) {
		return nil, nil, true
	}

	var updates []ModuleUpdate
	changedChunks := map[string]struct{}{}

	for unit, info := range next.Modules {
		prev, ok := old.Modules[unit]
		if !ok {
			return nil, nil, true
		}

		if prev.Hash == info.Hash && prev.EdgeSum == info.EdgeSum {
			continue
		}

		if prev.EdgeSum != info.EdgeSum || !slices.Equal(prev.Exports, info.Exports) {
			return nil, nil, true
		}

		switch KindForPath(unit.String()) {
		case UnitScript:
			updates = append(updates, ModuleUpdate{Unit: unit, Code: string(info.Code)})
		case UnitStyle:
			// A style emitted as its own css chunk swaps by file name. A
			// style wrapped into a script chunk (development inlining)
			// updates in place like any other module.
			if chunk, ok := next.Chunk(info.Chunk); ok && chunk.Ext == "css" {
				changedChunks[info.Chunk] = struct{}{}
			} else {
				updates = append(updates, ModuleUpdate{Unit: unit, Code: string(info.Code)})
			}
		default:
			return nil, nil, true
		}
	}

	swaps := diffChunks(old, next, changedChunks)

	slices.SortFunc(updates, func(a, b ModuleUpdate) int {
		switch {
		case a.Unit.String() < b.Unit.String():
			return -1
		case a.Unit.String() > b.Unit.String():
			return 1
		default:
			return 0
		}
	})

	return updates, swaps, false
}

// diffChunks pairs old and new file names for chunks whose content
// changed. Chunks keep their logical name across revisions, only the
// content hash in the file name moves.
func diffChunks(old, next *AssetManifest, changed map[string]struct{}) []ChunkSwap {
	var swaps []ChunkSwap

	for i := range next.Chunks {
		chunk := &next.Chunks[i]
		if _, ok := changed[chunk.Name]; !ok {
			continue
		}

		prev, ok := old.Chunk(chunk.Name)
		if !ok || prev.FileName() == chunk.FileName() {
			continue
		}

		swaps = append(swaps, ChunkSwap{Old: prev.FileName(), New: chunk.FileName()})
	}

	slices.SortFunc(swaps, func(a, b ChunkSwap) int {
		switch {
		case a.New < b.New:
			return -1
		case a.New > b.New:
			return 1
		default:
			return 0
		}
	})

	return swaps
}
