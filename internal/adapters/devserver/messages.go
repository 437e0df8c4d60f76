package devserver

import (
	"encoding/json"

	"go.trai.ch/bale/internal/core/domain"
)

// Message types exchanged with connected clients. All frames are JSON text
// messages; ack is the only client to server type.
const (
	msgSync       = "sync"
	msgUpdate     = "update"
	msgCSSSwap    = "css-swap"
	msgFullReload = "full-reload"
	msgError      = "error"
	msgAck        = "ack"
)

// message is one server to client frame. Type discriminates which of the
// optional fields are populated.
type message struct {
	Type        string              `json:"type"`
	Revision    domain.Revision     `json:"revision"`
	Manifest    *manifestSummary    `json:"manifest,omitempty"`
	ModuleID    string              `json:"moduleId,omitempty"`
	NewSource   string              `json:"newSource,omitempty"`
	Swaps       []domain.ChunkSwap  `json:"swaps,omitempty"`
	Diagnostics []diagnosticPayload `json:"diagnostics,omitempty"`
}

// ackFrame is the client to server acknowledgement of an applied revision.
type ackFrame struct {
	Type     string          `json:"type"`
	Revision domain.Revision `json:"revision"`
}

// manifestSummary is the client-facing view of a committed manifest: enough
// to reason about staleness, nothing the asset routes don't already serve.
type manifestSummary struct {
	Revision domain.Revision `json:"revision"`
	Mode     string          `json:"mode"`
	Shell    string          `json:"shell,omitempty"`
	Files    []string        `json:"files"`
}

// diagnosticPayload mirrors domain.Diagnostic for the error overlay.
type diagnosticPayload struct {
	Severity string `json:"severity"`
	Unit     string `json:"unit,omitempty"`
	Line     int    `json:"line,omitempty"`
	Message  string `json:"message"`
}

func summarize(m *domain.AssetManifest) *manifestSummary {
	if m == nil {
		return nil
	}
	return &manifestSummary{
		Revision: m.Revision,
		Mode:     string(m.Mode),
		Shell:    m.ShellName,
		Files:    m.FileNames(),
	}
}

func toDiagnosticPayloads(diags []domain.Diagnostic) []diagnosticPayload {
	if len(diags) == 0 {
		return nil
	}
	out := make([]diagnosticPayload, len(diags))
	for i, d := range diags {
		out[i] = diagnosticPayload{
			Severity: d.Severity.String(),
			Unit:     d.Unit.String(),
			Line:     d.Line,
			Message:  d.Message,
		}
	}
	return out
}

func syncFrame(revision domain.Revision, m *domain.AssetManifest) []byte {
	return encodeFrame(message{Type: msgSync, Revision: revision, Manifest: summarize(m)})
}

func updateFrame(revision domain.Revision, update domain.ModuleUpdate) []byte {
	return encodeFrame(message{
		Type:      msgUpdate,
		Revision:  revision,
		ModuleID:  update.Unit.String(),
		NewSource: update.Code,
	})
}

func swapFrame(revision domain.Revision, swaps []domain.ChunkSwap) []byte {
	return encodeFrame(message{Type: msgCSSSwap, Revision: revision, Swaps: swaps})
}

func reloadFrame(revision domain.Revision) []byte {
	return encodeFrame(message{Type: msgFullReload, Revision: revision})
}

func errorFrame(revision domain.Revision, diags []domain.Diagnostic) []byte {
	return encodeFrame(message{
		Type:        msgError,
		Revision:    revision,
		Diagnostics: toDiagnosticPayloads(diags),
	})
}

// encodeFrame marshals a frame. The message type contains nothing that can
// fail to marshal, so errors reduce to a programming mistake.
func encodeFrame(m message) []byte {
	data, err := json.Marshal(m)
	if err != nil {
		panic(err)
	}
	return data
}
