// Package api defines the JSON documents served by the run browser.
package api

import (
	"github.com/jlguenego/jlgcli/internal/artifacts"
	"github.com/jlguenego/jlgcli/internal/backend"
	"github.com/jlguenego/jlgcli/internal/history"
	"github.com/jlguenego/jlgcli/internal/logging"
)

// Error codes returned in ErrorResponse.Error.
const (
	ErrNotFound           = "not_found"
	ErrBadRequest         = "bad_request"
	ErrHistoryUnavailable = "history_unavailable"
	ErrInternal           = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// BackendStatus describes one registered backend. Availability is only
// filled when the caller asked for a probe.
type BackendStatus struct {
	backend.Info
	Availability *backend.Availability `json:"availability,omitempty"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	Version       string          `json:"version"`
	UptimeSeconds float64         `json:"uptime_seconds"`
	Root          string          `json:"root"`
	HistoryPath   string          `json:"history_path,omitempty"`
	Backends      []BackendStatus `json:"backends"`
}

// RunDetail is returned by GET /api/runs/{id}.
type RunDetail struct {
	history.Entry
	Meta *artifacts.Meta `json:"meta,omitempty"`
}

// TranscriptResponse is returned by GET /api/runs/{id}/transcript.
type TranscriptResponse struct {
	RunID  string            `json:"run_id"`
	Events []artifacts.Event `json:"events"`
}

// RunLogsResponse is returned by GET /api/runs/{id}/logs.
type RunLogsResponse struct {
	RunID   string          `json:"run_id"`
	Entries []logging.Entry `json:"entries"`
}
