// Package backend normalizes external AI-assistant command-line tools into a
// uniform contract: an availability probe and a one-shot prompt execution.
package backend

import (
	"context"
	"time"
)

// ID identifies a backend kind.
type ID string

const (
	Copilot ID = "copilot"
	Codex   ID = "codex"
	Claude  ID = "claude"
)

// Status is the result of an availability probe.
type Status string

const (
	StatusAvailable       Status = "available"
	StatusMissing         Status = "missing"
	StatusUnauthenticated Status = "unauthenticated"
	StatusUnsupported     Status = "unsupported"
)

// Availability is a fresh probe verdict. It is never cached: the external
// tool may be installed or logged in between two runs.
type Availability struct {
	Status  Status `json:"status"`
	Details string `json:"details,omitempty"`
}

// Available reports whether the backend may be invoked.
func (a Availability) Available() bool {
	return a.Status == StatusAvailable
}

// Request is one prompt execution.
type Request struct {
	Prompt  string
	Dir     string            // working directory for the subprocess ("" = inherit)
	Env     map[string]string // merged over BaseEnv
	Timeout time.Duration     // 0 = no per-call limit beyond ctx

	// BaseEnv is the inherited environment snapshot. Nil means the current
	// process environment at spawn time.
	BaseEnv Environ

	// OnChunk receives stdout chunks as they arrive, for backends that
	// stream. It is a display side channel and never alters Outcome.Text.
	OnChunk func(chunk string)
}

// Outcome is the result of one exchange with a backend.
type Outcome struct {
	ExitCode int    `json:"exit_code"`
	Text     string `json:"text"`
	Stdout   string `json:"stdout,omitempty"`
	Stderr   string `json:"stderr,omitempty"`

	// Diagnostic explains a failure the backend did not report itself
	// (spawn failure, timeout).
	Diagnostic string `json:"diagnostic,omitempty"`
	TimedOut   bool   `json:"timed_out,omitempty"`
}

// Adapter wraps one backend CLI.
type Adapter interface {
	ID() ID
	// IsAvailable probes the backend without side effects.
	IsAvailable(ctx context.Context) Availability
	// RunOnce executes a prompt. It never returns an error: spawn failures
	// and timeouts are reported through a non-zero Outcome.ExitCode.
	RunOnce(ctx context.Context, req Request) Outcome
}
