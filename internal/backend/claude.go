package backend

import (
	"context"

	"github.com/jlguenego/jlgcli/internal/exitcode"
)

const claudeUnsupported = "claude backend not supported yet"

type claudeAdapter struct{}

// NewClaude returns the placeholder for the Claude CLI. It resolves like any
// other backend but always reports unsupported.
func NewClaude() Adapter {
	return claudeAdapter{}
}

func (claudeAdapter) ID() ID {
	return Claude
}

func (claudeAdapter) IsAvailable(context.Context) Availability {
	return Availability{Status: StatusUnsupported, Details: claudeUnsupported}
}

func (claudeAdapter) RunOnce(context.Context, Request) Outcome {
	return Outcome{
		ExitCode:   exitcode.Usage,
		Text:       claudeUnsupported,
		Diagnostic: claudeUnsupported,
	}
}
