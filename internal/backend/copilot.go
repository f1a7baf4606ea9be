package backend

import "context"

// CopilotBinEnv overrides the copilot binary path.
const CopilotBinEnv = "JLGCLI_COPILOT_BIN"

type copilotAdapter struct{}

// NewCopilot returns the GitHub Copilot CLI adapter. The prompt is passed on
// the command line and stdout is streamed through Request.OnChunk.
func NewCopilot() Adapter {
	return copilotAdapter{}
}

func (copilotAdapter) ID() ID {
	return Copilot
}

func (copilotAdapter) bin() string {
	return resolveBin(CopilotBinEnv, "copilot")
}

func (a copilotAdapter) IsAvailable(ctx context.Context) Availability {
	return probe(ctx, a.bin())
}

func (a copilotAdapter) RunOnce(ctx context.Context, req Request) Outcome {
	return execute(ctx, a.command(req.Prompt), req)
}

// command builds a non-interactive call: -p carries the prompt, -s keeps
// only the agent's answer, and the allow-all flags stop it from waiting on a
// confirmation nobody will give.
func (a copilotAdapter) command(prompt string) invocation {
	return invocation{
		bin: a.bin(),
		args: []string{
			"-p", prompt,
			"-s",
			"--allow-all-tools",
			"--allow-all-paths",
		},
		stream: true,
	}
}
