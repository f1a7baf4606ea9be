package backend

import "context"

// CodexBinEnv overrides the codex binary path.
const CodexBinEnv = "JLGCLI_CODEX_BIN"

type codexAdapter struct{}

// NewCodex returns the OpenAI Codex CLI adapter. The prompt is written to
// stdin and the output is returned buffered.
func NewCodex() Adapter {
	return codexAdapter{}
}

func (codexAdapter) ID() ID {
	return Codex
}

func (codexAdapter) bin() string {
	return resolveBin(CodexBinEnv, "codex")
}

func (a codexAdapter) IsAvailable(ctx context.Context) Availability {
	return probe(ctx, a.bin())
}

func (a codexAdapter) RunOnce(ctx context.Context, req Request) Outcome {
	return execute(ctx, a.command(), req)
}

// command reads the prompt from stdin ("-") so prompts that begin with a dash
// or exceed argv limits are delivered intact.
func (a codexAdapter) command() invocation {
	return invocation{
		bin: a.bin(),
		args: []string{
			"exec",
			"--skip-git-repo-check",
			"-",
		},
		promptInStdin: true,
	}
}
