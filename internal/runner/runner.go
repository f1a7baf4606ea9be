// Package runner drives a backend through the prompt, execute, detect cycle
// until the task is done or a guardrail trips.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/jlguenego/jlgcli/internal/backend"
	"github.com/jlguenego/jlgcli/internal/completion"
	"github.com/jlguenego/jlgcli/internal/config"
	"github.com/jlguenego/jlgcli/internal/exitcode"
	"github.com/jlguenego/jlgcli/internal/logging"
)

// Status is the terminal state of a run.
type Status string

const (
	StatusSuccess                Status = "success" // one-shot only
	StatusDone                   Status = "done"
	StatusMaxIterations          Status = "max-iterations"
	StatusTimeout                Status = "timeout"
	StatusNoProgress             Status = "no-progress"
	StatusInvalidJSON            Status = "invalid-json"
	StatusError                  Status = "error"
	StatusBackendMissing         Status = "backend-missing"
	StatusBackendUnauthenticated Status = "backend-unauthenticated"
	StatusBackendUnsupported     Status = "backend-unsupported"
	StatusBackendUnknown         Status = "backend-unknown"
)

// Entry records one iteration.
type Entry struct {
	Iteration int
	StartedAt time.Time
	Prompt    string
	Response  string
	Duration  time.Duration
}

// Result is the terminal value of a run. It is not modified after Loop or
// Once returns.
type Result struct {
	ExitCode   int
	Status     Status
	Text       string // best available response
	Backend    string
	Iterations int
	StartedAt  time.Time
	Duration   time.Duration
	Transcript []Entry // nil for one-shot runs
	Summary    string
	Details    string
}

// Options configures a run. Zero values fall back to the built-in defaults.
type Options struct {
	Prompt string
	// Backend is the adapter identifier. It is resolved through the registry
	// and may name a backend the registry does not know.
	Backend string
	Dir     string
	Env     map[string]string

	MaxIterations   int
	Timeout         time.Duration
	Mode            completion.Mode
	NoProgressLimit int // 0 disables stagnation detection
	// DisableNoProgress turns stagnation detection off even when
	// NoProgressLimit is zero and would otherwise take the default.
	DisableNoProgress bool

	// OnIteration is called after each iteration is recorded.
	OnIteration func(Entry)
	// OnChunk receives streamed output from backends that support it.
	OnChunk func(string)

	// RunID tags log entries for this run.
	RunID string
}

// FromConfig returns options carrying the resolved configuration values.
func FromConfig(cfg *config.Config) Options {
	return Options{
		Backend:           cfg.Backend,
		MaxIterations:     cfg.MaxIterations,
		Timeout:           cfg.Timeout(),
		Mode:              completion.Mode(cfg.CompletionMode),
		NoProgressLimit:   cfg.NoProgressLimit,
		DisableNoProgress: cfg.NoProgressLimit == 0,
	}
}

func (o Options) withDefaults() Options {
	if o.Backend == "" {
		o.Backend = config.DefaultBackend
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = config.DefaultMaxIterations
	}
	if o.Timeout <= 0 {
		o.Timeout = time.Duration(config.DefaultTimeoutMs) * time.Millisecond
	}
	if o.Mode == "" {
		o.Mode = completion.ModeMarker
	}
	if o.DisableNoProgress {
		o.NoProgressLimit = 0
	} else if o.NoProgressLimit <= 0 {
		o.NoProgressLimit = config.DefaultNoProgressLimit
	}
	return o
}

// Runner executes prompts against the backends of a registry. A Runner holds
// no per-run state and may serve several runs concurrently.
type Runner struct {
	registry *backend.Registry
	log      *logging.Logger
}

// New creates a runner. A nil logger discards log output.
func New(registry *backend.Registry, log *logging.Logger) *Runner {
	if log == nil {
		log = logging.Nop()
	}
	return &Runner{registry: registry, log: log}
}

// run carries the state of one execution.
type run struct {
	opts    Options
	adapter backend.Adapter
	env     backend.Environ
	start   time.Time
	log     *logging.RunLogger
}

func (r *Runner) begin(ctx context.Context, opts Options) (*run, *Result) {
	st := &run{
		opts:  opts,
		start: time.Now(),
		log:   r.log.WithRun(opts.RunID),
	}

	adapter, ok := r.registry.Resolve(opts.Backend)
	if !ok {
		st.log.Warn("unknown backend", map[string]any{"backend": opts.Backend})
		res := st.finish(exitcode.Usage, StatusBackendUnknown, "unknown backend: "+opts.Backend)
		res.Details = "supported backends: " + r.registry.Known()
		return nil, res
	}
	st.adapter = adapter

	av := adapter.IsAvailable(ctx)
	if !av.Available() {
		st.log.Warn("backend unavailable", map[string]any{
			"backend": opts.Backend,
			"status":  string(av.Status),
			"details": av.Details,
		})
		code, status := unavailable(av.Status)
		text := av.Details
		if text == "" {
			text = fmt.Sprintf("backend %s is not available", opts.Backend)
		}
		res := st.finish(code, status, text)
		res.Details = av.Details
		return nil, res
	}

	// One environment snapshot per run; overrides are merged per spawn.
	st.env = backend.SnapshotEnv()
	return st, nil
}

func unavailable(s backend.Status) (int, Status) {
	switch s {
	case backend.StatusMissing:
		return exitcode.BackendMissing, StatusBackendMissing
	case backend.StatusUnauthenticated:
		return exitcode.Unauthenticated, StatusBackendUnauthenticated
	default:
		return exitcode.Usage, StatusBackendUnsupported
	}
}

func (st *run) execute(ctx context.Context, prompt string, timeout time.Duration) backend.Outcome {
	return st.adapter.RunOnce(ctx, backend.Request{
		Prompt:  prompt,
		Dir:     st.opts.Dir,
		Env:     st.opts.Env,
		Timeout: timeout,
		BaseEnv: st.env,
		OnChunk: st.opts.OnChunk,
	})
}

func (st *run) finish(code int, status Status, text string) *Result {
	return &Result{
		ExitCode:  code,
		Status:    status,
		Text:      text,
		Backend:   st.opts.Backend,
		StartedAt: st.start,
		Duration:  time.Since(st.start),
	}
}

// Once runs a single prompt with no completion detection and no guardrails.
func (r *Runner) Once(ctx context.Context, opts Options) Result {
	opts = opts.withDefaults()
	st, res := r.begin(ctx, opts)
	if res != nil {
		return *res
	}

	st.log.Info("run started", map[string]any{"backend": opts.Backend, "mode": "once"})
	started := time.Now()
	out := st.execute(ctx, opts.Prompt, opts.Timeout)
	if opts.OnIteration != nil {
		opts.OnIteration(Entry{
			Iteration: 1,
			StartedAt: started,
			Prompt:    opts.Prompt,
			Response:  out.Text,
			Duration:  time.Since(started),
		})
	}

	status := StatusSuccess
	if out.ExitCode != 0 {
		status = StatusError
	}
	res = st.finish(out.ExitCode, status, out.Text)
	res.Details = out.Diagnostic
	st.log.Info("run finished", map[string]any{"status": string(status), "exit_code": out.ExitCode})
	return *res
}

// Loop runs the prompt repeatedly until the backend reports completion or a
// guardrail trips. The returned transcript always has Iterations entries.
func (r *Runner) Loop(ctx context.Context, opts Options) Result {
	opts = opts.withDefaults()
	st, res := r.begin(ctx, opts)
	if res != nil {
		return *res
	}

	st.log.Info("run started", map[string]any{
		"backend":           opts.Backend,
		"mode":              string(opts.Mode),
		"max_iterations":    opts.MaxIterations,
		"timeout_ms":        opts.Timeout.Milliseconds(),
		"no_progress_limit": opts.NoProgressLimit,
	})

	res = st.loop(ctx)
	res.Iterations = len(res.Transcript)
	st.log.Info("run finished", map[string]any{
		"status":     string(res.Status),
		"exit_code":  res.ExitCode,
		"iterations": res.Iterations,
	})
	return *res
}

func (st *run) loop(ctx context.Context) *Result {
	opts := st.opts
	prompt := opts.Prompt
	var (
		transcript []Entry
		last       string
		previous   string
		identical  int
	)
	end := func(code int, status Status, text, details string) *Result {
		res := st.finish(code, status, text)
		res.Transcript = transcript
		res.Details = details
		return res
	}

	for iteration := 1; iteration <= opts.MaxIterations; iteration++ {
		elapsed := time.Since(st.start)
		if elapsed >= opts.Timeout {
			return end(exitcode.TempFail, StatusTimeout, last,
				fmt.Sprintf("global timeout reached after %s", elapsed.Round(time.Millisecond)))
		}

		started := time.Now()
		out := st.execute(ctx, prompt, opts.Timeout-elapsed)
		entry := Entry{
			Iteration: iteration,
			StartedAt: started,
			Prompt:    prompt,
			Response:  out.Text,
			Duration:  time.Since(started),
		}
		transcript = append(transcript, entry)
		last = out.Text
		st.log.Debug("iteration finished", map[string]any{
			"iteration":   iteration,
			"exit_code":   out.ExitCode,
			"duration_ms": entry.Duration.Milliseconds(),
		})
		if opts.OnIteration != nil {
			opts.OnIteration(entry)
		}

		// The subprocess was cut short by the run budget itself.
		if out.TimedOut && time.Since(st.start) >= opts.Timeout {
			return end(exitcode.TempFail, StatusTimeout, last,
				fmt.Sprintf("global timeout reached after %s", time.Since(st.start).Round(time.Millisecond)))
		}

		if opts.NoProgressLimit > 0 {
			if iteration > 1 && out.Text == previous {
				identical++
			} else {
				identical = 1
			}
			previous = out.Text
			if identical >= opts.NoProgressLimit {
				st.log.Warn("no progress", map[string]any{"identical": identical})
				return end(exitcode.NoProgress, StatusNoProgress, last,
					fmt.Sprintf("stopped after %d identical consecutive responses", identical))
			}
		}

		if out.ExitCode != 0 {
			details := fmt.Sprintf("backend exited with code %d", out.ExitCode)
			if out.Diagnostic != "" {
				details += ": " + out.Diagnostic
			}
			return end(out.ExitCode, StatusError, last, details)
		}

		verdict := completion.Detect(out.Text, opts.Mode)
		switch verdict.Status {
		case completion.StatusDone:
			res := end(exitcode.Success, StatusDone, last, "")
			res.Summary = verdict.Summary
			return res
		case completion.StatusError:
			reason := verdict.Reason
			if reason == "" {
				reason = completion.ReasonInvalidJSON
			}
			return end(exitcode.DataErr, StatusInvalidJSON, last, reason)
		}

		if verdict.Next != "" && verdict.Next != prompt {
			st.log.Debug("prompt replaced", map[string]any{
				"iteration": iteration,
				"diff":      PromptDiff(prompt, verdict.Next, iteration, iteration+1),
			})
			prompt = verdict.Next
		}
	}

	return end(exitcode.MaxIterations, StatusMaxIterations, last,
		fmt.Sprintf("reached the limit of %d iterations", opts.MaxIterations))
}
