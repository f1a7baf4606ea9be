package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jlguenego/jlgcli/internal/artifacts"
	"github.com/jlguenego/jlgcli/internal/completion"
	"github.com/jlguenego/jlgcli/internal/config"
	"github.com/jlguenego/jlgcli/internal/exitcode"
	"github.com/jlguenego/jlgcli/internal/history"
	"github.com/jlguenego/jlgcli/internal/logging"
	"github.com/jlguenego/jlgcli/internal/output"
	"github.com/jlguenego/jlgcli/internal/runner"
)

const (
	commandRun  = "run"
	commandLoop = "loop"

	failurePreview = 200
)

type runFlags struct {
	backend   string
	timeoutMs int64
	env       []string
	json      bool
	artifacts bool

	maxIterations   int
	completionMode  string
	noProgressLimit int
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.backend, "backend", "b", "", "backend to use (copilot, codex, claude)")
	cmd.Flags().Int64VarP(&f.timeoutMs, "timeout", "t", 0, "timeout in milliseconds")
	cmd.Flags().StringArrayVarP(&f.env, "env", "e", nil, "extra environment variable KEY=VALUE for the backend (repeatable)")
	cmd.Flags().BoolVar(&f.json, "json", false, "print a machine-readable JSON summary on stdout")
	cmd.Flags().BoolVar(&f.artifacts, "artifacts", false, "persist the run under .jlgcli/runs/")
}

func newRunCmd(a *app) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run <prompt-file|->",
		Short: "Send a prompt to a backend once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.execute(cmd, commandRun, args[0], f)
		},
	}
	f.register(cmd)
	return cmd
}

func newLoopCmd(a *app) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "loop <prompt-file|->",
		Short: "Repeat a prompt until the backend reports completion",
		Long: `Repeat a prompt until the backend reports completion.

In marker mode the task is done when the last non-empty line of the answer is
exactly DONE. In json mode the answer must contain an object such as
{"status":"done","summary":"..."} or {"status":"continue","next":"..."}.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.execute(cmd, commandLoop, args[0], f)
		},
	}
	f.register(cmd)
	cmd.Flags().IntVarP(&f.maxIterations, "max-iterations", "m", 0, "maximum number of iterations")
	cmd.Flags().StringVar(&f.completionMode, "completion-mode", "", "completion detection mode (marker, json)")
	cmd.Flags().IntVar(&f.noProgressLimit, "no-progress-limit", 0, "stop after this many identical answers (0 disables)")
	return cmd
}

// options merges the resolved configuration with explicit flags.
func (f *runFlags) options(cmd *cobra.Command, cfg *config.Config) (runner.Options, error) {
	opts := runner.FromConfig(cfg)
	flags := cmd.Flags()

	if flags.Changed("backend") {
		opts.Backend = f.backend
	}
	if flags.Changed("timeout") {
		if f.timeoutMs <= 0 {
			return opts, exitcode.New(exitcode.Usage, "--timeout must be > 0")
		}
		opts.Timeout = time.Duration(f.timeoutMs) * time.Millisecond
	}
	if flags.Changed("max-iterations") {
		if f.maxIterations <= 0 {
			return opts, exitcode.New(exitcode.Usage, "--max-iterations must be > 0")
		}
		opts.MaxIterations = f.maxIterations
	}
	if flags.Changed("completion-mode") {
		mode, err := completion.ParseMode(f.completionMode)
		if err != nil {
			return opts, exitcode.Wrap(exitcode.Usage, "invalid --completion-mode", err)
		}
		opts.Mode = mode
	}
	if flags.Changed("no-progress-limit") {
		if f.noProgressLimit < 0 {
			return opts, exitcode.New(exitcode.Usage, "--no-progress-limit must be >= 0")
		}
		opts.NoProgressLimit = f.noProgressLimit
		opts.DisableNoProgress = f.noProgressLimit == 0
	}

	env, err := parseEnv(f.env)
	if err != nil {
		return opts, err
	}
	opts.Env = env
	return opts, nil
}

func (a *app) execute(cmd *cobra.Command, command, source string, f *runFlags) error {
	prompt, err := readPrompt(source, a.dir, cmd.InOrStdin())
	if err != nil {
		return err
	}

	cfg, err := config.Resolve(a.dir)
	if err != nil {
		return exitcode.Wrap(exitcode.Failure, "configuration error", err)
	}
	opts, err := f.options(cmd, cfg)
	if err != nil {
		return err
	}

	runID := artifacts.NewRunID(time.Now())
	opts.Prompt = prompt
	opts.Dir = a.dir
	opts.RunID = runID

	looped := command == commandLoop
	if !f.json {
		a.printer.Prompt(prompt)
		opts.OnChunk = a.printer.Chunk()
		if looped {
			opts.OnIteration = func(e runner.Entry) {
				a.printer.Printf(output.Normal, "%s", output.IterationProgress(e))
			}
		}
	}

	r := runner.New(a.registry, a.log)
	var res runner.Result
	if looped {
		res = r.Loop(cmd.Context(), opts)
	} else {
		res = r.Once(cmd.Context(), opts)
	}

	a.report(cmd, res, looped, f.json)

	if f.artifacts {
		path, err := a.persist(artifacts.Run{ID: runID, Command: command, Prompt: prompt, Options: opts, Result: res})
		if err != nil {
			return err
		}
		a.printer.Printf(output.Minimal, "Artifacts  : %s", path)
	}

	if res.ExitCode != exitcode.Success {
		return exitcode.Silent(res.ExitCode)
	}
	return nil
}

// report prints the result: JSON on stdout with --json, otherwise the answer
// on stdout and the summary on stderr.
func (a *app) report(cmd *cobra.Command, res runner.Result, looped, asJSON bool) {
	stdout := cmd.OutOrStdout()
	if asJSON {
		output.WriteJSON(stdout, output.JSONSummary(res, looped))
		return
	}

	if res.ExitCode == exitcode.Success {
		// Backend output usually ends with its own newline.
		fmt.Fprintln(stdout, strings.TrimSuffix(res.Text, "\n"))
	} else {
		text := []rune(res.Text)
		if len(text) > failurePreview {
			text = text[:failurePreview]
		}
		a.printer.Printf(output.Silent, "[%s] %s", res.Status, string(text))
		if res.Details != "" {
			a.printer.Printf(output.Silent, "%s", res.Details)
		}
	}
	a.printer.Lines(output.Minimal, output.HumanSummary(res, looped))
}

func (a *app) persist(run artifacts.Run) (string, error) {
	index, err := history.Open(history.DefaultPath(a.dir))
	if err != nil {
		return "", exitcode.Wrap(exitcode.CantCreate, "artifacts write failed", err)
	}
	defer index.Close()

	run.Logs = a.log.Query(logging.Query{RunID: run.ID}).Entries
	runLog := a.log.WithRun(run.ID)
	w := artifacts.NewWriter(a.dir, index, func(pattern string) {
		runLog.Warn("secret redacted", map[string]any{"pattern": pattern})
	})
	path, err := w.Write(run)
	if err != nil {
		runLog.Error("artifacts write failed", map[string]any{"error": err.Error()})
		return "", err
	}
	return path, nil
}
