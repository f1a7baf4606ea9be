package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/jlguenego/jlgcli/internal/exitcode"
)

const (
	// probeTimeout bounds a `--version` call.
	probeTimeout = 15 * time.Second
	// killGrace is how long a terminated process may keep its pipes open
	// before it is killed outright.
	killGrace = 3 * time.Second
)

// invocation describes how to call a backend CLI for one prompt.
type invocation struct {
	bin           string
	args          []string
	promptInStdin bool
	stream        bool
}

// probe runs `<bin> --version` and classifies the result.
func probe(ctx context.Context, bin string) Availability {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, bin, "--version")
	setupProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessGroup(cmd) }
	cmd.WaitDelay = killGrace

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	if err == nil {
		return Classify(bin, 0, out.String(), nil)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		if code < 0 {
			code = exitcode.Failure
		}
		return Classify(bin, code, out.String(), nil)
	}
	return Classify(bin, 0, "", err)
}

// execute runs one invocation. It always returns a well-formed Outcome.
func execute(ctx context.Context, inv invocation, req Request) Outcome {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, inv.bin, inv.args...)
	cmd.Dir = req.Dir
	base := req.BaseEnv
	if base == nil {
		base = SnapshotEnv()
	}
	cmd.Env = base.Merge(req.Env)
	setupProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessGroup(cmd) }
	cmd.WaitDelay = killGrace

	if inv.promptInStdin {
		cmd.Stdin = strings.NewReader(req.Prompt)
	}

	stdout := &chunkWriter{}
	if inv.stream {
		stdout.onChunk = req.OnChunk
	}
	var stderr bytes.Buffer
	cmd.Stdout = stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()

	out := Outcome{
		Stdout: stdout.buf.String(),
		Stderr: stderr.String(),
	}
	out.Text = preferStdout(out.Stdout, out.Stderr)

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		out.ExitCode = exitcode.Success
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		out.ExitCode = exitcode.SubprocessTimeout
		out.TimedOut = true
		out.Diagnostic = fmt.Sprintf("%s timed out after %s", inv.bin, time.Since(start).Round(time.Millisecond))
	case errors.Is(ctx.Err(), context.Canceled):
		out.ExitCode = exitcode.Failure
		out.Diagnostic = fmt.Sprintf("%s interrupted", inv.bin)
	case errors.As(err, &exitErr):
		out.ExitCode = exitErr.ExitCode()
		if out.ExitCode < 0 {
			out.ExitCode = exitcode.Failure
			out.Diagnostic = fmt.Sprintf("%s terminated: %s", inv.bin, exitErr.String())
		}
	default:
		out.ExitCode = exitcode.SpawnFailed
		out.Diagnostic = fmt.Sprintf("failed to start %s: %v", inv.bin, err)
	}

	if strings.TrimSpace(out.Text) == "" && out.Diagnostic != "" {
		out.Text = out.Diagnostic
	}
	return out
}

// preferStdout returns stdout unless it is blank, in which case stderr.
func preferStdout(stdout, stderr string) string {
	if strings.TrimSpace(stdout) != "" {
		return stdout
	}
	return stderr
}

// chunkWriter buffers stdout and forwards each chunk to onChunk.
type chunkWriter struct {
	buf     bytes.Buffer
	onChunk func(string)
}

func (w *chunkWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	if w.onChunk != nil {
		w.onChunk(string(p))
	}
	return len(p), nil
}
