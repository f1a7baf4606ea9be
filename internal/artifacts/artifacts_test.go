package artifacts

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jlguenego/jlgcli/internal/completion"
	"github.com/jlguenego/jlgcli/internal/exitcode"
	"github.com/jlguenego/jlgcli/internal/history"
	"github.com/jlguenego/jlgcli/internal/logging"
	"github.com/jlguenego/jlgcli/internal/runner"
)

func TestRedact(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		want    string
		pattern string
	}{
		{name: "bearer", in: "Authorization: Bearer abc.def-123==", want: "Authorization: [REDACTED]", pattern: "Bearer token"},
		{name: "openai key", in: "key sk-abcdefghijklmnopqrstuvwx end", want: "key [REDACTED] end", pattern: "API key (sk-...)"},
		{name: "short sk is kept", in: "sk-short", want: "sk-short"},
		{name: "jwt", in: "t=eyJhbGciOi.eyJzdWIiOi.sig_nature", want: "t=[REDACTED]", pattern: "JWT token"},
		{name: "aws", in: "AWS_SECRET_ACCESS_KEY=" + strings.Repeat("A", 40), want: "[REDACTED]", pattern: "AWS secret"},
		{name: "token env", in: "export GITHUB_TOKEN=hunter2 now", want: "export [REDACTED] now", pattern: "Token env var"},
		{name: "api key env", in: `OPENAI_API_KEY: "abc"`, want: "[REDACTED]", pattern: "API key env var"},
		{name: "github token", in: "ghp_" + strings.Repeat("x", 36), want: "[REDACTED]", pattern: "GitHub token"},
		{name: "clean text", in: "nothing secret here", want: "nothing secret here"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var hits []string
			got := Redact(tt.in, func(p string) { hits = append(hits, p) })
			assert.Equal(t, tt.want, got)
			if tt.pattern != "" {
				assert.Contains(t, hits, tt.pattern)
			} else {
				assert.Empty(t, hits)
			}
		})
	}
}

func TestNewRunID(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 2, 3, 4, 5, 6, 0, time.Local)
	id := NewRunID(now)
	assert.Regexp(t, regexp.MustCompile(`^20260203-040506-[0-9a-f]{4}$`), id)
}

func loopRun() Run {
	start := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	return Run{
		ID:      "20260501-100000-beef",
		Command: "loop",
		Prompt:  "deploy with GITHUB_TOKEN=abc123",
		Options: runner.Options{MaxIterations: 5, Timeout: time.Minute, Mode: completion.ModeJSON},
		Result: runner.Result{
			ExitCode:   0,
			Status:     runner.StatusDone,
			Text:       `{"status":"done","summary":"shipped"}`,
			Backend:    "codex",
			Iterations: 2,
			StartedAt:  start,
			Duration:   3 * time.Second,
			Summary:    "shipped",
			Transcript: []runner.Entry{
				{Iteration: 1, StartedAt: start, Prompt: "deploy with GITHUB_TOKEN=abc123", Response: `{"status":"continue","next":"verify"}`, Duration: time.Second},
				{Iteration: 2, StartedAt: start.Add(time.Second), Prompt: "verify", Response: `{"status":"done","summary":"shipped"}`, Duration: 2 * time.Second},
			},
		},
	}
}

func TestWriter_Write(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	index, err := history.Open(history.DefaultPath(dir))
	require.NoError(t, err)
	defer index.Close()

	var redactions []string
	w := NewWriter(dir, index, func(p string) { redactions = append(redactions, p) })
	path, err := w.Write(loopRun())
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, ".jlgcli", "runs", "20260501-100000-beef"), path)
	require.NotEmpty(t, redactions)

	meta, err := ReadMeta(path)
	require.NoError(t, err)
	assert.Equal(t, "codex", meta.Backend)
	assert.Equal(t, "deploy with [REDACTED]", meta.Options.Prompt)
	assert.Equal(t, 5, meta.Options.MaxIterations)
	assert.Equal(t, "json", meta.Options.CompletionMode)
	assert.Equal(t, int64(60000), meta.Options.TimeoutMs)
	assert.Equal(t, 3*time.Second, meta.FinishedAt.Sub(meta.StartedAt))

	events, err := ReadTranscript(path)
	require.NoError(t, err)
	require.Len(t, events, 4)
	assert.Equal(t, "prompt", events[0].Type)
	assert.Equal(t, "deploy with [REDACTED]", events[0].Content)
	assert.Equal(t, "response", events[3].Type)
	require.NotNil(t, events[3].DurationMs)
	assert.Equal(t, int64(2000), *events[3].DurationMs)

	data, err := os.ReadFile(filepath.Join(path, ResultFile))
	require.NoError(t, err)
	var result map[string]any
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Equal(t, "done", result["status"])
	assert.Equal(t, float64(2), result["iterations"])
	assert.Equal(t, "shipped", result["summary"])

	diff, err := os.ReadFile(filepath.Join(path, DiffFile))
	require.NoError(t, err)
	assert.Contains(t, string(diff), "+verify")
	assert.NotContains(t, string(diff), "abc123")

	entry, err := index.Get("20260501-100000-beef")
	require.NoError(t, err)
	assert.Equal(t, "loop", entry.Command)
	assert.Equal(t, path, entry.ArtifactsDir)
	assert.Equal(t, history.Digest("deploy with GITHUB_TOKEN=abc123"), entry.PromptDigest)
	assert.Equal(t, "deploy with [REDACTED]", entry.PromptPreview)
}

func TestWriter_OneShotHasEmptyTranscript(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	run := Run{
		Command: "run",
		Prompt:  "hello",
		Options: runner.Options{Timeout: time.Second},
		Result:  runner.Result{Status: runner.StatusSuccess, Backend: "copilot", StartedAt: time.Now(), Text: "hi"},
	}
	path, err := NewWriter(dir, nil, nil).Write(run)
	require.NoError(t, err)

	events, err := ReadTranscript(path)
	require.NoError(t, err)
	assert.Empty(t, events)

	meta, err := ReadMeta(path)
	require.NoError(t, err)
	assert.Zero(t, meta.Options.MaxIterations)
	assert.NoFileExists(t, filepath.Join(path, DiffFile))

	data, err := os.ReadFile(filepath.Join(path, ResultFile))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "iterations")
}

func TestWriter_FailureIsCantCreate(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	// A regular file where the .jlgcli directory should be.
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".jlgcli"), []byte("x"), 0o644))

	_, err := NewWriter(dir, nil, nil).Write(loopRun())
	require.Error(t, err)
	assert.Equal(t, exitcode.CantCreate, exitcode.Of(err))
	assert.Contains(t, err.Error(), "artifacts write failed")
}

func TestWriter_Logs(t *testing.T) {
	t.Parallel()

	var buf strings.Builder
	log := logging.New(logging.Config{Output: &buf, Level: logging.LevelDebug, Component: "jlgcli"})
	runLog := log.WithRun("20260501-100000-beef")
	runLog.Info("run started", map[string]any{"backend": "codex"})
	runLog.Debug("prompt replaced", map[string]any{"diff": "+deploy with GITHUB_TOKEN=abc123"})
	log.WithRun("other").Info("unrelated")

	run := loopRun()
	run.Logs = log.Query(logging.Query{RunID: run.ID}).Entries
	path, err := NewWriter(t.TempDir(), nil, nil).Write(run)
	require.NoError(t, err)

	entries, err := ReadLogs(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "run started", entries[0].Message)
	assert.Equal(t, logging.LevelInfo, entries[0].Level)
	assert.Equal(t, run.ID, entries[0].RunID)
	assert.Equal(t, logging.LevelDebug, entries[1].Level)

	data, err := os.ReadFile(filepath.Join(path, LogsFile))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "abc123")
	assert.Contains(t, string(data), Redacted)
}

func TestWriter_NoLogsWritesEmptyFile(t *testing.T) {
	t.Parallel()

	path, err := NewWriter(t.TempDir(), nil, nil).Write(loopRun())
	require.NoError(t, err)

	entries, err := ReadLogs(path)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWriter_RelativeDirIndexesAbsolutePath(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	index, err := history.Open(history.DefaultPath("."))
	require.NoError(t, err)
	defer index.Close()

	path, err := NewWriter(".", index, nil).Write(loopRun())
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(path), path)

	entry, err := index.Get(loopRun().ID)
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(entry.ArtifactsDir), entry.ArtifactsDir)
	assert.FileExists(t, filepath.Join(entry.ArtifactsDir, MetaFile))
}

func TestReaders_EmptyDir(t *testing.T) {
	t.Parallel()

	_, err := ReadTranscript("")
	assert.ErrorIs(t, err, os.ErrNotExist)
	_, err = ReadLogs("")
	assert.ErrorIs(t, err, os.ErrNotExist)
	_, err = ReadMeta("")
	assert.ErrorIs(t, err, os.ErrNotExist)
}
