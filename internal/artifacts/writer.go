// Package artifacts persists finished runs under .jlgcli/runs/<id>/ with
// secrets redacted, and indexes them in the run history.
package artifacts

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jlguenego/jlgcli/internal/exitcode"
	"github.com/jlguenego/jlgcli/internal/history"
	"github.com/jlguenego/jlgcli/internal/logging"
	"github.com/jlguenego/jlgcli/internal/output"
	"github.com/jlguenego/jlgcli/internal/runner"
)

// File names inside a run directory.
const (
	MetaFile       = "meta.json"
	TranscriptFile = "transcript.ndjson"
	ResultFile     = "result.json"
	DiffFile       = "prompt.diff"
	LogsFile       = "logs.ndjson"
)

// NewRunID returns an identifier of the form YYYYMMDD-HHMMSS-xxxx.
func NewRunID(now time.Time) string {
	return now.Format("20060102-150405") + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:4]
}

// RunsDir returns the directory holding all runs of a working directory.
func RunsDir(dir string) string {
	return filepath.Join(dir, ".jlgcli", "runs")
}

// Meta is the content of meta.json.
type Meta struct {
	ID         string      `json:"id"`
	Backend    string      `json:"backend"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
	Options    MetaOptions `json:"options"`
}

// MetaOptions records how the run was invoked.
type MetaOptions struct {
	Command        string `json:"command"`
	Prompt         string `json:"prompt"`
	MaxIterations  int    `json:"max_iterations,omitempty"`
	TimeoutMs      int64  `json:"timeout_ms,omitempty"`
	CompletionMode string `json:"completion_mode,omitempty"`
}

// Event is one line of transcript.ndjson.
type Event struct {
	Timestamp  time.Time `json:"ts"`
	Type       string    `json:"type"` // prompt or response
	Iteration  int       `json:"iteration"`
	Content    string    `json:"content"`
	DurationMs *int64    `json:"duration_ms,omitempty"`
}

// Run is everything the writer needs about a finished run.
type Run struct {
	ID      string // generated when empty
	Command string // "run" or "loop"
	Prompt  string
	Options runner.Options
	Result  runner.Result
	Logs    []logging.Entry // entries tagged with the run ID
}

// Looped reports whether the run used the iterative command.
func (r Run) Looped() bool { return r.Command == "loop" }

// Writer stores runs below a working directory.
type Writer struct {
	dir      string
	index    *history.Store
	onRedact func(string)
}

// NewWriter creates a writer rooted at dir. index may be nil.
func NewWriter(dir string, index *history.Store, onRedact func(pattern string)) *Writer {
	return &Writer{dir: dir, index: index, onRedact: onRedact}
}

// Write persists the run and returns its directory. Failures map to exit
// code 73.
func (w *Writer) Write(run Run) (string, error) {
	if run.ID == "" {
		run.ID = NewRunID(run.Result.StartedAt)
	}
	root, err := filepath.Abs(RunsDir(w.dir))
	if err != nil {
		return "", exitcode.Wrap(exitcode.CantCreate, "artifacts write failed", err)
	}
	path := filepath.Join(root, run.ID)

	if err := w.write(path, run); err != nil {
		return "", exitcode.Wrap(exitcode.CantCreate, "artifacts write failed", err)
	}
	if w.index != nil {
		if err := w.index.Save(w.indexEntry(path, run)); err != nil {
			return "", exitcode.Wrap(exitcode.CantCreate, "artifacts index failed", err)
		}
	}
	return path, nil
}

func (w *Writer) redact(s string) string {
	return Redact(s, w.onRedact)
}

func (w *Writer) write(path string, run Run) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return err
	}

	res := run.Result
	opts := MetaOptions{
		Command:   run.Command,
		Prompt:    w.redact(run.Prompt),
		TimeoutMs: run.Options.Timeout.Milliseconds(),
	}
	if run.Looped() {
		opts.MaxIterations = run.Options.MaxIterations
		opts.CompletionMode = string(run.Options.Mode)
	}
	meta := Meta{
		ID:         run.ID,
		Backend:    res.Backend,
		StartedAt:  res.StartedAt.UTC(),
		FinishedAt: res.StartedAt.Add(res.Duration).UTC(),
		Options:    opts,
	}
	if err := writeJSONFile(filepath.Join(path, MetaFile), meta); err != nil {
		return err
	}

	if err := w.writeTranscript(filepath.Join(path, TranscriptFile), res.Transcript); err != nil {
		return err
	}

	summary := output.JSONSummary(res, run.Looped())
	summary.Text = w.redact(summary.Text)
	summary.Summary = w.redact(summary.Summary)
	summary.Details = w.redact(summary.Details)
	if err := writeJSONFile(filepath.Join(path, ResultFile), summary); err != nil {
		return err
	}

	if err := w.writeLogs(filepath.Join(path, LogsFile), run.Logs); err != nil {
		return err
	}

	if diff := transcriptDiff(res.Transcript); diff != "" {
		if err := os.WriteFile(filepath.Join(path, DiffFile), []byte(w.redact(diff)), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeTranscript(path string, transcript []runner.Entry) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, e := range transcript {
		ms := e.Duration.Milliseconds()
		events := []Event{
			{Timestamp: e.StartedAt.UTC(), Type: "prompt", Iteration: e.Iteration, Content: w.redact(e.Prompt)},
			{Timestamp: e.StartedAt.Add(e.Duration).UTC(), Type: "response", Iteration: e.Iteration, Content: w.redact(e.Response), DurationMs: &ms},
		}
		for _, ev := range events {
			if err := enc.Encode(ev); err != nil {
				return err
			}
		}
	}
	return f.Close()
}

// writeLogs stores one JSON line per entry, with the message and string
// fields redacted.
func (w *Writer) writeLogs(path string, entries []logging.Entry) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, e := range entries {
		e.Message = w.redact(e.Message)
		if e.Fields != nil {
			fields := make(map[string]any, len(e.Fields))
			for k, v := range e.Fields {
				if str, ok := v.(string); ok {
					v = w.redact(str)
				}
				fields[k] = v
			}
			e.Fields = fields
		}
		if err := enc.Encode(e); err != nil {
			e.Fields = map[string]any{"encode_error": err.Error()}
			if err := enc.Encode(e); err != nil {
				return fmt.Errorf("encoding log entry: %w", err)
			}
		}
	}
	return f.Close()
}

// transcriptDiff concatenates the diffs of every prompt rewrite.
func transcriptDiff(transcript []runner.Entry) string {
	var b strings.Builder
	for i := 1; i < len(transcript); i++ {
		prev, cur := transcript[i-1], transcript[i]
		if prev.Prompt == cur.Prompt {
			continue
		}
		b.WriteString(runner.PromptDiff(prev.Prompt, cur.Prompt, prev.Iteration, cur.Iteration))
	}
	return b.String()
}

func (w *Writer) indexEntry(path string, run Run) *history.Entry {
	res := run.Result
	return &history.Entry{
		ID:            run.ID,
		Command:       run.Command,
		Backend:       res.Backend,
		Status:        string(res.Status),
		ExitCode:      res.ExitCode,
		Iterations:    res.Iterations,
		DurationMs:    res.Duration.Milliseconds(),
		PromptDigest:  history.Digest(run.Prompt),
		PromptPreview: output.Preview(w.redact(run.Prompt), history.PreviewLength),
		Summary:       w.redact(res.Summary),
		StartedAt:     res.StartedAt,
		FinishedAt:    res.StartedAt.Add(res.Duration),
		ArtifactsDir:  path,
	}
}

func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// ReadTranscript loads the events of a run directory.
func ReadTranscript(runDir string) ([]Event, error) {
	return readNDJSON[Event](runDir, TranscriptFile)
}

// ReadLogs loads the log entries recorded for a run.
func ReadLogs(runDir string) ([]logging.Entry, error) {
	return readNDJSON[logging.Entry](runDir, LogsFile)
}

func readNDJSON[T any](runDir, name string) ([]T, error) {
	if runDir == "" {
		return nil, fmt.Errorf("%s: %w", name, os.ErrNotExist)
	}
	f, err := os.Open(filepath.Join(runDir, name))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := []T{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		var v T
		if err := json.Unmarshal(line, &v); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", name, err)
		}
		out = append(out, v)
	}
	return out, scanner.Err()
}

// ReadMeta loads meta.json of a run directory.
func ReadMeta(runDir string) (*Meta, error) {
	if runDir == "" {
		return nil, fmt.Errorf("%s: %w", MetaFile, os.ErrNotExist)
	}
	data, err := os.ReadFile(filepath.Join(runDir, MetaFile))
	if err != nil {
		return nil, err
	}
	var m Meta
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", MetaFile, err)
	}
	return &m, nil
}
