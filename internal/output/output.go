// Package output renders run results and progress for the terminal.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jlguenego/jlgcli/internal/runner"
)

const (
	rule           = "────────────────────────────────────────"
	previewLength  = 60
	previewElision = "..."
)

// FormatDuration renders a duration for humans: 850ms, 2.5s, 3m, 3m 12s.
func FormatDuration(d time.Duration) string {
	ms := d.Milliseconds()
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	seconds := float64(ms) / 1000
	if seconds < 60 {
		return fmt.Sprintf("%.1fs", seconds)
	}
	minutes := ms / 60_000
	rest := (ms%60_000 + 500) / 1000
	if rest == 60 {
		minutes++
		rest = 0
	}
	if rest == 0 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dm %ds", minutes, rest)
}

var statusMessages = map[runner.Status]string{
	runner.StatusSuccess:                "Success",
	runner.StatusDone:                   "Completed",
	runner.StatusError:                  "Backend error",
	runner.StatusBackendMissing:         "Backend not found",
	runner.StatusBackendUnauthenticated: "Authentication required",
	runner.StatusBackendUnsupported:     "Backend not supported",
	runner.StatusBackendUnknown:         "Unknown backend",
	runner.StatusTimeout:                "Timeout exceeded",
	runner.StatusMaxIterations:          "Iteration limit reached",
	runner.StatusNoProgress:             "No progress detected",
	runner.StatusInvalidJSON:            "Invalid JSON",
}

// StatusMessage returns a human label for a status, or the status itself.
func StatusMessage(s runner.Status) string {
	if msg, ok := statusMessages[s]; ok {
		return msg
	}
	return string(s)
}

// HumanSummary returns the framed summary block. Iterations are shown for
// looped runs only.
func HumanSummary(res runner.Result, looped bool) []string {
	lines := []string{
		rule,
		"Backend    : " + res.Backend,
		"Status     : " + StatusMessage(res.Status),
	}
	if looped {
		lines = append(lines, fmt.Sprintf("Iterations : %d", res.Iterations))
	}
	lines = append(lines, "Duration   : "+FormatDuration(res.Duration))
	if res.Summary != "" {
		lines = append(lines, "Summary    : "+res.Summary)
	}
	if res.Details != "" {
		lines = append(lines, "Details    : "+res.Details)
	}
	return append(lines, rule)
}

// Summary is the machine-readable form of a result printed with --json.
type Summary struct {
	Backend    string `json:"backend"`
	Status     string `json:"status"`
	ExitCode   int    `json:"exit_code"`
	DurationMs int64  `json:"duration_ms"`
	Iterations *int   `json:"iterations,omitempty"`
	Text       string `json:"text"`
	Summary    string `json:"summary,omitempty"`
	Details    string `json:"details,omitempty"`
}

// JSONSummary builds the --json payload.
func JSONSummary(res runner.Result, looped bool) Summary {
	s := Summary{
		Backend:    res.Backend,
		Status:     string(res.Status),
		ExitCode:   res.ExitCode,
		DurationMs: res.Duration.Milliseconds(),
		Text:       res.Text,
		Summary:    res.Summary,
		Details:    res.Details,
	}
	if looped {
		n := res.Iterations
		s.Iterations = &n
	}
	return s
}

// WriteJSON writes v as indented JSON followed by a newline.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Preview flattens text to one line and truncates it.
func Preview(text string, max int) string {
	flat := strings.Join(strings.Fields(text), " ")
	runes := []rune(flat)
	if len(runes) <= max {
		return flat
	}
	return string(runes[:max]) + previewElision
}

// IterationProgress renders one transcript entry as a progress line.
func IterationProgress(e runner.Entry) string {
	return fmt.Sprintf("[iter %d] %s (%s)", e.Iteration, Preview(e.Response, previewLength), FormatDuration(e.Duration))
}
