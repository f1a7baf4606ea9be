package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jlguenego/jlgcli/internal/runner"
)

func TestFormatDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0ms"},
		{850 * time.Millisecond, "850ms"},
		{time.Second, "1.0s"},
		{2500 * time.Millisecond, "2.5s"},
		{59900 * time.Millisecond, "59.9s"},
		{time.Minute, "1m"},
		{3*time.Minute + 12*time.Second, "3m 12s"},
		{3*time.Minute + 59600*time.Millisecond, "4m"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.in), tt.in.String())
	}
}

func TestStatusMessage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Completed", StatusMessage(runner.StatusDone))
	assert.Equal(t, "No progress detected", StatusMessage(runner.StatusNoProgress))
	assert.Equal(t, "weird", StatusMessage("weird"))
}

func TestHumanSummary(t *testing.T) {
	t.Parallel()

	res := runner.Result{
		Backend:    "codex",
		Status:     runner.StatusDone,
		Iterations: 2,
		Duration:   1500 * time.Millisecond,
		Summary:    "tests added",
	}

	lines := HumanSummary(res, true)
	require.Equal(t, rule, lines[0])
	require.Equal(t, rule, lines[len(lines)-1])
	body := strings.Join(lines, "\n")
	assert.Contains(t, body, "Backend    : codex")
	assert.Contains(t, body, "Iterations : 2")
	assert.Contains(t, body, "Duration   : 1.5s")
	assert.Contains(t, body, "Summary    : tests added")
	assert.NotContains(t, body, "Details")

	assert.NotContains(t, strings.Join(HumanSummary(res, false), "\n"), "Iterations")
}

func TestJSONSummary(t *testing.T) {
	t.Parallel()

	res := runner.Result{Backend: "copilot", Status: runner.StatusSuccess, Duration: 42 * time.Millisecond, Text: "hi"}

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, JSONSummary(res, false)))
	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, map[string]any{
		"backend":     "copilot",
		"status":      "success",
		"exit_code":   float64(0),
		"duration_ms": float64(42),
		"text":        "hi",
	}, got)

	looped := JSONSummary(runner.Result{Iterations: 0}, true)
	require.NotNil(t, looped.Iterations)
	assert.Zero(t, *looped.Iterations)
}

func TestIterationProgress(t *testing.T) {
	t.Parallel()

	e := runner.Entry{Iteration: 3, Response: "line one\nline two", Duration: 120 * time.Millisecond}
	assert.Equal(t, "[iter 3] line one line two (120ms)", IterationProgress(e))

	long := runner.Entry{Iteration: 1, Response: strings.Repeat("é", 80)}
	assert.Equal(t, "[iter 1] "+strings.Repeat("é", 60)+"... (0ms)", IterationProgress(long))
}

func TestPrinter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := NewPrinter(&buf, Normal)
	p.Printf(Minimal, "shown %d", 1)
	p.Printf(Debug, "hidden")
	p.Prompt("secret prompt")
	assert.Nil(t, p.Chunk())
	assert.Equal(t, "shown 1\n", buf.String())

	buf.Reset()
	p = NewPrinter(&buf, ParseLevel(9))
	assert.Equal(t, Debug, p.Level())
	p.Chunk()("partial")
	p.Prompt("the prompt")
	assert.True(t, strings.HasPrefix(buf.String(), "partial"+rule))
	assert.Contains(t, buf.String(), "the prompt")

	assert.Equal(t, Silent, ParseLevel(-1))
}
