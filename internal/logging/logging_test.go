package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []Entry {
	t.Helper()
	var out []Entry
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var e Entry
		require.NoError(t, json.Unmarshal([]byte(line), &e), "line %q", line)
		out = append(out, e)
	}
	return out
}

func TestLogger_WritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Output: &buf, Level: LevelDebug, Component: "runner"})

	logger.Debug("probe")
	logger.Info("iteration finished", map[string]any{"iteration": 2, "backend": "codex"})
	logger.Error("backend failed")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 3)
	for _, e := range entries {
		assert.Equal(t, "runner", e.Component)
		assert.False(t, e.Timestamp.IsZero())
	}
	assert.Equal(t, LevelDebug, entries[0].Level)
	assert.Equal(t, "codex", entries[1].Fields["backend"])
	assert.Equal(t, float64(2), entries[1].Fields["iteration"])
	assert.Equal(t, LevelError, entries[2].Level)
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Output: &buf, Level: LevelWarn})

	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Warn("shown")
	logger.Error("shown")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, LevelWarn, entries[0].Level)

	logger.SetLevel(LevelDebug)
	logger.Debug("now shown")
	assert.Contains(t, buf.String(), "now shown")
}

func TestLogger_RunScope(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Output: &buf, Level: LevelInfo, Component: "jlgcli"})

	runLog := logger.WithRun("20260101-120000-ab12")
	runLog.Debug("below threshold")
	runLog.Info("run started")
	runLog.Warn("stagnating")
	logger.Info("unscoped")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 3)
	assert.Equal(t, "20260101-120000-ab12", entries[0].RunID)
	assert.Equal(t, "jlgcli", entries[0].Component)
	assert.Equal(t, LevelWarn, entries[1].Level)
	assert.Empty(t, entries[2].RunID)
}

func TestLogger_Query(t *testing.T) {
	logger := New(Config{Output: &bytes.Buffer{}, Level: LevelDebug, Component: "test"})

	logger.Debug("debug entry")
	logger.Info("info entry")
	runLog := logger.WithRun("run-1")
	runLog.Warn("run warning")
	runLog.Error("run error")
	logger.Error("general error")

	tests := []struct {
		name  string
		query Query
		want  []string
		total int
	}{
		{name: "all", query: Query{}, total: 5},
		{name: "min level", query: Query{Level: LevelWarn}, want: []string{"run warning", "run error", "general error"}, total: 3},
		{name: "run", query: Query{RunID: "run-1"}, want: []string{"run warning", "run error"}, total: 2},
		{name: "run and level", query: Query{RunID: "run-1", Level: LevelError}, want: []string{"run error"}, total: 1},
		{name: "limit keeps newest", query: Query{Limit: 2}, want: []string{"run error", "general error"}, total: 5},
		{name: "component mismatch", query: Query{Component: "other"}, want: []string{}, total: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := logger.Query(tt.query)
			assert.Equal(t, tt.total, res.Total)
			assert.Equal(t, int64(5), res.Counts.Total)
			if tt.want != nil {
				got := make([]string, 0, len(res.Entries))
				for _, e := range res.Entries {
					got = append(got, e.Message)
				}
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestLogger_QueryTimeWindow(t *testing.T) {
	logger := New(Config{Output: &bytes.Buffer{}})

	logger.Info("before")
	time.Sleep(10 * time.Millisecond)
	mid := time.Now().UTC()
	time.Sleep(10 * time.Millisecond)
	logger.Info("after 1")
	logger.Info("after 2")

	assert.Len(t, logger.Query(Query{Since: mid}).Entries, 2)
	assert.Len(t, logger.Query(Query{Until: mid}).Entries, 1)
}

func TestLogger_RingBufferAndClear(t *testing.T) {
	logger := New(Config{Output: &bytes.Buffer{}, MaxEntries: 3})

	for i := 1; i <= 5; i++ {
		logger.Info("entry", map[string]any{"n": i})
	}

	res := logger.Query(Query{})
	require.Len(t, res.Entries, 3)
	assert.Equal(t, 3, res.Entries[0].Fields["n"])
	assert.Equal(t, int64(5), logger.Stats().Info)

	logger.Clear()
	assert.Equal(t, int64(0), logger.Stats().Total)
	assert.Empty(t, logger.Query(Query{}).Entries)
}

func TestLogger_ConcurrentWrites(t *testing.T) {
	logger := New(Config{Output: &bytes.Buffer{}, Level: LevelDebug, MaxEntries: 50})

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			runLog := logger.WithRun("run")
			for j := 0; j < 50; j++ {
				runLog.Info("chunk", map[string]any{"goroutine": id})
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, int64(400), logger.Stats().Info)
	assert.Len(t, logger.Query(Query{}).Entries, 50)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LevelWarn, ParseLevel(" warn "))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))

	t.Setenv(LevelEnv, "error")
	assert.Equal(t, LevelError, LevelFromEnv(LevelInfo))

	t.Setenv(LevelEnv, "")
	assert.Equal(t, LevelDebug, LevelFromEnv(LevelDebug))
}

func TestNop(t *testing.T) {
	logger := Nop()
	logger.Error("dropped")
	logger.WithRun("x").Info("dropped")
	assert.Equal(t, int64(1), logger.Stats().Error)
}

func TestLevel_Text(t *testing.T) {
	var buf bytes.Buffer
	New(Config{Output: &buf, Level: LevelDebug}).Warn("x")
	assert.Contains(t, buf.String(), `"level":"warn"`)

	var l Level
	require.NoError(t, l.UnmarshalText([]byte("Error")))
	assert.Equal(t, LevelError, l)
	assert.Error(t, l.UnmarshalText([]byte("trace")))

	_, err := Level(0).MarshalText()
	assert.Error(t, err)
	assert.Equal(t, "info", LevelInfo.String())
}

func TestLogger_UnencodableField(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Output: &buf})

	logger.Info("odd", map[string]any{"ch": make(chan int)})

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Fields, "encode_error")
}
