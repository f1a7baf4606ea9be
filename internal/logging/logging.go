// Package logging emits JSON lines and keeps the most recent entries in
// memory so they can be queried while the process runs.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// LevelEnv names the environment variable that sets the minimum level.
const LevelEnv = "JLGCLI_LOG_LEVEL"

const defaultMaxEntries = 1000

// Level is an ordered severity. The zero value means "unset".
type Level int8

const (
	LevelDebug Level = iota + 1
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{
	LevelDebug: "debug",
	LevelInfo:  "info",
	LevelWarn:  "warn",
	LevelError: "error",
}

func (l Level) valid() bool {
	return l >= LevelDebug && l <= LevelError
}

func (l Level) String() string {
	if !l.valid() {
		return fmt.Sprintf("level(%d)", int8(l))
	}
	return levelNames[l]
}

func (l Level) MarshalText() ([]byte, error) {
	if !l.valid() {
		return nil, fmt.Errorf("invalid log level %d", int8(l))
	}
	return []byte(levelNames[l]), nil
}

func (l *Level) UnmarshalText(text []byte) error {
	name := strings.ToLower(strings.TrimSpace(string(text)))
	for lv := LevelDebug; lv <= LevelError; lv++ {
		if levelNames[lv] == name {
			*l = lv
			return nil
		}
	}
	return fmt.Errorf("unknown log level %q", text)
}

// ParseLevel maps a level name to a Level. Unknown names yield info.
func ParseLevel(s string) Level {
	var l Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return LevelInfo
	}
	return l
}

// LevelFromEnv returns the level set in JLGCLI_LOG_LEVEL, or fallback.
func LevelFromEnv(fallback Level) Level {
	if v := os.Getenv(LevelEnv); v != "" {
		return ParseLevel(v)
	}
	return fallback
}

// Entry is one log record.
type Entry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     Level          `json:"level"`
	Message   string         `json:"message"`
	Component string         `json:"component,omitempty"`
	RunID     string         `json:"run_id,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Config holds logger configuration.
type Config struct {
	Output     io.Writer // default: os.Stderr
	Level      Level     // default: info
	Component  string
	MaxEntries int // entries kept in memory, default 1000
}

// Logger writes entries to its output and retains the newest ones.
type Logger struct {
	mu        sync.RWMutex
	enc       *json.Encoder
	level     Level
	component string

	ring   []Entry
	next   int // slot for the next entry
	filled bool
	counts [LevelError + 1]int64
}

// New creates a logger.
func New(cfg Config) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	if !cfg.Level.valid() {
		cfg.Level = LevelInfo
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = defaultMaxEntries
	}
	return &Logger{
		enc:       json.NewEncoder(cfg.Output),
		level:     cfg.Level,
		component: cfg.Component,
		ring:      make([]Entry, cfg.MaxEntries),
	}
}

// Nop returns a logger that writes nowhere.
func Nop() *Logger {
	return New(Config{Output: io.Discard, Level: LevelError, MaxEntries: 1})
}

// SetLevel changes the minimum level.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	l.level = level
	l.mu.Unlock()
}

func (l *Logger) record(level Level, runID, msg string, fields []map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.level {
		return
	}

	e := Entry{
		Timestamp: time.Now().UTC(),
		Level:     level,
		Message:   msg,
		Component: l.component,
		RunID:     runID,
	}
	if len(fields) > 0 {
		e.Fields = fields[0]
	}

	l.counts[level]++
	l.ring[l.next] = e
	l.next = (l.next + 1) % len(l.ring)
	if l.next == 0 {
		l.filled = true
	}

	// A field that cannot be encoded must not take the caller down.
	if err := l.enc.Encode(e); err != nil {
		e.Fields = map[string]any{"encode_error": err.Error()}
		_ = l.enc.Encode(e)
	}
}

func (l *Logger) Debug(msg string, fields ...map[string]any) {
	l.record(LevelDebug, "", msg, fields)
}

func (l *Logger) Info(msg string, fields ...map[string]any) {
	l.record(LevelInfo, "", msg, fields)
}

func (l *Logger) Warn(msg string, fields ...map[string]any) {
	l.record(LevelWarn, "", msg, fields)
}

func (l *Logger) Error(msg string, fields ...map[string]any) {
	l.record(LevelError, "", msg, fields)
}

// WithRun returns a logger that tags every entry with a run ID.
func (l *Logger) WithRun(runID string) *RunLogger {
	return &RunLogger{l: l, runID: runID}
}

// RunLogger is a logger scoped to one orchestrated run.
type RunLogger struct {
	l     *Logger
	runID string
}

func (r *RunLogger) Debug(msg string, fields ...map[string]any) {
	r.l.record(LevelDebug, r.runID, msg, fields)
}

func (r *RunLogger) Info(msg string, fields ...map[string]any) {
	r.l.record(LevelInfo, r.runID, msg, fields)
}

func (r *RunLogger) Warn(msg string, fields ...map[string]any) {
	r.l.record(LevelWarn, r.runID, msg, fields)
}

func (r *RunLogger) Error(msg string, fields ...map[string]any) {
	r.l.record(LevelError, r.runID, msg, fields)
}

// Query filters retained entries. Zero fields do not filter.
type Query struct {
	Level     Level // minimum level
	RunID     string
	Since     time.Time
	Until     time.Time
	Limit     int // newest entries win
	Component string
}

func (q Query) match(e Entry) bool {
	switch {
	case e.Level < q.Level:
		return false
	case q.RunID != "" && e.RunID != q.RunID:
		return false
	case !q.Since.IsZero() && e.Timestamp.Before(q.Since):
		return false
	case !q.Until.IsZero() && e.Timestamp.After(q.Until):
		return false
	case q.Component != "" && e.Component != q.Component:
		return false
	}
	return true
}

// QueryResult holds matching entries, oldest first.
type QueryResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`  // matches before Limit was applied
	Counts  Stats   `json:"counts"` // everything logged since the last Clear
}

// Stats counts entries per level since the last Clear.
type Stats struct {
	Debug int64 `json:"debug"`
	Info  int64 `json:"info"`
	Warn  int64 `json:"warn"`
	Error int64 `json:"error"`
	Total int64 `json:"total"`
}

func (l *Logger) statsLocked() Stats {
	s := Stats{
		Debug: l.counts[LevelDebug],
		Info:  l.counts[LevelInfo],
		Warn:  l.counts[LevelWarn],
		Error: l.counts[LevelError],
	}
	s.Total = s.Debug + s.Info + s.Warn + s.Error
	return s
}

// retainedLocked returns the ring contents in write order.
func (l *Logger) retainedLocked() []Entry {
	if !l.filled {
		return l.ring[:l.next]
	}
	out := make([]Entry, 0, len(l.ring))
	out = append(out, l.ring[l.next:]...)
	return append(out, l.ring[:l.next]...)
}

// Query returns retained entries matching q.
func (l *Logger) Query(q Query) QueryResult {
	l.mu.RLock()
	defer l.mu.RUnlock()

	matched := []Entry{}
	for _, e := range l.retainedLocked() {
		if q.match(e) {
			matched = append(matched, e)
		}
	}
	total := len(matched)
	if q.Limit > 0 && total > q.Limit {
		matched = matched[total-q.Limit:]
	}
	return QueryResult{Entries: matched, Total: total, Counts: l.statsLocked()}
}

// Stats returns the per-level counters.
func (l *Logger) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.statsLocked()
}

// Clear drops retained entries and resets the counters.
func (l *Logger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	clear(l.ring)
	l.next = 0
	l.filled = false
	l.counts = [LevelError + 1]int64{}
}
