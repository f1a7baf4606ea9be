// Package history indexes finished runs in a SQLite database so they can be
// listed and inspected after the fact.
package history

import (
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by Get for an unknown run ID.
var ErrNotFound = errors.New("run not found in history")

// Store is the run index.
type Store struct {
	path string
	db   *sql.DB

	mu sync.Mutex // serializes writes
}

// Entry is one indexed run.
type Entry struct {
	ID            string    `json:"id"`
	Command       string    `json:"command"` // "run" or "loop"
	Backend       string    `json:"backend"`
	Status        string    `json:"status"`
	ExitCode      int       `json:"exit_code"`
	Iterations    int       `json:"iterations"`
	DurationMs    int64     `json:"duration_ms"`
	PromptDigest  string    `json:"prompt_digest"`
	PromptPreview string    `json:"prompt_preview"`
	Summary       string    `json:"summary,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	ArtifactsDir  string    `json:"artifacts_dir,omitempty"`
}

// ListOptions controls pagination and filtering for List.
type ListOptions struct {
	Page         int    // 1-indexed page number
	Limit        int    // Items per page (max 100)
	Status       string // optional exact status filter
	PromptDigest string // optional, groups runs of the same prompt
}

// ListResult contains paginated history entries.
type ListResult struct {
	Entries    []Entry `json:"entries"`
	Page       int     `json:"page"`
	Limit      int     `json:"limit"`
	Total      int     `json:"total"`
	TotalPages int     `json:"total_pages"`
}

// Retention limits
const (
	MaxEntries    = 500
	PreviewLength = 200
	DefaultLimit  = 20
	MaxLimit      = 100
)

// DefaultPath returns the index location for a working directory.
func DefaultPath(dir string) string {
	return filepath.Join(dir, ".jlgcli", "history.db")
}

// Digest returns a stable short hash of a prompt.
func Digest(prompt string) string {
	sum := blake2b.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:8])
}

// Open opens or creates the index at path.
func Open(path string) (*Store, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve history path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	db, err := sql.Open("sqlite", absPath)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{path: absPath, db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) ensureSchema() error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	command TEXT NOT NULL,
	backend TEXT NOT NULL,
	status TEXT NOT NULL,
	exit_code INTEGER NOT NULL,
	iterations INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	prompt_digest TEXT NOT NULL,
	prompt_preview TEXT NOT NULL,
	summary TEXT,
	started_at TEXT NOT NULL,
	finished_at TEXT NOT NULL,
	artifacts_dir TEXT
);

CREATE INDEX IF NOT EXISTS idx_runs_finished ON runs(finished_at);
CREATE INDEX IF NOT EXISTS idx_runs_digest ON runs(prompt_digest);
`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create history schema: %w", err)
	}
	return nil
}

// Save inserts or replaces an entry and prunes the oldest rows beyond
// MaxEntries.
func (s *Store) Save(e *Entry) error {
	if e.ID == "" {
		return errors.New("history entry has no id")
	}
	e.PromptPreview = truncate(e.PromptPreview, PreviewLength)

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT OR REPLACE INTO runs (id, command, backend, status, exit_code, iterations,
			duration_ms, prompt_digest, prompt_preview, summary, started_at, finished_at, artifacts_dir)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.Command, e.Backend, e.Status, e.ExitCode, e.Iterations,
		e.DurationMs, e.PromptDigest, e.PromptPreview, e.Summary,
		formatTime(e.StartedAt), formatTime(e.FinishedAt), e.ArtifactsDir)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	_, err = tx.Exec(`
		DELETE FROM runs WHERE id NOT IN (
			SELECT id FROM runs ORDER BY finished_at DESC, id DESC LIMIT ?
		)
	`, MaxEntries)
	if err != nil {
		return fmt.Errorf("prune runs: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

const selectColumns = `id, command, backend, status, exit_code, iterations, duration_ms,
	prompt_digest, prompt_preview, summary, started_at, finished_at, artifacts_dir`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var (
		e                 Entry
		summary, artDir   sql.NullString
		started, finished string
	)
	err := row.Scan(&e.ID, &e.Command, &e.Backend, &e.Status, &e.ExitCode, &e.Iterations,
		&e.DurationMs, &e.PromptDigest, &e.PromptPreview, &summary, &started, &finished, &artDir)
	if err != nil {
		return nil, err
	}
	e.Summary = summary.String
	e.ArtifactsDir = artDir.String
	e.StartedAt = parseTime(started)
	e.FinishedAt = parseTime(finished)
	return &e, nil
}

// Get retrieves a run by ID.
func (s *Store) Get(id string) (*Entry, error) {
	row := s.db.QueryRow("SELECT "+selectColumns+" FROM runs WHERE id = ?", id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	return e, nil
}

// List returns paginated history entries, newest first.
func (s *Store) List(opts ListOptions) (ListResult, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit < 1 {
		opts.Limit = DefaultLimit
	}
	if opts.Limit > MaxLimit {
		opts.Limit = MaxLimit
	}

	var (
		where []string
		args  []any
	)
	if opts.Status != "" {
		where = append(where, "status = ?")
		args = append(args, opts.Status)
	}
	if opts.PromptDigest != "" {
		where = append(where, "prompt_digest = ?")
		args = append(args, opts.PromptDigest)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM runs"+clause, args...).Scan(&total); err != nil {
		return ListResult{}, fmt.Errorf("count runs: %w", err)
	}

	rows, err := s.db.Query(
		"SELECT "+selectColumns+" FROM runs"+clause+" ORDER BY finished_at DESC, id DESC LIMIT ? OFFSET ?",
		append(args, opts.Limit, (opts.Page-1)*opts.Limit)...,
	)
	if err != nil {
		return ListResult{}, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return ListResult{}, fmt.Errorf("scan run: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return ListResult{}, fmt.Errorf("list runs: %w", err)
	}

	return ListResult{
		Entries:    entries,
		Page:       opts.Page,
		Limit:      opts.Limit,
		Total:      total,
		TotalPages: (total + opts.Limit - 1) / opts.Limit,
	}, nil
}

// timeLayout is fixed width so that text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
