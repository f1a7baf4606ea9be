// Package server exposes recorded runs and the in-memory log over a
// read-only HTTP API.
package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jlguenego/jlgcli/internal/api"
	"github.com/jlguenego/jlgcli/internal/artifacts"
	"github.com/jlguenego/jlgcli/internal/backend"
	"github.com/jlguenego/jlgcli/internal/history"
	"github.com/jlguenego/jlgcli/internal/logging"
)

// DefaultAddr is the listen address of `jlgcli serve`.
const DefaultAddr = "127.0.0.1:8787"

const (
	defaultLogLimit = 100
	maxLogLimit     = 1000
	shutdownTimeout = 5 * time.Second
)

// Config holds the server dependencies.
type Config struct {
	Root     string // working directory whose runs are served
	Version  string
	Registry *backend.Registry
	History  *history.Store // nil disables the /api/runs endpoints
	Log      *logging.Logger
}

// Server serves run history.
type Server struct {
	cfg       Config
	log       *logging.Logger
	startTime time.Time
}

// New creates a server.
func New(cfg Config) *Server {
	if cfg.Log == nil {
		cfg.Log = logging.Nop()
	}
	if cfg.Registry == nil {
		cfg.Registry = backend.NewRegistry()
	}
	return &Server{cfg: cfg, log: cfg.Log, startTime: time.Now()}
}

// Router returns the HTTP router
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)

	r.Get("/status", s.handleStatus)

	r.Route("/api", func(r chi.Router) {
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
		r.Get("/runs/{id}/transcript", s.handleTranscript)
		r.Get("/runs/{id}/logs", s.handleRunLogs)

		r.Get("/logs", s.handleLogs)
		r.Get("/logs/stats", s.handleLogStats)
	})

	return r
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server starting", map[string]any{"addr": addr, "root": s.cfg.Root})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.log.Info("server stopping")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Info("request", map[string]any{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
	})
}

// handleStatus describes the server and the registered backends. With
// ?check=true each backend is probed.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	check := r.URL.Query().Get("check") == "true"

	resp := api.StatusResponse{
		Version:       s.cfg.Version,
		UptimeSeconds: time.Since(s.startTime).Seconds(),
		Root:          s.cfg.Root,
		Backends:      []api.BackendStatus{},
	}
	if s.cfg.History != nil {
		resp.HistoryPath = s.cfg.History.Path()
	}
	for _, info := range s.cfg.Registry.Describe() {
		bs := api.BackendStatus{Info: info}
		if check {
			if a, ok := s.cfg.Registry.Resolve(string(info.ID)); ok {
				av := a.IsAvailable(r.Context())
				bs.Availability = &av
			}
		}
		resp.Backends = append(resp.Backends, bs)
	}

	api.WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) requireHistory(w http.ResponseWriter) bool {
	if s.cfg.History == nil {
		api.WriteError(w, http.StatusServiceUnavailable, api.ErrHistoryUnavailable, "History storage not configured")
		return false
	}
	return true
}

// handleListRuns returns indexed runs, newest first.
// Query params: page, limit, status, digest.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if !s.requireHistory(w) {
		return
	}

	q := r.URL.Query()
	page, err := api.IntParam(q, "page", 1, 1_000_000, 1)
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, api.ErrBadRequest, err.Error())
		return
	}
	limit, err := api.IntParam(q, "limit", 1, history.MaxLimit, history.DefaultLimit)
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, api.ErrBadRequest, err.Error())
		return
	}

	result, err := s.cfg.History.List(history.ListOptions{
		Page:         page,
		Limit:        limit,
		Status:       q.Get("status"),
		PromptDigest: q.Get("digest"),
	})
	if err != nil {
		s.log.Error("listing runs failed", map[string]any{"error": err.Error()})
		api.WriteError(w, http.StatusInternalServerError, api.ErrInternal, err.Error())
		return
	}

	api.WriteJSON(w, http.StatusOK, result)
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*history.Entry, bool) {
	if !s.requireHistory(w) {
		return nil, false
	}
	id := chi.URLParam(r, "id")
	entry, err := s.cfg.History.Get(id)
	if errors.Is(err, history.ErrNotFound) {
		api.WriteError(w, http.StatusNotFound, api.ErrNotFound, err.Error())
		return nil, false
	}
	if err != nil {
		api.WriteError(w, http.StatusInternalServerError, api.ErrInternal, err.Error())
		return nil, false
	}
	return entry, true
}

// handleGetRun returns one run with its meta.json when still on disk.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.lookup(w, r)
	if !ok {
		return
	}

	detail := api.RunDetail{Entry: *entry}
	if entry.ArtifactsDir != "" {
		if meta, err := artifacts.ReadMeta(entry.ArtifactsDir); err == nil {
			detail.Meta = meta
		} else {
			s.log.Warn("run meta unreadable", map[string]any{"run_id": entry.ID, "error": err.Error()})
		}
	}

	api.WriteJSON(w, http.StatusOK, detail)
}

// readRunFile loads one file of a run directory, answering 404 when the run
// has no artifacts on disk.
func readRunFile[T any](s *Server, w http.ResponseWriter, entry *history.Entry, what string, read func(string) (T, error)) (T, bool) {
	v, err := read(entry.ArtifactsDir)
	if errors.Is(err, os.ErrNotExist) {
		api.WriteError(w, http.StatusNotFound, api.ErrNotFound, what+" for "+entry.ID+" not found")
		return v, false
	}
	if err != nil {
		s.log.Warn("run file unreadable", map[string]any{"run_id": entry.ID, "file": what, "error": err.Error()})
		api.WriteError(w, http.StatusInternalServerError, api.ErrInternal, err.Error())
		return v, false
	}
	return v, true
}

// handleTranscript returns the redacted transcript events of a run.
func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.lookup(w, r)
	if !ok {
		return
	}
	events, ok := readRunFile(s, w, entry, "transcript", artifacts.ReadTranscript)
	if !ok {
		return
	}
	api.WriteJSON(w, http.StatusOK, api.TranscriptResponse{RunID: entry.ID, Events: events})
}

// handleRunLogs returns the log entries persisted with a run. The in-memory
// log behind /api/logs only holds entries of this process.
func (s *Server) handleRunLogs(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.lookup(w, r)
	if !ok {
		return
	}
	entries, ok := readRunFile(s, w, entry, "logs", artifacts.ReadLogs)
	if !ok {
		return
	}
	api.WriteJSON(w, http.StatusOK, api.RunLogsResponse{RunID: entry.ID, Entries: entries})
}

// handleLogs returns log entries with optional filtering.
// Query params:
//   - level: minimum log level (debug, info, warn, error)
//   - run_id: filter by run ID
//   - since, until: RFC3339 timestamps
//   - limit: max entries to return (default 100)
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := logging.Query{RunID: q.Get("run_id")}

	if level := q.Get("level"); level != "" {
		query.Level = logging.ParseLevel(level)
	}

	var err error
	if query.Since, err = api.TimeParam(q, "since"); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.ErrBadRequest, err.Error())
		return
	}
	if query.Until, err = api.TimeParam(q, "until"); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.ErrBadRequest, err.Error())
		return
	}
	if query.Limit, err = api.IntParam(q, "limit", 1, maxLogLimit, defaultLogLimit); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.ErrBadRequest, err.Error())
		return
	}

	api.WriteJSON(w, http.StatusOK, s.log.Query(query))
}

// handleLogStats returns log statistics without entries.
func (s *Server) handleLogStats(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, s.log.Stats())
}
