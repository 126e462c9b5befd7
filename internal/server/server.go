// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes the citation audit over HTTP.
//
//	GET  /health       liveness check
//	POST /check        audit {"citations": [...]} and return the run
//	GET  /report.json  the most recent run
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pdiddy/citecheck/internal/audit"
	"github.com/pdiddy/citecheck/internal/citations"
	"github.com/pdiddy/citecheck/internal/report"
	"github.com/pdiddy/citecheck/pkg/types"
)

const maxBodyBytes = 8 << 20

// Server handles audit requests and remembers the last run.
type Server struct {
	auditor      *audit.Auditor
	maxCitations int

	mu   sync.Mutex
	last *types.RunResult
}

// New returns a server. Zero maxCitations removes the request limit.
func New(auditor *audit.Auditor, cfg types.ServerConfig) *Server {
	return &Server{auditor: auditor, maxCitations: cfg.MaxCitations}
}

// Routes returns a chi.Router with all handlers mounted.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/health", s.health)
	r.Post("/check", s.check)
	r.Get("/report.json", s.lastReport)
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.Printf("listening on %s", addr)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		log.Printf("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down: %w", err)
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// check audits the posted citations. An optional timeout query parameter
// (seconds) shortens the run budget for this request.
func (s *Server) check(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("reading body: %v", err))
		return
	}
	cs, err := citations.Parse(body, citations.FormatJSON)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("parsing citations: %v", err))
		return
	}
	if len(cs) == 0 {
		writeError(w, http.StatusBadRequest, "no citations")
		return
	}
	if s.maxCitations > 0 && len(cs) > s.maxCitations {
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("%d citations exceeds the limit of %d", len(cs), s.maxCitations))
		return
	}

	ctx := r.Context()
	if v := r.URL.Query().Get("timeout"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid timeout %q", v))
			return
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(secs)*time.Second)
		defer cancel()
	}

	run := s.auditor.Run(ctx, cs)
	log.Printf("request %s: run %s checked %d citations in %s (%d errors)",
		middleware.GetReqID(r.Context()), run.RunID, run.Summary.Total, run.Duration.Round(time.Millisecond), run.Summary.Errors)

	s.mu.Lock()
	s.last = &run
	s.mu.Unlock()

	if r.URL.Query().Get("format") == "table" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		report.FormatTable(run, w)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) lastReport(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	last := s.last
	s.mu.Unlock()
	if last == nil {
		writeError(w, http.StatusNotFound, "no run yet")
		return
	}
	writeJSON(w, http.StatusOK, last)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("warning: encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
