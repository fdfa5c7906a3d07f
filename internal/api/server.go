// Package api exposes the operational HTTP surface: health, readiness,
// statistics, and Prometheus metrics. The scrape trigger API is deliberately
// not part of this server.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/leggilab/normascout/internal/metrics"
	"github.com/leggilab/normascout/internal/schedule"
	"github.com/leggilab/normascout/internal/scrape"
)

// Server wires the operational endpoints.
type Server struct {
	router   chi.Router
	stats    *scrape.Statistics
	registry *schedule.Registry
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes. The registry is
// optional; without one, /jobs returns an empty list.
func NewServer(stats *scrape.Statistics, registry *schedule.Registry, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{stats: stats, registry: registry, logger: logger}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(30 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Get("/stats", s.statistics)
	r.Get("/jobs", s.jobs)
	r.Handle("/metrics", metrics.Handler())

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	// Scheduling and statistics are in-memory; readiness equals liveness.
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) statistics(w http.ResponseWriter, _ *http.Request) {
	if s.stats == nil {
		writeJSON(w, http.StatusOK, scrape.StatisticsSnapshot{})
		return
	}
	writeJSON(w, http.StatusOK, s.stats.Snapshot())
}

type jobView struct {
	ID            string    `json:"id"`
	SourceID      string    `json:"source_id"`
	Status        string    `json:"status"`
	RetryCount    int       `json:"retry_count"`
	NextRun       time.Time `json:"next_run"`
	LastRunResult string    `json:"last_run_result,omitempty"`
}

func (s *Server) jobs(w http.ResponseWriter, _ *http.Request) {
	views := []jobView{}
	if s.registry != nil {
		for _, job := range s.registry.List() {
			views = append(views, jobView{
				ID:            job.ID,
				SourceID:      job.SourceID,
				Status:        string(job.Status),
				RetryCount:    job.RetryCount,
				NextRun:       job.NextRun,
				LastRunResult: job.LastRunResult,
			})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": views})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec))
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
