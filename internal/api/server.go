// Package api exposes the HTTP status interface for a harvest run.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/autorag/harvester/internal/metrics"
	"github.com/autorag/harvester/internal/progress/sinks"
)

// Server wires HTTP handlers to the run's progress state. It is read-only:
// runs start from the CLI, not over HTTP.
type Server struct {
	router chi.Router
	latest *sinks.Latest
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes. The latest sink
// feeds the run endpoint.
func NewServer(latest *sinks.Latest, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{latest: latest, logger: logger}

	r := chi.NewRouter()
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(metrics.Middleware)
	r.Use(s.recoverMiddleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/v1/run", s.getRun)

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// runResponse is the public shape of the latest progress observation.
type runResponse struct {
	RunID      string    `json:"run_id"`
	JobID      string    `json:"job_id,omitempty"`
	Stage      string    `json:"stage"`
	Status     string    `json:"status,omitempty"`
	Completed  int       `json:"completed"`
	Total      int       `json:"total"`
	Note       string    `json:"note,omitempty"`
	ObservedAt time.Time `json:"observed_at"`
}

func (s *Server) getRun(w http.ResponseWriter, _ *http.Request) {
	if s.latest == nil {
		s.writeError(w, http.StatusNotFound, "no run observed yet")
		return
	}
	evt, ok := s.latest.Snapshot()
	if !ok {
		s.writeError(w, http.StatusNotFound, "no run observed yet")
		return
	}
	s.writeJSON(w, http.StatusOK, runResponse{
		RunID:      evt.RunID,
		JobID:      evt.JobID,
		Stage:      string(evt.Stage),
		Status:     evt.Status,
		Completed:  evt.Completed,
		Total:      evt.Total,
		Note:       evt.Note,
		ObservedAt: evt.TS,
	})
}

type requestIDKey struct{}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// responseWriter captures the status code for the request log.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
