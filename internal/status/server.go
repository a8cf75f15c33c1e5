package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/realpulse/bds-harvester/internal/listing"
)

// RunFunc executes one crawl over the given seeds. The server invokes it on
// its own goroutine and cancels its context on /api/stop.
type RunFunc func(ctx context.Context, seeds []string, filter *listing.FilterSpec) error

// StartRequest is the /api/start payload.
type StartRequest struct {
	URLs   []string           `json:"urls"`
	Filter listing.FilterSpec `json:"filter"`
}

// Server exposes the crawl control surface: status polling, start/stop, and
// the metrics endpoint. At most one crawl runs at a time.
type Server struct {
	router chi.Router
	sink   *Sink
	run    RunFunc
	logger *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewServer wires routes and middleware.
func NewServer(sink *Sink, run RunFunc, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	s := &Server{sink: sink, run: run, logger: logger}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))

	r.Get("/api/status", s.getStatus)
	r.Post("/api/start", s.startCrawl)
	r.Post("/api/stop", s.stopCrawl)
	r.Method(http.MethodGet, "/metrics",
		promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) getStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.sink.Snapshot())
}

func (s *Server) startCrawl(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.URLs) == 0 {
		writeError(w, http.StatusBadRequest, "at least one URL required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		writeError(w, http.StatusConflict, "a crawl is already running")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.sink.SetRunning(true)
	s.sink.SetProgress("starting crawl")

	go func() {
		err := s.run(ctx, req.URLs, &req.Filter)

		s.mu.Lock()
		s.cancel = nil
		s.mu.Unlock()
		cancel()

		s.sink.SetRunning(false)
		switch {
		case errors.Is(err, context.Canceled):
			s.sink.SetProgress("stopped")
		case err != nil:
			s.logger.Error("crawl finished with error", zap.Error(err))
			s.sink.SetLastError(err.Error())
			s.sink.SetProgress("failed")
		default:
			s.sink.SetProgress("done")
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) stopCrawl(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.sink.SetProgress("stopping")
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-ID", uuid.NewString())
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
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
					logger.Error("panic recovered", zap.Any("panic", rec))
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
