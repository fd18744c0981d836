// Package httpstatus exposes /health, /ready, and /metrics over HTTP for
// an orchestrator process, the same three-endpoint shape the original
// cluster health server used, re-pointed at the pool and queue instead of
// a raft-backed manager.
package httpstatus

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/proactiva/planrunner/pkg/metrics"
	"github.com/proactiva/planrunner/pkg/pool"
	"github.com/proactiva/planrunner/pkg/queue"
)

// Server provides HTTP health, readiness, and metrics endpoints for an
// orchestrator.
type Server struct {
	pool  *pool.Pool
	queue *queue.Queue
	mux   *http.ServeMux

	mu     sync.Mutex
	server *http.Server
}

// New creates a Server bound to p and q.
func New(p *pool.Pool, q *queue.Queue) *Server {
	mux := http.NewServeMux()
	s := &Server{pool: p, queue: q, mux: mux}

	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/ready", s.readyHandler)
	mux.Handle("/metrics", metrics.Handler())

	return s
}

// Start runs the HTTP server on addr until it errors, or Shutdown is
// called. http.ErrServerClosed is returned on a clean Shutdown and is not
// an error the caller needs to act on.
func (s *Server) Start(addr string) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      s.mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.mu.Lock()
	s.server = server
	s.mu.Unlock()

	return server.ListenAndServe()
}

// Shutdown gracefully stops the running HTTP server, if Start has been
// called. It is a no-op otherwise.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	server := s.server
	s.mu.Unlock()

	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}

// Handler returns the HTTP handler for embedding in another server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// HealthResponse is the /health liveness payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyResponse is the /ready readiness payload.
type ReadyResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Timestamp: time.Now()})
}

// readyHandler reports ready only when the pool is initialized and has at
// least one non-ERROR workspace, and the queue is accepting submissions.
func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	checks := make(map[string]string)
	ready := true

	poolStatus := s.pool.GetStatus()
	if !poolStatus.Initialized {
		checks["pool"] = "not initialized"
		ready = false
	} else if poolStatus.Free+poolStatus.Busy == 0 {
		checks["pool"] = "no usable workspaces"
		ready = false
	} else {
		checks["pool"] = "ok"
	}

	queueStatus := s.queue.GetStatus()
	if queueStatus.Closed {
		checks["queue"] = "closed"
		ready = false
	} else {
		checks["queue"] = "ok"
	}

	status := "ready"
	statusCode := http.StatusOK
	if !ready {
		status = "not ready"
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, ReadyResponse{Status: status, Timestamp: time.Now(), Checks: checks})
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}
