// Package httpapi serves a read-only JSON view of the project over
// HTTP: the descriptor, registered jobs, documents, pulses and the
// queue. Nothing here mutates state; writes stay with the CLI.
package httpapi

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stratalabs/strata/internal/core/ports/driving"
	"github.com/stratalabs/strata/internal/logger"
)

// Server exposes project state for dashboards and scripting.
type Server struct {
	mu       sync.Mutex
	projects driving.ProjectService
	jobs     driving.JobService
	queue    driving.QueueService
	server   *http.Server
	listener net.Listener
}

// New creates a server over the given services.
func New(projects driving.ProjectService, jobs driving.JobService, queue driving.QueueService) *Server {
	return &Server{
		projects: projects,
		jobs:     jobs,
		queue:    queue,
	}
}

// Handler returns the routed handler. Exported so tests can drive the
// API without a listener.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestLog)
	r.Route("/api", func(r chi.Router) {
		r.Get("/project", s.handleProject)
		r.Get("/jobs", s.handleJobs)
		r.Get("/jobs/{id}", s.handleJob)
		r.Get("/jobs/{id}/document", s.handleDocument)
		r.Get("/pulse", s.handlePulse)
		r.Get("/queue", s.handleQueue)
	})
	return r
}

// Start listens on addr and serves in the background. With a ":0"
// port the chosen address is available via Addr afterwards.
func (s *Server) Start(addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener

	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Warn("http server stopped: %v", err)
		}
	}()

	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down, waiting for in-flight requests.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// requestLog writes one verbose log line per request.
func requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("http %s %s (%s)", r.Method, r.URL.Path, time.Since(start))
	})
}
