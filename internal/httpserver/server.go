// Package httpserver implements the exporter's HTTP surface: GET /metrics
// and GET|OPTIONS /health, both wrapped in request-id/trace-id middleware,
// wired onto a bare net/http.ServeMux.
package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nbari/pg-exporter/internal/collector"
	"github.com/nbari/pg-exporter/internal/log"
)

// Config carries the HTTP server's own settings plus the identity triple
// echoed in the /health response body and the X-App header.
type Config struct {
	Addr    string
	Name    string
	Version string
	Commit  string
}

// Server is the exporter's HTTP listener.
type Server struct {
	cfg      Config
	registry *collector.Registry
	server   *http.Server
}

// NewServer wires /metrics and /health against registry and returns a
// Server ready to Serve.
func NewServer(cfg Config, registry *collector.Registry) *Server {
	mux := http.NewServeMux()

	mux.Handle("/metrics", withMiddleware(cfg, metricsHandler(registry)))
	mux.Handle("/health", withMiddleware(cfg, healthHandler(cfg, registry)))

	return &Server{
		cfg:      cfg,
		registry: registry,
		server: &http.Server{
			Addr:         cfg.Addr,
			Handler:      mux,
			IdleTimeout:  10 * time.Second,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
	}
}

// Serve starts listening and serving requests; it blocks until the
// listener fails or Shutdown is called from another goroutine.
func (s *Server) Serve() error {
	log.Infof("listen on %s", s.server.Addr)

	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server, waiting for in-flight requests up
// to ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// withMiddleware applies the request-id/trace-id/X-App headers every
// response carries, then dispatches to next.
func withMiddleware(cfg Config, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", requestID)

		if traceID, ok := traceIDFromHeaders(r.Header); ok {
			w.Header().Set("X-Trace-Id", traceID)
		}

		w.Header().Set("X-App", cfg.Name+":"+cfg.Version+":"+shortCommit(cfg.Commit))

		next(w, r)
	})
}

// shortCommit truncates a commit hash to the conventional 7-character
// short form; shorter inputs (e.g. "dev", "") pass through unchanged.
func shortCommit(commit string) string {
	const shortLen = 7
	if len(commit) <= shortLen {
		return commit
	}
	return commit[:shortLen]
}
