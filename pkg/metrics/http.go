package metrics

import (
	"context"
	"net/http"
	"time"
)

const (
	metricsReadHeaderTimeout = 5 * time.Second
	metricsReadTimeout       = 10 * time.Second
	metricsWriteTimeout      = 10 * time.Second
	metricsIdleTimeout       = 120 * time.Second
	metricsShutdownTimeout   = 5 * time.Second
)

func newHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: metricsReadHeaderTimeout,
		ReadTimeout:       metricsReadTimeout,
		WriteTimeout:      metricsWriteTimeout,
		IdleTimeout:       metricsIdleTimeout,
	}
}

// ServerConfig selects the endpoints a Server mounts.
type ServerConfig struct {
	// Collector defaults to Global().
	Collector        *Collector
	Version          string
	EnablePrometheus bool
	// EnableHealth mounts /health, /healthz and /readyz.
	EnableHealth bool
}

// Server exposes /metrics and the health probes of one vault.
type Server struct {
	mux    *http.ServeMux
	health *HealthCheck
}

func NewServer(cfg ServerConfig) *Server {
	if cfg.Collector == nil {
		cfg.Collector = Global()
	}
	s := &Server{mux: http.NewServeMux()}
	if cfg.EnablePrometheus {
		s.mux.Handle("GET /metrics", NewPrometheusExporter(cfg.Collector).Handler())
	}
	if cfg.EnableHealth {
		s.health = NewHealthCheck(cfg.Collector, cfg.Version)
		s.mux.Handle("GET /health", s.health.Handler())
		s.mux.Handle("GET /healthz", s.health.LivenessHandler())
		s.mux.Handle("GET /readyz", s.health.ReadinessHandler())
	}
	return s
}

func (s *Server) Handler() http.Handler { return s.mux }

// AddHealthCheck is a no-op when health endpoints are disabled.
func (s *Server) AddHealthCheck(name string, check CheckFunc) {
	if s.health != nil {
		s.health.AddCheck(name, check)
	}
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	return serve(ctx, newHTTPServer(addr, s.mux))
}
