// internal/api/server.go
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	handlers "github.com/newthinker/fastquant/internal/api/handler/api"
	"github.com/newthinker/fastquant/internal/api/job"
	"github.com/newthinker/fastquant/internal/api/middleware"
	"github.com/newthinker/fastquant/internal/metrics"
	"github.com/newthinker/fastquant/internal/storage/result"
)

// Server represents the HTTP server for fastquant
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	mux        *http.ServeMux
	jobs       *job.Store
}

// Config holds server configuration
type Config struct {
	Host        string
	Port        int
	APIKey      string
	JobTTL      time.Duration
	MaxJobs     int
	JobTimeout  time.Duration
	MetricsPath string
}

// Dependencies holds the services the HTTP handlers call into.
type Dependencies struct {
	Runner  handlers.Runner
	Results result.Store
	Metrics *metrics.Registry
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, deps Dependencies, logger *zap.Logger) (*Server, error) {
	if deps.Runner == nil || deps.Results == nil {
		return nil, fmt.Errorf("runner and result store are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	mux := http.NewServeMux()
	s := &Server{
		logger: logger,
		mux:    mux,
		jobs:   job.NewStore(cfg.MaxJobs, cfg.JobTTL),
	}
	s.setupRoutes(cfg, deps)

	mws := []func(http.Handler) http.Handler{metrics.LoggingMiddleware(logger)}
	if deps.Metrics != nil {
		mws = append(mws, metrics.HTTPMiddleware(deps.Metrics))
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      middleware.Chain(mux, mws...),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(cfg Config, deps Dependencies) {
	backtests := handlers.NewBacktestHandler(s.jobs, deps.Runner, deps.Metrics, s.logger)
	backtests.SetTimeout(cfg.JobTimeout)
	results := handlers.NewResultsHandler(deps.Results)

	v1 := http.NewServeMux()
	v1.HandleFunc("POST /api/v1/backtests/batch", backtests.Batch)
	v1.HandleFunc("POST /api/v1/backtests/{strategy}", backtests.Create)
	v1.HandleFunc("GET /api/v1/jobs/{id}", backtests.GetJob)
	v1.HandleFunc("GET /api/v1/results", results.List)
	v1.HandleFunc("GET /api/v1/results/{id}", results.GetByID)

	var protected http.Handler = v1
	if cfg.APIKey != "" {
		protected = middleware.APIKeyAuth(cfg.APIKey)(v1)
	}
	s.mux.Handle("/api/v1/", protected)

	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	if deps.Metrics != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		s.mux.Handle("GET "+path, promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
