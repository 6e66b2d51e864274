// Package server exposes the pipeline's operational HTTP surface
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"axial/internal/config"
	"axial/internal/logger"
	"axial/internal/pipeline"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Pipeline is the pipeline surface the server triggers and reports on
type Pipeline interface {
	RunSync(ctx context.Context) (pipeline.SyncResult, error)
	RunEnrichment(ctx context.Context) (int, error)
	RunDigest(ctx context.Context) (bool, error)
	Status(ctx context.Context) (*pipeline.Status, error)
	AIAvailable() bool
}

// Pinger checks database connectivity
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	pipeline   Pipeline
	db         Pinger
	metrics    http.Handler // Optional
	config     config.Server
	log        *slog.Logger
	now        func() time.Time
}

// New creates a new HTTP server instance. metrics may be nil.
func New(p Pipeline, db Pinger, metrics http.Handler, cfg config.Server) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		pipeline: p,
		db:       db,
		metrics:  metrics,
		config:   cfg,
		log:      logger.Get().With("component", "server"),
		now:      time.Now,
	}

	// Setup middleware
	s.setupMiddleware()

	// Setup routes
	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(securityHeaders)

	if len(s.config.AllowedOrigins) > 0 {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.config.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           300, // Maximum value not ignored by any major browsers
		}))
	}
}

// setupRoutes configures routes for the server
func (s *Server) setupRoutes() {
	s.router.With(middleware.Timeout(10 * time.Second)).Get("/health", s.handleHealth)

	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics)
	}

	s.router.Route("/api/pipeline", func(r chi.Router) {
		r.Use(noCache)

		// Stage runs are bounded by the pipeline's own stage timeout
		r.Post("/sync", s.handleSync)
		r.Post("/enrich", s.handleEnrich)
		r.Post("/digest", s.handleDigest)

		r.With(middleware.Timeout(30*time.Second)).Get("/status", s.handleStatus)
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info("Starting HTTP server", "addr", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed to start: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server gracefully...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.log.Info("HTTP server stopped")
	return nil
}

// Router returns the chi router instance (useful for testing)
func (s *Server) Router() *chi.Mux {
	return s.router
}
