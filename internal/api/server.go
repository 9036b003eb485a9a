// Package api provides the HTTP API server and handlers for the labeling server.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sentilabel/sentilabel-server/internal/metrics"
	"github.com/sentilabel/sentilabel-server/internal/store"
)

// Options configures the HTTP surface.
type Options struct {
	Version     string
	CORSOrigins []string
	// Metrics enables /metrics and request instrumentation when set.
	Metrics *metrics.Metrics
	// AuthRateLimiter limits the auth endpoints; nil uses 20 per minute, burst 10.
	AuthRateLimiter *RateLimiter
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	store           store.Store
	services        *Services
	router          *chi.Mux
	api             huma.API
	metrics         *metrics.Metrics
	authRateLimiter *RateLimiter
	logger          *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(st store.Store, services *Services, opts Options, logger *slog.Logger) *Server {
	if opts.Version == "" {
		opts.Version = "dev"
	}
	limiter := opts.AuthRateLimiter
	if limiter == nil {
		limiter = NewRateLimiter(20, time.Minute, 10)
	}

	s := &Server{
		store:           st,
		services:        services,
		router:          chi.NewRouter(),
		metrics:         opts.Metrics,
		authRateLimiter: limiter,
		logger:          logger,
	}

	s.setupMiddleware(opts)

	humaConfig := huma.DefaultConfig("Sentilabel API", opts.Version)
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "PASETO",
		},
	}
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)

	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler(logger)

	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API returns the huma API, for tests and OpenAPI export.
func (s *Server) API() huma.API {
	return s.api
}

// Close releases background resources.
func (s *Server) Close() {
	s.authRateLimiter.Stop()
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware(opts Options) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	if s.metrics != nil {
		s.router.Use(s.metrics.HTTP.Middleware)
	}
	s.router.Use(corsMiddleware(opts.CORSOrigins))
	s.router.Use(RateLimitMiddleware(s.authRateLimiter, authPathPrefix, s.logger))
	s.router.Use(authMiddleware(s.services.Auth))
}

// setupRoutes registers every operation.
func (s *Server) setupRoutes() {
	s.registerHealthRoutes()
	s.registerAuthRoutes()
	s.registerUserRoutes()
	s.registerDatasetRoutes()
	s.registerSessionRoutes()
	s.registerExportRoutes()
	s.registerSentimentRoutes()
	s.registerAdminRoutes()

	// Raw routes stream bodies huma would buffer.
	s.router.Post("/api/v1/datasets/upload", s.handleUploadDataset)
	s.router.Get("/api/v1/datasets/{id}/export", s.handleExportDataset)

	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler())
	}
}
