// Package api provides the read-only review API over persisted runs.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/graaaaa/reconcile/internal/app"
)

// Server represents the HTTP API server.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux

	// Use case dependencies
	health   app.HealthUsecase
	runs     app.RunsUsecase
	analyses app.AnalysesUsecase
	stats    app.StatsUsecase

	// Auth configuration
	authEnabled  bool
	authUsername string
	authPassword string
	authFailures *AuthFailureLimiter

	rateLimiter *RateLimiter
	cors        *CORSConfig
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithRunsUsecase sets the runs use case.
func WithRunsUsecase(runs app.RunsUsecase) ServerOption {
	return func(s *Server) { s.runs = runs }
}

// WithAnalysesUsecase sets the analyses use case.
func WithAnalysesUsecase(analyses app.AnalysesUsecase) ServerOption {
	return func(s *Server) { s.analyses = analyses }
}

// WithStatsUsecase sets the stats use case.
func WithStatsUsecase(stats app.StatsUsecase) ServerOption {
	return func(s *Server) { s.stats = stats }
}

// WithBasicAuth enables HTTP Basic Auth. Repeated failures from one IP are
// locked out by afl when it is non-nil.
func WithBasicAuth(username, password string, afl *AuthFailureLimiter) ServerOption {
	return func(s *Server) {
		if username != "" && password != "" {
			s.authEnabled = true
			s.authUsername = username
			s.authPassword = password
			s.authFailures = afl
		}
	}
}

// WithRateLimiter applies per-IP rate limiting to every route.
func WithRateLimiter(rl *RateLimiter) ServerOption {
	return func(s *Server) { s.rateLimiter = rl }
}

// WithCORS allows cross-origin reads from the configured origins.
func WithCORS(cfg CORSConfig) ServerOption {
	return func(s *Server) { s.cors = &cfg }
}

// NewServer creates a new API server with the given dependencies.
func NewServer(addr string, health app.HealthUsecase, opts ...ServerOption) *Server {
	mux := http.NewServeMux()
	s := &Server{
		httpServer: &http.Server{
			Addr:              addr,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		mux:    mux,
		health: health,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerRoutes()
	s.httpServer.Handler = s.Handler()
	return s
}

// Handler returns the mux wrapped in the server-wide middleware.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	if s.cors != nil {
		h = corsMiddleware(*s.cors)(h)
	}
	if s.rateLimiter != nil {
		h = s.rateLimiter.Middleware(h)
	}
	return securityHeadersMiddleware(h)
}

// wrapAuth wraps a handler with auth middleware if auth is enabled.
func (s *Server) wrapAuth(h http.Handler) http.Handler {
	if !s.authEnabled {
		return h
	}
	return basicAuthMiddleware(s.authUsername, s.authPassword, s.authFailures)(h)
}

// registerRoutes sets up the API routes.
func (s *Server) registerRoutes() {
	// Health endpoint (no auth required)
	s.mux.HandleFunc("GET /api/v1/health", s.handleHealth)

	if s.runs != nil {
		s.mux.Handle("GET /api/v1/runs/latest", s.wrapAuth(http.HandlerFunc(s.handleLatestRun)))
		s.mux.Handle("GET /api/v1/runs/{id}", s.wrapAuth(http.HandlerFunc(s.handleGetRun)))
	}

	if s.analyses != nil {
		s.mux.Handle("GET /api/v1/analyses", s.wrapAuth(http.HandlerFunc(s.handleAnalyses)))
		s.mux.Handle("GET /api/v1/analyses/{insert_id}", s.wrapAuth(http.HandlerFunc(s.handleGetAnalysis)))
	}

	if s.stats != nil {
		s.mux.Handle("GET /api/v1/stats", s.wrapAuth(http.HandlerFunc(s.handleStats)))
	}
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	result, err := s.health.Handle(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "", err)
		return
	}
	status := http.StatusOK
	if result.Status != app.StatusOK {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, result)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the server address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}
