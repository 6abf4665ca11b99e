package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/cors"
)

// Server is the R4R analysis HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *slog.Logger
}

// ServerConfig holds all dependencies and configuration for creating a Server.
type ServerConfig struct {
	Analyzer Analyzer
	Searcher Searcher
	Store    Store
	Logger   *slog.Logger

	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Version      string

	// AllowedOrigins configures CORS for the browser frontend. Empty means
	// same-origin only.
	AllowedOrigins []string
}

// New creates a new HTTP server with all routes configured.
func New(cfg ServerConfig) *Server {
	h := NewHandlers(HandlersDeps{
		Analyzer: cfg.Analyzer,
		Searcher: cfg.Searcher,
		Store:    cfg.Store,
		Logger:   cfg.Logger,
		Version:  cfg.Version,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/analyze/{userkey}", h.HandleAnalyze)
	mux.HandleFunc("GET /v1/users/{userkey}/analysis", h.HandleGetAnalysis)
	mux.HandleFunc("GET /v1/users/{userkey}/graph", h.HandleGraph)
	mux.HandleFunc("GET /v1/leaderboard", h.HandleLeaderboard)
	mux.HandleFunc("GET /v1/leaderboard/export", h.HandleExportLeaderboard)
	mux.HandleFunc("GET /v1/search", h.HandleSearch)
	mux.HandleFunc("GET /health", h.HandleHealth)

	// Middleware chain (outermost executes first):
	// request ID → CORS → tracing → logging → recovery → handler.
	var handler http.Handler = mux
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(handler)
	if len(cfg.AllowedOrigins) > 0 {
		handler = cors.New(cors.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost},
			AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		}).Handler(handler)
	}
	handler = requestIDMiddleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		handler: handler,
		logger:  cfg.Logger,
	}
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins serving. Blocks until the server stops.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
