// Package web serves resolved marker metadata over HTTP so tooling can
// inspect a running process without linking the engine.
package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/conduit-lang/marker/internal/web/cache"
)

// Config holds introspection server settings.
type Config struct {
	// Addr is the listen address, e.g. ":7423".
	Addr string

	// Logger receives request logs; nil falls back to a no-op logger.
	Logger *zap.Logger

	// Cache memoizes GET responses; nil disables response caching.
	Cache cache.Backend

	// CacheTTL bounds how long a cached response is served. Zero uses the
	// backend's default.
	CacheTTL time.Duration

	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ReadHeaderTimeout time.Duration
}

// DefaultConfig returns production-ready settings with an in-process
// response cache.
func DefaultConfig() Config {
	return Config{
		Addr:              ":7423",
		Cache:             cache.NewMemory(),
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Server is the marker introspection HTTP server.
type Server struct {
	config Config
	logger *zap.Logger
	cache  cache.Backend
	router chi.Router
	http   *http.Server
}

// New builds a server with its routes registered.
func New(config Config) *Server {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		config: config,
		logger: logger,
		cache:  config.Cache,
	}
	s.router = s.routes()
	s.http = &http.Server{
		Addr:              config.Addr,
		Handler:           s.router,
		ReadTimeout:       config.ReadTimeout,
		WriteTimeout:      config.WriteTimeout,
		IdleTimeout:       config.IdleTimeout,
		ReadHeaderTimeout: config.ReadHeaderTimeout,
	}
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(s.requestLogger)

	r.Get("/health", s.handleHealth)
	r.Get("/markers", s.cached(s.handleMarkerTypes))
	r.Get("/elements/{name}/markers", s.cached(s.handleElementMarkers))
	r.Get("/elements/{name}/markers/{type}", s.cached(s.handleElementMarker))

	return r
}

// Router exposes the handler for tests and embedding.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("introspection server listening", zap.String("addr", s.config.Addr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("introspection server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and closes the response cache.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.http.Shutdown(ctx)
	if s.cache != nil {
		if cerr := s.cache.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
