// Package server is the HTTP transport in front of an application: a chi
// router carrying request IDs, panic recovery, access logging and metrics,
// plus operational endpoints, with the application handler mounted for
// every other path.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/conneroisu/ni/internal/logging"
	"github.com/conneroisu/ni/internal/metrics"
	"github.com/conneroisu/ni/internal/monitoring"
	"github.com/conneroisu/ni/internal/security"
)

// ShutdownTimeout bounds the graceful shutdown after Start's context ends.
const ShutdownTimeout = 30 * time.Second

// Options carries the optional collaborators of a Server.
type Options struct {
	Logger  logging.Logger
	Metrics *metrics.Metrics
	Health  *monitoring.HealthMonitor

	// Security headers are applied to every response when set
	Security *security.Config
}

// Server handles HTTP server lifecycle and route registration.
//
// httpServer is created by New; isShutdown and listener are guarded by
// serverMutex.
type Server struct {
	addr       string
	router     chi.Router
	httpServer *http.Server
	logger     logging.Logger

	serverMutex sync.RWMutex
	listener    net.Listener
	isShutdown  bool
}

// New creates a server listening on addr that serves app for every path
// not taken by /metrics or /healthz.
func New(addr string, app http.Handler, opts Options) *Server {
	if app == nil {
		panic("server: app handler cannot be nil")
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}

	s := &Server{
		addr:   addr,
		router: chi.NewRouter(),
		logger: opts.Logger.WithComponent("server"),
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	if opts.Security != nil {
		s.router.Use(security.Middleware(opts.Security))
	}
	if opts.Metrics != nil {
		s.router.Use(opts.Metrics.Middleware)
		s.router.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}
	if opts.Health != nil {
		s.router.Get("/healthz", opts.Health.HTTPHandler())
	}
	s.router.Handle("/*", app)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Handler returns the complete middleware chain and routes.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens and serves until ctx is cancelled, then shuts down
// gracefully. It returns nil after a clean shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.serverMutex.Lock()
	if s.isShutdown {
		s.serverMutex.Unlock()
		return errors.New("server: already shut down")
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.serverMutex.Unlock()
		return fmt.Errorf("server: listening on %s: %w", s.addr, err)
	}
	s.listener = ln
	s.serverMutex.Unlock()

	s.logger.Info(ctx, "Server listening", "addr", ln.Addr().String())

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server: %w", err)
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case err, ok := <-errChan:
		if !ok {
			return nil
		}
		return err
	}
}

// Shutdown stops the server, letting in-flight requests finish within
// ctx. It is idempotent.
func (s *Server) Shutdown(ctx context.Context) error {
	s.serverMutex.Lock()
	defer s.serverMutex.Unlock()

	if s.isShutdown {
		return nil
	}
	s.isShutdown = true

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}

	s.logger.Info(ctx, "Server stopped")
	return nil
}

// Addr returns the bound address once listening, else the configured one.
func (s *Server) Addr() string {
	s.serverMutex.RLock()
	defer s.serverMutex.RUnlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// IsShutdown reports whether Shutdown has run.
func (s *Server) IsShutdown() bool {
	s.serverMutex.RLock()
	defer s.serverMutex.RUnlock()
	return s.isShutdown
}
