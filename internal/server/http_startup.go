package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"resumegate/internal/observability"
)

// shutdownGrace bounds how long in-flight requests get once ctx is cancelled
const shutdownGrace = 30 * time.Second

// Start binds the configured address and serves until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	om, err := s.initializeObservability()
	if err != nil {
		return err
	}
	defer s.shutdownObservability(om)

	addr := net.JoinHostPort(s.Host, s.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server failed to listen on %s: %w", addr, err)
	}

	s.displayServerInfo()
	return s.Serve(ctx, listener, om)
}

// initializeObservability sets up observability components
func (s *Server) initializeObservability() (*observability.ObservabilityManager, error) {
	obsConfig := observability.GetObservabilityConfig(s.AppConfig, s.Version)
	obsConfig.Logger = s.Logger

	om, err := observability.NewObservabilityManager(obsConfig, s.AppConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}
	return om, nil
}

// shutdownObservability flushes telemetry with a short deadline
func (s *Server) shutdownObservability(om *observability.ObservabilityManager) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := om.Shutdown(ctx); err != nil {
		s.Logger.LogError(err, "Failed to shutdown observability")
	}
}

// Handler returns the instrumented request handler for all routes
func (s *Server) Handler(om *observability.ObservabilityManager) http.Handler {
	return om.HTTPMiddleware()(s.setupRoutes(om))
}

// newHTTPServer applies the configured timeouts around the route handler
func (s *Server) newHTTPServer(om *observability.ObservabilityManager) *http.Server {
	return &http.Server{
		Handler:           s.Handler(om),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.ReadTimeout,
		WriteTimeout:      s.WriteTimeout,
		IdleTimeout:       s.IdleTimeout,
	}
}

// Serve accepts connections on listener until ctx is cancelled, then drains
// in-flight requests. The listener is closed on return.
func (s *Server) Serve(ctx context.Context, listener net.Listener, om *observability.ObservabilityManager) error {
	httpServer := s.newHTTPServer(om)
	defer s.closeRateLimiter()

	serveErr := make(chan error, 1)
	go func() {
		s.Logger.Info("Starting HTTP server", "address", listener.Addr().String())
		serveErr <- httpServer.Serve(listener)
	}()

	select {
	case err := <-serveErr:
		if err == http.ErrServerClosed {
			return nil
		}
		return fmt.Errorf("server stopped unexpectedly: %w", err)
	case <-ctx.Done():
		s.Logger.Info("Shutdown requested, draining connections", "reason", context.Cause(ctx))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.Logger.LogError(err, "Graceful shutdown timed out, forcing close")
		return httpServer.Close()
	}

	s.Logger.Info("Server shutdown completed")
	return nil
}

// closeRateLimiter stops the limiter's background sweep
func (s *Server) closeRateLimiter() {
	if s.RateLimiter != nil {
		s.RateLimiter.Close()
	}
}
