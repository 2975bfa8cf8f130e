// Package server provides the HTTP admission API for the Themis engine.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"mercator-hq/themis/pkg/config"
)

// Server is the HTTP admission API server.
type Server struct {
	config     *config.ServerConfig
	handler    http.Handler
	httpServer *http.Server

	mu        sync.Mutex
	isRunning bool
}

// NewServer creates an admission API server around a prepared handler.
func NewServer(cfg *config.ServerConfig, handler http.Handler) *Server {
	return &Server{
		config:  cfg,
		handler: handler,
	}
}

// Start runs the server and blocks until ctx is cancelled or the listener
// fails. Shutdown is graceful, bounded by the configured shutdown timeout.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.httpServer = &http.Server{
		Addr:         s.config.ListenAddress,
		Handler:      s.handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		slog.Info("starting admission server", "address", s.config.ListenAddress)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		slog.Info("shutting down admission server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	}
}
