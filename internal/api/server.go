package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/alejandrogutier/claro-data-ai-sub003/internal/pkg/logger"
	"github.com/go-chi/chi/v5"
)

// Server wraps the HTTP listener with graceful shutdown.
type Server struct {
	server *http.Server
}

// NewServer binds the route tree to an address.
func NewServer(addr string, router *chi.Mux) *Server {
	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
	}
}

// Start blocks until the listener stops.
func (s *Server) Start() error {
	logger.Info("http_server_started", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info("http_server_stopping")
	return s.server.Shutdown(ctx)
}
