// Package api exposes the answer pipeline over HTTP.
//
// Endpoints:
//
//	GET    /health              liveness probe
//	GET    /ready               readiness probe (pings the database)
//	POST   /api/query           answer from cache and local documents
//	POST   /api/query/fallback  answer from general knowledge
//	GET    /api/learned         list learned answers
//	GET    /api/learned/stats   learned store statistics
//	DELETE /api/learned         delete one learned answer by question
//
// File structure:
//   - server.go: server setup and lifecycle
//   - middleware.go: recovery, request ID, logging
//   - health.go: liveness and readiness probes
//   - query.go: answer endpoints
//   - learned.go: learned-store administration
//   - response.go: JSON response helpers
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/omnidoc/omnidoc/internal/config"
)

const (
	// DefaultAddr is the default listen address, shared with the
	// configuration default so serve mode and bare Run agree.
	DefaultAddr = config.DefaultListenAddr

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout bounds header reads to prevent Slowloris-style
	// connection exhaustion.
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout is generous because answer generation sits on the
	// response path.
	WriteTimeout = 120 * time.Second

	// IdleTimeout is the keep-alive idle limit.
	IdleTimeout = 120 * time.Second
)

// Server is the HTTP server for the omnidoc REST API.
type Server struct {
	mux    *http.ServeMux
	logger *slog.Logger
}

// NewServer creates a server with all routes registered. pool may be
// nil, which degrades the readiness probe to 503.
func NewServer(engine AnswerEngine, store LearnedAdmin, pool *pgxpool.Pool, logger *slog.Logger) (*Server, error) {
	if engine == nil {
		return nil, fmt.Errorf("answer engine cannot be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("learned store cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	mux := http.NewServeMux()

	NewHealthHandler(pool, logger).RegisterRoutes(mux)
	NewQueryHandler(engine, logger).RegisterRoutes(mux)
	NewLearnedHandler(store, logger).RegisterRoutes(mux)

	return &Server{mux: mux, logger: logger}, nil
}

// Handler returns the mux wrapped in the middleware stack.
// Middleware order: recovery → request ID → logging → handler.
func (s *Server) Handler() http.Handler {
	return chain(s.mux,
		recoveryMiddleware(s.logger),
		requestIDMiddleware(),
		loggingMiddleware(s.logger),
	)
}

// Run starts the server and blocks until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
