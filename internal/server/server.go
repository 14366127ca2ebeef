// Package server runs the HTTP listener and scheduler with graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Emmmmmmo/rivvy-create-llmstxt-sub000/internal/schedule"
)

// Server couples the HTTP listener with the cron scheduler so both stop
// together on shutdown.
type Server struct {
	port      int
	handler   http.Handler
	scheduler *schedule.Scheduler
	logger    *zap.Logger
}

// New builds a Server. scheduler may be nil when no site has a schedule.
func New(port int, handler http.Handler, scheduler *schedule.Scheduler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		port:      port,
		handler:   handler,
		scheduler: scheduler,
		logger:    logger,
	}
}

// Run starts the listener and scheduler and blocks until the context is
// canceled or a termination signal arrives.
func (s *Server) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if s.scheduler != nil {
		s.scheduler.Start()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server started", zap.Int("port", s.port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-errCh:
		runErr = fmt.Errorf("http server: %w", err)
	}
	s.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("server shutdown error", zap.Error(err))
	}
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	s.logger.Info("shutdown complete")
	return runErr
}
