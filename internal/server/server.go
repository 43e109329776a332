// Package server wires the router, middleware and handlers together and
// owns the HTTP listener lifecycle.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/code-sandbox/internal/broker"
	"github.com/sakif/code-sandbox/internal/handler"
	"github.com/sakif/code-sandbox/internal/middleware"
)

// Config holds server configuration.
type Config struct {
	Port int
	// MaxExecution is the longest configured language timeout. Write
	// deadlines and the shutdown grace period must outlast it.
	MaxExecution time.Duration
}

// responseHeadroom covers dispatch overhead and response serialization on
// top of the longest execution.
const responseHeadroom = 30 * time.Second

// writeTimeout is the response deadline: the longest execution plus
// headroom, never below two minutes.
func (c Config) writeTimeout() time.Duration {
	wt := c.MaxExecution + responseHeadroom
	if wt < 2*time.Minute {
		wt = 2 * time.Minute
	}
	return wt
}

// Server is the HTTP front of the execution broker.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
}

// New assembles the router. The broker is the only dependency; handlers
// never reach past it.
func New(cfg Config, b *broker.Broker, logger *slog.Logger) *Server {
	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
	}
	s.setupRoutes(b)
	return s
}

func (s *Server) setupRoutes(b *broker.Broker) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	executeHandler := handler.NewExecuteHandler(b, s.logger)
	capabilityHandler := handler.NewCapabilityHandler(b, s.logger)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/execute", executeHandler.HandleExecute)
		r.Get("/languages", capabilityHandler.HandleLanguages)
		r.Get("/examples", capabilityHandler.HandleExamples)
		r.Get("/health", capabilityHandler.HandleHealth)
	})
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the listener until SIGINT/SIGTERM, then shuts down gracefully.
// Write timeouts leave headroom for the longest configured execution.
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.config.writeTimeout(),
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", slog.Int("port", s.config.Port))
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		// In-flight executions get their full timeout before the
		// listener is torn down.
		ctx, cancel := context.WithTimeout(context.Background(), s.config.writeTimeout())
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
