// Package server assembles the HTTP surface of the webhook service:
// routing, the middleware stack, and the lifecycle of the underlying
// http.Server.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/existlabs/gptbridge/config"
	"github.com/existlabs/gptbridge/server/handlers"
	"github.com/existlabs/gptbridge/server/metrics"
	"github.com/existlabs/gptbridge/server/middleware"
)

// Router handles HTTP routing
type Router struct {
	router chi.Router
}

// NewRouter assembles the route table and middleware stack.
func NewRouter(webhook *handlers.WebhookHandler, m *metrics.Metrics, model string, logger *zap.Logger) *Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTimer)
	r.Use(middleware.PanicRecovery)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.PrometheusMetrics(m))

	// Telegram sends from its own infrastructure; the limiter only has
	// to shrug off stray or abusive traffic.
	limiter := middleware.NewRateLimiter(rate.Limit(10), 30)

	r.With(limiter.Handler).Post("/webhook/{token}", webhook.ServeHTTP)
	r.Get("/health", handlers.NewHealthHandler(model).ServeHTTP)
	r.Get("/status", handlers.NewStatusHandler(m).ServeHTTP)
	r.Method(http.MethodGet, "/metrics", m.Handler())

	return &Router{router: r}
}

// ServeHTTP implements http.Handler
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}

// Server represents the HTTP server
type Server struct {
	httpServer      *http.Server
	shutdownTimeout time.Duration
	logger          *zap.Logger
}

// NewServer creates a new server instance
func NewServer(cfg config.ServerConfig, handler http.Handler, logger *zap.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:           fmt.Sprintf(":%d", cfg.Port),
			Handler:        handler,
			ReadTimeout:    cfg.ReadTimeout,
			WriteTimeout:   cfg.WriteTimeout,
			MaxHeaderBytes: cfg.MaxHeaderBytes,
		},
		shutdownTimeout: cfg.ShutdownTimeout,
		logger:          logger,
	}
}

// Start starts the server and blocks until shutdown
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)

	go func() {
		s.logger.Info("Server started", zap.String("address", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		s.logger.Info("Shutting down server")
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error during server shutdown: %w", err)
		}
		return nil

	case err := <-errChan:
		return err
	}
}
