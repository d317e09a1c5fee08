package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Zwemvest/paradoxplazabot-sub000/internal/handler"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/middleware"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/service"
)

// Deps are the components the HTTP surface is built on.
type Deps struct {
	Events       handler.EventHandler
	Appeals      handler.AppealHandler
	Records      handler.RecordHandler
	Auth         handler.AuthHandler
	AuthService  service.AuthService
	WebhookToken string
	Gatherer     prometheus.Gatherer
}

type Server struct {
	router *gin.Engine
	http   *http.Server
	logger *zap.Logger
}

func NewServer(port string, deps Deps, logger *zap.Logger) *Server {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	s := &Server{
		router: router,
		http: &http.Server{
			Addr:              ":" + port,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
	s.setupRoutes(deps)
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes(deps Deps) {
	// Ping route for health check
	s.router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	// Platform gateway webhooks
	hooks := s.router.Group("/api/v1")
	hooks.Use(middleware.WebhookAuth(deps.WebhookToken, s.logger))
	{
		hooks.POST("/events/item-submitted", deps.Events.ItemSubmitted)
		hooks.POST("/events/comment-created", deps.Events.CommentCreated)
		hooks.POST("/appeals", deps.Appeals.Submit)
	}

	s.router.POST("/api/auth/login", deps.Auth.Login)

	// Admin routes
	admin := s.router.Group("/api/v1")
	admin.Use(middleware.AuthMiddleware(deps.AuthService, s.logger))
	{
		admin.GET("/items/:id/records", deps.Records.GetRecord)
		admin.POST("/sweep", deps.Records.Sweep)
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server starting", zap.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	s.logger.Info("Server stopped")
	return nil
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
