package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crm-messaging/config"
	"crm-messaging/internal/handler"
	"crm-messaging/internal/middleware"
	"crm-messaging/internal/redis"
	"crm-messaging/internal/services"
	"crm-messaging/internal/transport/httpdto"
	"crm-messaging/pkg/database"
	"crm-messaging/pkg/logger"

	"github.com/gin-gonic/gin"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger

	// cancelling baseCtx ends open streams so Shutdown can drain them
	baseCtx    context.Context
	cancelBase context.CancelFunc
}

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

type Handlers struct {
	Records  *handler.RecordHandler
	Links    *handler.TemplateLinkHandler
	SendLogs *handler.SendLogHandler
	Catalog  *handler.CatalogHandler
	Streams  *handler.StreamHandler
	Sweep    *handler.SweepHandler
}

func New(cfg *config.Config, l *logger.Logger) *Server {
	if cfg.AppMode == ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.AppMode == TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	baseCtx, cancel := context.WithCancel(context.Background())
	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%s", cfg.AppPort),
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
			BaseContext:       func(net.Listener) context.Context { return baseCtx },
		},
		engine:     engine,
		config:     cfg,
		logger:     l,
		baseCtx:    baseCtx,
		cancelBase: cancel,
	}
}

// Engine exposes the router for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) SetupRoutes(h *Handlers, authService *services.AuthService, limiter *redis.RateLimiter) {
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})

	s.engine.GET("/health", func(c *gin.Context) {
		if err := database.HealthCheck(); err != nil {
			c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse(err.Error(), httpdto.CodeUnhealthy))
			return
		}
		if redis.IsInitialized() {
			if err := redis.Ping(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse(err.Error(), httpdto.CodeUnhealthy))
				return
			}
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"status": "healthy"}))
	})

	internal := s.engine.Group("/internal", middleware.CronSecretMiddleware(authService))
	{
		internal.POST("/automation/sweep", h.Sweep.Sweep)
	}

	v1 := s.engine.Group("/v1", middleware.AuthMiddleware(authService))
	{
		v1.POST("/records/events", h.Records.PostEvent)

		v1.POST("/partitions/:id/distribution/assign", h.Records.AssignDistribution)
		v1.GET("/partitions/:id/template-links", h.Links.List)
		v1.POST("/partitions/:id/template-links", middleware.RateLimitMiddleware(limiter), h.Links.Create)
		v1.GET("/partitions/:id/stream", h.Streams.SSE)
		v1.GET("/partitions/:id/ws", h.Streams.WS)

		v1.GET("/template-links/:id", h.Links.Get)
		v1.PUT("/template-links/:id", middleware.RateLimitMiddleware(limiter), h.Links.Update)
		v1.DELETE("/template-links/:id", middleware.RateLimitMiddleware(limiter), h.Links.Delete)
		v1.POST("/template-links/:id/send", h.Links.Send)
		v1.POST("/templates/tokens", h.Links.Tokens)

		v1.GET("/send-logs", middleware.RateLimitMiddleware(limiter), h.SendLogs.List)
		v1.GET("/send-logs/stats", h.SendLogs.Stats)
		v1.POST("/send-logs/export", middleware.RateLimitMiddleware(limiter), h.SendLogs.Export)
		v1.GET("/send-logs/:id", h.SendLogs.Get)

		v1.GET("/providers/:channel/:kind", middleware.RateLimitMiddleware(limiter), h.Catalog.List)
	}
}

// Start serves until SIGINT or SIGTERM, then shuts down gracefully.
func (s *Server) Start() error {
	errCh := make(chan error, 1)
	go func() {
		if s.logger != nil {
			s.logger.Infof("Starting the server on port %s...", s.config.AppPort)
		}
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		if s.logger != nil {
			s.logger.Errorf("Error in starting the server: %s", err)
		}
		return err
	case <-quit:
	}

	if s.logger != nil {
		s.logger.Infof("Quitting signal received.. Shutting down")
	}
	return s.Shutdown(10 * time.Second)
}

func (s *Server) Shutdown(timeout time.Duration) error {
	s.cancelBase()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		if s.logger != nil {
			s.logger.Errorf("Error in the graceful shutdown of the server: %s", err)
		}
		return err
	}
	if s.logger != nil {
		s.logger.Infof("Server stopped gracefully")
	}
	return nil
}
