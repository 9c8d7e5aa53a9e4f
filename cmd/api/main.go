package main

import (
	"context"
	"errors"
	"log"
	"time"

	"crm-messaging/config"
	"crm-messaging/internal/app"
	"crm-messaging/internal/automation"
	"crm-messaging/internal/broadcast"
	"crm-messaging/internal/distribution"
	"crm-messaging/internal/handler"
	"crm-messaging/internal/proxy"
	crmredis "crm-messaging/internal/redis"
	"crm-messaging/internal/server"
	"crm-messaging/internal/services"
	"crm-messaging/internal/storage"
	"crm-messaging/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig()

	l := logger.New(cfg.LogMode)
	logger.SetGlobalLogger(l)
	defer l.Sync()

	c, err := app.New(cfg, l)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer c.Close()

	hub, err := broadcast.Initialize(broadcast.Config{
		WriteTimeout:      cfg.Stream.WriteTimeout,
		HeartbeatInterval: cfg.Stream.HeartbeatInterval,
	}, l.Named("broadcast"))
	if err != nil {
		log.Fatalf("Failed to initialize broadcast hub: %v", err)
	}

	limiter := crmredis.NewRateLimiter(c.Redis, crmredis.RateLimitConfig{
		ManualSendLimit:  cfg.Limits.ManualSendPerMinute,
		ManualSendWindow: time.Minute,
		APILimit:         cfg.Limits.APIPerMinute,
		APIWindow:        time.Minute,
	})

	var store services.ObjectStore
	s3Client, err := storage.NewClient(context.Background(), storage.S3Config{
		Region:     cfg.S3.Region,
		Bucket:     cfg.S3.Bucket,
		AccessKey:  cfg.S3.AccessKey,
		SecretKey:  cfg.S3.SecretKey,
		Endpoint:   cfg.S3.Endpoint,
		PresignTTL: cfg.S3.PresignTTL,
	})
	switch {
	case err == nil:
		store = s3Client
	case errors.Is(err, storage.ErrNotConfigured):
		l.Logger.Warn("object storage not configured, send log export disabled")
	default:
		log.Fatalf("Failed to initialize object storage: %v", err)
	}

	access := proxy.NewAccessControl(c.Partitions, c.Links)
	authService := services.NewAuthService(cfg.JWTSecret, cfg.Scheduler.CronSecretHash)
	automationService := services.NewAutomationService(services.AutomationDeps{
		Links:      c.Links,
		Queue:      c.Queue,
		Records:    c.Records,
		Dispatcher: automation.NewDispatcher(c.SendLogs, c.Providers, l.Named("dispatch")),
		Publisher:  hub,
		Limiter:    limiter,
		Access:     access,
		Log:        l.Named("automation"),
	})
	distributionService := services.NewDistributionService(distribution.NewAssigner(c.Partitions, l.Named("distribution")), access)
	sendLogService := services.NewSendLogService(c.SendLogs, store, l.Named("send_logs"))
	catalogService := services.NewCatalogService(c.Providers)

	srv := server.New(cfg, l)
	srv.SetupRoutes(&server.Handlers{
		Records:  handler.NewRecordHandler(automationService, distributionService),
		Links:    handler.NewTemplateLinkHandler(automationService),
		SendLogs: handler.NewSendLogHandler(sendLogService),
		Catalog:  handler.NewCatalogHandler(catalogService),
		Streams:  handler.NewStreamHandler(hub, access, cfg.Stream.AllowedOrigins),
		Sweep:    handler.NewSweepHandler(c.Processor),
	}, authService, limiter)

	if err := srv.Start(); err != nil {
		l.Logger.Error("server stopped with error", zap.Error(err))
	}
}
