package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"crm-messaging/config"
	"crm-messaging/internal/app"
	"crm-messaging/internal/automation"
	"crm-messaging/pkg/logger"

	"go.uber.org/zap"
)

// worker runs the automation queue sweep on a cron schedule for deployments without an
// external scheduler calling /internal/automation/sweep.
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := automation.NewRunner(c.Processor, cfg.Scheduler.CronSpec, 0, l.Named("runner"))
	if err := runner.Start(ctx); err != nil {
		l.Logger.Error("invalid sweep schedule", zap.String("spec", cfg.Scheduler.CronSpec), zap.Error(err))
		os.Exit(1)
	}
	l.Infof("Sweep worker running on %q", cfg.Scheduler.CronSpec)

	<-ctx.Done()
	l.Infof("Stopping sweep worker")
	runner.Stop()
}
