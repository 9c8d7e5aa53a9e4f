// Package app assembles the shared runtime of the api and worker binaries.
package app

import (
	"database/sql"
	"fmt"

	"crm-messaging/config"
	"crm-messaging/internal/automation"
	"crm-messaging/internal/provider"
	crmredis "crm-messaging/internal/redis"
	"crm-messaging/internal/repository"
	"crm-messaging/pkg/database"
	"crm-messaging/pkg/logger"

	goredis "github.com/redis/go-redis/v9"
)

type Container struct {
	Config *config.Config
	Logger *logger.Logger
	DB     *sql.DB
	Redis  *goredis.Client

	Links      repository.TemplateLinkRepository
	Queue      repository.QueueRepository
	SendLogs   repository.SendLogRepository
	Partitions repository.PartitionRepository
	Records    repository.RecordRepository

	Providers *provider.Registry
	Processor *automation.Processor
}

// New connects to Postgres and Redis and builds repositories, provider adapters and the queue
// processor.
func New(cfg *config.Config, l *logger.Logger) (*Container, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, err
	}

	crmredis.Initialize(crmredis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	rdb := crmredis.GetClient()

	c := &Container{
		Config:     cfg,
		Logger:     l,
		DB:         db,
		Redis:      rdb,
		Links:      repository.NewTemplateLinkRepository(db),
		Queue:      repository.NewQueueRepository(db),
		SendLogs:   repository.NewSendLogRepository(db),
		Partitions: repository.NewPartitionRepository(db),
		Records:    repository.NewRecordRepository(db),
	}
	c.Providers = newProviders(cfg, rdb, l)
	c.Processor = automation.NewProcessor(
		c.Queue, c.SendLogs, c.Links, c.Records, c.Providers,
		l.Named("sweep"),
		automation.WithBatchSize(cfg.Scheduler.BatchSize),
		automation.WithStaleAfter(cfg.Scheduler.StaleAfter),
	)
	return c, nil
}

func newProviders(cfg *config.Config, rdb *goredis.Client, l *logger.Logger) *provider.Registry {
	cache := crmredis.NewCatalogCache(rdb, cfg.Limits.CatalogCacheTTL)
	log := l.Named("provider")

	alimtalk := provider.NewAlimtalkClient(provider.AlimtalkConfig{
		BaseURL:    cfg.Alimtalk.BaseURL,
		AppKey:     cfg.Alimtalk.AppKey,
		SecretKey:  cfg.Alimtalk.SecretKey,
		SenderKey:  cfg.Alimtalk.SenderKey,
		RatePerSec: cfg.Alimtalk.RatePerSec,
		Timeout:    cfg.Alimtalk.Timeout,
	}, log)
	email := provider.NewEmailClient(provider.EmailConfig{
		BaseURL:       cfg.Email.BaseURL,
		AppKey:        cfg.Email.AppKey,
		SecretKey:     cfg.Email.SecretKey,
		SenderAddress: cfg.Email.SenderAddress,
		RatePerSec:    cfg.Email.RatePerSec,
		Timeout:       cfg.Email.Timeout,
	}, log)

	return provider.NewRegistry(
		provider.NewCachedClient(alimtalk, cache, crmredis.CatalogKey, log),
		provider.NewCachedClient(email, cache, crmredis.CatalogKey, log),
	)
}

func (c *Container) Close() error {
	var firstErr error
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			firstErr = err
		}
	}
	if err := database.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close database: %w", err)
	}
	return firstErr
}
