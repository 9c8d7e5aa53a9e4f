package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Cache key patterns:
// - catalog:{channel}:{kind}:{page}:{size} - provider template/sender/category pages

// CatalogCache stores raw provider catalog pages.
type CatalogCache struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewCatalogCache(client *goredis.Client, ttl time.Duration) *CatalogCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CatalogCache{client: client, ttl: ttl}
}

// CatalogKey builds the cache key for one catalog page.
func CatalogKey(channel, kind string, pageNum, pageSize int) string {
	return fmt.Sprintf("catalog:%s:%s:%d:%d", channel, kind, pageNum, pageSize)
}

// Get returns (nil, false, nil) on a miss.
func (c *CatalogCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (c *CatalogCache) Set(ctx context.Context, key string, value []byte) error {
	return c.client.Set(ctx, key, value, c.ttl).Err()
}

// Invalidate drops every cached page of a channel.
func (c *CatalogCache) Invalidate(ctx context.Context, channel string) error {
	iter := c.client.Scan(ctx, 0, fmt.Sprintf("catalog:%s:*", channel), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}
