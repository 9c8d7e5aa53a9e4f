package provider

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
)

// PageCache is the byte store catalog pages are cached in.
type PageCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// CachedClient serves catalog reads from a PageCache and passes Send through untouched.
// Cache failures fall back to the provider.
type CachedClient struct {
	Client
	cache PageCache
	keyFn func(channel, kind string, pageNum, pageSize int) string
	log   *zap.Logger
}

func NewCachedClient(inner Client, cache PageCache, keyFn func(channel, kind string, pageNum, pageSize int) string, log *zap.Logger) *CachedClient {
	if log == nil {
		log = zap.NewNop()
	}
	return &CachedClient{Client: inner, cache: cache, keyFn: keyFn, log: log}
}

func (c *CachedClient) ListTemplates(ctx context.Context, page Page) (ListResult[Template], error) {
	return cachedList(ctx, c, "templates", page, c.Client.ListTemplates)
}

func (c *CachedClient) ListSenders(ctx context.Context, page Page) (ListResult[SenderProfile], error) {
	return cachedList(ctx, c, "senders", page, c.Client.ListSenders)
}

func (c *CachedClient) ListCategories(ctx context.Context, page Page) (ListResult[Category], error) {
	return cachedList(ctx, c, "categories", page, c.Client.ListCategories)
}

func cachedList[T any](ctx context.Context, c *CachedClient, kind string, page Page, load func(context.Context, Page) (ListResult[T], error)) (ListResult[T], error) {
	page = page.Normalize()
	key := c.keyFn(string(c.Channel()), kind, page.PageNum, page.PageSize)
	log := c.log.With(zap.String("channel", string(c.Channel())), zap.String("key", key))

	if raw, ok, err := c.cache.Get(ctx, key); err != nil {
		log.Warn("catalog cache read failed", zap.Error(err))
	} else if ok {
		var cached ListResult[T]
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
		log.Warn("catalog cache entry is corrupt")
	}

	result, err := load(ctx, page)
	if err != nil {
		return ListResult[T]{}, err
	}
	if raw, err := json.Marshal(result); err == nil {
		if err := c.cache.Set(ctx, key, raw); err != nil {
			log.Warn("catalog cache write failed", zap.Error(err))
		}
	}
	return result, nil
}

var _ Client = (*CachedClient)(nil)
var _ Client = (*AlimtalkClient)(nil)
var _ Client = (*EmailClient)(nil)
