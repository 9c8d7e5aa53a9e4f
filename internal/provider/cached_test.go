package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"crm-messaging/internal/domain/automation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	failGet bool
}

func (m *memoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet {
		return nil, false, errors.New("redis down")
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memoryCache) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

type countingCatalog struct {
	templateCalls int
}

func (c *countingCatalog) Channel() automation.Channel { return automation.ChannelAlimtalk }

func (c *countingCatalog) Send(context.Context, Message) (SendResult, error) {
	return SendResult{OK: true}, nil
}

func (c *countingCatalog) ListTemplates(context.Context, Page) (ListResult[Template], error) {
	c.templateCalls++
	return ListResult[Template]{Items: []Template{{Code: "T1"}}, TotalCount: 1}, nil
}

func (c *countingCatalog) ListSenders(context.Context, Page) (ListResult[SenderProfile], error) {
	return ListResult[SenderProfile]{}, nil
}

func (c *countingCatalog) ListCategories(context.Context, Page) (ListResult[Category], error) {
	return ListResult[Category]{}, nil
}

func testKey(channel, kind string, pageNum, pageSize int) string {
	return fmt.Sprintf("%s:%s:%d:%d", channel, kind, pageNum, pageSize)
}

func TestCachedClient_ServesSecondReadFromCache(t *testing.T) {
	inner := &countingCatalog{}
	cache := &memoryCache{data: map[string][]byte{}}
	client := NewCachedClient(inner, cache, testKey, nil)

	for i := 0; i < 2; i++ {
		res, err := client.ListTemplates(context.Background(), Page{})
		require.NoError(t, err)
		assert.Equal(t, "T1", res.Items[0].Code)
	}
	assert.Equal(t, 1, inner.templateCalls)
	assert.Contains(t, cache.data, "alimtalk:templates:1:15")
}

func TestCachedClient_FallsBackWhenCacheFails(t *testing.T) {
	inner := &countingCatalog{}
	client := NewCachedClient(inner, &memoryCache{data: map[string][]byte{}, failGet: true}, testKey, nil)

	_, err := client.ListTemplates(context.Background(), Page{})
	require.NoError(t, err)
	_, err = client.ListTemplates(context.Background(), Page{})
	require.NoError(t, err)
	assert.Equal(t, 2, inner.templateCalls)
}

func TestRegistry_UnknownChannel(t *testing.T) {
	reg := NewRegistry(&countingCatalog{})

	_, err := reg.Sender(automation.ChannelEmail)
	assert.Error(t, err)

	s, err := reg.Sender(automation.ChannelAlimtalk)
	require.NoError(t, err)
	assert.Equal(t, automation.ChannelAlimtalk, s.Channel())
}
