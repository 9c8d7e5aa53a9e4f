// Package broadcast pushes record changes to the browser sessions watching a partition.
package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrHubInitialized = errors.New("broadcast hub already initialized")
	ErrClientClosed   = errors.New("stream client closed")
)

// Client is one open stream. Send must be safe to call from several goroutines and must give
// up at deadline.
type Client interface {
	SessionID() string
	Send(ev Event, deadline time.Time) error
	// Close releases the stream; it is idempotent and closes Done.
	Close()
	Done() <-chan struct{}
}

type Config struct {
	WriteTimeout      time.Duration
	HeartbeatInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	return c
}

// Hub is the process-wide registry of subscribers keyed by partition id.
type Hub struct {
	mu         sync.RWMutex
	partitions map[string]map[Client]struct{}

	cfg Config
	log *zap.Logger
}

var (
	defaultMu  sync.Mutex
	defaultHub *Hub
)

// Initialize builds the process hub once. A second call returns the existing hub together with
// ErrHubInitialized.
func Initialize(cfg Config, log *zap.Logger) (*Hub, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultHub != nil {
		return defaultHub, ErrHubInitialized
	}
	defaultHub = NewHub(cfg, log)
	return defaultHub, nil
}

// Default returns the hub built by Initialize, or nil.
func Default() *Hub {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultHub
}

// NewHub builds a standalone hub. Servers should use Initialize.
func NewHub(cfg Config, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		partitions: make(map[string]map[Client]struct{}),
		cfg:        cfg.withDefaults(),
		log:        log,
	}
}

func (h *Hub) HeartbeatInterval() time.Duration {
	return h.cfg.HeartbeatInterval
}

func (h *Hub) Subscribe(partitionID string, c Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.partitions[partitionID]
	if !ok {
		set = make(map[Client]struct{})
		h.partitions[partitionID] = set
	}
	set[c] = struct{}{}
}

// Unsubscribe removes the client and closes it. It reports whether the client was subscribed,
// so only the first of several concurrent callers sees true.
func (h *Hub) Unsubscribe(partitionID string, c Client) bool {
	h.mu.Lock()
	set, ok := h.partitions[partitionID]
	if ok {
		_, ok = set[c]
		delete(set, c)
		if len(set) == 0 {
			delete(h.partitions, partitionID)
		}
	}
	h.mu.Unlock()

	c.Close()
	return ok
}

// SubscriberCount returns the number of open streams on a partition.
func (h *Hub) SubscriberCount(partitionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.partitions[partitionID])
}

// PublishResult counts what happened to one publish.
type PublishResult struct {
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
	Excluded  int `json:"excluded"`
}

// Publish writes the event to every subscriber of the partition except the one whose session id
// equals excludeSessionID. Writes run concurrently with a per-write deadline; clients whose write
// fails are unsubscribed and the rest still receive the event.
func (h *Hub) Publish(ctx context.Context, partitionID, kind string, payload any, excludeSessionID string) (PublishResult, error) {
	var res PublishResult
	data, err := json.Marshal(payload)
	if err != nil {
		return res, fmt.Errorf("encode %s payload: %w", kind, err)
	}
	ev := Event{Kind: kind, Data: data}

	targets := h.snapshot(partitionID)
	if len(targets) == 0 {
		return res, nil
	}

	deadline := time.Now().Add(h.cfg.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed []Client
	)
	for _, c := range targets {
		if excludeSessionID != "" && c.SessionID() == excludeSessionID {
			res.Excluded++
			continue
		}
		wg.Add(1)
		go func(c Client) {
			defer wg.Done()
			if err := c.Send(ev, deadline); err != nil {
				mu.Lock()
				failed = append(failed, c)
				mu.Unlock()
				h.log.Warn("stream write failed",
					zap.String("partition_id", partitionID),
					zap.String("session_id", c.SessionID()),
					zap.String("event", kind),
					zap.Error(err),
				)
			}
		}(c)
	}
	wg.Wait()

	for _, c := range failed {
		h.Unsubscribe(partitionID, c)
	}
	res.Failed = len(failed)
	res.Delivered = len(targets) - res.Excluded - res.Failed
	return res, nil
}

// Heartbeat writes a keep-alive to one client and unsubscribes it when the write fails.
func (h *Hub) Heartbeat(partitionID string, c Client) error {
	if err := c.Send(HeartbeatEvent(), time.Now().Add(h.cfg.WriteTimeout)); err != nil {
		h.Unsubscribe(partitionID, c)
		return err
	}
	return nil
}

// Serve keeps a subscribed client alive until ctx ends or the client closes, sending a
// heartbeat every interval. The client is unsubscribed exactly once on the way out.
func (h *Hub) Serve(ctx context.Context, partitionID string, c Client) {
	h.Subscribe(partitionID, c)
	defer h.Unsubscribe(partitionID, c)

	ticker := time.NewTicker(h.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.Done():
			return
		case <-ticker.C:
			if err := h.Heartbeat(partitionID, c); err != nil {
				h.log.Debug("heartbeat failed",
					zap.String("partition_id", partitionID),
					zap.String("session_id", c.SessionID()),
					zap.Error(err),
				)
				return
			}
		}
	}
}

func (h *Hub) snapshot(partitionID string) []Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	set := h.partitions[partitionID]
	out := make([]Client, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}
