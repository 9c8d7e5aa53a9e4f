package broadcast

import (
	"errors"
	"net/http"
	"sync"
	"time"
)

// SSEClient writes events to an open text/event-stream response.
type SSEClient struct {
	sessionID string

	mu     sync.Mutex
	w      http.ResponseWriter
	rc     *http.ResponseController
	closed bool

	once sync.Once
	done chan struct{}
}

func NewSSEClient(w http.ResponseWriter, sessionID string) *SSEClient {
	return &SSEClient{
		sessionID: sessionID,
		w:         w,
		rc:        http.NewResponseController(w),
		done:      make(chan struct{}),
	}
}

// PrepareSSE writes the stream headers and flushes them so the browser opens the stream.
func PrepareSSE(w http.ResponseWriter) error {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	return http.NewResponseController(w).Flush()
}

func (c *SSEClient) SessionID() string { return c.sessionID }

func (c *SSEClient) Send(ev Event, deadline time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}

	if err := c.rc.SetWriteDeadline(deadline); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	if _, err := c.w.Write(ev.SSE()); err != nil {
		return err
	}
	if err := c.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return nil
}

// Close blocks until any in-flight write returns; after it the response writer is never touched.
func (c *SSEClient) Close() {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.done)
	})
}

func (c *SSEClient) Done() <-chan struct{} { return c.done }
