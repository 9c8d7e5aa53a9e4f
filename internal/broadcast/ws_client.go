package broadcast

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const wsReadTimeout = 90 * time.Second

// WSClient carries the same events as SSEClient over a websocket. Events are JSON text
// messages; heartbeats are ping frames.
type WSClient struct {
	sessionID string

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool

	once sync.Once
	done chan struct{}
}

func NewWSClient(conn *websocket.Conn, sessionID string) *WSClient {
	return &WSClient{
		sessionID: sessionID,
		conn:      conn,
		done:      make(chan struct{}),
	}
}

func (c *WSClient) SessionID() string { return c.sessionID }

func (c *WSClient) Send(ev Event, deadline time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}

	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	if ev.Heartbeat {
		return c.conn.WriteMessage(websocket.PingMessage, []byte("ping"))
	}
	msg, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, msg)
}

// ReadLoop drains inbound frames so pongs and close frames are processed. It returns, and
// closes the client, once the peer goes away.
func (c *WSClient) ReadLoop() {
	defer c.Close()
	_ = c.conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	}
}

func (c *WSClient) Close() {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		_ = c.conn.Close()
		c.mu.Unlock()
		close(c.done)
	})
}

func (c *WSClient) Done() <-chan struct{} { return c.done }
