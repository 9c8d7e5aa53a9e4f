package handler

import (
	"net/http"
	"strings"

	"crm-messaging/internal/broadcast"
	"crm-messaging/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// StreamHandler opens the record-change streams of a partition.
type StreamHandler struct {
	hub      *broadcast.Hub
	access   PartitionAccess
	upgrader websocket.Upgrader
}

func NewStreamHandler(hub *broadcast.Hub, access PartitionAccess, allowedOrigins []string) *StreamHandler {
	return &StreamHandler{
		hub:    hub,
		access: access,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// SSE serves GET /v1/partitions/:id/stream as text/event-stream until the client leaves.
func (h *StreamHandler) SSE(c *gin.Context) {
	partitionID, ok := h.authorize(c)
	if !ok {
		return
	}
	if err := broadcast.PrepareSSE(c.Writer); err != nil {
		return
	}
	client := broadcast.NewSSEClient(c.Writer, sessionID(c))
	h.hub.Serve(c.Request.Context(), partitionID, client)
}

// WS is the websocket variant of SSE; events arrive as JSON text frames.
func (h *StreamHandler) WS(c *gin.Context) {
	partitionID, ok := h.authorize(c)
	if !ok {
		return
	}
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	client := broadcast.NewWSClient(conn, sessionID(c))
	go client.ReadLoop()
	h.hub.Serve(c.Request.Context(), partitionID, client)
}

func (h *StreamHandler) authorize(c *gin.Context) (string, bool) {
	org, ok := orgID(c)
	if !ok {
		return "", false
	}
	partitionID, ok := uuidParam(c, "id")
	if !ok {
		return "", false
	}
	if _, err := h.access.CanAccessPartition(c.Request.Context(), org, partitionID); err != nil {
		respondError(c, err)
		return "", false
	}
	return partitionID.String(), true
}

// sessionID identifies the stream so the session's own mutations can be left out of it.
func sessionID(c *gin.Context) string {
	if s := strings.TrimSpace(c.Query("session_id")); s != "" {
		return s
	}
	if s, ok := services.SessionIDFromContext(c.Request.Context()); ok && s != "" {
		return s
	}
	return uuid.NewString()
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(r *http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(o, "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
