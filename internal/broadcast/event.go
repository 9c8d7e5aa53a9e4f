package broadcast

import (
	"bytes"
	"encoding/json"
)

// Event is one message pushed to a subscriber. Heartbeat events carry no data.
type Event struct {
	Kind      string          `json:"event"`
	Data      json.RawMessage `json:"data,omitempty"`
	Heartbeat bool            `json:"-"`
}

var heartbeatFrame = []byte(": heartbeat\n\n")

// HeartbeatEvent is the keep-alive written on every heartbeat tick.
func HeartbeatEvent() Event {
	return Event{Heartbeat: true}
}

// SSE encodes the event as a server-sent-events frame.
func (e Event) SSE() []byte {
	if e.Heartbeat {
		return heartbeatFrame
	}
	var buf bytes.Buffer
	buf.Grow(len(e.Kind) + len(e.Data) + 16)
	buf.WriteString("event: ")
	buf.WriteString(e.Kind)
	buf.WriteString("\ndata: ")
	buf.Write(e.Data)
	buf.WriteString("\n\n")
	return buf.Bytes()
}
