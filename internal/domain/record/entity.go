package record

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// EventKind is the record mutation that produced an event.
type EventKind string

const (
	EventCreate EventKind = "create"
	EventUpdate EventKind = "update"
	EventDelete EventKind = "delete"
)

func (k EventKind) Valid() bool {
	switch k {
	case EventCreate, EventUpdate, EventDelete:
		return true
	}
	return false
}

// Record is a row of partition data owned by the record CRUD layer.
type Record struct {
	ID          uuid.UUID      `json:"id"`
	OrgID       uuid.UUID      `json:"org_id"`
	PartitionID uuid.UUID      `json:"partition_id"`
	Data        map[string]any `json:"data"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// MutationEvent is emitted by the record CRUD layer after a write commits.
type MutationEvent struct {
	RecordID    uuid.UUID      `json:"record_id"`
	PartitionID uuid.UUID      `json:"partition_id"`
	OrgID       uuid.UUID      `json:"org_id"`
	Data        map[string]any `json:"data"`
	EventKind   EventKind      `json:"event_kind"`
	// SessionID identifies the browser session that caused the mutation.
	SessionID string `json:"session_id,omitempty"`
}

// Record converts the event into the record snapshot it describes.
func (e MutationEvent) Record() Record {
	return Record{
		ID:          e.RecordID,
		OrgID:       e.OrgID,
		PartitionID: e.PartitionID,
		Data:        e.Data,
	}
}

// Field returns the string form of data[field], or "" when the field is absent or null.
func (r Record) Field(field string) string {
	if r.Data == nil {
		return ""
	}
	return FormatValue(r.Data[field])
}

// FormatValue renders a decoded JSON value the way it should appear inside a message.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case json.Number:
		return val.String()
	case time.Time:
		return val.Format(time.RFC3339)
	case []any, map[string]any:
		raw, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(raw)
	default:
		return fmt.Sprint(val)
	}
}
