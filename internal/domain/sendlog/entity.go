package sendlog

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// Synthetic result codes recorded when no provider response exists.
const (
	CodeTransportError = "E_TRANSPORT"
	CodeStaleClaim     = "E_STALE_CLAIM"
	CodeRenderError    = "E_RENDER"
	CodeNoChannel      = "E_CHANNEL"
)

// SendLog is the per-attempt audit row. Only Status, ProviderResultCode, ProviderMessage and SentAt
// change, and only once, from pending to a terminal status.
type SendLog struct {
	ID                 uuid.UUID     `json:"id"`
	OrgID              uuid.UUID     `json:"org_id"`
	PartitionID        uuid.UUID     `json:"partition_id"`
	TemplateLinkID     uuid.UUID     `json:"template_link_id"`
	RecordID           uuid.UUID     `json:"record_id"`
	QueueEntryID       uuid.NullUUID `json:"queue_entry_id"`
	OccurrenceIndex    int           `json:"occurrence_index"`
	Channel            string        `json:"channel"`
	Recipient          string        `json:"recipient"`
	Status             Status        `json:"status"`
	ProviderResultCode string        `json:"provider_result_code"`
	ProviderMessage    string        `json:"provider_message"`
	SentAt             *time.Time    `json:"sent_at,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
}

func (s Status) Terminal() bool {
	return s == StatusSent || s == StatusFailed
}

// Filter narrows send log listings. Zero values mean "any".
type Filter struct {
	OrgID          uuid.UUID
	PartitionID    uuid.NullUUID
	TemplateLinkID uuid.NullUUID
	RecordID       uuid.NullUUID
	Channel        string
	Status         Status
	From           *time.Time
	To             *time.Time
	Page           int
	PageSize       int
}

// Normalize clamps paging the same way every listing endpoint does.
func (f *Filter) Normalize() {
	if f.PageSize < 1 {
		f.PageSize = 20
	}
	if f.PageSize > 100 {
		f.PageSize = 100
	}
	if f.Page < 1 {
		f.Page = 1
	}
}

// StatRow is one aggregate bucket of the send log.
type StatRow struct {
	Channel string `json:"channel"`
	Status  Status `json:"status"`
	Count   int64  `json:"count"`
}

// Stats summarizes send outcomes over a window.
type Stats struct {
	Total  int64     `json:"total"`
	Sent   int64     `json:"sent"`
	Failed int64     `json:"failed"`
	Rows   []StatRow `json:"rows"`
}

// Summarize folds per-bucket rows into totals.
func Summarize(rows []StatRow) Stats {
	st := Stats{Rows: rows}
	for _, r := range rows {
		st.Total += r.Count
		switch r.Status {
		case StatusSent:
			st.Sent += r.Count
		case StatusFailed:
			st.Failed += r.Count
		}
	}
	return st
}
