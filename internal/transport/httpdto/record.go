package httpdto

import (
	"crm-messaging/internal/domain/record"

	"github.com/google/uuid"
)

// RecordEventRequest is posted by the record CRUD layer after a mutation commits.
type RecordEventRequest struct {
	RecordID    uuid.UUID        `json:"record_id" binding:"required"`
	PartitionID uuid.UUID        `json:"partition_id" binding:"required"`
	Data        map[string]any   `json:"data"`
	EventKind   record.EventKind `json:"event_kind" binding:"required"`
	SessionID   string           `json:"session_id"`
}

func (r RecordEventRequest) ToEvent(orgID uuid.UUID) record.MutationEvent {
	return record.MutationEvent{
		RecordID:    r.RecordID,
		PartitionID: r.PartitionID,
		OrgID:       orgID,
		Data:        r.Data,
		EventKind:   r.EventKind,
		SessionID:   r.SessionID,
	}
}

type AssignResponse struct {
	Assigned bool              `json:"assigned"`
	Order    int               `json:"order,omitempty"`
	Defaults map[string]string `json:"defaults,omitempty"`
}
