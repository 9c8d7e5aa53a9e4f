package automation

import (
	"fmt"
	"time"

	"crm-messaging/internal/domain/record"

	"github.com/google/uuid"
)

// Channel is the outbound provider a template is sent through.
type Channel string

const (
	ChannelAlimtalk Channel = "alimtalk"
	ChannelEmail    Channel = "email"
)

func (c Channel) Valid() bool {
	return c == ChannelAlimtalk || c == ChannelEmail
}

// TriggerType decides when a template link fires.
type TriggerType string

const (
	TriggerImmediate TriggerType = "immediate"
	TriggerScheduled TriggerType = "scheduled"
	TriggerRepeat    TriggerType = "repeat"
	TriggerManual    TriggerType = "manual"
)

func (t TriggerType) Valid() bool {
	switch t {
	case TriggerImmediate, TriggerScheduled, TriggerRepeat, TriggerManual:
		return true
	}
	return false
}

// VariableMapping binds a template token (e.g. ##NAME##) to a record field.
type VariableMapping struct {
	Token string `json:"token"`
	Field string `json:"field"`
}

// ScheduleConfig computes the send time of a scheduled link.
// Without BaseField the offset is applied to the event time.
type ScheduleConfig struct {
	BaseField     string `json:"base_field,omitempty"`
	OffsetMinutes int    `json:"offset_minutes"`
}

// TemplateLink binds one partition to one channel template and a trigger policy.
type TemplateLink struct {
	ID               uuid.UUID          `json:"id"`
	OrgID            uuid.UUID          `json:"org_id"`
	PartitionID      uuid.UUID          `json:"partition_id"`
	Channel          Channel            `json:"channel"`
	TemplateRef      string             `json:"template_ref"`
	Subject          string             `json:"subject,omitempty"`
	Content          string             `json:"content"`
	RecipientField   string             `json:"recipient_field"`
	VariableMappings []VariableMapping  `json:"variable_mappings"`
	TriggerType      TriggerType        `json:"trigger_type"`
	TriggerEvents    []record.EventKind `json:"trigger_events,omitempty"`
	TriggerCondition *ConditionSpec     `json:"trigger_condition,omitempty"`
	ScheduleConfig   *ScheduleConfig    `json:"schedule_config,omitempty"`
	RepeatConfig     *RepeatConfig      `json:"repeat_config,omitempty"`
	IsActive         bool               `json:"is_active"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// Validate checks the structural invariants of a link before it is stored.
func (l *TemplateLink) Validate() error {
	if !l.Channel.Valid() {
		return fmt.Errorf("unknown channel %q", l.Channel)
	}
	if !l.TriggerType.Valid() {
		return fmt.Errorf("unknown trigger type %q", l.TriggerType)
	}
	if l.TemplateRef == "" {
		return fmt.Errorf("template_ref is required")
	}
	if l.RecipientField == "" {
		return fmt.Errorf("recipient_field is required")
	}
	seen := make(map[string]struct{}, len(l.VariableMappings))
	for _, m := range l.VariableMappings {
		if m.Token == "" || m.Field == "" {
			return fmt.Errorf("variable mapping requires token and field")
		}
		if _, dup := seen[m.Token]; dup {
			return fmt.Errorf("duplicate variable token %q", m.Token)
		}
		seen[m.Token] = struct{}{}
	}
	for _, ev := range l.TriggerEvents {
		if ev != record.EventCreate && ev != record.EventUpdate {
			return fmt.Errorf("trigger event %q is not supported", ev)
		}
	}
	if l.TriggerType == TriggerRepeat {
		if l.RepeatConfig == nil {
			return fmt.Errorf("repeat trigger requires repeat_config")
		}
		if err := l.RepeatConfig.Validate(); err != nil {
			return err
		}
	}
	if l.TriggerCondition != nil {
		if _, err := l.TriggerCondition.Compile(); err != nil {
			return fmt.Errorf("trigger_condition: %w", err)
		}
	}
	return nil
}

// ListensTo reports whether the link reacts to the given record event.
func (l *TemplateLink) ListensTo(kind record.EventKind) bool {
	if kind != record.EventCreate && kind != record.EventUpdate {
		return false
	}
	if len(l.TriggerEvents) == 0 {
		return true
	}
	for _, ev := range l.TriggerEvents {
		if ev == kind {
			return true
		}
	}
	return false
}

// MaxOccurrences is the length of the link's send chain; non-repeat links send once.
func (l *TemplateLink) MaxOccurrences() int {
	if l.TriggerType != TriggerRepeat || l.RepeatConfig == nil {
		return 1
	}
	return l.RepeatConfig.MaxOccurrences
}

// QueueStatus is the lifecycle state of an automation queue entry.
type QueueStatus string

const (
	QueuePending    QueueStatus = "pending"
	QueueProcessing QueueStatus = "processing"
	QueueDone       QueueStatus = "done"
	QueueCancelled  QueueStatus = "cancelled"
)

// Live reports whether the entry still holds its occurrence slot.
func (s QueueStatus) Live() bool {
	return s == QueuePending || s == QueueProcessing
}

// QueueEntry is one scheduled execution of a template link against a record.
type QueueEntry struct {
	ID              uuid.UUID   `json:"id"`
	TemplateLinkID  uuid.UUID   `json:"template_link_id"`
	RecordID        uuid.UUID   `json:"record_id"`
	ScheduledAt     time.Time   `json:"scheduled_at"`
	AttemptCount    int         `json:"attempt_count"`
	OccurrenceIndex int         `json:"occurrence_index"`
	Status          QueueStatus `json:"status"`
	LastError       string      `json:"last_error,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// NewQueueEntry builds a pending entry for the given occurrence.
func NewQueueEntry(linkID, recordID uuid.UUID, occurrence int, at time.Time) QueueEntry {
	now := time.Now().UTC()
	return QueueEntry{
		ID:              uuid.New(),
		TemplateLinkID:  linkID,
		RecordID:        recordID,
		ScheduledAt:     at.UTC(),
		OccurrenceIndex: occurrence,
		Status:          QueuePending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}
