package httpdto

import (
	"time"

	"crm-messaging/internal/domain/sendlog"

	"github.com/google/uuid"
)

// SendLogQuery is bound from the query string of send log listings and exports.
type SendLogQuery struct {
	PartitionID    string     `form:"partition_id" json:"partition_id"`
	TemplateLinkID string     `form:"template_link_id" json:"template_link_id"`
	RecordID       string     `form:"record_id" json:"record_id"`
	Channel        string     `form:"channel" json:"channel"`
	Status         string     `form:"status" json:"status"`
	From           *time.Time `form:"from" json:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To             *time.Time `form:"to" json:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	Page           int        `form:"page" json:"page"`
	PageSize       int        `form:"page_size" json:"page_size"`
}

// ToFilter validates the id filters and scopes the query to orgID.
func (q SendLogQuery) ToFilter(orgID uuid.UUID) (sendlog.Filter, error) {
	f := sendlog.Filter{
		OrgID:    orgID,
		Channel:  q.Channel,
		Status:   sendlog.Status(q.Status),
		From:     q.From,
		To:       q.To,
		Page:     q.Page,
		PageSize: q.PageSize,
	}
	var err error
	if f.PartitionID, err = optionalUUID(q.PartitionID); err != nil {
		return f, err
	}
	if f.TemplateLinkID, err = optionalUUID(q.TemplateLinkID); err != nil {
		return f, err
	}
	if f.RecordID, err = optionalUUID(q.RecordID); err != nil {
		return f, err
	}
	return f, nil
}

type StatsQuery struct {
	From time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To   time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
}

func optionalUUID(s string) (uuid.NullUUID, error) {
	if s == "" {
		return uuid.NullUUID{}, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.NullUUID{}, err
	}
	return uuid.NullUUID{UUID: id, Valid: true}, nil
}
