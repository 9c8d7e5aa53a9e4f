package httpdto

import (
	"crm-messaging/internal/domain/automation"
	"crm-messaging/internal/domain/record"

	"github.com/google/uuid"
)

type TemplateLinkRequest struct {
	Channel          automation.Channel           `json:"channel" binding:"required"`
	TemplateRef      string                       `json:"template_ref" binding:"required"`
	Subject          string                       `json:"subject"`
	Content          string                       `json:"content"`
	RecipientField   string                       `json:"recipient_field" binding:"required"`
	VariableMappings []automation.VariableMapping `json:"variable_mappings"`
	TriggerType      automation.TriggerType       `json:"trigger_type" binding:"required"`
	TriggerEvents    []record.EventKind           `json:"trigger_events"`
	TriggerCondition *automation.ConditionSpec    `json:"trigger_condition"`
	ScheduleConfig   *automation.ScheduleConfig   `json:"schedule_config"`
	RepeatConfig     *automation.RepeatConfig     `json:"repeat_config"`
	// IsActive defaults to true when omitted.
	IsActive *bool `json:"is_active"`
}

func (r TemplateLinkRequest) ToDomain() automation.TemplateLink {
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return automation.TemplateLink{
		Channel:          r.Channel,
		TemplateRef:      r.TemplateRef,
		Subject:          r.Subject,
		Content:          r.Content,
		RecipientField:   r.RecipientField,
		VariableMappings: r.VariableMappings,
		TriggerType:      r.TriggerType,
		TriggerEvents:    r.TriggerEvents,
		TriggerCondition: r.TriggerCondition,
		ScheduleConfig:   r.ScheduleConfig,
		RepeatConfig:     r.RepeatConfig,
		IsActive:         active,
	}
}

type ManualSendRequest struct {
	RecordIDs []uuid.UUID `json:"record_ids" binding:"required,min=1,max=500"`
}

type TemplateTokensRequest struct {
	Subject          string                       `json:"subject"`
	Content          string                       `json:"content"`
	VariableMappings []automation.VariableMapping `json:"variable_mappings"`
}
