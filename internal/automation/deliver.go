package automation

import (
	"context"
	"time"

	"crm-messaging/internal/domain/automation"
	"crm-messaging/internal/domain/record"
	"crm-messaging/internal/domain/sendlog"
	"crm-messaging/internal/provider"
)

// SenderResolver looks up the adapter for a channel.
type SenderResolver interface {
	Sender(ch automation.Channel) (provider.Sender, error)
}

// outcome is what one delivery attempt turned into.
type outcome struct {
	Status  sendlog.Status
	Code    string
	Message string
	SentAt  *time.Time
}

// BuildMessage renders a link's subject and content against a record.
func BuildMessage(link automation.TemplateLink, rec record.Record) provider.Message {
	return provider.Message{
		Recipient:   Recipient(link, rec),
		TemplateRef: link.TemplateRef,
		Subject:     Render(link.Subject, link.VariableMappings, rec.Data),
		Content:     Render(link.Content, link.VariableMappings, rec.Data),
	}
}

// deliver sends msg and folds every failure mode into a terminal outcome.
func deliver(ctx context.Context, senders SenderResolver, ch automation.Channel, msg provider.Message, now time.Time) outcome {
	sender, err := senders.Sender(ch)
	if err != nil {
		return outcome{Status: sendlog.StatusFailed, Code: sendlog.CodeNoChannel, Message: err.Error()}
	}
	// adapters only return errors for transport failures
	res, err := sender.Send(ctx, msg)
	if err != nil {
		return outcome{Status: sendlog.StatusFailed, Code: sendlog.CodeTransportError, Message: err.Error()}
	}
	if !res.OK {
		return outcome{Status: sendlog.StatusFailed, Code: res.Code, Message: res.Message}
	}
	sentAt := now
	return outcome{Status: sendlog.StatusSent, Code: res.Code, Message: res.Message, SentAt: &sentAt}
}

func newSendLog(link automation.TemplateLink, rec record.Record, recipient string) sendlog.SendLog {
	return sendlog.SendLog{
		OrgID:          link.OrgID,
		PartitionID:    link.PartitionID,
		TemplateLinkID: link.ID,
		RecordID:       rec.ID,
		Channel:        string(link.Channel),
		Recipient:      recipient,
		Status:         sendlog.StatusPending,
	}
}
