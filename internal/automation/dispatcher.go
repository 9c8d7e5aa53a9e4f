package automation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crm-messaging/internal/domain/automation"
	"crm-messaging/internal/domain/record"
	"crm-messaging/internal/domain/sendlog"
	"crm-messaging/internal/repository"

	"go.uber.org/zap"
)

// ErrNoRecipient means the record has no value in the link's recipient field. It is a skip.
var ErrNoRecipient = errors.New("recipient field empty")

// Dispatcher performs synchronous sends for immediate and manual triggers. Each attempt first
// writes a pending send log and then settles it with the provider's answer.
type Dispatcher struct {
	logs    repository.SendLogRepository
	senders SenderResolver
	log     *zap.Logger
	clock   func() time.Time
}

func NewDispatcher(logs repository.SendLogRepository, senders SenderResolver, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		logs:    logs,
		senders: senders,
		log:     log,
		clock:   time.Now,
	}
}

// Dispatch sends one link to one record and returns the settled send log.
func (d *Dispatcher) Dispatch(ctx context.Context, link automation.TemplateLink, rec record.Record) (*sendlog.SendLog, error) {
	msg := BuildMessage(link, rec)
	if msg.Recipient == "" {
		return nil, ErrNoRecipient
	}

	entry := newSendLog(link, rec, msg.Recipient)
	entry.CreatedAt = d.clock().UTC()
	if err := d.logs.Create(ctx, nil, &entry); err != nil {
		return nil, fmt.Errorf("create send log: %w", err)
	}

	out := deliver(ctx, d.senders, link.Channel, msg, d.clock().UTC())
	// the attempt already happened; settle the row even if the request was cancelled meanwhile
	if err := d.logs.MarkResult(context.WithoutCancel(ctx), entry.ID, out.Status, out.Code, out.Message, out.SentAt); err != nil {
		d.log.Error("failed to settle send log",
			zap.String("send_log_id", entry.ID.String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("settle send log: %w", err)
	}
	entry.Status = out.Status
	entry.ProviderResultCode = out.Code
	entry.ProviderMessage = out.Message
	entry.SentAt = out.SentAt

	d.log.Info("message dispatched",
		zap.String("template_link_id", link.ID.String()),
		zap.String("record_id", rec.ID.String()),
		zap.String("channel", string(link.Channel)),
		zap.String("status", string(out.Status)),
		zap.String("result_code", out.Code),
	)
	return &entry, nil
}
