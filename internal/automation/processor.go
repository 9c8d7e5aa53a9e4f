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
	crm_errors "crm-messaging/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Stats are the aggregate counters of one sweep.
type Stats struct {
	Processed   int `json:"processed"`
	Sent        int `json:"sent"`
	Failed      int `json:"failed"`
	Rescheduled int `json:"rescheduled"`
	Skipped     int `json:"skipped"`
	Reaped      int `json:"reaped"`
}

func (s *Stats) add(o Stats) {
	s.Processed += o.Processed
	s.Sent += o.Sent
	s.Failed += o.Failed
	s.Rescheduled += o.Rescheduled
	s.Skipped += o.Skipped
	s.Reaped += o.Reaped
}

type LinkReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (automation.TemplateLink, error)
}

type RecordReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (record.Record, error)
}

type ProcessorOption func(*Processor)

func WithClock(clock func() time.Time) ProcessorOption {
	return func(p *Processor) { p.clock = clock }
}

func WithBatchSize(n int) ProcessorOption {
	return func(p *Processor) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

func WithStaleAfter(d time.Duration) ProcessorOption {
	return func(p *Processor) {
		if d > 0 {
			p.staleAfter = d
		}
	}
}

// Processor drains due queue entries. Several processors may sweep the same table: the claim
// step lets exactly one of them own an entry.
type Processor struct {
	queue      repository.QueueRepository
	logs       repository.SendLogRepository
	links      LinkReader
	records    RecordReader
	senders    SenderResolver
	log        *zap.Logger
	clock      func() time.Time
	batchSize  int
	staleAfter time.Duration
}

func NewProcessor(queue repository.QueueRepository, logs repository.SendLogRepository, links LinkReader, records RecordReader, senders SenderResolver, log *zap.Logger, opts ...ProcessorOption) *Processor {
	if log == nil {
		log = zap.NewNop()
	}
	p := &Processor{
		queue:      queue,
		logs:       logs,
		links:      links,
		records:    records,
		senders:    senders,
		log:        log,
		clock:      time.Now,
		batchSize:  200,
		staleAfter: 10 * time.Minute,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Sweep runs one pass: reap stale claims, then claim and process every due entry in
// scheduled order.
func (p *Processor) Sweep(ctx context.Context) (Stats, error) {
	var st Stats
	now := p.clock().UTC()

	st.add(p.reap(ctx, now))

	due, err := p.queue.ListDue(ctx, now, p.batchSize)
	if err != nil {
		return st, fmt.Errorf("list due entries: %w", err)
	}

	for _, entry := range due {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		claimed, err := p.queue.Claim(ctx, entry.ID, p.clock().UTC())
		if err != nil {
			p.log.Error("claim failed", zap.String("entry_id", entry.ID.String()), zap.Error(err))
			continue
		}
		if !claimed {
			st.Skipped++
			continue
		}
		st.Processed++
		st.add(p.process(ctx, entry))
	}

	if st.Processed > 0 || st.Reaped > 0 {
		p.log.Info("sweep finished",
			zap.Int("processed", st.Processed),
			zap.Int("sent", st.Sent),
			zap.Int("failed", st.Failed),
			zap.Int("rescheduled", st.Rescheduled),
			zap.Int("skipped", st.Skipped),
			zap.Int("reaped", st.Reaped),
		)
	}
	return st, nil
}

// process handles one claimed entry. It always tries to move the entry out of processing.
func (p *Processor) process(ctx context.Context, entry automation.QueueEntry) Stats {
	var st Stats
	log := p.log.With(
		zap.String("entry_id", entry.ID.String()),
		zap.String("template_link_id", entry.TemplateLinkID.String()),
		zap.String("record_id", entry.RecordID.String()),
		zap.Int("occurrence", entry.OccurrenceIndex),
	)

	link, err := p.links.GetByID(ctx, entry.TemplateLinkID)
	if err != nil {
		p.release(ctx, log, entry, err)
		st.Skipped++
		return st
	}
	if !link.IsActive {
		p.finish(ctx, log, repository.FinishInput{EntryID: entry.ID, Status: automation.QueueCancelled, LastError: ReasonInactive})
		st.Skipped++
		return st
	}
	rec, err := p.records.GetByID(ctx, entry.RecordID)
	if err != nil {
		p.release(ctx, log, entry, err)
		st.Skipped++
		return st
	}

	in := repository.FinishInput{EntryID: entry.ID, Status: automation.QueueDone}
	in.Next = p.nextOccurrence(link, entry)

	msg := BuildMessage(link, rec)
	if msg.Recipient == "" {
		log.Info("skipping entry without recipient")
		in.LastError = ReasonNoRecipient
		st.Skipped++
	} else {
		now := p.clock().UTC()
		out := deliver(ctx, p.senders, link.Channel, msg, now)
		l := newSendLog(link, rec, msg.Recipient)
		l.QueueEntryID = uuid.NullUUID{UUID: entry.ID, Valid: true}
		l.OccurrenceIndex = entry.OccurrenceIndex
		l.Status = out.Status
		l.ProviderResultCode = out.Code
		l.ProviderMessage = out.Message
		l.SentAt = out.SentAt
		l.CreatedAt = now
		in.Log = &l

		if out.Status == sendlog.StatusSent {
			st.Sent++
		} else {
			st.Failed++
			in.LastError = out.Code + ": " + out.Message
			log.Warn("send failed", zap.String("channel", string(link.Channel)), zap.String("result_code", out.Code), zap.String("message", out.Message))
		}
	}

	if p.finish(ctx, log, in) {
		st.Rescheduled++
	}
	return st
}

// nextOccurrence returns the following entry of a repeat chain, or nil at its end.
// Failed attempts advance the chain like successful ones.
func (p *Processor) nextOccurrence(link automation.TemplateLink, entry automation.QueueEntry) *automation.QueueEntry {
	if link.TriggerType != automation.TriggerRepeat || link.RepeatConfig == nil {
		return nil
	}
	if !link.RepeatConfig.HasNext(entry.OccurrenceIndex) {
		return nil
	}
	next := automation.NewQueueEntry(link.ID, entry.RecordID, entry.OccurrenceIndex+1, link.RepeatConfig.Next(p.clock().UTC()))
	return &next
}

// finish closes the entry and reports whether a next occurrence was inserted. The write uses
// a context that survives sweep cancellation so the entry does not stay claimed. A failed
// write is retried once, then the send outcome is logged at error level.
func (p *Processor) finish(ctx context.Context, log *zap.Logger, in repository.FinishInput) bool {
	ctx = context.WithoutCancel(ctx)
	inserted, err := p.queue.Finish(ctx, in)
	if err != nil && !errors.Is(err, crm_errors.ErrInvalidTransition) {
		log.Warn("finish queue entry failed, retrying", zap.Error(err))
		inserted, err = p.queue.Finish(ctx, in)
	}
	if err != nil {
		fields := []zap.Field{
			zap.String("status", string(in.Status)),
			zap.String("last_error", in.LastError),
			zap.Error(err),
		}
		if in.Log != nil {
			fields = append(fields,
				zap.String("send_log_id", in.Log.ID.String()),
				zap.String("send_status", string(in.Log.Status)),
				zap.String("result_code", in.Log.ProviderResultCode),
				zap.String("provider_message", in.Log.ProviderMessage),
			)
		}
		log.Error("failed to finish queue entry", fields...)
		return false
	}
	return inserted
}

// release handles load failures: a missing link or record cancels the entry, anything else
// puts it back to pending for the next sweep.
func (p *Processor) release(ctx context.Context, log *zap.Logger, entry automation.QueueEntry, cause error) {
	if errors.Is(cause, crm_errors.ErrNotFound) {
		p.finish(ctx, log, repository.FinishInput{EntryID: entry.ID, Status: automation.QueueCancelled, LastError: cause.Error()})
		return
	}
	log.Warn("load failed, releasing entry", zap.Error(cause))
	p.finish(ctx, log, repository.FinishInput{EntryID: entry.ID, Status: automation.QueuePending, LastError: cause.Error()})
}

// reap closes entries whose claim outlived StaleAfter, recording a failed attempt for each.
func (p *Processor) reap(ctx context.Context, now time.Time) Stats {
	var st Stats
	stale, err := p.queue.ReapStale(ctx, now.Add(-p.staleAfter), p.batchSize)
	if err != nil {
		p.log.Error("reap stale claims failed", zap.Error(err))
		return st
	}
	for _, entry := range stale {
		st.Reaped++
		log := p.log.With(zap.String("entry_id", entry.ID.String()))
		link, err := p.links.GetByID(ctx, entry.TemplateLinkID)
		if err != nil {
			log.Warn("reaped entry has no link", zap.Error(err))
			continue
		}
		rec, err := p.records.GetByID(ctx, entry.RecordID)
		if err != nil {
			log.Warn("reaped entry has no record", zap.Error(err))
			continue
		}

		l := newSendLog(link, rec, Recipient(link, rec))
		l.QueueEntryID = uuid.NullUUID{UUID: entry.ID, Valid: true}
		l.OccurrenceIndex = entry.OccurrenceIndex
		l.Status = sendlog.StatusFailed
		l.ProviderResultCode = sendlog.CodeStaleClaim
		l.ProviderMessage = "claim expired before the attempt was recorded"
		l.CreatedAt = now
		if err := p.logs.Create(ctx, nil, &l); err != nil {
			log.Error("failed to record stale claim", zap.Error(err))
		}
		st.Failed++

		if next := p.nextOccurrence(link, entry); next != nil && link.IsActive {
			inserted, err := p.queue.Enqueue(ctx, nil, next)
			if err != nil {
				log.Error("failed to enqueue next occurrence", zap.Error(err))
			} else if inserted {
				st.Rescheduled++
			}
		}
		log.Warn("reaped stale claim")
	}
	return st
}
