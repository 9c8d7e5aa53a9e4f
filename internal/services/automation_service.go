package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	engine "crm-messaging/internal/automation"
	"crm-messaging/internal/broadcast"
	"crm-messaging/internal/domain/automation"
	"crm-messaging/internal/domain/record"
	"crm-messaging/internal/domain/sendlog"
	"crm-messaging/internal/proxy"
	crmredis "crm-messaging/internal/redis"
	"crm-messaging/internal/repository"
	crm_errors "crm-messaging/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, link automation.TemplateLink, rec record.Record) (*sendlog.SendLog, error)
}

type Publisher interface {
	Publish(ctx context.Context, partitionID, kind string, payload any, excludeSessionID string) (broadcast.PublishResult, error)
}

type ManualSendLimiter interface {
	AllowManualSend(ctx context.Context, orgID string) (*crmredis.RateLimitResult, error)
}

// AutomationService turns record mutations into sends, queue entries and stream events, and
// owns the template link lifecycle.
type AutomationService struct {
	links      repository.TemplateLinkRepository
	queue      repository.QueueRepository
	records    repository.RecordRepository
	dispatcher Dispatcher
	publisher  Publisher
	limiter    ManualSendLimiter
	access     *proxy.AccessControl
	log        *zap.Logger
	clock      func() time.Time
}

type AutomationDeps struct {
	Links      repository.TemplateLinkRepository
	Queue      repository.QueueRepository
	Records    repository.RecordRepository
	Dispatcher Dispatcher
	Publisher  Publisher
	// Limiter is optional; without it manual sends are not throttled.
	Limiter ManualSendLimiter
	Access  *proxy.AccessControl
	Log     *zap.Logger
}

func NewAutomationService(deps AutomationDeps) *AutomationService {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &AutomationService{
		links:      deps.Links,
		queue:      deps.Queue,
		records:    deps.Records,
		dispatcher: deps.Dispatcher,
		publisher:  deps.Publisher,
		limiter:    deps.Limiter,
		access:     deps.Access,
		log:        log,
		clock:      time.Now,
	}
}

// EventOutcome summarizes what one record event caused.
type EventOutcome struct {
	Evaluated int                     `json:"evaluated"`
	Sent      int                     `json:"sent"`
	Failed    int                     `json:"failed"`
	Queued    int                     `json:"queued"`
	Skipped   int                     `json:"skipped"`
	Broadcast broadcast.PublishResult `json:"broadcast"`
}

// RecordEventPayload is the data pushed to stream subscribers for a record mutation.
type RecordEventPayload struct {
	RecordID    uuid.UUID        `json:"record_id"`
	PartitionID uuid.UUID        `json:"partition_id"`
	EventKind   record.EventKind `json:"event_kind"`
	Data        map[string]any   `json:"data,omitempty"`
}

// HandleRecordEvent evaluates every active link of the partition against the mutated record
// and publishes the mutation to the partition's open streams, skipping the originating session.
// Send failures of individual links never fail the event.
func (s *AutomationService) HandleRecordEvent(ctx context.Context, ev record.MutationEvent) (EventOutcome, error) {
	var out EventOutcome
	if ev.RecordID == uuid.Nil || ev.PartitionID == uuid.Nil || !ev.EventKind.Valid() {
		return out, crm_errors.ErrInvalidInput
	}
	if _, err := s.access.CanAccessPartition(ctx, ev.OrgID, ev.PartitionID); err != nil {
		return out, err
	}

	// Streams hear about every mutation, whatever happened to its triggers.
	var evalErr error
	if ev.EventKind != record.EventDelete {
		evalErr = s.evaluateLinks(ctx, ev, &out)
	}

	res, err := s.publisher.Publish(ctx, ev.PartitionID.String(), "record."+string(ev.EventKind), RecordEventPayload{
		RecordID:    ev.RecordID,
		PartitionID: ev.PartitionID,
		EventKind:   ev.EventKind,
		Data:        ev.Data,
	}, ev.SessionID)
	if err != nil {
		s.log.Warn("record event publish failed",
			zap.String("partition_id", ev.PartitionID.String()),
			zap.Error(err),
		)
	}
	out.Broadcast = res
	return out, evalErr
}

func (s *AutomationService) evaluateLinks(ctx context.Context, ev record.MutationEvent, out *EventOutcome) error {
	links, err := s.links.ListByPartition(ctx, ev.PartitionID, true)
	if err != nil {
		return fmt.Errorf("list template links: %w", err)
	}
	rec := ev.Record()
	now := s.clock().UTC()

	for _, link := range links {
		out.Evaluated++
		log := s.log.With(
			zap.String("template_link_id", link.ID.String()),
			zap.String("record_id", rec.ID.String()),
		)

		d := engine.Evaluate(link, rec, ev.EventKind, now)
		if !d.Matched() {
			switch d.Reason {
			case engine.ReasonInactive, engine.ReasonManual, engine.ReasonEventMismatch, engine.ReasonConditionFalse:
			default:
				out.Skipped++
				log.Info("template link skipped", zap.String("reason", d.Reason))
			}
			continue
		}

		if d.Fire {
			s.dispatch(ctx, log, link, rec, out)
		}
		armed, err := engine.Arm(ctx, s.queue, link, rec.ID, d.Occurrences)
		out.Queued += armed.Queued
		out.Failed += armed.Failed
		if err != nil {
			log.Error("queueing occurrences failed", zap.Error(err))
		}
		if armed.Running {
			log.Debug("repeat chain already running")
		}
	}
	return nil
}

func (s *AutomationService) dispatch(ctx context.Context, log *zap.Logger, link automation.TemplateLink, rec record.Record, out *EventOutcome) {
	entry, err := s.dispatcher.Dispatch(ctx, link, rec)
	switch {
	case errors.Is(err, engine.ErrNoRecipient):
		out.Skipped++
	case err != nil:
		out.Failed++
		log.Error("immediate send failed", zap.Error(err))
	case entry.Status == sendlog.StatusSent:
		out.Sent++
	default:
		out.Failed++
	}
}

// ManualSendResult reports the outcome per requested record.
type ManualSendResult struct {
	Logs    []sendlog.SendLog `json:"logs"`
	Skipped []uuid.UUID       `json:"skipped"`
	Missing []uuid.UUID       `json:"missing"`
}

// SendManual sends a link to explicitly chosen records of its partition. One call consumes one
// unit of the organization's manual send allowance.
func (s *AutomationService) SendManual(ctx context.Context, orgID, linkID uuid.UUID, recordIDs []uuid.UUID) (ManualSendResult, error) {
	var res ManualSendResult
	if len(recordIDs) == 0 {
		return res, fmt.Errorf("%w: record_ids is empty", crm_errors.ErrInvalidInput)
	}
	link, err := s.access.CanManageLink(ctx, orgID, linkID)
	if err != nil {
		return res, err
	}
	if s.limiter != nil {
		lim, err := s.limiter.AllowManualSend(ctx, orgID.String())
		if err != nil {
			return res, fmt.Errorf("manual send limiter: %w", err)
		}
		if !lim.Allowed {
			return res, crm_errors.ErrRateLimited
		}
	}

	records, err := s.records.GetByIDs(ctx, recordIDs)
	if err != nil {
		return res, fmt.Errorf("load records: %w", err)
	}
	byID := make(map[uuid.UUID]record.Record, len(records))
	for _, r := range records {
		byID[r.ID] = r
	}

	for _, id := range recordIDs {
		rec, ok := byID[id]
		if !ok || rec.PartitionID != link.PartitionID {
			res.Missing = append(res.Missing, id)
			continue
		}
		entry, err := s.dispatcher.Dispatch(ctx, link, rec)
		if errors.Is(err, engine.ErrNoRecipient) {
			res.Skipped = append(res.Skipped, id)
			continue
		}
		if err != nil {
			return res, err
		}
		res.Logs = append(res.Logs, *entry)
	}
	return res, nil
}

func (s *AutomationService) CreateLink(ctx context.Context, orgID, partitionID uuid.UUID, link *automation.TemplateLink) error {
	if _, err := s.access.CanAccessPartition(ctx, orgID, partitionID); err != nil {
		return err
	}
	link.ID = uuid.Nil
	link.OrgID = orgID
	link.PartitionID = partitionID
	if err := link.Validate(); err != nil {
		return fmt.Errorf("%w: %v", crm_errors.ErrInvalidInput, err)
	}
	return s.links.Create(ctx, link)
}

func (s *AutomationService) GetLink(ctx context.Context, orgID, linkID uuid.UUID) (automation.TemplateLink, error) {
	return s.access.CanManageLink(ctx, orgID, linkID)
}

func (s *AutomationService) ListLinks(ctx context.Context, orgID, partitionID uuid.UUID, activeOnly bool) ([]automation.TemplateLink, error) {
	if _, err := s.access.CanAccessPartition(ctx, orgID, partitionID); err != nil {
		return nil, err
	}
	return s.links.ListByPartition(ctx, partitionID, activeOnly)
}

// UpdateLink replaces the editable fields of a link. Deactivating a link or changing its
// trigger type cancels the entries it still has pending.
func (s *AutomationService) UpdateLink(ctx context.Context, orgID uuid.UUID, link automation.TemplateLink) (automation.TemplateLink, error) {
	existing, err := s.access.CanManageLink(ctx, orgID, link.ID)
	if err != nil {
		return automation.TemplateLink{}, err
	}
	link.OrgID = existing.OrgID
	link.PartitionID = existing.PartitionID
	link.CreatedAt = existing.CreatedAt
	if err := link.Validate(); err != nil {
		return automation.TemplateLink{}, fmt.Errorf("%w: %v", crm_errors.ErrInvalidInput, err)
	}
	if err := s.links.Update(ctx, link); err != nil {
		return automation.TemplateLink{}, err
	}

	if existing.IsActive && (!link.IsActive || link.TriggerType != existing.TriggerType) {
		s.cancelPending(ctx, link.ID)
	}
	return s.access.CanManageLink(ctx, orgID, link.ID)
}

func (s *AutomationService) DeleteLink(ctx context.Context, orgID, linkID uuid.UUID) error {
	if _, err := s.access.CanManageLink(ctx, orgID, linkID); err != nil {
		return err
	}
	s.cancelPending(ctx, linkID)
	return s.links.Delete(ctx, linkID)
}

func (s *AutomationService) cancelPending(ctx context.Context, linkID uuid.UUID) {
	n, err := s.queue.CancelPendingForLink(ctx, linkID)
	if err != nil {
		s.log.Error("cancel pending queue entries failed",
			zap.String("template_link_id", linkID.String()),
			zap.Error(err),
		)
		return
	}
	if n > 0 {
		s.log.Info("pending queue entries cancelled",
			zap.String("template_link_id", linkID.String()),
			zap.Int64("count", n),
		)
	}
}

// TemplateTokens lists the tokens found in a template and those without a mapping.
type TemplateTokens struct {
	Tokens   []string `json:"tokens"`
	Unmapped []string `json:"unmapped"`
}

func InspectTemplate(subject, content string, mappings []automation.VariableMapping) TemplateTokens {
	tokens := engine.ExtractTokens(subject + "\n" + content)
	unmapped := engine.UnmappedTokens(mappings, subject, content)
	if unmapped == nil {
		unmapped = []string{}
	}
	return TemplateTokens{Tokens: tokens, Unmapped: unmapped}
}
