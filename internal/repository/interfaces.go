package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"crm-messaging/internal/domain/automation"
	"crm-messaging/internal/domain/partition"
	"crm-messaging/internal/domain/record"
	"crm-messaging/internal/domain/sendlog"
)

type TemplateLinkRepository interface {
	Create(ctx context.Context, l *automation.TemplateLink) error
	GetByID(ctx context.Context, id uuid.UUID) (automation.TemplateLink, error)
	Update(ctx context.Context, l automation.TemplateLink) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByPartition(ctx context.Context, partitionID uuid.UUID, activeOnly bool) ([]automation.TemplateLink, error)
}

// FinishInput closes a claimed queue entry. Log and Next are optional and are written in the
// same transaction as the status change.
type FinishInput struct {
	EntryID   uuid.UUID
	Status    automation.QueueStatus
	LastError string
	Log       *sendlog.SendLog
	Next      *automation.QueueEntry
}

type QueueRepository interface {
	// Enqueue inserts a pending entry; false means the occurrence already has a live entry.
	Enqueue(ctx context.Context, tx DBTX, e *automation.QueueEntry) (bool, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]automation.QueueEntry, error)
	// Claim moves an entry from pending to processing; false means another sweep owns it.
	Claim(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	// Finish reports whether Next was inserted; false means that occurrence already existed.
	Finish(ctx context.Context, in FinishInput) (bool, error)
	// ReapStale closes entries stuck in processing since before the cutoff and returns them.
	ReapStale(ctx context.Context, cutoff time.Time, limit int) ([]automation.QueueEntry, error)
	CancelPendingForLink(ctx context.Context, linkID uuid.UUID) (int64, error)
	// HasLiveChain reports whether the (link, record) pair has a pending or processing entry.
	HasLiveChain(ctx context.Context, linkID, recordID uuid.UUID) (bool, error)
	// Reschedule cancels the pair's pending entries and enqueues e in one transaction.
	Reschedule(ctx context.Context, e *automation.QueueEntry) (bool, error)
}

type SendLogRepository interface {
	Create(ctx context.Context, tx DBTX, l *sendlog.SendLog) error
	MarkResult(ctx context.Context, id uuid.UUID, status sendlog.Status, code, message string, sentAt *time.Time) error
	GetByID(ctx context.Context, id uuid.UUID) (sendlog.SendLog, error)
	List(ctx context.Context, filter sendlog.Filter) ([]sendlog.SendLog, int64, error)
	Stats(ctx context.Context, orgID uuid.UUID, from, to time.Time) ([]sendlog.StatRow, error)
}

type PartitionRepository interface {
	// AdvanceDistributionOrder atomically moves the round-robin counter. ok is false when the
	// partition is missing or has distribution disabled.
	AdvanceDistributionOrder(ctx context.Context, id uuid.UUID) (order int, defaults partition.DistributionDefaults, ok bool, err error)
	GetByID(ctx context.Context, id uuid.UUID) (partition.Partition, error)
}

type RecordRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (record.Record, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]record.Record, error)
}
