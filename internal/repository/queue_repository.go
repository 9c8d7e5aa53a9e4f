package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"crm-messaging/internal/domain/automation"

	"github.com/google/uuid"
)

const queueColumns = `id, template_link_id, record_id, scheduled_at, attempt_count, occurrence_index,
        status, last_error, created_at, updated_at`

type queueRepository struct {
	db DBTX
}

func NewQueueRepository(db DBTX) QueueRepository {
	return &queueRepository{db: db}
}

func (r *queueRepository) Enqueue(ctx context.Context, tx DBTX, e *automation.QueueEntry) (bool, error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Status == "" {
		e.Status = automation.QueuePending
	}
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	res, err := execFor(tx, r.db).ExecContext(ctx, `
        INSERT INTO automation_queue (`+queueColumns+`)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        ON CONFLICT (template_link_id, record_id, occurrence_index)
            WHERE status IN ('pending', 'processing') DO NOTHING
    `,
		e.ID,
		e.TemplateLinkID,
		e.RecordID,
		e.ScheduledAt,
		e.AttemptCount,
		e.OccurrenceIndex,
		e.Status,
		e.LastError,
		e.CreatedAt,
		e.UpdatedAt,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *queueRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]automation.QueueEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT `+queueColumns+`
        FROM automation_queue
        WHERE status = 'pending' AND scheduled_at <= $1
        ORDER BY scheduled_at ASC, id ASC
        LIMIT $2
    `, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanQueueEntries(rows)
}

// Claim relies on uq_automation_queue_processing: a second in-flight entry for the same
// (link, record) fails with a unique violation and is reported as not claimed.
func (r *queueRepository) Claim(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
        UPDATE automation_queue
        SET status = 'processing', attempt_count = attempt_count + 1, updated_at = $2
        WHERE id = $1 AND status = 'pending'
    `, id, now)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *queueRepository) Finish(ctx context.Context, in FinishInput) (bool, error) {
	var nextInserted bool
	err := WithTx(ctx, r.db, func(tx DBTX) error {
		res, err := tx.ExecContext(ctx, `
            UPDATE automation_queue
            SET status = $1, last_error = $2, updated_at = $3
            WHERE id = $4 AND status = 'processing'
        `, in.Status, in.LastError, time.Now().UTC(), in.EntryID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("queue entry %s is not processing", in.EntryID)
		}

		if in.Log != nil {
			if err := insertSendLog(ctx, tx, in.Log); err != nil {
				return err
			}
		}
		if in.Next != nil {
			inserted, err := r.Enqueue(ctx, tx, in.Next)
			if err != nil {
				return err
			}
			nextInserted = inserted
		}
		return nil
	})
	return nextInserted, err
}

func (r *queueRepository) ReapStale(ctx context.Context, cutoff time.Time, limit int) ([]automation.QueueEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
        UPDATE automation_queue
        SET status = 'done', last_error = 'stale claim', updated_at = now()
        WHERE id IN (
            SELECT id FROM automation_queue
            WHERE status = 'processing' AND updated_at < $1
            ORDER BY updated_at ASC
            LIMIT $2
            FOR UPDATE SKIP LOCKED
        )
        RETURNING `+queueColumns, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanQueueEntries(rows)
}

func (r *queueRepository) CancelPendingForLink(ctx context.Context, linkID uuid.UUID) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
        UPDATE automation_queue
        SET status = 'cancelled', updated_at = now()
        WHERE template_link_id = $1 AND status = 'pending'
    `, linkID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *queueRepository) HasLiveChain(ctx context.Context, linkID, recordID uuid.UUID) (bool, error) {
	var live bool
	err := r.db.QueryRowContext(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM automation_queue
            WHERE template_link_id = $1 AND record_id = $2 AND status IN ('pending', 'processing')
        )
    `, linkID, recordID).Scan(&live)
	return live, err
}

func (r *queueRepository) Reschedule(ctx context.Context, e *automation.QueueEntry) (bool, error) {
	var inserted bool
	err := WithTx(ctx, r.db, func(tx DBTX) error {
		if _, err := tx.ExecContext(ctx, `
            UPDATE automation_queue
            SET status = 'cancelled', last_error = 'rescheduled', updated_at = now()
            WHERE template_link_id = $1 AND record_id = $2 AND status = 'pending'
        `, e.TemplateLinkID, e.RecordID); err != nil {
			return err
		}
		var err error
		inserted, err = r.Enqueue(ctx, tx, e)
		return err
	})
	return inserted, err
}

func scanQueueEntries(rows *sql.Rows) ([]automation.QueueEntry, error) {
	var entries []automation.QueueEntry
	for rows.Next() {
		var e automation.QueueEntry
		if err := rows.Scan(
			&e.ID,
			&e.TemplateLinkID,
			&e.RecordID,
			&e.ScheduledAt,
			&e.AttemptCount,
			&e.OccurrenceIndex,
			&e.Status,
			&e.LastError,
			&e.CreatedAt,
			&e.UpdatedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
