package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"crm-messaging/internal/domain/sendlog"
	crm_errors "crm-messaging/pkg/errors"

	"github.com/google/uuid"
)

const sendLogColumns = `id, org_id, partition_id, template_link_id, record_id, queue_entry_id, occurrence_index,
        channel, recipient, status, provider_result_code, provider_message, sent_at, created_at`

type sendLogRepository struct {
	db DBTX
}

func NewSendLogRepository(db DBTX) SendLogRepository {
	return &sendLogRepository{db: db}
}

func (r *sendLogRepository) Create(ctx context.Context, tx DBTX, l *sendlog.SendLog) error {
	return insertSendLog(ctx, execFor(tx, r.db), l)
}

// insertSendLog writes one attempt row. A second row for the same queue entry is dropped.
func insertSendLog(ctx context.Context, db DBTX, l *sendlog.SendLog) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.Status == "" {
		l.Status = sendlog.StatusPending
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	_, err := db.ExecContext(ctx, `
        INSERT INTO send_logs (`+sendLogColumns+`)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
        ON CONFLICT (queue_entry_id) WHERE queue_entry_id IS NOT NULL DO NOTHING
    `,
		l.ID,
		l.OrgID,
		l.PartitionID,
		l.TemplateLinkID,
		l.RecordID,
		l.QueueEntryID,
		l.OccurrenceIndex,
		l.Channel,
		l.Recipient,
		l.Status,
		l.ProviderResultCode,
		l.ProviderMessage,
		l.SentAt,
		l.CreatedAt,
	)
	return err
}

func (r *sendLogRepository) MarkResult(ctx context.Context, id uuid.UUID, status sendlog.Status, code, message string, sentAt *time.Time) error {
	if !status.Terminal() {
		return crm_errors.ErrInvalidTransition
	}
	res, err := r.db.ExecContext(ctx, `
        UPDATE send_logs
        SET status = $1, provider_result_code = $2, provider_message = $3, sent_at = $4
        WHERE id = $5 AND status = 'pending'
    `, status, code, message, sentAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return crm_errors.ErrInvalidTransition
	}
	return nil
}

func (r *sendLogRepository) GetByID(ctx context.Context, id uuid.UUID) (sendlog.SendLog, error) {
	row := r.db.QueryRowContext(ctx, `
        SELECT `+sendLogColumns+`
        FROM send_logs
        WHERE id = $1
    `, id)
	l, err := scanSendLog(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sendlog.SendLog{}, crm_errors.ErrNotFound
		}
		return sendlog.SendLog{}, err
	}
	return l, nil
}

func (r *sendLogRepository) List(ctx context.Context, f sendlog.Filter) ([]sendlog.SendLog, int64, error) {
	f.Normalize()
	where, args := sendLogWhere(f)

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM send_logs WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, f.PageSize, (f.Page-1)*f.PageSize)
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
        SELECT %s
        FROM send_logs
        WHERE %s
        ORDER BY created_at DESC, id DESC
        LIMIT $%d OFFSET $%d
    `, sendLogColumns, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	logs := make([]sendlog.SendLog, 0, f.PageSize)
	for rows.Next() {
		l, err := scanSendLog(rows)
		if err != nil {
			return nil, 0, err
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

func (r *sendLogRepository) Stats(ctx context.Context, orgID uuid.UUID, from, to time.Time) ([]sendlog.StatRow, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT channel, status, COUNT(*)
        FROM send_logs
        WHERE org_id = $1 AND created_at >= $2 AND created_at < $3
        GROUP BY channel, status
        ORDER BY channel, status
    `, orgID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []sendlog.StatRow
	for rows.Next() {
		var row sendlog.StatRow
		if err := rows.Scan(&row.Channel, &row.Status, &row.Count); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func sendLogWhere(f sendlog.Filter) (string, []any) {
	clauses := []string{"org_id = $1"}
	args := []any{f.OrgID}
	add := func(clause string, v any) {
		args = append(args, v)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if f.PartitionID.Valid {
		add("partition_id = $%d", f.PartitionID.UUID)
	}
	if f.TemplateLinkID.Valid {
		add("template_link_id = $%d", f.TemplateLinkID.UUID)
	}
	if f.RecordID.Valid {
		add("record_id = $%d", f.RecordID.UUID)
	}
	if f.Channel != "" {
		add("channel = $%d", f.Channel)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.From != nil {
		add("created_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("created_at < $%d", *f.To)
	}
	return strings.Join(clauses, " AND "), args
}

func scanSendLog(row rowScanner) (sendlog.SendLog, error) {
	var (
		l      sendlog.SendLog
		sentAt sql.NullTime
	)
	if err := row.Scan(
		&l.ID,
		&l.OrgID,
		&l.PartitionID,
		&l.TemplateLinkID,
		&l.RecordID,
		&l.QueueEntryID,
		&l.OccurrenceIndex,
		&l.Channel,
		&l.Recipient,
		&l.Status,
		&l.ProviderResultCode,
		&l.ProviderMessage,
		&sentAt,
		&l.CreatedAt,
	); err != nil {
		return sendlog.SendLog{}, err
	}
	if sentAt.Valid {
		t := sentAt.Time
		l.SentAt = &t
	}
	return l, nil
}
