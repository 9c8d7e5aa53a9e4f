package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"crm-messaging/internal/domain/record"
	crm_errors "crm-messaging/pkg/errors"

	"github.com/google/uuid"
)

type recordRepository struct {
	db DBTX
}

func NewRecordRepository(db DBTX) RecordRepository {
	return &recordRepository{db: db}
}

func (r *recordRepository) GetByID(ctx context.Context, id uuid.UUID) (record.Record, error) {
	row := r.db.QueryRowContext(ctx, `
        SELECT id, org_id, partition_id, data, created_at, updated_at
        FROM records
        WHERE id = $1
    `, id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return record.Record{}, crm_errors.ErrNotFound
		}
		return record.Record{}, err
	}
	return rec, nil
}

// GetByIDs returns the records that exist; missing ids are silently absent.
func (r *recordRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]record.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := r.db.QueryContext(ctx, `
        SELECT id, org_id, partition_id, data, created_at, updated_at
        FROM records
        WHERE id IN (`+buildPlaceholders(1, len(ids))+`)
    `, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]record.Record, 0, len(ids))
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanRecord(row rowScanner) (record.Record, error) {
	var (
		rec record.Record
		raw []byte
	)
	if err := row.Scan(&rec.ID, &rec.OrgID, &rec.PartitionID, &raw, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return record.Record{}, err
	}
	rec.Data = map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &rec.Data); err != nil {
			return record.Record{}, fmt.Errorf("decode record data: %w", err)
		}
	}
	return rec, nil
}
