package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"crm-messaging/internal/domain/partition"
	crm_errors "crm-messaging/pkg/errors"

	"github.com/google/uuid"
)

type partitionRepository struct {
	db DBTX
}

func NewPartitionRepository(db DBTX) PartitionRepository {
	return &partitionRepository{db: db}
}

// AdvanceDistributionOrder is a single statement so concurrent callers, across processes,
// are serialized by the row lock and each receives a distinct slot.
func (r *partitionRepository) AdvanceDistributionOrder(ctx context.Context, id uuid.UUID) (int, partition.DistributionDefaults, bool, error) {
	var (
		order int
		raw   []byte
	)
	err := r.db.QueryRowContext(ctx, `
        UPDATE partitions
        SET last_assigned_order = (last_assigned_order % max_distribution_order) + 1,
            updated_at = now()
        WHERE id = $1 AND use_distribution_order = TRUE AND max_distribution_order > 0
        RETURNING last_assigned_order, distribution_defaults
    `, id).Scan(&order, &raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil, false, nil
		}
		return 0, nil, false, err
	}
	defaults, err := partition.ParseDistributionDefaults(raw)
	if err != nil {
		return 0, nil, false, fmt.Errorf("decode distribution_defaults: %w", err)
	}
	return order, defaults, true, nil
}

func (r *partitionRepository) GetByID(ctx context.Context, id uuid.UUID) (partition.Partition, error) {
	var (
		p   partition.Partition
		raw []byte
	)
	err := r.db.QueryRowContext(ctx, `
        SELECT id, org_id, use_distribution_order, max_distribution_order, last_assigned_order, distribution_defaults
        FROM partitions
        WHERE id = $1
    `, id).Scan(&p.ID, &p.OrgID, &p.UseDistributionOrder, &p.MaxDistributionOrder, &p.LastAssignedOrder, &raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return partition.Partition{}, crm_errors.ErrNotFound
		}
		return partition.Partition{}, err
	}
	if p.DistributionDefaults, err = partition.ParseDistributionDefaults(raw); err != nil {
		return partition.Partition{}, fmt.Errorf("decode distribution_defaults: %w", err)
	}
	return p, nil
}
