// Package distribution hands out round-robin slots for new records.
package distribution

import (
	"context"
	"fmt"

	"crm-messaging/internal/domain/partition"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Counter advances a partition's slot counter in one atomic statement.
type Counter interface {
	AdvanceDistributionOrder(ctx context.Context, id uuid.UUID) (int, partition.DistributionDefaults, bool, error)
}

// Assignment is the slot a record lands in and the field values to stamp on it.
type Assignment struct {
	Order    int               `json:"order"`
	Defaults map[string]string `json:"defaults"`
}

type Assigner struct {
	counter Counter
	log     *zap.Logger
}

func NewAssigner(counter Counter, log *zap.Logger) *Assigner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Assigner{counter: counter, log: log}
}

// Assign returns nil, nil when the partition is missing or has distribution disabled.
// Each call advances the counter exactly once; storage errors are returned as is.
func (a *Assigner) Assign(ctx context.Context, partitionID uuid.UUID) (*Assignment, error) {
	order, defaults, ok, err := a.counter.AdvanceDistributionOrder(ctx, partitionID)
	if err != nil {
		return nil, fmt.Errorf("advance distribution order: %w", err)
	}
	if !ok {
		return nil, nil
	}
	a.log.Debug("distribution slot assigned",
		zap.String("partition_id", partitionID.String()),
		zap.Int("order", order),
	)
	return &Assignment{Order: order, Defaults: defaults.Flatten(order)}, nil
}
