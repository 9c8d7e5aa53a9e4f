package services

import (
	"context"

	"crm-messaging/internal/distribution"
	"crm-messaging/internal/proxy"

	"github.com/google/uuid"
)

type Assigner interface {
	Assign(ctx context.Context, partitionID uuid.UUID) (*distribution.Assignment, error)
}

// DistributionService hands out round-robin slots to record creation in partitions the caller
// owns.
type DistributionService struct {
	assigner Assigner
	access   *proxy.AccessControl
}

func NewDistributionService(assigner Assigner, access *proxy.AccessControl) *DistributionService {
	return &DistributionService{assigner: assigner, access: access}
}

// Assign returns nil when the partition does not distribute.
func (s *DistributionService) Assign(ctx context.Context, orgID, partitionID uuid.UUID) (*distribution.Assignment, error) {
	if _, err := s.access.CanAccessPartition(ctx, orgID, partitionID); err != nil {
		return nil, err
	}
	return s.assigner.Assign(ctx, partitionID)
}
