// Package proxy checks that the calling organization owns the resource it addresses.
package proxy

import (
	"context"

	"crm-messaging/internal/domain/automation"
	"crm-messaging/internal/domain/partition"
	"crm-messaging/internal/repository"
	crm_errors "crm-messaging/pkg/errors"

	"github.com/google/uuid"
)

type AccessControl struct {
	partitions repository.PartitionRepository
	links      repository.TemplateLinkRepository
}

func NewAccessControl(partitions repository.PartitionRepository, links repository.TemplateLinkRepository) *AccessControl {
	return &AccessControl{partitions: partitions, links: links}
}

// CanAccessPartition returns the partition when it belongs to orgID. A partition owned by another
// organization is reported as not found.
func (a *AccessControl) CanAccessPartition(ctx context.Context, orgID, partitionID uuid.UUID) (partition.Partition, error) {
	if orgID == uuid.Nil {
		return partition.Partition{}, crm_errors.ErrUnauthorized
	}
	p, err := a.partitions.GetByID(ctx, partitionID)
	if err != nil {
		return partition.Partition{}, err
	}
	if p.OrgID != orgID {
		return partition.Partition{}, crm_errors.ErrNotFound
	}
	return p, nil
}

func (a *AccessControl) CanManageLink(ctx context.Context, orgID, linkID uuid.UUID) (automation.TemplateLink, error) {
	if orgID == uuid.Nil {
		return automation.TemplateLink{}, crm_errors.ErrUnauthorized
	}
	link, err := a.links.GetByID(ctx, linkID)
	if err != nil {
		return automation.TemplateLink{}, err
	}
	if link.OrgID != orgID {
		return automation.TemplateLink{}, crm_errors.ErrNotFound
	}
	return link, nil
}
