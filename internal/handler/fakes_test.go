package handler

import (
	"context"
	"time"

	"crm-messaging/internal/automation"
	"crm-messaging/internal/distribution"
	domain "crm-messaging/internal/domain/automation"
	"crm-messaging/internal/domain/partition"
	"crm-messaging/internal/domain/record"
	"crm-messaging/internal/domain/sendlog"
	"crm-messaging/internal/provider"
	"crm-messaging/internal/services"

	"github.com/google/uuid"
)

type fakeAutomation struct {
	event    func(record.MutationEvent) (services.EventOutcome, error)
	manual   func(uuid.UUID, []uuid.UUID) (services.ManualSendResult, error)
	create   func(*domain.TemplateLink) error
	lastOrg  uuid.UUID
	lastLink domain.TemplateLink
}

func (f *fakeAutomation) HandleRecordEvent(_ context.Context, ev record.MutationEvent) (services.EventOutcome, error) {
	f.lastOrg = ev.OrgID
	return f.event(ev)
}

func (f *fakeAutomation) SendManual(_ context.Context, orgID, linkID uuid.UUID, ids []uuid.UUID) (services.ManualSendResult, error) {
	f.lastOrg = orgID
	return f.manual(linkID, ids)
}

func (f *fakeAutomation) CreateLink(_ context.Context, orgID, partitionID uuid.UUID, l *domain.TemplateLink) error {
	f.lastOrg = orgID
	l.PartitionID = partitionID
	return f.create(l)
}

func (f *fakeAutomation) GetLink(_ context.Context, _, id uuid.UUID) (domain.TemplateLink, error) {
	return domain.TemplateLink{ID: id}, nil
}

func (f *fakeAutomation) ListLinks(context.Context, uuid.UUID, uuid.UUID, bool) ([]domain.TemplateLink, error) {
	return []domain.TemplateLink{}, nil
}

func (f *fakeAutomation) UpdateLink(_ context.Context, _ uuid.UUID, l domain.TemplateLink) (domain.TemplateLink, error) {
	f.lastLink = l
	return l, nil
}

func (f *fakeAutomation) DeleteLink(context.Context, uuid.UUID, uuid.UUID) error { return nil }

type fakeDistribution struct {
	assignment *distribution.Assignment
	err        error
}

func (f *fakeDistribution) Assign(context.Context, uuid.UUID, uuid.UUID) (*distribution.Assignment, error) {
	return f.assignment, f.err
}

type fakeSendLogs struct {
	lastFilter sendlog.Filter
	exportErr  error
}

func (f *fakeSendLogs) List(_ context.Context, fl sendlog.Filter) (services.SendLogPage, error) {
	f.lastFilter = fl
	return services.SendLogPage{Items: []sendlog.SendLog{}, Page: 1, PageSize: 20}, nil
}

func (f *fakeSendLogs) Get(_ context.Context, _, id uuid.UUID) (sendlog.SendLog, error) {
	return sendlog.SendLog{ID: id}, nil
}

func (f *fakeSendLogs) Stats(context.Context, uuid.UUID, time.Time, time.Time) (sendlog.Stats, error) {
	return sendlog.Stats{Total: 3, Sent: 2, Failed: 1}, nil
}

func (f *fakeSendLogs) Export(_ context.Context, fl sendlog.Filter) (services.ExportResult, error) {
	f.lastFilter = fl
	return services.ExportResult{Key: "k", Rows: 1}, f.exportErr
}

type fakeCatalog struct {
	out any
	err error
}

func (f *fakeCatalog) List(context.Context, domain.Channel, services.CatalogKind, provider.Page) (any, error) {
	return f.out, f.err
}

type fakeAccess struct {
	owner uuid.UUID
}

func (f *fakeAccess) CanAccessPartition(_ context.Context, orgID, partitionID uuid.UUID) (partition.Partition, error) {
	if orgID != f.owner {
		return partition.Partition{}, errNotFound
	}
	return partition.Partition{ID: partitionID, OrgID: orgID}, nil
}

type fakeSweeper struct{ stats automation.Stats }

func (f *fakeSweeper) Sweep(context.Context) (automation.Stats, error) { return f.stats, nil }
