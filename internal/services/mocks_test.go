package services

import (
	"context"
	"time"

	"crm-messaging/internal/broadcast"
	"crm-messaging/internal/domain/automation"
	"crm-messaging/internal/domain/partition"
	"crm-messaging/internal/domain/record"
	"crm-messaging/internal/domain/sendlog"
	crmredis "crm-messaging/internal/redis"
	"crm-messaging/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type mockLinks struct{ mock.Mock }

func (m *mockLinks) Create(ctx context.Context, l *automation.TemplateLink) error {
	return m.Called(ctx, l).Error(0)
}

func (m *mockLinks) GetByID(ctx context.Context, id uuid.UUID) (automation.TemplateLink, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(automation.TemplateLink), args.Error(1)
}

func (m *mockLinks) Update(ctx context.Context, l automation.TemplateLink) error {
	return m.Called(ctx, l).Error(0)
}

func (m *mockLinks) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockLinks) ListByPartition(ctx context.Context, partitionID uuid.UUID, activeOnly bool) ([]automation.TemplateLink, error) {
	args := m.Called(ctx, partitionID, activeOnly)
	return args.Get(0).([]automation.TemplateLink), args.Error(1)
}

type mockQueue struct{ mock.Mock }

func (m *mockQueue) Enqueue(ctx context.Context, tx repository.DBTX, e *automation.QueueEntry) (bool, error) {
	args := m.Called(ctx, tx, e)
	return args.Bool(0), args.Error(1)
}

func (m *mockQueue) ListDue(ctx context.Context, now time.Time, limit int) ([]automation.QueueEntry, error) {
	args := m.Called(ctx, now, limit)
	return args.Get(0).([]automation.QueueEntry), args.Error(1)
}

func (m *mockQueue) Claim(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	args := m.Called(ctx, id, now)
	return args.Bool(0), args.Error(1)
}

func (m *mockQueue) Finish(ctx context.Context, in repository.FinishInput) (bool, error) {
	args := m.Called(ctx, in)
	return args.Bool(0), args.Error(1)
}

func (m *mockQueue) ReapStale(ctx context.Context, cutoff time.Time, limit int) ([]automation.QueueEntry, error) {
	args := m.Called(ctx, cutoff, limit)
	return args.Get(0).([]automation.QueueEntry), args.Error(1)
}

func (m *mockQueue) CancelPendingForLink(ctx context.Context, linkID uuid.UUID) (int64, error) {
	args := m.Called(ctx, linkID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockQueue) HasLiveChain(ctx context.Context, linkID, recordID uuid.UUID) (bool, error) {
	args := m.Called(ctx, linkID, recordID)
	return args.Bool(0), args.Error(1)
}

func (m *mockQueue) Reschedule(ctx context.Context, e *automation.QueueEntry) (bool, error) {
	args := m.Called(ctx, e)
	return args.Bool(0), args.Error(1)
}

type mockRecords struct{ mock.Mock }

func (m *mockRecords) GetByID(ctx context.Context, id uuid.UUID) (record.Record, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(record.Record), args.Error(1)
}

func (m *mockRecords) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]record.Record, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).([]record.Record), args.Error(1)
}

type mockPartitions struct{ mock.Mock }

func (m *mockPartitions) AdvanceDistributionOrder(ctx context.Context, id uuid.UUID) (int, partition.DistributionDefaults, bool, error) {
	args := m.Called(ctx, id)
	defaults, _ := args.Get(1).(partition.DistributionDefaults)
	return args.Int(0), defaults, args.Bool(2), args.Error(3)
}

func (m *mockPartitions) GetByID(ctx context.Context, id uuid.UUID) (partition.Partition, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(partition.Partition), args.Error(1)
}

type mockLogs struct{ mock.Mock }

func (m *mockLogs) Create(ctx context.Context, tx repository.DBTX, l *sendlog.SendLog) error {
	return m.Called(ctx, tx, l).Error(0)
}

func (m *mockLogs) MarkResult(ctx context.Context, id uuid.UUID, status sendlog.Status, code, message string, sentAt *time.Time) error {
	return m.Called(ctx, id, status, code, message, sentAt).Error(0)
}

func (m *mockLogs) GetByID(ctx context.Context, id uuid.UUID) (sendlog.SendLog, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(sendlog.SendLog), args.Error(1)
}

func (m *mockLogs) List(ctx context.Context, f sendlog.Filter) ([]sendlog.SendLog, int64, error) {
	args := m.Called(ctx, f)
	return args.Get(0).([]sendlog.SendLog), args.Get(1).(int64), args.Error(2)
}

func (m *mockLogs) Stats(ctx context.Context, orgID uuid.UUID, from, to time.Time) ([]sendlog.StatRow, error) {
	args := m.Called(ctx, orgID, from, to)
	return args.Get(0).([]sendlog.StatRow), args.Error(1)
}

type mockDispatcher struct{ mock.Mock }

func (m *mockDispatcher) Dispatch(ctx context.Context, link automation.TemplateLink, rec record.Record) (*sendlog.SendLog, error) {
	args := m.Called(ctx, link, rec)
	l, _ := args.Get(0).(*sendlog.SendLog)
	return l, args.Error(1)
}

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Publish(ctx context.Context, partitionID, kind string, payload any, excludeSessionID string) (broadcast.PublishResult, error) {
	args := m.Called(ctx, partitionID, kind, payload, excludeSessionID)
	return args.Get(0).(broadcast.PublishResult), args.Error(1)
}

type mockLimiter struct{ mock.Mock }

func (m *mockLimiter) AllowManualSend(ctx context.Context, orgID string) (*crmredis.RateLimitResult, error) {
	args := m.Called(ctx, orgID)
	res, _ := args.Get(0).(*crmredis.RateLimitResult)
	return res, args.Error(1)
}

type mockStore struct{ mock.Mock }

func (m *mockStore) Put(ctx context.Context, key, contentType string, body []byte) error {
	return m.Called(ctx, key, contentType, body).Error(0)
}

func (m *mockStore) PresignGet(ctx context.Context, key string) (string, time.Time, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Get(1).(time.Time), args.Error(2)
}
