package automation

import (
	"context"
	"sort"
	"sync"
	"time"

	"crm-messaging/internal/domain/automation"
	"crm-messaging/internal/domain/record"
	"crm-messaging/internal/domain/sendlog"
	"crm-messaging/internal/provider"
	"crm-messaging/internal/repository"
	crm_errors "crm-messaging/pkg/errors"

	"github.com/google/uuid"
)

type occurrenceKey struct {
	link, record uuid.UUID
	index        int
}

// memoryQueue mirrors the SQL queue semantics: conditional claim, one processing entry per
// (link, record), enqueue idempotent among live entries only.
type memoryQueue struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*automation.QueueEntry
	keys    map[occurrenceKey]uuid.UUID
	logs    *memoryLogs
}

func newMemoryQueue(logs *memoryLogs) *memoryQueue {
	return &memoryQueue{
		entries: map[uuid.UUID]*automation.QueueEntry{},
		keys:    map[occurrenceKey]uuid.UUID{},
		logs:    logs,
	}
}

func (q *memoryQueue) Enqueue(_ context.Context, _ repository.DBTX, e *automation.QueueEntry) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.enqueueLocked(e), nil
}

func (q *memoryQueue) enqueueLocked(e *automation.QueueEntry) bool {
	key := occurrenceKey{e.TemplateLinkID, e.RecordID, e.OccurrenceIndex}
	if id, ok := q.keys[key]; ok && q.entries[id].Status.Live() {
		return false
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Status == "" {
		e.Status = automation.QueuePending
	}
	cp := *e
	q.entries[e.ID] = &cp
	q.keys[key] = e.ID
	return true
}

func (q *memoryQueue) ListDue(_ context.Context, now time.Time, limit int) ([]automation.QueueEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var due []automation.QueueEntry
	for _, e := range q.entries {
		if e.Status == automation.QueuePending && !e.ScheduledAt.After(now) {
			due = append(due, *e)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].ScheduledAt.Equal(due[j].ScheduledAt) {
			return due[i].ScheduledAt.Before(due[j].ScheduledAt)
		}
		return due[i].ID.String() < due[j].ID.String()
	})
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (q *memoryQueue) Claim(_ context.Context, id uuid.UUID, now time.Time) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.entries[id]
	if !ok || e.Status != automation.QueuePending {
		return false, nil
	}
	for _, other := range q.entries {
		if other.Status == automation.QueueProcessing && other.TemplateLinkID == e.TemplateLinkID && other.RecordID == e.RecordID {
			return false, nil
		}
	}
	e.Status = automation.QueueProcessing
	e.AttemptCount++
	e.UpdatedAt = now
	return true, nil
}

func (q *memoryQueue) Finish(_ context.Context, in repository.FinishInput) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.entries[in.EntryID]
	if !ok || e.Status != automation.QueueProcessing {
		return false, crm_errors.ErrInvalidTransition
	}
	e.Status = in.Status
	e.LastError = in.LastError
	if in.Log != nil {
		if err := q.logs.Create(context.Background(), nil, in.Log); err != nil {
			return false, err
		}
	}
	if in.Next != nil {
		return q.enqueueLocked(in.Next), nil
	}
	return false, nil
}

func (q *memoryQueue) ReapStale(_ context.Context, cutoff time.Time, limit int) ([]automation.QueueEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []automation.QueueEntry
	for _, e := range q.entries {
		if len(out) == limit {
			break
		}
		if e.Status == automation.QueueProcessing && e.UpdatedAt.Before(cutoff) {
			e.Status = automation.QueueDone
			e.LastError = "stale claim"
			out = append(out, *e)
		}
	}
	return out, nil
}

func (q *memoryQueue) CancelPendingForLink(_ context.Context, linkID uuid.UUID) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var n int64
	for _, e := range q.entries {
		if e.TemplateLinkID == linkID && e.Status == automation.QueuePending {
			e.Status = automation.QueueCancelled
			n++
		}
	}
	return n, nil
}

func (q *memoryQueue) HasLiveChain(_ context.Context, linkID, recordID uuid.UUID) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range q.entries {
		if e.TemplateLinkID == linkID && e.RecordID == recordID && e.Status.Live() {
			return true, nil
		}
	}
	return false, nil
}

func (q *memoryQueue) Reschedule(_ context.Context, e *automation.QueueEntry) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, other := range q.entries {
		if other.TemplateLinkID == e.TemplateLinkID && other.RecordID == e.RecordID && other.Status == automation.QueuePending {
			other.Status = automation.QueueCancelled
			other.LastError = "rescheduled"
		}
	}
	return q.enqueueLocked(e), nil
}

func (q *memoryQueue) byOccurrence(link, rec uuid.UUID, index int) (automation.QueueEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	id, ok := q.keys[occurrenceKey{link, rec, index}]
	if !ok {
		return automation.QueueEntry{}, false
	}
	return *q.entries[id], true
}

func (q *memoryQueue) countStatus(status automation.QueueStatus) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, e := range q.entries {
		if e.Status == status {
			n++
		}
	}
	return n
}

type memoryLogs struct {
	mu      sync.Mutex
	rows    []sendlog.SendLog
	byEntry map[uuid.UUID]struct{}
}

func newMemoryLogs() *memoryLogs {
	return &memoryLogs{byEntry: map[uuid.UUID]struct{}{}}
}

func (m *memoryLogs) Create(_ context.Context, _ repository.DBTX, l *sendlog.SendLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l.QueueEntryID.Valid {
		if _, dup := m.byEntry[l.QueueEntryID.UUID]; dup {
			return nil
		}
		m.byEntry[l.QueueEntryID.UUID] = struct{}{}
	}
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	m.rows = append(m.rows, *l)
	return nil
}

func (m *memoryLogs) MarkResult(_ context.Context, id uuid.UUID, status sendlog.Status, code, message string, sentAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		if m.rows[i].ID == id {
			if m.rows[i].Status != sendlog.StatusPending {
				return crm_errors.ErrInvalidTransition
			}
			m.rows[i].Status = status
			m.rows[i].ProviderResultCode = code
			m.rows[i].ProviderMessage = message
			m.rows[i].SentAt = sentAt
			return nil
		}
	}
	return crm_errors.ErrNotFound
}

func (m *memoryLogs) GetByID(_ context.Context, id uuid.UUID) (sendlog.SendLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.ID == id {
			return r, nil
		}
	}
	return sendlog.SendLog{}, crm_errors.ErrNotFound
}

func (m *memoryLogs) List(context.Context, sendlog.Filter) ([]sendlog.SendLog, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sendlog.SendLog(nil), m.rows...), int64(len(m.rows)), nil
}

func (m *memoryLogs) Stats(context.Context, uuid.UUID, time.Time, time.Time) ([]sendlog.StatRow, error) {
	return nil, nil
}

func (m *memoryLogs) all() []sendlog.SendLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sendlog.SendLog(nil), m.rows...)
}

type linkStore map[uuid.UUID]automation.TemplateLink

func (s linkStore) GetByID(_ context.Context, id uuid.UUID) (automation.TemplateLink, error) {
	l, ok := s[id]
	if !ok {
		return automation.TemplateLink{}, crm_errors.ErrNotFound
	}
	return l, nil
}

type recordStore map[uuid.UUID]record.Record

func (s recordStore) GetByID(_ context.Context, id uuid.UUID) (record.Record, error) {
	r, ok := s[id]
	if !ok {
		return record.Record{}, crm_errors.ErrNotFound
	}
	return r, nil
}

// scriptedSender answers every Send with result/err and remembers what it got.
type scriptedSender struct {
	mu      sync.Mutex
	channel automation.Channel
	result  provider.SendResult
	err     error
	sent    []provider.Message
}

func (s *scriptedSender) Channel() automation.Channel { return s.channel }

func (s *scriptedSender) Send(_ context.Context, msg provider.Message) (provider.SendResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return s.result, s.err
}

func (s *scriptedSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type senderMap map[automation.Channel]provider.Sender

func (m senderMap) Sender(ch automation.Channel) (provider.Sender, error) {
	s, ok := m[ch]
	if !ok {
		return nil, crm_errors.ErrUnsupportedChannel
	}
	return s, nil
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
