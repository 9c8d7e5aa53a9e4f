package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"crm-messaging/internal/domain/automation"
	"crm-messaging/internal/domain/sendlog"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

var queueRowColumns = []string{
	"id", "template_link_id", "record_id", "scheduled_at", "attempt_count", "occurrence_index",
	"status", "last_error", "created_at", "updated_at",
}

func TestQueueEnqueue_InsertsNewOccurrence(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewQueueRepository(db)

	entry := automation.NewQueueEntry(uuid.New(), uuid.New(), 1, time.Now().Add(time.Hour))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO automation_queue`)).
		WithArgs(entry.ID, entry.TemplateLinkID, entry.RecordID, sqlmock.AnyArg(), 0, 1, automation.QueuePending, "", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	inserted, err := repo.Enqueue(context.Background(), nil, &entry)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueueEnqueue_DuplicateOccurrenceIsNoop(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewQueueRepository(db)

	entry := automation.NewQueueEntry(uuid.New(), uuid.New(), 1, time.Now())
	mock.ExpectExec(regexp.QuoteMeta(`WHERE status IN ('pending', 'processing') DO NOTHING`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err := repo.Enqueue(context.Background(), nil, &entry)
	require.NoError(t, err)
	assert.False(t, inserted)
}

func TestQueueListDue_OrdersBySchedule(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewQueueRepository(db)

	now := time.Now().UTC()
	first, second := uuid.New(), uuid.New()
	link, rec := uuid.New(), uuid.New()
	rows := sqlmock.NewRows(queueRowColumns).
		AddRow(first.String(), link.String(), rec.String(), now.Add(-2*time.Minute), 0, 0, "pending", "", now, now).
		AddRow(second.String(), link.String(), rec.String(), now.Add(-time.Minute), 0, 1, "pending", "", now, now)

	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY scheduled_at ASC, id ASC`)).
		WithArgs(now, 50).
		WillReturnRows(rows)

	entries, err := repo.ListDue(context.Background(), now, 50)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, first, entries[0].ID)
	assert.Equal(t, 1, entries[1].OccurrenceIndex)
	assert.Equal(t, automation.QueuePending, entries[1].Status)
}

func TestQueueClaim(t *testing.T) {
	now := time.Now().UTC()

	t.Run("claimed", func(t *testing.T) {
		db, mock := setupMockDB(t)
		id := uuid.New()
		mock.ExpectExec(regexp.QuoteMeta(`WHERE id = $1 AND status = 'pending'`)).
			WithArgs(id, now).
			WillReturnResult(sqlmock.NewResult(0, 1))

		ok, err := NewQueueRepository(db).Claim(context.Background(), id, now)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("already claimed", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectExec(`UPDATE automation_queue`).WillReturnResult(sqlmock.NewResult(0, 0))

		ok, err := NewQueueRepository(db).Claim(context.Background(), uuid.New(), now)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("sibling in flight", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectExec(`UPDATE automation_queue`).WillReturnError(&pgconn.PgError{Code: "23505"})

		ok, err := NewQueueRepository(db).Claim(context.Background(), uuid.New(), now)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestQueueFinish_WritesLogAndNextInOneTx(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewQueueRepository(db)

	entryID := uuid.New()
	next := automation.NewQueueEntry(uuid.New(), uuid.New(), 2, time.Now().Add(24*time.Hour))
	log := &sendlog.SendLog{
		QueueEntryID: uuid.NullUUID{UUID: entryID, Valid: true},
		Channel:      "alimtalk",
		Recipient:    "01012345678",
		Status:       sendlog.StatusSent,
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE automation_queue`)).
		WithArgs(automation.QueueDone, "", sqlmock.AnyArg(), entryID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO send_logs`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO automation_queue`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	inserted, err := repo.Finish(context.Background(), FinishInput{
		EntryID: entryID,
		Status:  automation.QueueDone,
		Log:     log,
		Next:    &next,
	})
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NotEqual(t, uuid.Nil, log.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueueFinish_RollsBackWhenEntryNotProcessing(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewQueueRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE automation_queue`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := repo.Finish(context.Background(), FinishInput{
		EntryID: uuid.New(),
		Status:  automation.QueueDone,
		Log:     &sendlog.SendLog{},
	})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueueReapStale_ReturnsClosedEntries(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewQueueRepository(db)

	now := time.Now().UTC()
	cutoff := now.Add(-10 * time.Minute)
	id := uuid.New()
	rows := sqlmock.NewRows(queueRowColumns).
		AddRow(id.String(), uuid.NewString(), uuid.NewString(), now.Add(-time.Hour), 1, 0, "done", "stale claim", now, now)

	mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE SKIP LOCKED`)).
		WithArgs(cutoff, 100).
		WillReturnRows(rows)

	reaped, err := repo.ReapStale(context.Background(), cutoff, 100)
	require.NoError(t, err)
	require.Len(t, reaped, 1)
	assert.Equal(t, id, reaped[0].ID)
	assert.Equal(t, automation.QueueDone, reaped[0].Status)
}

func TestQueueCancelPendingForLink(t *testing.T) {
	db, mock := setupMockDB(t)
	linkID := uuid.New()
	mock.ExpectExec(regexp.QuoteMeta(`SET status = 'cancelled'`)).
		WithArgs(linkID).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := NewQueueRepository(db).CancelPendingForLink(context.Background(), linkID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestQueueHasLiveChain(t *testing.T) {
	db, mock := setupMockDB(t)
	linkID, recordID := uuid.New(), uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta(`status IN ('pending', 'processing')`)).
		WithArgs(linkID, recordID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	live, err := NewQueueRepository(db).HasLiveChain(context.Background(), linkID, recordID)
	require.NoError(t, err)
	assert.False(t, live)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueueReschedule_ReplacesPendingInOneTx(t *testing.T) {
	db, mock := setupMockDB(t)
	entry := automation.NewQueueEntry(uuid.New(), uuid.New(), 0, time.Now().Add(24*time.Hour))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`SET status = 'cancelled', last_error = 'rescheduled'`)).
		WithArgs(entry.TemplateLinkID, entry.RecordID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO automation_queue`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	inserted, err := NewQueueRepository(db).Reschedule(context.Background(), &entry)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueueReschedule_RollsBackOnInsertError(t *testing.T) {
	db, mock := setupMockDB(t)
	entry := automation.NewQueueEntry(uuid.New(), uuid.New(), 0, time.Now())

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE automation_queue`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO automation_queue`).WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err := NewQueueRepository(db).Reschedule(context.Background(), &entry)
	assert.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}
