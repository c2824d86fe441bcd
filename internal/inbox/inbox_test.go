package inbox

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobdispatch/internal/common/logger"
	"jobdispatch/internal/models"
	"jobdispatch/internal/realtime"
	"jobdispatch/internal/store"
)

type testEnv struct {
	inbox *Inbox
	feed  *realtime.Feed
	mock  sqlmock.Sqlmock
}

func newTestEnv(t *testing.T, window int) *testEnv {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	feed := realtime.NewFeed(client, logger.NewNoOpLogger())

	return &testEnv{
		inbox: New(store.NewNotificationRepo(db), store.NewPreferencesRepo(db), feed, window, logger.NewNoOpLogger()),
		feed:  feed,
		mock:  mock,
	}
}

func notificationRows(ns ...models.Notification) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "user_id", "type", "title", "message", "link", "read", "metadata", "created_at",
	})
	for _, n := range ns {
		rows.AddRow(n.ID, n.RecipientID, n.Type, n.Title, n.Message, n.Link, n.Read, nil, n.CreatedAt)
	}
	return rows
}

func (e *testEnv) expectOpen(recipientID string, unread int, ns ...models.Notification) {
	e.mock.ExpectQuery("SELECT .+ FROM notifications").
		WithArgs(recipientID, sqlmock.AnyArg()).
		WillReturnRows(notificationRows(ns...))
	e.mock.ExpectQuery("SELECT COUNT").
		WithArgs(recipientID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(unread))
}

func TestOpen_LoadsWindowAndCounter(t *testing.T) {
	env := newTestEnv(t, 50)
	n := models.Notification{ID: uuid.New(), RecipientID: "u1", Type: "message_received", Title: "Nouveau message", CreatedAt: time.Now()}
	env.expectOpen("u1", 3, n)

	s, err := env.inbox.Open(context.Background(), "u1")
	require.NoError(t, err)
	defer s.Close()

	assert.Len(t, s.Notifications(), 1)
	assert.Equal(t, 3, s.UnreadCount())
}

func TestInsertEventPrependsAndCounts(t *testing.T) {
	env := newTestEnv(t, 50)
	env.expectOpen("u1", 0)

	ctx := context.Background()
	s, err := env.inbox.Open(ctx, "u1")
	require.NoError(t, err)
	defer s.Close()

	fresh := models.Notification{ID: uuid.New(), RecipientID: "u1", Type: "interview_scheduled", Title: "Entretien planifié", CreatedAt: time.Now()}
	require.NoError(t, env.feed.Publish(ctx, "u1", models.ChangeEvent{Kind: models.ChangeInsert, Notification: fresh}))

	require.Eventually(t, func() bool {
		return s.UnreadCount() == 1 && len(s.Notifications()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, fresh.ID, s.Notifications()[0].ID)
}

func TestWindowIsBounded(t *testing.T) {
	env := newTestEnv(t, 2)
	old := models.Notification{ID: uuid.New(), RecipientID: "u1", Read: true, CreatedAt: time.Now().Add(-time.Hour)}
	mid := models.Notification{ID: uuid.New(), RecipientID: "u1", Read: true, CreatedAt: time.Now().Add(-time.Minute)}
	env.expectOpen("u1", 0, mid, old)

	ctx := context.Background()
	s, err := env.inbox.Open(ctx, "u1")
	require.NoError(t, err)
	defer s.Close()

	fresh := models.Notification{ID: uuid.New(), RecipientID: "u1", CreatedAt: time.Now()}
	require.NoError(t, env.feed.Publish(ctx, "u1", models.ChangeEvent{Kind: models.ChangeInsert, Notification: fresh}))

	require.Eventually(t, func() bool {
		ns := s.Notifications()
		return len(ns) == 2 && ns[0].ID == fresh.ID
	}, 2*time.Second, 10*time.Millisecond)
	// The oldest row fell out of the window.
	for _, n := range s.Notifications() {
		assert.NotEqual(t, old.ID, n.ID)
	}
}

func TestMarkRead_DecrementsOnce(t *testing.T) {
	env := newTestEnv(t, 50)
	n := models.Notification{ID: uuid.New(), RecipientID: "u1", CreatedAt: time.Now()}
	env.expectOpen("u1", 1, n)

	ctx := context.Background()
	s, err := env.inbox.Open(ctx, "u1")
	require.NoError(t, err)
	defer s.Close()

	env.mock.ExpectExec("UPDATE notifications SET read = true").
		WithArgs(n.ID, "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.MarkRead(ctx, n.ID))
	assert.Equal(t, 0, s.UnreadCount())
	assert.True(t, s.Notifications()[0].Read)

	// Second call: the row is already read, nothing changes.
	env.mock.ExpectExec("UPDATE notifications SET read = true").
		WithArgs(n.ID, "u1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, s.MarkRead(ctx, n.ID))
	assert.Equal(t, 0, s.UnreadCount())
}

func TestMarkAllRead_ZeroesCounter(t *testing.T) {
	env := newTestEnv(t, 50)
	a := models.Notification{ID: uuid.New(), RecipientID: "u1", CreatedAt: time.Now()}
	b := models.Notification{ID: uuid.New(), RecipientID: "u1", CreatedAt: time.Now().Add(-time.Minute)}
	env.expectOpen("u1", 2, a, b)

	ctx := context.Background()
	s, err := env.inbox.Open(ctx, "u1")
	require.NoError(t, err)
	defer s.Close()

	env.mock.ExpectExec("UPDATE notifications SET read = true").
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	require.NoError(t, s.MarkAllRead(ctx))
	assert.Equal(t, 0, s.UnreadCount())
	for _, n := range s.Notifications() {
		assert.True(t, n.Read)
	}
}

func TestDelete_UnreadRowDecrements(t *testing.T) {
	env := newTestEnv(t, 50)
	n := models.Notification{ID: uuid.New(), RecipientID: "u1", CreatedAt: time.Now()}
	env.expectOpen("u1", 1, n)

	ctx := context.Background()
	s, err := env.inbox.Open(ctx, "u1")
	require.NoError(t, err)
	defer s.Close()

	env.mock.ExpectQuery("DELETE FROM notifications").
		WithArgs(n.ID, "u1").
		WillReturnRows(sqlmock.NewRows([]string{"not_read"}).AddRow(true))
	require.NoError(t, s.Delete(ctx, n.ID))
	assert.Equal(t, 0, s.UnreadCount())
	assert.Empty(t, s.Notifications())
}

func TestDelete_ReadRowKeepsCounter(t *testing.T) {
	env := newTestEnv(t, 50)
	n := models.Notification{ID: uuid.New(), RecipientID: "u1", Read: true, CreatedAt: time.Now()}
	env.expectOpen("u1", 4, n)

	ctx := context.Background()
	s, err := env.inbox.Open(ctx, "u1")
	require.NoError(t, err)
	defer s.Close()

	env.mock.ExpectQuery("DELETE FROM notifications").
		WithArgs(n.ID, "u1").
		WillReturnRows(sqlmock.NewRows([]string{"not_read"}).AddRow(false))
	require.NoError(t, s.Delete(ctx, n.ID))
	assert.Equal(t, 4, s.UnreadCount())
}

func TestMarkAllRead_ReachesRowsOutsideSiblingWindow(t *testing.T) {
	env := newTestEnv(t, 2)
	a := models.Notification{ID: uuid.New(), RecipientID: "u1", CreatedAt: time.Now()}
	b := models.Notification{ID: uuid.New(), RecipientID: "u1", CreatedAt: time.Now().Add(-time.Minute)}
	env.expectOpen("u1", 2, a, b)
	// The sibling's counter includes unread rows its bounded window never
	// loaded.
	env.expectOpen("u1", 5, a, b)

	ctx := context.Background()
	owner, err := env.inbox.Open(ctx, "u1")
	require.NoError(t, err)
	defer owner.Close()
	sibling, err := env.inbox.Open(ctx, "u1")
	require.NoError(t, err)
	defer sibling.Close()

	env.mock.ExpectExec("UPDATE notifications SET read = true").
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 5))
	require.NoError(t, owner.MarkAllRead(ctx))

	require.Eventually(t, func() bool {
		return sibling.UnreadCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
	for _, n := range sibling.Notifications() {
		assert.True(t, n.Read)
	}
}

func TestTwoSessionsStayInSync(t *testing.T) {
	env := newTestEnv(t, 50)
	n := models.Notification{ID: uuid.New(), RecipientID: "u1", CreatedAt: time.Now()}
	env.expectOpen("u1", 1, n)
	env.expectOpen("u1", 1, n)

	ctx := context.Background()
	first, err := env.inbox.Open(ctx, "u1")
	require.NoError(t, err)
	defer first.Close()
	second, err := env.inbox.Open(ctx, "u1")
	require.NoError(t, err)
	defer second.Close()

	env.mock.ExpectExec("UPDATE notifications SET read = true").
		WithArgs(n.ID, "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, first.MarkRead(ctx, n.ID))

	require.Eventually(t, func() bool {
		return second.UnreadCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}
