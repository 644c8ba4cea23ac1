package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/oakline/cabinetry-backend/pkg/db/models"
	"github.com/oakline/cabinetry-backend/pkg/enums"
	pkgerrors "github.com/oakline/cabinetry-backend/pkg/errors"
)

func setupNotificationsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	ddl := `
CREATE TABLE IF NOT EXISTS notifications (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  type TEXT NOT NULL,
  title TEXT NOT NULL,
  message TEXT NOT NULL,
  link TEXT,
  read_at DATETIME,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(ddl).Error)
	return db
}

func newNotificationsService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)
	return svc
}

func seedNotification(t *testing.T, db *gorm.DB, userID uuid.UUID, createdAt time.Time) *models.Notification {
	t.Helper()
	row := &models.Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      enums.NotificationTypeStockAlert,
		Title:     "stock alert",
		Message:   "plywood is running low",
		CreatedAt: createdAt,
	}
	require.NoError(t, db.Create(row).Error)
	return row
}

func TestListNewestFirstWithCursor(t *testing.T) {
	db := setupNotificationsTestDB(t)
	svc := newNotificationsService(t, db)
	userID := uuid.New()

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		seedNotification(t, db, userID, base.Add(time.Duration(i)*time.Minute))
	}

	first, err := svc.List(context.Background(), ListParams{UserID: userID, Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	assert.True(t, first.Items[0].CreatedAt.After(first.Items[1].CreatedAt))
	require.NotEmpty(t, first.Cursor)

	second, err := svc.List(context.Background(), ListParams{UserID: userID, Limit: 2, Cursor: first.Cursor})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Empty(t, second.Cursor)
}

func TestListScopedToUser(t *testing.T) {
	db := setupNotificationsTestDB(t)
	svc := newNotificationsService(t, db)
	userID := uuid.New()

	seedNotification(t, db, userID, time.Now().UTC())
	seedNotification(t, db, uuid.New(), time.Now().UTC())

	result, err := svc.List(context.Background(), ListParams{UserID: userID})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, userID, result.Items[0].UserID)
}

func TestMarkReadAndUnreadCount(t *testing.T) {
	db := setupNotificationsTestDB(t)
	svc := newNotificationsService(t, db)
	userID := uuid.New()
	row := seedNotification(t, db, userID, time.Now().UTC())

	count, err := svc.UnreadCount(context.Background(), userID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	require.NoError(t, svc.MarkRead(context.Background(), userID, row.ID))

	count, err = svc.UnreadCount(context.Background(), userID)
	require.NoError(t, err)
	assert.Zero(t, count)

	// Marking an already-read row again is a no-op, not an error.
	require.NoError(t, svc.MarkRead(context.Background(), userID, row.ID))
}

func TestMarkReadRejectsForeignNotification(t *testing.T) {
	db := setupNotificationsTestDB(t)
	svc := newNotificationsService(t, db)
	row := seedNotification(t, db, uuid.New(), time.Now().UTC())

	err := svc.MarkRead(context.Background(), uuid.New(), row.ID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestMarkAllRead(t *testing.T) {
	db := setupNotificationsTestDB(t)
	svc := newNotificationsService(t, db)
	userID := uuid.New()
	for i := 0; i < 3; i++ {
		seedNotification(t, db, userID, time.Now().UTC())
	}

	count, err := svc.MarkAllRead(context.Background(), userID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	unread, err := svc.UnreadCount(context.Background(), userID)
	require.NoError(t, err)
	assert.Zero(t, unread)
}

func TestValidationRejectsNilUser(t *testing.T) {
	db := setupNotificationsTestDB(t)
	svc := newNotificationsService(t, db)

	_, err := svc.List(context.Background(), ListParams{})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, err = svc.UnreadCount(context.Background(), uuid.Nil)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}
