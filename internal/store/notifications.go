package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"

	"jobdispatch/internal/common/apperr"
	"jobdispatch/internal/models"
)

// NotificationRepo persists in-app inbox rows.
type NotificationRepo struct {
	db *sql.DB
}

func NewNotificationRepo(db *sql.DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

const notificationColumns = "id, user_id, type, title, message, link, read, metadata, created_at"

// Insert stores a new unread notification.
func (r *NotificationRepo) Insert(ctx context.Context, n *models.Notification) error {
	var metadata []byte
	if n.Metadata != nil {
		var err error
		metadata, err = json.Marshal(n.Metadata)
		if err != nil {
			return apperr.StoreFailed("notification.insert", err)
		}
	}
	query := `INSERT INTO notifications (id, user_id, type, title, message, link, read, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, false, $7, $8)`
	if _, err := r.db.ExecContext(ctx, query,
		n.ID, n.RecipientID, n.Type, n.Title, n.Message, n.Link, metadata, n.CreatedAt); err != nil {
		return apperr.StoreFailed("notification.insert", err)
	}
	return nil
}

// ListRecent returns the recipient's newest notifications, newest first.
func (r *NotificationRepo) ListRecent(ctx context.Context, recipientID string, limit int) ([]models.Notification, error) {
	query := "SELECT " + notificationColumns + ` FROM notifications
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, recipientID, limit)
	if err != nil {
		return nil, apperr.StoreFailed("notification.list", err)
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, apperr.StoreFailed("notification.list", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.StoreFailed("notification.list", err)
	}
	return out, nil
}

// UnreadCount returns the recipient's number of unread notifications.
func (r *NotificationRepo) UnreadCount(ctx context.Context, recipientID string) (int, error) {
	var count int
	query := "SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read = false"
	if err := r.db.QueryRowContext(ctx, query, recipientID).Scan(&count); err != nil {
		return 0, apperr.StoreFailed("notification.unread_count", err)
	}
	return count, nil
}

// MarkRead flags one of the recipient's notifications as read. Returns true
// when the row was unread before the call.
func (r *NotificationRepo) MarkRead(ctx context.Context, recipientID string, id uuid.UUID) (bool, error) {
	query := `UPDATE notifications SET read = true
		WHERE id = $1 AND user_id = $2 AND read = false`
	res, err := r.db.ExecContext(ctx, query, id, recipientID)
	if err != nil {
		return false, apperr.StoreFailed("notification.mark_read", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperr.StoreFailed("notification.mark_read", err)
	}
	return n > 0, nil
}

// MarkAllRead flags every unread notification of the recipient as read and
// returns how many rows changed.
func (r *NotificationRepo) MarkAllRead(ctx context.Context, recipientID string) (int, error) {
	query := "UPDATE notifications SET read = true WHERE user_id = $1 AND read = false"
	res, err := r.db.ExecContext(ctx, query, recipientID)
	if err != nil {
		return 0, apperr.StoreFailed("notification.mark_all_read", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperr.StoreFailed("notification.mark_all_read", err)
	}
	return int(n), nil
}

// Delete removes one of the recipient's notifications. Returns true when the
// deleted row was still unread, so the caller can adjust its counter.
func (r *NotificationRepo) Delete(ctx context.Context, recipientID string, id uuid.UUID) (bool, error) {
	var wasUnread bool
	query := `DELETE FROM notifications WHERE id = $1 AND user_id = $2
		RETURNING NOT read`
	err := r.db.QueryRowContext(ctx, query, id, recipientID).Scan(&wasUnread)
	if err == sql.ErrNoRows {
		return false, apperr.NotFound("notification", id.String())
	}
	if err != nil {
		return false, apperr.StoreFailed("notification.delete", err)
	}
	return wasUnread, nil
}

func scanNotification(row rowScanner) (models.Notification, error) {
	var n models.Notification
	var link sql.NullString
	var metadata []byte
	err := row.Scan(&n.ID, &n.RecipientID, &n.Type, &n.Title, &n.Message,
		&link, &n.Read, &metadata, &n.CreatedAt)
	if err != nil {
		return n, err
	}
	n.Link = link.String
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &n.Metadata); err != nil {
			return n, err
		}
	}
	return n, nil
}
