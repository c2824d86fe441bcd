package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"jobdispatch/internal/common/apperr"
	"jobdispatch/internal/models"
)

// MessageRepo persists per-(recipient, channel) delivery records. A unique
// index on (communication_id, recipient_id, channel) makes re-dispatch
// idempotent.
type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// InsertPending records a new pending message. Returns false without error
// when a record for the same (broadcast, recipient, channel) already exists,
// which a re-run must treat as already handled.
func (r *MessageRepo) InsertPending(ctx context.Context, m *models.Message) (bool, error) {
	query := `INSERT INTO communication_messages (id, communication_id, recipient_id, channel, subject, body, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending', $7)
		ON CONFLICT (communication_id, recipient_id, channel) DO NOTHING`
	res, err := r.db.ExecContext(ctx, query,
		m.ID, m.BroadcastID, m.RecipientID, m.Channel, m.Subject, m.Body, m.CreatedAt)
	if err != nil {
		return false, apperr.StoreFailed("message.insert", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperr.StoreFailed("message.insert", err)
	}
	return n > 0, nil
}

// MarkSent finalizes a pending message as delivered.
func (r *MessageRepo) MarkSent(ctx context.Context, id uuid.UUID, retryCount int) error {
	query := `UPDATE communication_messages
		SET status = 'sent', retry_count = $2, sent_at = $3
		WHERE id = $1 AND status = 'pending'`
	if _, err := r.db.ExecContext(ctx, query, id, retryCount, time.Now().UTC()); err != nil {
		return apperr.StoreFailed("message.mark_sent", err)
	}
	return nil
}

// MarkFailed finalizes a pending message after its retries are exhausted.
func (r *MessageRepo) MarkFailed(ctx context.Context, id uuid.UUID, retryCount int, lastError string) error {
	query := `UPDATE communication_messages
		SET status = 'failed', retry_count = $2, error_message = $3
		WHERE id = $1 AND status = 'pending'`
	if _, err := r.db.ExecContext(ctx, query, id, retryCount, lastError); err != nil {
		return apperr.StoreFailed("message.mark_failed", err)
	}
	return nil
}

// InsertExcluded records a recipient skipped before any delivery attempt,
// with the reason. Idempotent like InsertPending.
func (r *MessageRepo) InsertExcluded(ctx context.Context, m *models.Message, reason string) error {
	query := `INSERT INTO communication_messages (id, communication_id, recipient_id, channel, status, exclusion_reason, created_at)
		VALUES ($1, $2, $3, $4, 'excluded', $5, $6)
		ON CONFLICT (communication_id, recipient_id, channel) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query,
		m.ID, m.BroadcastID, m.RecipientID, m.Channel, reason, m.CreatedAt); err != nil {
		return apperr.StoreFailed("message.insert_excluded", err)
	}
	return nil
}

// Stats aggregates a broadcast's messages by channel and status.
func (r *MessageRepo) Stats(ctx context.Context, broadcastID uuid.UUID) (*models.MessageStats, error) {
	query := `SELECT channel, status, COUNT(*) FROM communication_messages
		WHERE communication_id = $1 GROUP BY channel, status`
	rows, err := r.db.QueryContext(ctx, query, broadcastID)
	if err != nil {
		return nil, apperr.StoreFailed("message.stats", err)
	}
	defer rows.Close()

	stats := &models.MessageStats{
		ByChannel: make(map[models.Channel]int),
		ByStatus:  make(map[models.MessageStatus]int),
	}
	for rows.Next() {
		var channel models.Channel
		var status models.MessageStatus
		var count int
		if err := rows.Scan(&channel, &status, &count); err != nil {
			return nil, apperr.StoreFailed("message.stats", err)
		}
		stats.Total += count
		stats.ByChannel[channel] += count
		stats.ByStatus[status] += count
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.StoreFailed("message.stats", err)
	}
	return stats, nil
}

// ListForBroadcast returns a broadcast's messages newest first, optionally
// narrowed to one status.
func (r *MessageRepo) ListForBroadcast(ctx context.Context, broadcastID uuid.UUID, status models.MessageStatus, limit int) ([]*models.Message, error) {
	query := `SELECT id, communication_id, recipient_id, channel, subject, body, status, exclusion_reason, retry_count, error_message, sent_at, created_at
		FROM communication_messages WHERE communication_id = $1`
	args := []interface{}{broadcastID}
	if status != "" {
		args = append(args, status)
		query += " AND status = $2"
	}
	query += " ORDER BY created_at DESC"
	if limit > 0 {
		args = append(args, limit)
		if status != "" {
			query += " LIMIT $3"
		} else {
			query += " LIMIT $2"
		}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.StoreFailed("message.list", err)
	}
	defer rows.Close()

	var out []*models.Message
	for rows.Next() {
		var m models.Message
		var subject, body, reason, lastErr sql.NullString
		if err := rows.Scan(&m.ID, &m.BroadcastID, &m.RecipientID, &m.Channel,
			&subject, &body, &m.Status, &reason, &m.RetryCount, &lastErr,
			&m.SentAt, &m.CreatedAt); err != nil {
			return nil, apperr.StoreFailed("message.list", err)
		}
		m.Subject = subject.String
		m.Body = body.String
		m.ExclusionReason = reason.String
		m.LastError = lastErr.String
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.StoreFailed("message.list", err)
	}
	return out, nil
}
