package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"jobdispatch/internal/common/apperr"
	"jobdispatch/internal/models"
)

// CorrelationRepo persists the per-case communication history, keyed by
// application and interview.
type CorrelationRepo struct {
	db *sql.DB
}

func NewCorrelationRepo(db *sql.DB) *CorrelationRepo {
	return &CorrelationRepo{db: db}
}

const correlationColumns = "id, application_id, interview_id, sender_id, recipient_id, communication_type, channel, subject, message, status, sent_at"

// Append stores one history record.
func (r *CorrelationRepo) Append(ctx context.Context, e *models.CorrelationEntry) error {
	query := `INSERT INTO communications (` + correlationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	if _, err := r.db.ExecContext(ctx, query,
		e.ID, e.ApplicationID, e.InterviewID, e.SenderID, e.RecipientID,
		e.EventType, e.Channel, e.Subject, e.Body, e.Status, e.SentAt); err != nil {
		return apperr.StoreFailed("correlation.append", err)
	}
	return nil
}

// ListForApplication returns the history of one application, oldest first.
func (r *CorrelationRepo) ListForApplication(ctx context.Context, applicationID uuid.UUID) ([]*models.CorrelationEntry, error) {
	query := "SELECT " + correlationColumns + ` FROM communications
		WHERE application_id = $1 ORDER BY sent_at`
	return r.list(ctx, query, applicationID)
}

// ListForInterview returns the history of one interview, oldest first.
func (r *CorrelationRepo) ListForInterview(ctx context.Context, interviewID uuid.UUID) ([]*models.CorrelationEntry, error) {
	query := "SELECT " + correlationColumns + ` FROM communications
		WHERE interview_id = $1 ORDER BY sent_at`
	return r.list(ctx, query, interviewID)
}

func (r *CorrelationRepo) list(ctx context.Context, query string, args ...interface{}) ([]*models.CorrelationEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.StoreFailed("correlation.list", err)
	}
	defer rows.Close()

	var out []*models.CorrelationEntry
	for rows.Next() {
		var e models.CorrelationEntry
		var sender, subject sql.NullString
		if err := rows.Scan(&e.ID, &e.ApplicationID, &e.InterviewID, &sender,
			&e.RecipientID, &e.EventType, &e.Channel, &subject, &e.Body,
			&e.Status, &e.SentAt); err != nil {
			return nil, apperr.StoreFailed("correlation.list", err)
		}
		e.SenderID = sender.String
		e.Subject = subject.String
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.StoreFailed("correlation.list", err)
	}
	return out, nil
}
