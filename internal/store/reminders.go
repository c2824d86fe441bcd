package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"jobdispatch/internal/common/apperr"
	"jobdispatch/internal/models"
)

// ReminderRepo persists interview reminders and the interview projection the
// sweep needs to render them.
type ReminderRepo struct {
	db *sql.DB
}

func NewReminderRepo(db *sql.DB) *ReminderRepo {
	return &ReminderRepo{db: db}
}

// ReplacePending stores a pending reminder for (interview, kind), replacing
// any pending one so a rescheduled interview carries exactly one firing per
// kind. Sent or failed rows are left untouched as history.
func (r *ReminderRepo) ReplacePending(ctx context.Context, rem *models.InterviewReminder) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.StoreFailed("reminder.replace", err)
	}
	defer tx.Rollback()

	del := `DELETE FROM interview_reminders
		WHERE interview_id = $1 AND reminder_type = $2 AND status = 'pending'`
	if _, err := tx.ExecContext(ctx, del, rem.InterviewID, rem.Kind); err != nil {
		return apperr.StoreFailed("reminder.replace", err)
	}

	ins := `INSERT INTO interview_reminders (id, interview_id, reminder_type, scheduled_for, status, created_at)
		VALUES ($1, $2, $3, $4, 'pending', $5)`
	if _, err := tx.ExecContext(ctx, ins,
		rem.ID, rem.InterviewID, rem.Kind, rem.ScheduledFor, rem.CreatedAt); err != nil {
		return apperr.StoreFailed("reminder.replace", err)
	}

	if err := tx.Commit(); err != nil {
		return apperr.StoreFailed("reminder.replace", err)
	}
	return nil
}

// CancelPending drops every pending reminder of an interview, for when the
// interview itself is canceled.
func (r *ReminderRepo) CancelPending(ctx context.Context, interviewID uuid.UUID) error {
	query := "DELETE FROM interview_reminders WHERE interview_id = $1 AND status = 'pending'"
	if _, err := r.db.ExecContext(ctx, query, interviewID); err != nil {
		return apperr.StoreFailed("reminder.cancel", err)
	}
	return nil
}

// ClaimDue atomically claims up to limit due pending reminders for this
// sweep. A claim older than staleAfter is considered abandoned and can be
// re-claimed, so a crashed sweep does not strand its batch forever.
func (r *ReminderRepo) ClaimDue(ctx context.Context, now time.Time, staleAfter time.Duration, limit int) ([]*models.InterviewReminder, error) {
	staleBefore := now.Add(-staleAfter)
	query := `UPDATE interview_reminders SET claimed_at = $1
		WHERE id IN (
			SELECT id FROM interview_reminders
			WHERE status = 'pending' AND scheduled_for <= $1
			  AND (claimed_at IS NULL OR claimed_at < $2)
			ORDER BY scheduled_for
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, interview_id, reminder_type, scheduled_for, status, sent_at, error_message, created_at`
	rows, err := r.db.QueryContext(ctx, query, now, staleBefore, limit)
	if err != nil {
		return nil, apperr.StoreFailed("reminder.claim", err)
	}
	defer rows.Close()

	var out []*models.InterviewReminder
	for rows.Next() {
		var rem models.InterviewReminder
		var errMsg sql.NullString
		if err := rows.Scan(&rem.ID, &rem.InterviewID, &rem.Kind, &rem.ScheduledFor,
			&rem.Status, &rem.SentAt, &errMsg, &rem.CreatedAt); err != nil {
			return nil, apperr.StoreFailed("reminder.claim", err)
		}
		rem.ErrorMessage = errMsg.String
		out = append(out, &rem)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.StoreFailed("reminder.claim", err)
	}
	return out, nil
}

// MarkSent finalizes a claimed reminder after its notification went out.
func (r *ReminderRepo) MarkSent(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE interview_reminders SET status = 'sent', sent_at = $2
		WHERE id = $1 AND status = 'pending'`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return apperr.StoreFailed("reminder.mark_sent", err)
	}
	return nil
}

// MarkFailed finalizes a claimed reminder whose notification could not be sent.
func (r *ReminderRepo) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	query := `UPDATE interview_reminders SET status = 'failed', error_message = $2
		WHERE id = $1 AND status = 'pending'`
	if _, err := r.db.ExecContext(ctx, query, id, reason); err != nil {
		return apperr.StoreFailed("reminder.mark_failed", err)
	}
	return nil
}

// GetInterview loads the projection needed to render an interview's
// notifications.
func (r *ReminderRepo) GetInterview(ctx context.Context, id uuid.UUID) (*models.Interview, error) {
	query := `SELECT id, application_id, candidate_id, job_title, company_name, scheduled_at, interview_type, location_or_link, notes
		FROM interviews WHERE id = $1`
	var iv models.Interview
	var location, notes sql.NullString
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&iv.ID, &iv.ApplicationID, &iv.CandidateID, &iv.JobTitle, &iv.CompanyName,
		&iv.ScheduledAt, &iv.Type, &location, &notes)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("interview", id.String())
	}
	if err != nil {
		return nil, apperr.StoreFailed("reminder.get_interview", err)
	}
	iv.LocationOrLink = location.String
	iv.Notes = notes.String
	return &iv, nil
}
