package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobdispatch/internal/models"
)

func TestReplacePending_DeletesThenInserts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewReminderRepo(db)
	rem := &models.InterviewReminder{
		ID:           uuid.New(),
		InterviewID:  uuid.New(),
		Kind:         models.Reminder24h,
		ScheduledFor: time.Now().Add(23 * time.Hour),
		Status:       models.ReminderPending,
		CreatedAt:    time.Now().UTC(),
	}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM interview_reminders").
		WithArgs(rem.InterviewID, rem.Kind).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO interview_reminders").
		WithArgs(rem.ID, rem.InterviewID, rem.Kind, rem.ScheduledFor, rem.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = repo.ReplacePending(context.Background(), rem)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimDue_ReturnsClaimedBatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewReminderRepo(db)
	now := time.Now().UTC()
	interviewID := uuid.New()

	rows := sqlmock.NewRows([]string{
		"id", "interview_id", "reminder_type", "scheduled_for", "status",
		"sent_at", "error_message", "created_at",
	}).AddRow(uuid.New(), interviewID, "reminder_2h", now.Add(-time.Minute), "pending", nil, nil, now.Add(-2*time.Hour))
	mock.ExpectQuery("UPDATE interview_reminders SET claimed_at").
		WithArgs(now, now.Add(-10*time.Minute), 50).
		WillReturnRows(rows)

	claimed, err := repo.ClaimDue(context.Background(), now, 10*time.Minute, 50)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, models.Reminder2h, claimed[0].Kind)
	assert.Equal(t, interviewID, claimed[0].InterviewID)
	assert.Equal(t, models.ReminderPending, claimed[0].Status)
}
