// Package reminder persists and fires the T-24h and T-2h interview
// reminders.
package reminder

import (
	"context"
	"time"

	"github.com/google/uuid"

	"jobdispatch/internal/common/logger"
	"jobdispatch/internal/common/metrics"
	"jobdispatch/internal/models"
	"jobdispatch/internal/notify"
	"jobdispatch/internal/store"
)

// recipientLookup resolves the candidate projection a reminder targets.
type recipientLookup interface {
	ByID(ctx context.Context, id string) (*models.Recipient, error)
}

// notifier sends the rendered reminder notification.
type notifier interface {
	SendInterviewNotification(ctx context.Context, iv *models.Interview, recipient models.Recipient, t models.EventType, extra map[string]interface{}, senderID string) (*notify.Result, error)
}

// Options tunes the reminder sweep.
type Options struct {
	BatchSize int
	// StaleClaim is how long a claim blocks other sweepers before the row
	// is considered abandoned.
	StaleClaim time.Duration
}

// Scheduler owns the reminder lifecycle: arming on interview changes and
// firing due reminders from the periodic sweep.
type Scheduler struct {
	reminders  *store.ReminderRepo
	recipients recipientLookup
	notifier   notifier
	opts       Options
	logger     logger.Logger
}

func NewScheduler(reminders *store.ReminderRepo, recipients recipientLookup, n notifier, opts Options, log logger.Logger) *Scheduler {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.StaleClaim <= 0 {
		opts.StaleClaim = 10 * time.Minute
	}
	return &Scheduler{
		reminders:  reminders,
		recipients: recipients,
		notifier:   n,
		opts:       opts,
		logger:     log.WithFields(map[string]interface{}{"component": "reminder"}),
	}
}

// ScheduleForInterview arms both reminder kinds for an interview. Calling it
// again, after a reschedule, replaces the pending firings instead of
// duplicating them. A reminder whose time already passed is still persisted;
// the next sweep fires it once, late.
func (s *Scheduler) ScheduleForInterview(ctx context.Context, iv *models.Interview) error {
	now := time.Now().UTC()
	for _, kind := range []models.ReminderKind{models.Reminder24h, models.Reminder2h} {
		rem := &models.InterviewReminder{
			ID:           uuid.New(),
			InterviewID:  iv.ID,
			Kind:         kind,
			ScheduledFor: iv.ScheduledAt.Add(-kind.Offset()),
			Status:       models.ReminderPending,
			CreatedAt:    now,
		}
		if err := s.reminders.ReplacePending(ctx, rem); err != nil {
			return err
		}
	}
	s.logger.Info("reminders armed", map[string]interface{}{
		"interview_id": iv.ID.String(),
		"scheduled_at": iv.ScheduledAt,
	})
	return nil
}

// CancelForInterview drops the pending reminders of a canceled interview by
// replacing them with nothing: the sweep never sees a row for it again.
func (s *Scheduler) CancelForInterview(ctx context.Context, interviewID uuid.UUID) error {
	return s.reminders.CancelPending(ctx, interviewID)
}

// Sweep claims the due pending reminders and fires each one. Claiming before
// sending keeps concurrent sweepers from double-firing a reminder.
func (s *Scheduler) Sweep(ctx context.Context) {
	claimed, err := s.reminders.ClaimDue(ctx, time.Now().UTC(), s.opts.StaleClaim, s.opts.BatchSize)
	if err != nil {
		s.logger.WithError(err).Error("reminder claim failed", nil)
		return
	}
	for _, rem := range claimed {
		s.fire(ctx, rem)
	}
}

func (s *Scheduler) fire(ctx context.Context, rem *models.InterviewReminder) {
	log := s.logger.WithFields(map[string]interface{}{
		"reminder_id":  rem.ID.String(),
		"interview_id": rem.InterviewID.String(),
		"kind":         string(rem.Kind),
	})

	iv, err := s.reminders.GetInterview(ctx, rem.InterviewID)
	if err != nil {
		s.fail(ctx, rem, err, log)
		return
	}
	recipient, err := s.recipients.ByID(ctx, iv.CandidateID)
	if err != nil {
		s.fail(ctx, rem, err, log)
		return
	}

	if _, err := s.notifier.SendInterviewNotification(ctx, iv, *recipient, rem.Kind.EventType(), nil, "scheduler"); err != nil {
		s.fail(ctx, rem, err, log)
		return
	}

	if err := s.reminders.MarkSent(ctx, rem.ID); err != nil {
		log.WithError(err).Error("failed to mark reminder sent", nil)
		return
	}
	metrics.RemindersSwept.WithLabelValues(string(rem.Kind), string(models.ReminderSent)).Inc()
	log.Info("reminder fired", nil)
}

func (s *Scheduler) fail(ctx context.Context, rem *models.InterviewReminder, cause error, log logger.Logger) {
	log.WithError(cause).Warn("reminder failed", nil)
	if err := s.reminders.MarkFailed(ctx, rem.ID, cause.Error()); err != nil {
		log.WithError(err).Error("failed to mark reminder failed", nil)
	}
	metrics.RemindersSwept.WithLabelValues(string(rem.Kind), string(models.ReminderFailed)).Inc()
}
