package models

import (
	"time"

	"github.com/google/uuid"
)

// InterviewType is the mutually-exclusive interview modality.
type InterviewType string

const (
	InterviewVisio      InterviewType = "visio"
	InterviewPresentiel InterviewType = "presentiel"
	InterviewTelephone  InterviewType = "telephone"
)

// Interview is the projection of an interview row needed to render and
// correlate its notifications.
type Interview struct {
	ID             uuid.UUID     `json:"id"`
	ApplicationID  *uuid.UUID    `json:"application_id,omitempty"`
	CandidateID    string        `json:"candidate_id"`
	JobTitle       string        `json:"job_title"`
	CompanyName    string        `json:"company_name"`
	ScheduledAt    time.Time     `json:"scheduled_at"`
	Type           InterviewType `json:"interview_type"`
	LocationOrLink string        `json:"location_or_link,omitempty"`
	Notes          string        `json:"notes,omitempty"`
}

// ReminderKind distinguishes the two reminder offsets.
type ReminderKind string

const (
	Reminder24h ReminderKind = "reminder_24h"
	Reminder2h  ReminderKind = "reminder_2h"
)

// Offset returns how long before the interview this kind fires.
func (k ReminderKind) Offset() time.Duration {
	if k == Reminder2h {
		return 2 * time.Hour
	}
	return 24 * time.Hour
}

// EventType returns the transactional event type a due reminder triggers.
func (k ReminderKind) EventType() EventType {
	if k == Reminder2h {
		return EventInterviewReminder2h
	}
	return EventInterviewReminder24h
}

// ReminderStatus is the delivery state of a reminder.
type ReminderStatus string

const (
	ReminderPending ReminderStatus = "pending"
	ReminderSent    ReminderStatus = "sent"
	ReminderFailed  ReminderStatus = "failed"
)

// InterviewReminder is a persisted future firing. At most one pending
// reminder of a given kind exists per interview.
type InterviewReminder struct {
	ID           uuid.UUID      `json:"id"`
	InterviewID  uuid.UUID      `json:"interview_id"`
	Kind         ReminderKind   `json:"reminder_type"`
	ScheduledFor time.Time      `json:"scheduled_for"`
	Status       ReminderStatus `json:"status"`
	SentAt       *time.Time     `json:"sent_at,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}
