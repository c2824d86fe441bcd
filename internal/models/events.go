package models

// EventType identifies a transactional domain event with a registered
// default template and channel set.
type EventType string

const (
	EventInterviewScheduled       EventType = "interview_scheduled"
	EventInterviewReminder24h     EventType = "interview_reminder_24h"
	EventInterviewReminder2h      EventType = "interview_reminder_2h"
	EventInterviewCancelled       EventType = "interview_cancelled"
	EventInterviewRescheduled     EventType = "interview_rescheduled"
	EventApplicationStatusUpdate  EventType = "application_status_update"
	EventMessageReceived          EventType = "message_received"
	EventJobClosed                EventType = "job_closed"
	EventCreditsValidated         EventType = "credits_validated"
	EventCreditsRejected          EventType = "credits_rejected"
)

func (t EventType) IsValid() bool {
	switch t {
	case EventInterviewScheduled, EventInterviewReminder24h, EventInterviewReminder2h,
		EventInterviewCancelled, EventInterviewRescheduled, EventApplicationStatusUpdate,
		EventMessageReceived, EventJobClosed, EventCreditsValidated, EventCreditsRejected:
		return true
	}
	return false
}

// IsInterviewEvent reports whether the event carries interview modality flags.
func (t EventType) IsInterviewEvent() bool {
	switch t {
	case EventInterviewScheduled, EventInterviewReminder24h, EventInterviewReminder2h,
		EventInterviewCancelled, EventInterviewRescheduled:
		return true
	}
	return false
}
