package models

import (
	"time"

	"github.com/google/uuid"
)

// Notification is an in-app, recipient-scoped inbox row. It is created by the
// dispatcher or the transactional sender and afterwards mutated only by the
// owning recipient.
type Notification struct {
	ID          uuid.UUID              `json:"id"`
	RecipientID string                 `json:"user_id"`
	Type        string                 `json:"type"`
	Title       string                 `json:"title"`
	Message     string                 `json:"message"`
	Link        string                 `json:"link,omitempty"`
	Read        bool                   `json:"read"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// Preferences holds one recipient's notification gates. Created lazily with
// every gate on.
type Preferences struct {
	RecipientID        string    `json:"user_id"`
	EmailEnabled       bool      `json:"email_notifications"`
	PushEnabled        bool      `json:"push_notifications"`
	ApplicationUpdates bool      `json:"application_notifications"`
	Messages           bool      `json:"message_notifications"`
	JobAlerts          bool      `json:"job_alert_notifications"`
	Promotions         bool      `json:"promo_notifications"`
	Announcements      bool      `json:"announcement_notifications"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// DefaultPreferences returns the default-on record created on first access.
func DefaultPreferences(recipientID string) Preferences {
	return Preferences{
		RecipientID:        recipientID,
		EmailEnabled:       true,
		PushEnabled:        true,
		ApplicationUpdates: true,
		Messages:           true,
		JobAlerts:          true,
		Promotions:         true,
		Announcements:      true,
		UpdatedAt:          time.Now().UTC(),
	}
}

// AllowsBroadcast reports whether the recipient accepts broadcasts of the
// given category. Maintenance and important notices are not gated.
func (p Preferences) AllowsBroadcast(t BroadcastType) bool {
	switch t {
	case TypePromotion:
		return p.Promotions
	case TypeSystemInfo, TypeInstitutional:
		return p.Announcements
	default:
		return true
	}
}

// AllowsChannel reports whether an external channel is gated off for the
// recipient. The in-app channel is never gated.
func (p Preferences) AllowsChannel(c Channel) bool {
	switch c {
	case ChannelEmail:
		return p.EmailEnabled
	case ChannelSMS, ChannelWhatsApp:
		return p.PushEnabled
	default:
		return true
	}
}

// ChangeKind identifies a change-feed event on a notification row.
type ChangeKind string

const (
	ChangeInsert ChangeKind = "insert"
	ChangeUpdate ChangeKind = "update"
	ChangeDelete ChangeKind = "delete"
	// ChangeAllRead marks the recipient's whole inbox read, including rows
	// outside a subscriber's cached window.
	ChangeAllRead ChangeKind = "all_read"
)

// ChangeEvent is one row-level event delivered to an inbox subscriber.
type ChangeEvent struct {
	Kind         ChangeKind   `json:"kind"`
	Notification Notification `json:"notification"`
}

// CorrelationEntry is one row of the per-case communication history
// (communications log) keyed by application and/or interview.
type CorrelationEntry struct {
	ID            uuid.UUID  `json:"id"`
	ApplicationID *uuid.UUID `json:"application_id,omitempty"`
	InterviewID   *uuid.UUID `json:"interview_id,omitempty"`
	SenderID      string     `json:"sender_id,omitempty"`
	RecipientID   string     `json:"recipient_id"`
	EventType     string     `json:"communication_type"`
	Channel       Channel    `json:"channel"`
	Subject       string     `json:"subject,omitempty"`
	Body          string     `json:"message"`
	Status        string     `json:"status"`
	SentAt        time.Time  `json:"sent_at"`
}
