package models

import (
	"time"

	"github.com/google/uuid"
)

// Channel is a delivery medium.
type Channel string

const (
	ChannelInApp    Channel = "notification"
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
)

func (c Channel) IsValid() bool {
	switch c {
	case ChannelInApp, ChannelEmail, ChannelSMS, ChannelWhatsApp:
		return true
	}
	return false
}

// MessageStatus is the delivery state of a single message. A message is
// terminal once it leaves pending.
type MessageStatus string

const (
	MessagePending  MessageStatus = "pending"
	MessageSent     MessageStatus = "sent"
	MessageFailed   MessageStatus = "failed"
	MessageExcluded MessageStatus = "excluded"
)

// IsTerminal reports whether a message may no longer change state.
func (s MessageStatus) IsTerminal() bool {
	return s == MessageSent || s == MessageFailed || s == MessageExcluded
}

// Message is one rendered delivery attempt for one (recipient, channel) pair.
// BroadcastID is nil for transactional sends.
type Message struct {
	ID              uuid.UUID     `json:"id"`
	BroadcastID     *uuid.UUID    `json:"broadcast_id,omitempty"`
	RecipientID     string        `json:"recipient_id"`
	Channel         Channel       `json:"channel"`
	Subject         string        `json:"subject,omitempty"`
	Body            string        `json:"body"`
	Status          MessageStatus `json:"status"`
	ExclusionReason string        `json:"exclusion_reason,omitempty"`
	RetryCount      int           `json:"retry_count"`
	LastError       string        `json:"error_message,omitempty"`
	SentAt          *time.Time    `json:"sent_at,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
}

// MessageStats aggregates a broadcast's messages by channel and status.
type MessageStats struct {
	Total     int             `json:"total"`
	ByChannel map[Channel]int `json:"by_channel"`
	ByStatus  map[MessageStatus]int `json:"by_status"`
}
