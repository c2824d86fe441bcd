package models

import "time"

// Recipient is a user-store profile projection: the fields audience
// resolution filters on plus the contact fields used as template variables.
type Recipient struct {
	ID            string    `json:"id"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	FullName      string    `json:"full_name"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone"`
	Role          string    `json:"user_type"`
	Language      string    `json:"language"`
	Country       string    `json:"country"`
	Region        string    `json:"region"`
	City          string    `json:"city"`
	CompletionPct int       `json:"profile_completion_percentage"`
	CreatedAt     time.Time `json:"created_at"`
}

// ContactFor returns the delivery address for a channel, empty when the
// recipient has none.
func (r Recipient) ContactFor(c Channel) string {
	switch c {
	case ChannelEmail:
		return r.Email
	case ChannelSMS, ChannelWhatsApp:
		return r.Phone
	case ChannelInApp:
		return r.ID
	}
	return ""
}
