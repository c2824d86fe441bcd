package models

import (
	"time"

	"github.com/google/uuid"
)

// BroadcastType classifies an admin communication.
type BroadcastType string

const (
	TypeSystemInfo       BroadcastType = "system_info"
	TypeImportantNotice  BroadcastType = "important_notice"
	TypePromotion        BroadcastType = "promotion"
	TypeMaintenanceAlert BroadcastType = "maintenance_alert"
	TypeInstitutional    BroadcastType = "institutional"
)

func (t BroadcastType) IsValid() bool {
	switch t {
	case TypeSystemInfo, TypeImportantNotice, TypePromotion, TypeMaintenanceAlert, TypeInstitutional:
		return true
	}
	return false
}

// BroadcastStatus is the lifecycle state of a broadcast.
type BroadcastStatus string

const (
	StatusDraft     BroadcastStatus = "draft"
	StatusScheduled BroadcastStatus = "scheduled"
	StatusSending   BroadcastStatus = "sending"
	StatusCompleted BroadcastStatus = "completed"
	StatusCanceled  BroadcastStatus = "canceled"
	StatusFailed    BroadcastStatus = "failed"
)

// AudienceFilter is the declarative recipient filter of a broadcast.
// Unset fields impose no constraint; set fields are AND-combined.
type AudienceFilter struct {
	Roles         []string   `json:"roles,omitempty"`
	MinCompletion int        `json:"min_completion,omitempty"`
	Country       string     `json:"country,omitempty"`
	Region        string     `json:"region,omitempty"`
	City          string     `json:"city,omitempty"`
	CreatedFrom   *time.Time `json:"created_from,omitempty"`
	CreatedTo     *time.Time `json:"created_to,omitempty"`
	Language      string     `json:"language,omitempty"`
}

// EmailChannelConfig configures the email channel of a broadcast.
// Subject is mandatory for this channel.
type EmailChannelConfig struct {
	Enabled    bool       `json:"enabled"`
	Subject    string     `json:"subject"`
	Body       string     `json:"body"`
	TemplateID *uuid.UUID `json:"template_id,omitempty"`
}

// SMSChannelConfig configures the SMS channel. Bodies are capped at 160 chars.
type SMSChannelConfig struct {
	Enabled    bool       `json:"enabled"`
	Body       string     `json:"body"`
	TemplateID *uuid.UUID `json:"template_id,omitempty"`
}

// WhatsAppChannelConfig configures the WhatsApp channel.
type WhatsAppChannelConfig struct {
	Enabled    bool       `json:"enabled"`
	Body       string     `json:"body"`
	TemplateID *uuid.UUID `json:"template_id,omitempty"`
}

// InAppChannelConfig configures the in-app notification channel.
type InAppChannelConfig struct {
	Enabled    bool       `json:"enabled"`
	Title      string     `json:"title"`
	Body       string     `json:"body"`
	Link       string     `json:"link,omitempty"`
	TemplateID *uuid.UUID `json:"template_id,omitempty"`
}

// ChannelsConfig holds one typed case per channel kind, so a missing subject
// on the email channel is a shape error rather than a runtime nil-check.
type ChannelsConfig struct {
	Email    *EmailChannelConfig    `json:"email,omitempty"`
	SMS      *SMSChannelConfig      `json:"sms,omitempty"`
	WhatsApp *WhatsAppChannelConfig `json:"whatsapp,omitempty"`
	InApp    *InAppChannelConfig    `json:"notification,omitempty"`
}

// EnabledChannels lists the channels a broadcast will fan out on.
func (c ChannelsConfig) EnabledChannels() []Channel {
	var out []Channel
	if c.InApp != nil && c.InApp.Enabled {
		out = append(out, ChannelInApp)
	}
	if c.Email != nil && c.Email.Enabled {
		out = append(out, ChannelEmail)
	}
	if c.SMS != nil && c.SMS.Enabled {
		out = append(out, ChannelSMS)
	}
	if c.WhatsApp != nil && c.WhatsApp.Enabled {
		out = append(out, ChannelWhatsApp)
	}
	return out
}

// Broadcast is an admin-authored multi-recipient communication with its own lifecycle.
type Broadcast struct {
	ID                uuid.UUID       `json:"id"`
	Title             string          `json:"title"`
	Type              BroadcastType   `json:"type"`
	Description       string          `json:"description,omitempty"`
	Filters           AudienceFilter  `json:"filters"`
	EstimatedAudience int             `json:"estimated_audience_count"`
	Channels          ChannelsConfig  `json:"channels"`
	Status            BroadcastStatus `json:"status"`
	ScheduledAt       *time.Time      `json:"scheduled_at,omitempty"`
	StartedAt         *time.Time      `json:"started_at,omitempty"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty"`
	TotalRecipients   int             `json:"total_recipients"`
	TotalSent         int             `json:"total_sent"`
	TotalFailed       int             `json:"total_failed"`
	TotalExcluded     int             `json:"total_excluded"`
	CreatedBy         string          `json:"created_by,omitempty"`
	UpdatedBy         string          `json:"updated_by,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// LogAction identifies an audit trail action.
type LogAction string

const (
	ActionCreate   LogAction = "create"
	ActionUpdate   LogAction = "update"
	ActionSend     LogAction = "send"
	ActionCancel   LogAction = "cancel"
	ActionSchedule LogAction = "schedule"
	ActionComplete LogAction = "complete"
	ActionFail     LogAction = "fail"
)

// LogEntry is an append-only audit record of a lifecycle action.
type LogEntry struct {
	ID          uuid.UUID              `json:"id"`
	BroadcastID *uuid.UUID             `json:"broadcast_id,omitempty"`
	Action      LogAction              `json:"action"`
	Details     map[string]interface{} `json:"details,omitempty"`
	ActorID     string                 `json:"actor_id,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// Template is operator-authored reusable channel content. Referenced by id at
// authoring time; broadcasts copy the rendered text, so later edits do not
// retroactively alter them.
type Template struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Channel   Channel   `json:"channel"`
	Subject   string    `json:"subject,omitempty"`
	Body      string    `json:"body"`
	Variables []string  `json:"variables"`
	Active    bool      `json:"is_active"`
	Category  string    `json:"category,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
