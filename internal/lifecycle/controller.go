// Package lifecycle owns the broadcast state machine: authoring, scheduling,
// sending, cancelation and the audit trail of every transition.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"jobdispatch/internal/common/apperr"
	"jobdispatch/internal/common/logger"
	"jobdispatch/internal/models"
	"jobdispatch/internal/store"
	"jobdispatch/internal/template"
)

// audienceCounter estimates how many recipients a filter matches.
type audienceCounter interface {
	Count(ctx context.Context, filter models.AudienceFilter) (int, error)
}

// Runner fans a sending broadcast out to its audience and finalizes it.
type Runner interface {
	Run(ctx context.Context, b *models.Broadcast) error
}

// templateStore is the slice of the template catalog the controller uses.
type templateStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Template, error)
	Create(ctx context.Context, t *models.Template) error
	Update(ctx context.Context, t *models.Template) error
}

var _ templateStore = (*store.TemplateRepo)(nil)

// Controller drives broadcast lifecycles.
type Controller struct {
	broadcasts *store.BroadcastRepo
	logs       *store.LogRepo
	templates  templateStore
	audience   audienceCounter
	runner     Runner
	logger     logger.Logger
}

func NewController(broadcasts *store.BroadcastRepo, logs *store.LogRepo, templates templateStore, audience audienceCounter, runner Runner, log logger.Logger) *Controller {
	return &Controller{
		broadcasts: broadcasts,
		logs:       logs,
		templates:  templates,
		audience:   audience,
		runner:     runner,
		logger:     log,
	}
}

// Draft is the author-editable content of a broadcast.
type Draft struct {
	Title       string
	Type        models.BroadcastType
	Description string
	Filters     models.AudienceFilter
	Channels    models.ChannelsConfig
}

// Create validates a draft, estimates its audience and stores it.
func (c *Controller) Create(ctx context.Context, d Draft, actor string) (*models.Broadcast, error) {
	if err := c.resolveTemplates(ctx, d); err != nil {
		return nil, err
	}
	if err := validateDraft(d); err != nil {
		return nil, err
	}
	estimate, err := c.audience.Count(ctx, d.Filters)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	b := &models.Broadcast{
		ID:                uuid.New(),
		Title:             d.Title,
		Type:              d.Type,
		Description:       d.Description,
		Filters:           d.Filters,
		EstimatedAudience: estimate,
		Channels:          d.Channels,
		Status:            models.StatusDraft,
		CreatedBy:         actor,
		UpdatedBy:         actor,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := c.broadcasts.Create(ctx, b); err != nil {
		return nil, err
	}
	c.appendLog(ctx, b, models.ActionCreate, actor)
	return b, nil
}

// Update rewrites a draft's content and re-estimates its audience. Only
// drafts are editable.
func (c *Controller) Update(ctx context.Context, id uuid.UUID, d Draft, actor string) (*models.Broadcast, error) {
	if err := c.resolveTemplates(ctx, d); err != nil {
		return nil, err
	}
	if err := validateDraft(d); err != nil {
		return nil, err
	}
	b, err := c.broadcasts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status != models.StatusDraft {
		return nil, apperr.StateConflict(fmt.Sprintf("broadcast in status %s is not editable", b.Status))
	}
	estimate, err := c.audience.Count(ctx, d.Filters)
	if err != nil {
		return nil, err
	}

	b.Title = d.Title
	b.Type = d.Type
	b.Description = d.Description
	b.Filters = d.Filters
	b.Channels = d.Channels
	b.EstimatedAudience = estimate
	b.UpdatedBy = actor
	b.UpdatedAt = time.Now().UTC()
	if err := c.broadcasts.UpdateDraft(ctx, b); err != nil {
		return nil, err
	}
	c.appendLog(ctx, b, models.ActionUpdate, actor)
	return b, nil
}

// Schedule arms a draft or re-arms a scheduled broadcast for a strictly
// future send time.
func (c *Controller) Schedule(ctx context.Context, id uuid.UUID, at time.Time, actor string) error {
	if !at.After(time.Now()) {
		return apperr.SchedulePast(at.Format(time.RFC3339))
	}
	b, err := c.broadcasts.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := c.broadcasts.SetSchedule(ctx, id, at.UTC(), actor); err != nil {
		return err
	}
	b.Status = models.StatusScheduled
	c.appendLog(ctx, b, models.ActionSchedule, actor)
	return nil
}

// Cancel withdraws a draft or scheduled broadcast. A broadcast that has
// started sending can no longer be canceled.
func (c *Controller) Cancel(ctx context.Context, id uuid.UUID, actor string) error {
	b, err := c.broadcasts.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := c.broadcasts.Transition(ctx, id, models.StatusCanceled,
		models.StatusDraft, models.StatusScheduled); err != nil {
		return err
	}
	b.Status = models.StatusCanceled
	c.appendLog(ctx, b, models.ActionCancel, actor)
	return nil
}

// SendNow moves a draft or scheduled broadcast into sending and runs the
// fan-out to completion.
func (c *Controller) SendNow(ctx context.Context, id uuid.UUID, actor string) error {
	b, err := c.broadcasts.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := c.broadcasts.Transition(ctx, id, models.StatusSending,
		models.StatusDraft, models.StatusScheduled); err != nil {
		return err
	}
	b.Status = models.StatusSending
	c.appendLog(ctx, b, models.ActionSend, actor)
	return c.runner.Run(ctx, b)
}

// SweepScheduled promotes every due scheduled broadcast into sending and
// runs it. Called periodically by the background scheduler.
func (c *Controller) SweepScheduled(ctx context.Context) {
	due, err := c.broadcasts.ListDueScheduled(ctx, time.Now().UTC(), 20)
	if err != nil {
		c.logger.WithError(err).Error("scheduled broadcast sweep failed", nil)
		return
	}
	for _, b := range due {
		// A concurrent cancel or a second sweeper may win the transition;
		// losing it just means skipping this row.
		if err := c.broadcasts.Transition(ctx, b.ID, models.StatusSending, models.StatusScheduled); err != nil {
			continue
		}
		b.Status = models.StatusSending
		c.appendLog(ctx, b, models.ActionSend, "scheduler")
		if err := c.runner.Run(ctx, b); err != nil {
			c.logger.WithError(err).Error("broadcast run failed", map[string]interface{}{
				"broadcast_id": b.ID.String(),
			})
		}
	}
}

// Stats reports platform-wide broadcast totals for the operator dashboard.
func (c *Controller) Stats(ctx context.Context) (*store.PlatformStats, error) {
	return c.broadcasts.Stats(ctx, time.Now().UTC())
}

// CreateTemplate validates and stores a reusable channel template, deriving
// its variable list from the authored text.
func (c *Controller) CreateTemplate(ctx context.Context, t *models.Template) error {
	if err := validateTemplate(t); err != nil {
		return err
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	t.Variables = template.ExtractVariables(t.Subject + "\n" + t.Body)
	return c.templates.Create(ctx, t)
}

// UpdateTemplate rewrites a template and re-derives its variable list.
// Broadcasts that already copied the previous text are unaffected.
func (c *Controller) UpdateTemplate(ctx context.Context, t *models.Template) error {
	if err := validateTemplate(t); err != nil {
		return err
	}
	t.UpdatedAt = time.Now().UTC()
	t.Variables = template.ExtractVariables(t.Subject + "\n" + t.Body)
	return c.templates.Update(ctx, t)
}

// resolveTemplates copies referenced template text into the draft's channel
// configs. The broadcast carries the copied text, so a later template edit
// does not retroactively alter it.
func (c *Controller) resolveTemplates(ctx context.Context, d Draft) error {
	if ch := d.Channels.Email; ch != nil && ch.Enabled && ch.TemplateID != nil {
		t, err := c.loadTemplate(ctx, *ch.TemplateID, models.ChannelEmail)
		if err != nil {
			return err
		}
		ch.Subject = t.Subject
		ch.Body = t.Body
	}
	if ch := d.Channels.SMS; ch != nil && ch.Enabled && ch.TemplateID != nil {
		t, err := c.loadTemplate(ctx, *ch.TemplateID, models.ChannelSMS)
		if err != nil {
			return err
		}
		ch.Body = t.Body
	}
	if ch := d.Channels.WhatsApp; ch != nil && ch.Enabled && ch.TemplateID != nil {
		t, err := c.loadTemplate(ctx, *ch.TemplateID, models.ChannelWhatsApp)
		if err != nil {
			return err
		}
		ch.Body = t.Body
	}
	if ch := d.Channels.InApp; ch != nil && ch.Enabled && ch.TemplateID != nil {
		t, err := c.loadTemplate(ctx, *ch.TemplateID, models.ChannelInApp)
		if err != nil {
			return err
		}
		if t.Subject != "" {
			ch.Title = t.Subject
		}
		ch.Body = t.Body
	}
	return nil
}

func (c *Controller) loadTemplate(ctx context.Context, id uuid.UUID, ch models.Channel) (*models.Template, error) {
	t, err := c.templates.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Channel != ch {
		return nil, apperr.ValidationFailed(fmt.Sprintf("template %s targets channel %s, not %s", id, t.Channel, ch))
	}
	if !t.Active {
		return nil, apperr.ValidationFailed(fmt.Sprintf("template %s is inactive", id))
	}
	return t, nil
}

func validateTemplate(t *models.Template) error {
	if t.Name == "" {
		return apperr.ValidationFailed("template name is required")
	}
	if !t.Channel.IsValid() {
		return apperr.ValidationFailed(fmt.Sprintf("unknown channel %q", t.Channel))
	}
	if t.Channel == models.ChannelEmail && t.Subject == "" {
		return apperr.ValidationFailed("email template requires a subject")
	}
	if t.Body == "" {
		return apperr.ValidationFailed("template body is required")
	}
	return template.MustValidate(t.Body)
}

func (c *Controller) appendLog(ctx context.Context, b *models.Broadcast, action models.LogAction, actor string) {
	entry := &models.LogEntry{
		ID:          uuid.New(),
		BroadcastID: &b.ID,
		Action:      action,
		Details: map[string]interface{}{
			"title":                    b.Title,
			"type":                     string(b.Type),
			"status":                   string(b.Status),
			"estimated_audience_count": b.EstimatedAudience,
		},
		ActorID:   actor,
		CreatedAt: time.Now().UTC(),
	}
	if err := c.logs.Append(ctx, entry); err != nil {
		// The trail is best effort; losing an entry must not fail the action.
		c.logger.WithError(err).Warn("failed to append audit entry", map[string]interface{}{
			"broadcast_id": b.ID.String(),
			"action":       string(action),
		})
	}
}

func validateDraft(d Draft) error {
	if d.Title == "" {
		return apperr.ValidationFailed("title is required")
	}
	if !d.Type.IsValid() {
		return apperr.ValidationFailed(fmt.Sprintf("unknown broadcast type %q", d.Type))
	}
	if len(d.Channels.EnabledChannels()) == 0 {
		return apperr.ValidationFailed("at least one channel must be enabled")
	}
	if ch := d.Channels.Email; ch != nil && ch.Enabled {
		if ch.Subject == "" {
			return apperr.ValidationFailed("email channel requires a subject")
		}
		if len(ch.Body) < 10 {
			return apperr.ValidationFailed("email body must be at least 10 characters")
		}
		if err := template.MustValidate(ch.Body); err != nil {
			return err
		}
	}
	if ch := d.Channels.SMS; ch != nil && ch.Enabled {
		if ch.Body == "" {
			return apperr.ValidationFailed("sms channel requires a body")
		}
		if len([]rune(ch.Body)) > 160 {
			return apperr.ValidationFailed("sms body exceeds 160 characters")
		}
		if err := template.MustValidate(ch.Body); err != nil {
			return err
		}
	}
	if ch := d.Channels.WhatsApp; ch != nil && ch.Enabled {
		if ch.Body == "" {
			return apperr.ValidationFailed("whatsapp channel requires a body")
		}
		if err := template.MustValidate(ch.Body); err != nil {
			return err
		}
	}
	if ch := d.Channels.InApp; ch != nil && ch.Enabled {
		if ch.Title == "" || ch.Body == "" {
			return apperr.ValidationFailed("in-app channel requires a title and a body")
		}
		if err := template.MustValidate(ch.Body); err != nil {
			return err
		}
	}
	return nil
}
