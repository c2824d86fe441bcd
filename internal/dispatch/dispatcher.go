// Package dispatch fans a sending broadcast out to its resolved audience
// across every enabled channel.
package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"jobdispatch/internal/channel"
	"jobdispatch/internal/common/apperr"
	"jobdispatch/internal/common/logger"
	"jobdispatch/internal/common/metrics"
	"jobdispatch/internal/models"
	"jobdispatch/internal/store"
	"jobdispatch/internal/template"
)

// Exclusion reasons recorded on skipped recipients.
const (
	ReasonPreferenceDisabled = "preference disabled"
	ReasonMissingEmail       = "missing email address"
	ReasonMissingPhone       = "missing phone number"
)

// audiencePager pages through the recipients a filter matches.
type audiencePager interface {
	Count(ctx context.Context, filter models.AudienceFilter) (int, error)
	Page(ctx context.Context, filter models.AudienceFilter, limit, offset int) ([]models.Recipient, error)
}

// preferenceReader loads a recipient's notification gates.
type preferenceReader interface {
	Get(ctx context.Context, recipientID string) (models.Preferences, error)
}

// Options tunes a Dispatcher.
type Options struct {
	WorkerPoolSize int
	MaxRetries     int
	AudiencePage   int
}

// Dispatcher runs broadcast fan-outs. It is safe to re-run a broadcast: the
// per-(recipient, channel) message records make every pair exactly-once.
type Dispatcher struct {
	audience    audiencePager
	broadcasts  *store.BroadcastRepo
	messages    *store.MessageRepo
	logs        *store.LogRepo
	preferences preferenceReader
	registry    *channel.Registry
	opts        Options
	logger      logger.Logger
}

func New(audience audiencePager, broadcasts *store.BroadcastRepo, messages *store.MessageRepo, logs *store.LogRepo, preferences preferenceReader, registry *channel.Registry, opts Options, log logger.Logger) *Dispatcher {
	if opts.WorkerPoolSize <= 0 {
		opts.WorkerPoolSize = 8
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.AudiencePage <= 0 {
		opts.AudiencePage = 200
	}
	return &Dispatcher{
		audience:    audience,
		broadcasts:  broadcasts,
		messages:    messages,
		logs:        logs,
		preferences: preferences,
		registry:    registry,
		opts:        opts,
		logger:      log,
	}
}

// Run resolves the audience, delivers to every (recipient, channel) pair and
// finalizes the broadcast. The broadcast must already be in sending.
func (d *Dispatcher) Run(ctx context.Context, b *models.Broadcast) error {
	start := time.Now()
	log := d.logger.WithFields(map[string]interface{}{
		"broadcast_id": b.ID.String(),
		"type":         string(b.Type),
	})

	total, err := d.audience.Count(ctx, b.Filters)
	if err != nil {
		d.finalize(ctx, b, models.StatusFailed, log)
		return err
	}
	if err := d.broadcasts.SetTotalRecipients(ctx, b.ID, total); err != nil {
		log.WithError(err).Warn("failed to record audience size", nil)
	}
	log.Info("starting broadcast fan-out", map[string]interface{}{
		"total_recipients": total,
		"channels":         b.Channels.EnabledChannels(),
	})

	channels := b.Channels.EnabledChannels()
	for offset := 0; ; offset += d.opts.AudiencePage {
		page, err := d.audience.Page(ctx, b.Filters, d.opts.AudiencePage, offset)
		if err != nil {
			d.finalize(ctx, b, models.StatusFailed, log)
			return err
		}
		if len(page) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(d.opts.WorkerPoolSize)
		for _, recipient := range page {
			recipient := recipient
			g.Go(func() error {
				sent, failed, excluded := d.processRecipient(gctx, b, recipient, channels)
				if sent+failed+excluded > 0 {
					if err := d.broadcasts.AddCounters(gctx, b.ID, sent, failed, excluded); err != nil {
						log.WithError(err).Warn("failed to update counters", map[string]interface{}{
							"recipient_id": recipient.ID,
						})
					}
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			d.finalize(ctx, b, models.StatusFailed, log)
			return err
		}
		if len(page) < d.opts.AudiencePage {
			break
		}
	}

	d.finalize(ctx, b, models.StatusCompleted, log)
	metrics.BroadcastDuration.WithLabelValues(string(b.Type)).Observe(time.Since(start).Seconds())
	return nil
}

// processRecipient resolves one recipient across every enabled channel and
// returns the recipient's counter delta. The counters are recipient-scoped,
// so total_sent + total_failed + total_excluded never exceeds
// total_recipients: a recipient counts sent when at least one channel
// delivered, failed when every attempted channel failed, and excluded only
// when no channel was attempted at all.
func (d *Dispatcher) processRecipient(ctx context.Context, b *models.Broadcast, recipient models.Recipient, channels []models.Channel) (sent, failed, excluded int) {
	prefs, err := d.preferences.Get(ctx, recipient.ID)
	if err != nil {
		// Failing open would override an explicit opt-out, so the recipient
		// is counted failed instead.
		d.logger.WithError(err).Warn("failed to load preferences", map[string]interface{}{
			"recipient_id": recipient.ID,
		})
		return 0, 1, 0
	}

	var anySent, anyFailed, anyExcluded bool
	broadcastAllowed := prefs.AllowsBroadcast(b.Type)
	for _, ch := range channels {
		switch {
		case !broadcastAllowed, !prefs.AllowsChannel(ch):
			d.exclude(ctx, b, recipient, ch, ReasonPreferenceDisabled)
			anyExcluded = true
		case recipient.ContactFor(ch) == "":
			reason := ReasonMissingPhone
			if ch == models.ChannelEmail {
				reason = ReasonMissingEmail
			}
			d.exclude(ctx, b, recipient, ch, reason)
			anyExcluded = true
		default:
			switch d.deliver(ctx, b, recipient, ch) {
			case models.MessageSent:
				anySent = true
			case models.MessageFailed:
				anyFailed = true
			}
		}
	}
	switch {
	case anySent:
		return 1, 0, 0
	case anyFailed:
		return 0, 1, 0
	case anyExcluded:
		return 0, 0, 1
	}
	// Every pair was already owned by an earlier run.
	return 0, 0, 0
}

func (d *Dispatcher) exclude(ctx context.Context, b *models.Broadcast, recipient models.Recipient, ch models.Channel, reason string) {
	m := &models.Message{
		ID:          uuid.New(),
		BroadcastID: &b.ID,
		RecipientID: recipient.ID,
		Channel:     ch,
		CreatedAt:   time.Now().UTC(),
	}
	if err := d.messages.InsertExcluded(ctx, m, reason); err != nil {
		d.logger.WithError(err).Warn("failed to record exclusion", map[string]interface{}{
			"recipient_id": recipient.ID,
			"channel":      string(ch),
		})
	}
	metrics.MessagesDispatched.WithLabelValues(string(ch), string(models.MessageExcluded)).Inc()
}

// deliver renders, records and sends one (recipient, channel) pair. Returns
// the terminal status the pair reached, or pending when the pair was already
// handled by an earlier run.
func (d *Dispatcher) deliver(ctx context.Context, b *models.Broadcast, recipient models.Recipient, ch models.Channel) models.MessageStatus {
	subject, body, link, err := d.render(b, recipient, ch)
	if err != nil {
		d.logger.WithError(err).Error("failed to render message", map[string]interface{}{
			"broadcast_id": b.ID.String(),
			"channel":      string(ch),
		})
		return d.recordRenderFailure(ctx, b, recipient, ch, err)
	}

	m := &models.Message{
		ID:          uuid.New(),
		BroadcastID: &b.ID,
		RecipientID: recipient.ID,
		Channel:     ch,
		Subject:     subject,
		Body:        body,
		Status:      models.MessagePending,
		CreatedAt:   time.Now().UTC(),
	}
	inserted, err := d.messages.InsertPending(ctx, m)
	if err != nil {
		d.logger.WithError(err).Error("failed to record message", map[string]interface{}{
			"recipient_id": recipient.ID,
			"channel":      string(ch),
		})
		return models.MessageFailed
	}
	if !inserted {
		// An earlier run already owns this pair.
		return models.MessagePending
	}

	adapter, err := d.registry.Get(ch)
	if err != nil {
		d.messages.MarkFailed(ctx, m.ID, 0, err.Error())
		metrics.MessagesDispatched.WithLabelValues(string(ch), string(models.MessageFailed)).Inc()
		return models.MessageFailed
	}

	delivery := channel.Delivery{
		Recipient: recipient,
		Subject:   subject,
		Body:      body,
		Link:      link,
		EventType: "communication_admin",
		Metadata: map[string]interface{}{
			"communication_id": b.ID.String(),
			"type":             string(b.Type),
		},
	}

	var lastErr error
	attempts := 0
	for attempts < d.opts.MaxRetries {
		attempts++
		lastErr = adapter.Deliver(ctx, delivery)
		if lastErr == nil {
			d.messages.MarkSent(ctx, m.ID, attempts-1)
			metrics.MessagesDispatched.WithLabelValues(string(ch), string(models.MessageSent)).Inc()
			return models.MessageSent
		}
		if !apperr.IsRetryable(lastErr) {
			break
		}
	}
	d.messages.MarkFailed(ctx, m.ID, attempts, lastErr.Error())
	metrics.MessagesDispatched.WithLabelValues(string(ch), string(models.MessageFailed)).Inc()
	return models.MessageFailed
}

func (d *Dispatcher) recordRenderFailure(ctx context.Context, b *models.Broadcast, recipient models.Recipient, ch models.Channel, cause error) models.MessageStatus {
	m := &models.Message{
		ID:          uuid.New(),
		BroadcastID: &b.ID,
		RecipientID: recipient.ID,
		Channel:     ch,
		Status:      models.MessagePending,
		CreatedAt:   time.Now().UTC(),
	}
	inserted, err := d.messages.InsertPending(ctx, m)
	if err != nil || !inserted {
		return models.MessagePending
	}
	d.messages.MarkFailed(ctx, m.ID, 0, cause.Error())
	metrics.MessagesDispatched.WithLabelValues(string(ch), string(models.MessageFailed)).Inc()
	return models.MessageFailed
}

// render produces the channel's personalized subject, body and link.
func (d *Dispatcher) render(b *models.Broadcast, recipient models.Recipient, ch models.Channel) (subject, body, link string, err error) {
	vars := broadcastVariables(b, recipient)
	switch ch {
	case models.ChannelEmail:
		cfg := b.Channels.Email
		body, err = template.Render(cfg.Body, vars)
		if err != nil {
			return "", "", "", err
		}
		subject, err = template.Render(cfg.Subject, vars)
		return subject, body, "", err
	case models.ChannelSMS:
		body, err = template.Render(b.Channels.SMS.Body, vars)
		return "", body, "", err
	case models.ChannelWhatsApp:
		body, err = template.Render(b.Channels.WhatsApp.Body, vars)
		return "", body, "", err
	case models.ChannelInApp:
		cfg := b.Channels.InApp
		body, err = template.Render(cfg.Body, vars)
		if err != nil {
			return "", "", "", err
		}
		subject, err = template.Render(cfg.Title, vars)
		return subject, body, cfg.Link, err
	}
	return "", "", "", apperr.ChannelUnknown(string(ch))
}

// broadcastVariables is the personalization set every broadcast template can
// reference. The deep link is shared across channels, so an email or SMS body
// using {{lien}} resolves the same target the in-app notification links to.
func broadcastVariables(b *models.Broadcast, recipient models.Recipient) map[string]interface{} {
	link := ""
	if b.Channels.InApp != nil {
		link = b.Channels.InApp.Link
	}
	return map[string]interface{}{
		"prenom":  recipient.FirstName,
		"nom":     recipient.LastName,
		"role":    recipient.Role,
		"lien":    link,
		"message": b.Description,
		"date":    time.Now().Format("02/01/2006"),
	}
}

func (d *Dispatcher) finalize(ctx context.Context, b *models.Broadcast, to models.BroadcastStatus, log logger.Logger) {
	if err := d.broadcasts.Transition(ctx, b.ID, to, models.StatusSending); err != nil {
		log.WithError(err).Error("failed to finalize broadcast", nil)
		return
	}
	action := models.ActionComplete
	if to == models.StatusFailed {
		action = models.ActionFail
	}
	entry := &models.LogEntry{
		ID:          uuid.New(),
		BroadcastID: &b.ID,
		Action:      action,
		Details: map[string]interface{}{
			"title": b.Title,
			"type":  string(b.Type),
		},
		ActorID:   "dispatcher",
		CreatedAt: time.Now().UTC(),
	}
	if err := d.logs.Append(ctx, entry); err != nil {
		log.WithError(err).Warn("failed to append audit entry", nil)
	}
	log.Info("broadcast finalized", map[string]interface{}{"status": string(to)})
}
