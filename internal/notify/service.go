// Package notify sends transactional, event-driven notifications to a single
// known recipient across the event's channel set.
package notify

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"jobdispatch/internal/channel"
	"jobdispatch/internal/common/apperr"
	"jobdispatch/internal/common/logger"
	"jobdispatch/internal/common/metrics"
	"jobdispatch/internal/models"
	"jobdispatch/internal/store"
	"jobdispatch/internal/template"
)

// correlationAppender records per-case communication history.
type correlationAppender interface {
	Append(ctx context.Context, e *models.CorrelationEntry) error
}

// Service delivers transactional notifications.
type Service struct {
	registry    *channel.Registry
	correlation correlationAppender
	logger      logger.Logger
}

func NewService(registry *channel.Registry, correlation correlationAppender, log logger.Logger) *Service {
	return &Service{
		registry:    registry,
		correlation: correlation,
		logger:      log.WithFields(map[string]interface{}{"component": "notify"}),
	}
}

// Payload is one fully rendered transactional notification.
type Payload struct {
	Recipient     models.Recipient
	Type          models.EventType
	Title         string
	Message       string
	Link          string
	Channels      []models.Channel
	Metadata      map[string]interface{}
	ApplicationID *uuid.UUID
	InterviewID   *uuid.UUID
	SenderID      string
}

// Result reports the per-channel outcome of one send.
type Result struct {
	Succeeded []models.Channel
	Failed    map[models.Channel]error
}

// Send attempts every channel concurrently. The send as a whole succeeds as
// soon as at least one channel delivers; it fails only when all of them do.
func (s *Service) Send(ctx context.Context, p Payload) (*Result, error) {
	if !p.Type.IsValid() {
		return nil, apperr.ValidationFailed("unknown event type " + string(p.Type))
	}
	if len(p.Channels) == 0 {
		return nil, apperr.ValidationFailed("no channels requested")
	}

	result := &Result{Failed: make(map[models.Channel]error)}
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, ch := range p.Channels {
		ch := ch
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.sendViaChannel(ctx, ch, p)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed[ch] = err
			} else {
				result.Succeeded = append(result.Succeeded, ch)
			}
		}()
	}
	wg.Wait()

	if len(result.Succeeded) == 0 {
		return result, apperr.DeliveryFailed(channelList(p.Channels), lastError(result.Failed))
	}
	return result, nil
}

func (s *Service) sendViaChannel(ctx context.Context, ch models.Channel, p Payload) error {
	adapter, err := s.registry.Get(ch)
	if err == nil {
		err = adapter.Deliver(ctx, channel.Delivery{
			Recipient: p.Recipient,
			Subject:   p.Title,
			Body:      p.Message,
			Link:      p.Link,
			EventType: string(p.Type),
			Metadata:  p.Metadata,
		})
	}

	status := "sent"
	if err != nil {
		status = "failed"
		s.logger.WithError(err).Warn("channel send failed", map[string]interface{}{
			"event_type":   string(p.Type),
			"channel":      string(ch),
			"recipient_id": p.Recipient.ID,
		})
	}
	metrics.NotificationsSent.WithLabelValues(string(p.Type), string(ch), status).Inc()
	s.recordCorrelation(ctx, ch, p, status)
	return err
}

// recordCorrelation appends to the per-case history when the notification is
// tied to an application or interview.
func (s *Service) recordCorrelation(ctx context.Context, ch models.Channel, p Payload, status string) {
	if p.ApplicationID == nil && p.InterviewID == nil {
		return
	}
	entry := &models.CorrelationEntry{
		ID:            uuid.New(),
		ApplicationID: p.ApplicationID,
		InterviewID:   p.InterviewID,
		SenderID:      p.SenderID,
		RecipientID:   p.Recipient.ID,
		EventType:     string(p.Type),
		Channel:       ch,
		Subject:       p.Title,
		Body:          p.Message,
		Status:        status,
		SentAt:        time.Now().UTC(),
	}
	if err := s.correlation.Append(ctx, entry); err != nil {
		s.logger.WithError(err).Warn("failed to append communication history", map[string]interface{}{
			"recipient_id": p.Recipient.ID,
			"channel":      string(ch),
		})
	}
}

// SendInterviewNotification renders the event's template against an
// interview and sends it to the candidate. Exactly one modality flag is true,
// so each body keeps only its own modality block.
func (s *Service) SendInterviewNotification(ctx context.Context, iv *models.Interview, recipient models.Recipient, t models.EventType, extra map[string]interface{}, senderID string) (*Result, error) {
	tmpl, ok := Template(t)
	if !ok {
		return nil, apperr.ValidationFailed("no template registered for event type " + string(t))
	}
	switch iv.Type {
	case models.InterviewVisio, models.InterviewPresentiel, models.InterviewTelephone:
	default:
		return nil, apperr.ValidationFailed("unknown interview modality " + string(iv.Type))
	}

	vars := map[string]interface{}{
		"candidate_name":     recipient.FullName,
		"job_title":          iv.JobTitle,
		"company_name":       iv.CompanyName,
		"interview_date":     formatDateFR(iv.ScheduledAt),
		"interview_time":     formatTimeFR(iv.ScheduledAt),
		"interview_link":     iv.LocationOrLink,
		"interview_location": iv.LocationOrLink,
		"interview_notes":    iv.Notes,
		"candidate_phone":    recipient.Phone,
		"if_visio":           iv.Type == models.InterviewVisio,
		"if_presentiel":      iv.Type == models.InterviewPresentiel,
		"if_telephone":       iv.Type == models.InterviewTelephone,
		"if_notes":           iv.Notes != "",
	}
	for k, v := range extra {
		vars[k] = v
	}

	subject, err := template.Render(tmpl.Subject, vars)
	if err != nil {
		return nil, err
	}
	body, err := template.Render(tmpl.Body, vars)
	if err != nil {
		return nil, err
	}

	return s.Send(ctx, Payload{
		Recipient: recipient,
		Type:      t,
		Title:     subject,
		Message:   body,
		Channels:  tmpl.Channels,
		Metadata: map[string]interface{}{
			"interview_id": iv.ID.String(),
		},
		ApplicationID: iv.ApplicationID,
		InterviewID:   &iv.ID,
		SenderID:      senderID,
	})
}

// PurchaseData carries the credit purchase fields the credit templates
// reference.
type PurchaseData struct {
	PaymentReference string
	PriceAmount      float64
	Currency         string
	CreditsAmount    int64
	NewBalance       int64
	AdminNotes       string
	RejectionReason  string
}

// SendCreditNotification informs a user of a validated or rejected credit
// purchase.
func (s *Service) SendCreditNotification(ctx context.Context, recipient models.Recipient, t models.EventType, data PurchaseData) (*Result, error) {
	if t != models.EventCreditsValidated && t != models.EventCreditsRejected {
		return nil, apperr.ValidationFailed("event type " + string(t) + " is not a credit event")
	}
	tmpl, _ := Template(t)

	newBalance := ""
	if data.NewBalance > 0 {
		newBalance = groupThousandsFR(data.NewBalance)
	}
	vars := map[string]interface{}{
		"payment_reference": data.PaymentReference,
		"price_amount":      formatPrice(data.PriceAmount, data.Currency),
		"credits_amount":    groupThousandsFR(data.CreditsAmount),
		"new_balance":       newBalance,
		"admin_notes":       data.AdminNotes,
		"rejection_reason":  data.RejectionReason,
		"if_notes":          data.AdminNotes != "",
		"if_reason":         data.RejectionReason != "",
	}

	subject, err := template.Render(tmpl.Subject, vars)
	if err != nil {
		return nil, err
	}
	body, err := template.Render(tmpl.Body, vars)
	if err != nil {
		return nil, err
	}

	return s.Send(ctx, Payload{
		Recipient: recipient,
		Type:      t,
		Title:     subject,
		Message:   body,
		Channels:  tmpl.Channels,
		Metadata: map[string]interface{}{
			"payment_reference": data.PaymentReference,
			"credits_amount":    data.CreditsAmount,
		},
	})
}

var _ correlationAppender = (*store.CorrelationRepo)(nil)

func channelList(channels []models.Channel) string {
	names := make([]string, len(channels))
	for i, c := range channels {
		names[i] = string(c)
	}
	return strings.Join(names, ",")
}

func lastError(failed map[models.Channel]error) error {
	for _, err := range failed {
		return err
	}
	return nil
}
