package channel

import (
	"context"
	"time"

	"github.com/google/uuid"

	"jobdispatch/internal/common/apperr"
	"jobdispatch/internal/common/logger"
	"jobdispatch/internal/models"
	"jobdispatch/internal/realtime"
)

// notificationInserter is the slice of the notification store the in-app
// adapter needs.
type notificationInserter interface {
	Insert(ctx context.Context, n *models.Notification) error
}

// InAppAdapter delivers by writing an inbox row and publishing the change to
// the recipient's live feed.
type InAppAdapter struct {
	store  notificationInserter
	feed   realtime.Publisher
	logger logger.Logger
}

func NewInAppAdapter(store notificationInserter, feed realtime.Publisher, log logger.Logger) *InAppAdapter {
	return &InAppAdapter{store: store, feed: feed, logger: log}
}

func (a *InAppAdapter) Deliver(ctx context.Context, d Delivery) error {
	n := &models.Notification{
		ID:          uuid.New(),
		RecipientID: d.Recipient.ID,
		Type:        d.EventType,
		Title:       d.Subject,
		Message:     d.Body,
		Link:        d.Link,
		Metadata:    d.Metadata,
		CreatedAt:   time.Now().UTC(),
	}
	if err := a.store.Insert(ctx, n); err != nil {
		return apperr.DeliveryFailed(string(models.ChannelInApp), err)
	}

	// The row is already durable; a dead feed only costs liveness, so it is
	// logged and swallowed.
	if err := a.feed.Publish(ctx, d.Recipient.ID, models.ChangeEvent{
		Kind:         models.ChangeInsert,
		Notification: *n,
	}); err != nil {
		a.logger.Warn("failed to publish inbox change", map[string]interface{}{
			"recipient_id": d.Recipient.ID,
			"error":        err.Error(),
		})
	}
	return nil
}
