// Package realtime carries notification row changes to live inbox
// subscribers over Redis pub/sub.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"jobdispatch/internal/common/logger"
	"jobdispatch/internal/models"
)

// Publisher emits change events for one recipient's inbox.
type Publisher interface {
	Publish(ctx context.Context, recipientID string, event models.ChangeEvent) error
}

// Subscriber delivers a recipient's change events until ctx is canceled.
type Subscriber interface {
	Subscribe(ctx context.Context, recipientID string) (<-chan models.ChangeEvent, error)
}

// Feed implements Publisher and Subscriber on one Redis client. Each
// recipient gets their own pub/sub topic, so a subscriber only sees their
// own rows.
type Feed struct {
	client *redis.Client
	logger logger.Logger
}

func NewFeed(client *redis.Client, log logger.Logger) *Feed {
	return &Feed{client: client, logger: log}
}

func topicFor(recipientID string) string {
	return fmt.Sprintf("inbox:%s", recipientID)
}

// Publish serializes the event onto the recipient's topic. A publish with no
// live subscriber is not an error; the inbox rebuilds from the store on its
// next load.
func (f *Feed) Publish(ctx context.Context, recipientID string, event models.ChangeEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return f.client.Publish(ctx, topicFor(recipientID), payload).Err()
}

// Subscribe opens the recipient's topic and pumps decoded events until ctx
// is canceled. Undecodable payloads are dropped with a warning rather than
// tearing down the subscription.
func (f *Feed) Subscribe(ctx context.Context, recipientID string) (<-chan models.ChangeEvent, error) {
	sub := f.client.Subscribe(ctx, topicFor(recipientID))
	// Force the subscription to be established before we return.
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, err
	}

	out := make(chan models.ChangeEvent)
	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var event models.ChangeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					f.logger.Warn("dropping undecodable inbox event", map[string]interface{}{
						"recipient_id": recipientID,
						"error":        err.Error(),
					})
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
