// Package inbox maintains per-recipient live notification feeds: a bounded
// window of recent rows, an unread counter and the owner mutations.
package inbox

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"jobdispatch/internal/common/logger"
	"jobdispatch/internal/common/metrics"
	"jobdispatch/internal/models"
	"jobdispatch/internal/realtime"
	"jobdispatch/internal/store"
)

// feedBus is the realtime transport the inbox both publishes on (owner
// mutations) and subscribes to (dispatcher inserts, other sessions).
type feedBus interface {
	realtime.Publisher
	realtime.Subscriber
}

// Inbox opens per-recipient sessions and owns preference access.
type Inbox struct {
	notifications *store.NotificationRepo
	preferences   *store.PreferencesRepo
	bus           feedBus
	window        int
	logger        logger.Logger
}

func New(notifications *store.NotificationRepo, preferences *store.PreferencesRepo, bus feedBus, window int, log logger.Logger) *Inbox {
	if window <= 0 {
		window = 50
	}
	return &Inbox{
		notifications: notifications,
		preferences:   preferences,
		bus:           bus,
		window:        window,
		logger:        log.WithFields(map[string]interface{}{"component": "inbox"}),
	}
}

// Preferences returns the recipient's gates, creating the default-on record
// on first access.
func (i *Inbox) Preferences(ctx context.Context, recipientID string) (models.Preferences, error) {
	return i.preferences.Get(ctx, recipientID)
}

// UpdatePreferences rewrites the recipient's gates.
func (i *Inbox) UpdatePreferences(ctx context.Context, p models.Preferences) error {
	return i.preferences.Update(ctx, p)
}

// Session is one recipient's live feed. All methods are safe for concurrent
// use; the cached window is most-recent-first and the counter never goes
// below zero.
type Session struct {
	inbox       *Inbox
	recipientID string
	cancel      context.CancelFunc

	mu     sync.RWMutex
	window []models.Notification
	unread int
}

// Open loads the recipient's current window and unread count, then keeps the
// session current from the change feed until ctx is canceled.
func (i *Inbox) Open(ctx context.Context, recipientID string) (*Session, error) {
	window, err := i.notifications.ListRecent(ctx, recipientID, i.window)
	if err != nil {
		return nil, err
	}
	unread, err := i.notifications.UnreadCount(ctx, recipientID)
	if err != nil {
		return nil, err
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	events, err := i.bus.Subscribe(sessionCtx, recipientID)
	if err != nil {
		cancel()
		return nil, err
	}

	s := &Session{
		inbox:       i,
		recipientID: recipientID,
		cancel:      cancel,
		window:      window,
		unread:      unread,
	}
	go s.consume(events)
	return s, nil
}

// Close detaches the session from the change feed.
func (s *Session) Close() {
	s.cancel()
}

// Notifications returns a copy of the cached window, newest first.
func (s *Session) Notifications() []models.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Notification, len(s.window))
	copy(out, s.window)
	return out
}

// UnreadCount returns the cached unread counter.
func (s *Session) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unread
}

// MarkRead flags one notification read, durably and in the cache, and lets
// the recipient's other sessions know.
func (s *Session) MarkRead(ctx context.Context, id uuid.UUID) error {
	wasUnread, err := s.inbox.notifications.MarkRead(ctx, s.recipientID, id)
	if err != nil {
		return err
	}
	if !wasUnread {
		return nil
	}

	s.mu.Lock()
	var updated *models.Notification
	for idx := range s.window {
		if s.window[idx].ID == id {
			s.window[idx].Read = true
			n := s.window[idx]
			updated = &n
			break
		}
	}
	if s.unread > 0 {
		s.unread--
	}
	s.mu.Unlock()

	if updated != nil {
		s.publish(ctx, models.ChangeEvent{Kind: models.ChangeUpdate, Notification: *updated})
	}
	return nil
}

// MarkAllRead flags the recipient's whole inbox read and zeroes the counter.
func (s *Session) MarkAllRead(ctx context.Context) error {
	if _, err := s.inbox.notifications.MarkAllRead(ctx, s.recipientID); err != nil {
		return err
	}

	s.mu.Lock()
	for idx := range s.window {
		s.window[idx].Read = true
	}
	s.unread = 0
	s.mu.Unlock()

	// One all-read event instead of per-row updates: sibling sessions may
	// hold unread rows outside this window and must still reach zero.
	s.publish(ctx, models.ChangeEvent{Kind: models.ChangeAllRead})
	return nil
}

// Delete removes one notification. The counter drops only when the deleted
// row was still unread.
func (s *Session) Delete(ctx context.Context, id uuid.UUID) error {
	wasUnread, err := s.inbox.notifications.Delete(ctx, s.recipientID, id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	var removed *models.Notification
	for idx := range s.window {
		if s.window[idx].ID == id {
			n := s.window[idx]
			removed = &n
			s.window = append(s.window[:idx], s.window[idx+1:]...)
			break
		}
	}
	if wasUnread && s.unread > 0 {
		s.unread--
	}
	s.mu.Unlock()

	if removed != nil {
		s.publish(ctx, models.ChangeEvent{Kind: models.ChangeDelete, Notification: *removed})
	}
	return nil
}

func (s *Session) publish(ctx context.Context, event models.ChangeEvent) {
	if err := s.inbox.bus.Publish(ctx, s.recipientID, event); err != nil {
		s.inbox.logger.WithError(err).Warn("failed to publish inbox change", map[string]interface{}{
			"recipient_id": s.recipientID,
		})
	}
}

func (s *Session) consume(events <-chan models.ChangeEvent) {
	for event := range events {
		s.apply(event)
		metrics.InboxEvents.WithLabelValues(string(event.Kind)).Inc()
	}
}

// apply folds one change event into the cached state. Events echoing the
// session's own mutations are no-ops because the cache already agrees.
func (s *Session) apply(event models.ChangeEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := event.Notification
	switch event.Kind {
	case models.ChangeInsert:
		for idx := range s.window {
			if s.window[idx].ID == n.ID {
				return
			}
		}
		s.window = append([]models.Notification{n}, s.window...)
		if len(s.window) > s.inbox.window {
			s.window = s.window[:s.inbox.window]
		}
		if !n.Read {
			s.unread++
		}
	case models.ChangeUpdate:
		for idx := range s.window {
			if s.window[idx].ID != n.ID {
				continue
			}
			if !s.window[idx].Read && n.Read && s.unread > 0 {
				s.unread--
			}
			s.window[idx] = n
			return
		}
	case models.ChangeDelete:
		for idx := range s.window {
			if s.window[idx].ID != n.ID {
				continue
			}
			if !s.window[idx].Read && s.unread > 0 {
				s.unread--
			}
			s.window = append(s.window[:idx], s.window[idx+1:]...)
			return
		}
	case models.ChangeAllRead:
		for idx := range s.window {
			s.window[idx].Read = true
		}
		s.unread = 0
	}
}
