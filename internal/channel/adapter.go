// Package channel hides the per-medium transports behind one delivery
// interface the dispatcher and the transactional sender share.
package channel

import (
	"context"

	"jobdispatch/internal/common/apperr"
	"jobdispatch/internal/models"
)

// Delivery is one rendered send on one channel for one recipient.
type Delivery struct {
	Recipient models.Recipient
	Subject   string
	Body      string
	Link      string
	EventType string
	Metadata  map[string]interface{}
}

// Adapter delivers one rendered message over one medium.
type Adapter interface {
	Deliver(ctx context.Context, d Delivery) error
}

// Registry maps channels to their adapters. A channel with no registered
// adapter is unknown, not silently skipped.
type Registry struct {
	adapters map[models.Channel]Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[models.Channel]Adapter)}
}

func (r *Registry) Register(c models.Channel, a Adapter) {
	r.adapters[c] = a
}

// Get returns the adapter for c.
func (r *Registry) Get(c models.Channel) (Adapter, error) {
	a, ok := r.adapters[c]
	if !ok {
		return nil, apperr.ChannelUnknown(string(c))
	}
	return a, nil
}

// Channels lists the registered channels.
func (r *Registry) Channels() []models.Channel {
	out := make([]models.Channel, 0, len(r.adapters))
	for c := range r.adapters {
		out = append(out, c)
	}
	return out
}
