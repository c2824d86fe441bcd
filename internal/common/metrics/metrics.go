package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_messages_total",
			Help: "Total number of messages resolved by the fan-out dispatcher",
		},
		[]string{"channel", "status"},
	)

	BroadcastDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "dispatch_broadcast_duration_seconds",
			Help: "Duration of a full broadcast fan-out in seconds",
		},
		[]string{"type"},
	)

	RemindersSwept = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_sweep_total",
			Help: "Total number of interview reminders processed by the sweep",
		},
		[]string{"kind", "status"},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transactional_notifications_total",
			Help: "Total number of transactional notifications sent per event type and channel",
		},
		[]string{"event_type", "channel", "status"},
	)

	InboxEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbox_change_events_total",
			Help: "Total number of change-feed events applied to inbox feeds",
		},
		[]string{"kind"},
	)
)
