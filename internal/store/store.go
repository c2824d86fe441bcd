// Package store persists broadcasts, messages, notifications, preferences,
// reminders and audit records in PostgreSQL.
package store

import "database/sql"

// Store bundles the per-entity repositories over one database handle.
type Store struct {
	Broadcasts    *BroadcastRepo
	Messages      *MessageRepo
	Notifications *NotificationRepo
	Preferences   *PreferencesRepo
	Reminders     *ReminderRepo
	Logs          *LogRepo
	Templates     *TemplateRepo
	Correlation   *CorrelationRepo
}

// New wires every repository onto db.
func New(db *sql.DB) *Store {
	return &Store{
		Broadcasts:    NewBroadcastRepo(db),
		Messages:      NewMessageRepo(db),
		Notifications: NewNotificationRepo(db),
		Preferences:   NewPreferencesRepo(db),
		Reminders:     NewReminderRepo(db),
		Logs:          NewLogRepo(db),
		Templates:     NewTemplateRepo(db),
		Correlation:   NewCorrelationRepo(db),
	}
}
