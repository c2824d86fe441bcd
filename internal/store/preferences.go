package store

import (
	"context"
	"database/sql"

	"jobdispatch/internal/common/apperr"
	"jobdispatch/internal/models"
)

// PreferencesRepo persists per-recipient notification gates. A recipient with
// no stored row gets the default-on record created on first read.
type PreferencesRepo struct {
	db *sql.DB
}

func NewPreferencesRepo(db *sql.DB) *PreferencesRepo {
	return &PreferencesRepo{db: db}
}

const preferenceColumns = "user_id, email_notifications, push_notifications, application_notifications, message_notifications, job_alert_notifications, promo_notifications, announcement_notifications, updated_at"

// Get loads the recipient's preferences, creating the default-on record when
// none exists yet.
func (r *PreferencesRepo) Get(ctx context.Context, recipientID string) (models.Preferences, error) {
	query := "SELECT " + preferenceColumns + " FROM notification_preferences WHERE user_id = $1"
	p, err := scanPreferences(r.db.QueryRowContext(ctx, query, recipientID))
	if err == sql.ErrNoRows {
		return r.createDefault(ctx, recipientID)
	}
	if err != nil {
		return models.Preferences{}, apperr.StoreFailed("preferences.get", err)
	}
	return p, nil
}

func (r *PreferencesRepo) createDefault(ctx context.Context, recipientID string) (models.Preferences, error) {
	p := models.DefaultPreferences(recipientID)
	// Two first-time readers can race here; the conflict clause lets the
	// loser fall through to the winner's row.
	query := `INSERT INTO notification_preferences (` + preferenceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query,
		p.RecipientID, p.EmailEnabled, p.PushEnabled, p.ApplicationUpdates,
		p.Messages, p.JobAlerts, p.Promotions, p.Announcements, p.UpdatedAt); err != nil {
		return models.Preferences{}, apperr.StoreFailed("preferences.create_default", err)
	}
	return p, nil
}

// Update rewrites the recipient's gates, creating the row if needed.
func (r *PreferencesRepo) Update(ctx context.Context, p models.Preferences) error {
	query := `INSERT INTO notification_preferences (` + preferenceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id) DO UPDATE SET
			email_notifications = EXCLUDED.email_notifications,
			push_notifications = EXCLUDED.push_notifications,
			application_notifications = EXCLUDED.application_notifications,
			message_notifications = EXCLUDED.message_notifications,
			job_alert_notifications = EXCLUDED.job_alert_notifications,
			promo_notifications = EXCLUDED.promo_notifications,
			announcement_notifications = EXCLUDED.announcement_notifications,
			updated_at = EXCLUDED.updated_at`
	if _, err := r.db.ExecContext(ctx, query,
		p.RecipientID, p.EmailEnabled, p.PushEnabled, p.ApplicationUpdates,
		p.Messages, p.JobAlerts, p.Promotions, p.Announcements, p.UpdatedAt); err != nil {
		return apperr.StoreFailed("preferences.update", err)
	}
	return nil
}

func scanPreferences(row rowScanner) (models.Preferences, error) {
	var p models.Preferences
	err := row.Scan(&p.RecipientID, &p.EmailEnabled, &p.PushEnabled,
		&p.ApplicationUpdates, &p.Messages, &p.JobAlerts, &p.Promotions,
		&p.Announcements, &p.UpdatedAt)
	return p, err
}
