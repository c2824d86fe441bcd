package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"jobdispatch/internal/common/apperr"
	"jobdispatch/internal/models"
)

// BroadcastRepo persists admin communications and their lifecycle state.
type BroadcastRepo struct {
	db *sql.DB
}

func NewBroadcastRepo(db *sql.DB) *BroadcastRepo {
	return &BroadcastRepo{db: db}
}

const broadcastColumns = "id, title, type, description, filters, estimated_audience_count, channels_json, status, scheduled_at, started_at, completed_at, total_recipients, total_sent, total_failed, total_excluded, created_by, updated_by, created_at, updated_at"

// Create inserts a new broadcast in its initial state.
func (r *BroadcastRepo) Create(ctx context.Context, b *models.Broadcast) error {
	filters, err := json.Marshal(b.Filters)
	if err != nil {
		return apperr.StoreFailed("broadcast.create", err)
	}
	channels, err := json.Marshal(b.Channels)
	if err != nil {
		return apperr.StoreFailed("broadcast.create", err)
	}

	query := `INSERT INTO admin_communications (id, title, type, description, filters, estimated_audience_count, channels_json, status, scheduled_at, created_by, updated_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err = r.db.ExecContext(ctx, query,
		b.ID, b.Title, b.Type, b.Description, filters, b.EstimatedAudience,
		channels, b.Status, b.ScheduledAt, b.CreatedBy, b.UpdatedBy, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return apperr.StoreFailed("broadcast.create", err)
	}
	return nil
}

// GetByID loads one broadcast.
func (r *BroadcastRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Broadcast, error) {
	query := "SELECT " + broadcastColumns + " FROM admin_communications WHERE id = $1"
	b, err := scanBroadcast(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("broadcast", id.String())
	}
	if err != nil {
		return nil, apperr.StoreFailed("broadcast.get", err)
	}
	return b, nil
}

// ListFilter narrows a broadcast listing. Zero values impose no constraint.
type ListFilter struct {
	Status models.BroadcastStatus
	Type   models.BroadcastType
	Search string
	Limit  int
	Offset int
}

// List returns broadcasts newest first, filtered by status, type and a
// case-insensitive title search.
func (r *BroadcastRepo) List(ctx context.Context, f ListFilter) ([]*models.Broadcast, error) {
	query := "SELECT " + broadcastColumns + " FROM admin_communications"
	var conds []string
	var args []interface{}
	if f.Status != "" {
		args = append(args, f.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Type != "" {
		args = append(args, f.Type)
		conds = append(conds, fmt.Sprintf("type = $%d", len(args)))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		conds = append(conds, fmt.Sprintf("title ILIKE $%d", len(args)))
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.StoreFailed("broadcast.list", err)
	}
	defer rows.Close()

	var out []*models.Broadcast
	for rows.Next() {
		b, err := scanBroadcast(rows)
		if err != nil {
			return nil, apperr.StoreFailed("broadcast.list", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.StoreFailed("broadcast.list", err)
	}
	return out, nil
}

// UpdateDraft rewrites the editable fields of a broadcast while it is still a
// draft. Returns a state conflict if the row has left draft.
func (r *BroadcastRepo) UpdateDraft(ctx context.Context, b *models.Broadcast) error {
	filters, err := json.Marshal(b.Filters)
	if err != nil {
		return apperr.StoreFailed("broadcast.update", err)
	}
	channels, err := json.Marshal(b.Channels)
	if err != nil {
		return apperr.StoreFailed("broadcast.update", err)
	}

	query := `UPDATE admin_communications
		SET title = $2, type = $3, description = $4, filters = $5, estimated_audience_count = $6, channels_json = $7, updated_by = $8, updated_at = $9
		WHERE id = $1 AND status = 'draft'`
	res, err := r.db.ExecContext(ctx, query,
		b.ID, b.Title, b.Type, b.Description, filters, b.EstimatedAudience, channels, b.UpdatedBy, b.UpdatedAt)
	if err != nil {
		return apperr.StoreFailed("broadcast.update", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.StoreFailed("broadcast.update", err)
	}
	if n == 0 {
		return apperr.StateConflict("broadcast is not editable in its current status")
	}
	return nil
}

// Transition moves a broadcast between lifecycle states. The update is
// guarded on the allowed source states, so a concurrent transition loses
// with a state conflict instead of clobbering.
func (r *BroadcastRepo) Transition(ctx context.Context, id uuid.UUID, to models.BroadcastStatus, from ...models.BroadcastStatus) error {
	sources := make([]string, len(from))
	for i, s := range from {
		sources[i] = string(s)
	}
	now := time.Now().UTC()

	query := `UPDATE admin_communications
		SET status = $2,
		    started_at = CASE WHEN $2 = 'sending' THEN $3 ELSE started_at END,
		    completed_at = CASE WHEN $2 IN ('completed', 'failed') THEN $3 ELSE completed_at END,
		    updated_at = $3
		WHERE id = $1 AND status = ANY($4)`
	res, err := r.db.ExecContext(ctx, query, id, to, now, pq.Array(sources))
	if err != nil {
		return apperr.StoreFailed("broadcast.transition", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.StoreFailed("broadcast.transition", err)
	}
	if n == 0 {
		return apperr.StateConflict(fmt.Sprintf("broadcast cannot move to %s from its current status", to))
	}
	return nil
}

// SetSchedule records the scheduled send time alongside the scheduled status.
func (r *BroadcastRepo) SetSchedule(ctx context.Context, id uuid.UUID, at time.Time, actor string) error {
	query := `UPDATE admin_communications
		SET status = 'scheduled', scheduled_at = $2, updated_by = $3, updated_at = $4
		WHERE id = $1 AND status IN ('draft', 'scheduled')`
	res, err := r.db.ExecContext(ctx, query, id, at, actor, time.Now().UTC())
	if err != nil {
		return apperr.StoreFailed("broadcast.schedule", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.StoreFailed("broadcast.schedule", err)
	}
	if n == 0 {
		return apperr.StateConflict("only draft or scheduled broadcasts can be scheduled")
	}
	return nil
}

// SetTotalRecipients records the resolved audience size at send start.
func (r *BroadcastRepo) SetTotalRecipients(ctx context.Context, id uuid.UUID, total int) error {
	query := "UPDATE admin_communications SET total_recipients = $2, updated_at = $3 WHERE id = $1"
	if _, err := r.db.ExecContext(ctx, query, id, total, time.Now().UTC()); err != nil {
		return apperr.StoreFailed("broadcast.set_totals", err)
	}
	return nil
}

// AddCounters atomically adds per-outcome deltas to a broadcast's counters.
func (r *BroadcastRepo) AddCounters(ctx context.Context, id uuid.UUID, sent, failed, excluded int) error {
	query := `UPDATE admin_communications
		SET total_sent = total_sent + $2,
		    total_failed = total_failed + $3,
		    total_excluded = total_excluded + $4,
		    updated_at = $5
		WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, sent, failed, excluded, time.Now().UTC()); err != nil {
		return apperr.StoreFailed("broadcast.add_counters", err)
	}
	return nil
}

// PlatformStats aggregates broadcast totals across the platform.
type PlatformStats struct {
	Total      int                            `json:"total"`
	ByStatus   map[models.BroadcastStatus]int `json:"by_status"`
	ByType     map[models.BroadcastType]int   `json:"by_type"`
	Last30Days int                            `json:"last_30_days"`
}

// Stats returns platform-wide broadcast counts grouped by status and type,
// plus how many were created in the 30 days before now.
func (r *BroadcastRepo) Stats(ctx context.Context, now time.Time) (*PlatformStats, error) {
	query := `SELECT status, type, COUNT(*),
		COUNT(*) FILTER (WHERE created_at >= $1)
		FROM admin_communications
		GROUP BY status, type`
	rows, err := r.db.QueryContext(ctx, query, now.AddDate(0, 0, -30))
	if err != nil {
		return nil, apperr.StoreFailed("broadcast.stats", err)
	}
	defer rows.Close()

	stats := &PlatformStats{
		ByStatus: make(map[models.BroadcastStatus]int),
		ByType:   make(map[models.BroadcastType]int),
	}
	for rows.Next() {
		var status models.BroadcastStatus
		var typ models.BroadcastType
		var count, recent int
		if err := rows.Scan(&status, &typ, &count, &recent); err != nil {
			return nil, apperr.StoreFailed("broadcast.stats", err)
		}
		stats.Total += count
		stats.ByStatus[status] += count
		stats.ByType[typ] += count
		stats.Last30Days += recent
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.StoreFailed("broadcast.stats", err)
	}
	return stats, nil
}

// ListDueScheduled returns scheduled broadcasts whose send time has arrived.
func (r *BroadcastRepo) ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]*models.Broadcast, error) {
	query := "SELECT " + broadcastColumns + ` FROM admin_communications
		WHERE status = 'scheduled' AND scheduled_at <= $1
		ORDER BY scheduled_at LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, apperr.StoreFailed("broadcast.due", err)
	}
	defer rows.Close()

	var out []*models.Broadcast
	for rows.Next() {
		b, err := scanBroadcast(rows)
		if err != nil {
			return nil, apperr.StoreFailed("broadcast.due", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.StoreFailed("broadcast.due", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBroadcast(row rowScanner) (*models.Broadcast, error) {
	var b models.Broadcast
	var filters, channels []byte
	var description, createdBy, updatedBy sql.NullString
	err := row.Scan(
		&b.ID, &b.Title, &b.Type, &description, &filters, &b.EstimatedAudience,
		&channels, &b.Status, &b.ScheduledAt, &b.StartedAt, &b.CompletedAt,
		&b.TotalRecipients, &b.TotalSent, &b.TotalFailed, &b.TotalExcluded,
		&createdBy, &updatedBy, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	b.Description = description.String
	b.CreatedBy = createdBy.String
	b.UpdatedBy = updatedBy.String
	if len(filters) > 0 {
		if err := json.Unmarshal(filters, &b.Filters); err != nil {
			return nil, err
		}
	}
	if len(channels) > 0 {
		if err := json.Unmarshal(channels, &b.Channels); err != nil {
			return nil, err
		}
	}
	return &b, nil
}
