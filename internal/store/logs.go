package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"

	"jobdispatch/internal/common/apperr"
	"jobdispatch/internal/models"
)

// LogRepo persists the append-only lifecycle audit trail.
type LogRepo struct {
	db *sql.DB
}

func NewLogRepo(db *sql.DB) *LogRepo {
	return &LogRepo{db: db}
}

// Append stores one audit record.
func (r *LogRepo) Append(ctx context.Context, e *models.LogEntry) error {
	var details []byte
	if e.Details != nil {
		var err error
		details, err = json.Marshal(e.Details)
		if err != nil {
			return apperr.StoreFailed("log.append", err)
		}
	}
	query := `INSERT INTO communication_logs (id, communication_id, action, details, actor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := r.db.ExecContext(ctx, query,
		e.ID, e.BroadcastID, e.Action, details, e.ActorID, e.CreatedAt); err != nil {
		return apperr.StoreFailed("log.append", err)
	}
	return nil
}

// ListForBroadcast returns a broadcast's audit records newest first.
func (r *LogRepo) ListForBroadcast(ctx context.Context, broadcastID uuid.UUID, limit int) ([]*models.LogEntry, error) {
	query := `SELECT id, communication_id, action, details, actor_id, created_at
		FROM communication_logs WHERE communication_id = $1
		ORDER BY created_at DESC LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, broadcastID, limit)
	if err != nil {
		return nil, apperr.StoreFailed("log.list", err)
	}
	defer rows.Close()

	var out []*models.LogEntry
	for rows.Next() {
		var e models.LogEntry
		var details []byte
		var actor sql.NullString
		if err := rows.Scan(&e.ID, &e.BroadcastID, &e.Action, &details, &actor, &e.CreatedAt); err != nil {
			return nil, apperr.StoreFailed("log.list", err)
		}
		e.ActorID = actor.String
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, apperr.StoreFailed("log.list", err)
			}
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.StoreFailed("log.list", err)
	}
	return out, nil
}
