// Package audience translates declarative broadcast filters into recipient
// counts and pages against the user/profile store.
package audience

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"jobdispatch/internal/common/apperr"
	"jobdispatch/internal/common/logger"
	"jobdispatch/internal/models"

	"github.com/lib/pq"
)

const recipientColumns = "id, first_name, last_name, full_name, email, phone, user_type, language, country, region, city, profile_completion_percentage, created_at"

// Resolver runs side-effect-free audience queries. Safe for concurrent use.
type Resolver struct {
	db     *sql.DB
	logger logger.Logger
}

func NewResolver(db *sql.DB, log logger.Logger) *Resolver {
	return &Resolver{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "audience"}),
	}
}

// Count returns the number of recipients matching the filter. It is called
// synchronously on every filter change during authoring so the operator sees
// a live estimate.
func (r *Resolver) Count(ctx context.Context, filter models.AudienceFilter) (int, error) {
	where, args := buildWhere(filter)

	query := "SELECT COUNT(*) FROM profiles" + where

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		r.logger.Error("audience count failed", map[string]interface{}{"error": err})
		return 0, apperr.AudienceQueryFailed(err)
	}
	return count, nil
}

// Page returns one page of matching recipients ordered by id, so large
// audiences are never loaded wholesale.
func (r *Resolver) Page(ctx context.Context, filter models.AudienceFilter, limit, offset int) ([]models.Recipient, error) {
	where, args := buildWhere(filter)

	query := fmt.Sprintf("SELECT %s FROM profiles%s ORDER BY id LIMIT $%d OFFSET $%d",
		recipientColumns, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("audience page failed", map[string]interface{}{"error": err, "offset": offset})
		return nil, apperr.AudienceQueryFailed(err)
	}
	defer rows.Close()

	var out []models.Recipient
	for rows.Next() {
		var rec models.Recipient
		if err := rows.Scan(
			&rec.ID, &rec.FirstName, &rec.LastName, &rec.FullName, &rec.Email, &rec.Phone,
			&rec.Role, &rec.Language, &rec.Country, &rec.Region, &rec.City,
			&rec.CompletionPct, &rec.CreatedAt,
		); err != nil {
			return nil, apperr.AudienceQueryFailed(err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.AudienceQueryFailed(err)
	}
	return out, nil
}

// ByID loads a single recipient projection, used by transactional sends
// that target one known user instead of a filter.
func (r *Resolver) ByID(ctx context.Context, id string) (*models.Recipient, error) {
	query := fmt.Sprintf("SELECT %s FROM profiles WHERE id = $1", recipientColumns)
	var rec models.Recipient
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&rec.ID, &rec.FirstName, &rec.LastName, &rec.FullName, &rec.Email, &rec.Phone,
		&rec.Role, &rec.Language, &rec.Country, &rec.Region, &rec.City,
		&rec.CompletionPct, &rec.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("recipient", id)
	}
	if err != nil {
		return nil, apperr.AudienceQueryFailed(err)
	}
	return &rec, nil
}

// buildWhere AND-combines the set filter fields; unset fields impose no
// constraint.
func buildWhere(filter models.AudienceFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}

	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(filter.Roles) > 0 {
		conds = append(conds, "user_type = ANY("+arg(pq.Array(filter.Roles))+")")
	}
	if filter.MinCompletion > 0 {
		conds = append(conds, "profile_completion_percentage >= "+arg(filter.MinCompletion))
	}
	if filter.Country != "" {
		conds = append(conds, "country = "+arg(filter.Country))
	}
	if filter.Region != "" {
		conds = append(conds, "region = "+arg(filter.Region))
	}
	if filter.City != "" {
		conds = append(conds, "city = "+arg(filter.City))
	}
	if filter.CreatedFrom != nil {
		conds = append(conds, "created_at >= "+arg(*filter.CreatedFrom))
	}
	if filter.CreatedTo != nil {
		conds = append(conds, "created_at <= "+arg(*filter.CreatedTo))
	}
	if filter.Language != "" {
		conds = append(conds, "language = "+arg(filter.Language))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
