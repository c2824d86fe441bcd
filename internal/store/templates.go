package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"jobdispatch/internal/common/apperr"
	"jobdispatch/internal/models"
)

// TemplateRepo persists operator-authored channel templates.
type TemplateRepo struct {
	db *sql.DB
}

func NewTemplateRepo(db *sql.DB) *TemplateRepo {
	return &TemplateRepo{db: db}
}

const templateColumns = "id, name, channel, subject, body, variables, is_active, category, created_at, updated_at"

// Create stores a new template.
func (r *TemplateRepo) Create(ctx context.Context, t *models.Template) error {
	query := `INSERT INTO communication_templates (` + templateColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	if _, err := r.db.ExecContext(ctx, query,
		t.ID, t.Name, t.Channel, t.Subject, t.Body, pq.Array(t.Variables),
		t.Active, t.Category, t.CreatedAt, t.UpdatedAt); err != nil {
		return apperr.StoreFailed("template.create", err)
	}
	return nil
}

// GetByID loads one template.
func (r *TemplateRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Template, error) {
	query := "SELECT " + templateColumns + " FROM communication_templates WHERE id = $1"
	t, err := scanTemplate(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("template", id.String())
	}
	if err != nil {
		return nil, apperr.StoreFailed("template.get", err)
	}
	return t, nil
}

// List returns templates, optionally narrowed by channel and category.
// Inactive templates are excluded unless includeInactive is set.
func (r *TemplateRepo) List(ctx context.Context, channel models.Channel, category string, includeInactive bool) ([]*models.Template, error) {
	query := "SELECT " + templateColumns + " FROM communication_templates"
	var conds []string
	var args []interface{}
	if channel != "" {
		args = append(args, channel)
		conds = append(conds, fmt.Sprintf("channel = $%d", len(args)))
	}
	if category != "" {
		args = append(args, category)
		conds = append(conds, fmt.Sprintf("category = $%d", len(args)))
	}
	if !includeInactive {
		conds = append(conds, "is_active = true")
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY name"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.StoreFailed("template.list", err)
	}
	defer rows.Close()

	var out []*models.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, apperr.StoreFailed("template.list", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.StoreFailed("template.list", err)
	}
	return out, nil
}

// Update rewrites a template's content and activity flag.
func (r *TemplateRepo) Update(ctx context.Context, t *models.Template) error {
	query := `UPDATE communication_templates
		SET name = $2, channel = $3, subject = $4, body = $5, variables = $6, is_active = $7, category = $8, updated_at = $9
		WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query,
		t.ID, t.Name, t.Channel, t.Subject, t.Body, pq.Array(t.Variables),
		t.Active, t.Category, t.UpdatedAt)
	if err != nil {
		return apperr.StoreFailed("template.update", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.StoreFailed("template.update", err)
	}
	if n == 0 {
		return apperr.NotFound("template", t.ID.String())
	}
	return nil
}

func scanTemplate(row rowScanner) (*models.Template, error) {
	var t models.Template
	var subject, category sql.NullString
	err := row.Scan(&t.ID, &t.Name, &t.Channel, &subject, &t.Body,
		pq.Array(&t.Variables), &t.Active, &category, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Subject = subject.String
	t.Category = category.String
	return &t, nil
}
