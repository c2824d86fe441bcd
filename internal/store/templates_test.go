package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobdispatch/internal/common/apperr"
	"jobdispatch/internal/models"
)

func templateTestRows(id uuid.UUID) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "name", "channel", "subject", "body", "variables",
		"is_active", "category", "created_at", "updated_at",
	}).AddRow(id, "Relance premium", "email", "Offre {{prenom}}", "Bonjour {{prenom}}, -20% ce mois",
		[]byte(`{prenom}`), true, "marketing", now, now)
}

func TestTemplateGetByID_Found(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewTemplateRepo(db)
	id := uuid.New()
	mock.ExpectQuery("SELECT .+ FROM communication_templates").
		WithArgs(id).
		WillReturnRows(templateTestRows(id))

	tpl, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Relance premium", tpl.Name)
	assert.Equal(t, models.ChannelEmail, tpl.Channel)
	assert.Equal(t, []string{"prenom"}, tpl.Variables)
	assert.True(t, tpl.Active)
}

func TestTemplateGetByID_Missing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewTemplateRepo(db)
	id := uuid.New()
	mock.ExpectQuery("SELECT .+ FROM communication_templates").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err = repo.GetByID(context.Background(), id)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func TestTemplateList_FiltersChannelAndActivity(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewTemplateRepo(db)
	mock.ExpectQuery("SELECT .+ FROM communication_templates WHERE channel = .+ AND is_active = true").
		WithArgs(models.ChannelEmail).
		WillReturnRows(templateTestRows(uuid.New()))

	out, err := repo.List(context.Background(), models.ChannelEmail, "", false)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "marketing", out[0].Category)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTemplateUpdate_MissingRowIsNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewTemplateRepo(db)
	mock.ExpectExec("UPDATE communication_templates").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.Update(context.Background(), &models.Template{
		ID:      uuid.New(),
		Name:    "Relance premium",
		Channel: models.ChannelEmail,
		Body:    "Bonjour {{prenom}}",
	})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}
