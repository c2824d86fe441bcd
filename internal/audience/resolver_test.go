package audience

import (
	"context"
	"testing"
	"time"

	"jobdispatch/internal/common/apperr"
	"jobdispatch/internal/common/logger"
	"jobdispatch/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCount_EmptyFilterImposesNoConstraint(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM profiles$`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1234))

	r := NewResolver(db, logger.NewNoOpLogger())
	count, err := r.Count(context.Background(), models.AudienceFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1234, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCount_FieldsAreANDCombined(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM profiles WHERE user_type = ANY\(\$1\) AND profile_completion_percentage >= \$2 AND country = \$3 AND created_at >= \$4 AND language = \$5`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	r := NewResolver(db, logger.NewNoOpLogger())
	count, err := r.Count(context.Background(), models.AudienceFilter{
		Roles:         []string{"candidate", "recruiter"},
		MinCompletion: 60,
		Country:       "GN",
		CreatedFrom:   &from,
		Language:      "fr",
	})
	require.NoError(t, err)
	assert.Equal(t, 42, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCount_QueryFailureIsAudienceError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM profiles`).
		WillReturnError(assert.AnError)

	r := NewResolver(db, logger.NewNoOpLogger())
	_, err = r.Count(context.Background(), models.AudienceFilter{})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeAudienceQueryFailed, apperr.CodeOf(err))
}

func TestPage_ReturnsRecipients(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "first_name", "last_name", "full_name", "email", "phone",
		"user_type", "language", "country", "region", "city",
		"profile_completion_percentage", "created_at",
	}).
		AddRow("u1", "Aminata", "Diallo", "Aminata Diallo", "aminata@example.com", "+224601020304",
			"candidate", "fr", "GN", "Conakry", "Kaloum", 85, now).
		AddRow("u2", "Mamadou", "Bah", "Mamadou Bah", "mamadou@example.com", "",
			"candidate", "fr", "GN", "Conakry", "Dixinn", 70, now)

	mock.ExpectQuery(`SELECT id, first_name, .+ FROM profiles WHERE user_type = ANY\(\$1\) ORDER BY id LIMIT \$2 OFFSET \$3`).
		WillReturnRows(rows)

	r := NewResolver(db, logger.NewNoOpLogger())
	page, err := r.Page(context.Background(), models.AudienceFilter{Roles: []string{"candidate"}}, 200, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "u1", page[0].ID)
	assert.Equal(t, "aminata@example.com", page[0].Email)
	assert.Equal(t, "", page[1].Phone)
	assert.NoError(t, mock.ExpectationsWereMet())
}
