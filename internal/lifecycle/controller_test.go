package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobdispatch/internal/common/apperr"
	"jobdispatch/internal/common/logger"
	"jobdispatch/internal/models"
	"jobdispatch/internal/store"
)

type mockCounter struct {
	countFunc func(ctx context.Context, filter models.AudienceFilter) (int, error)
}

func (m *mockCounter) Count(ctx context.Context, filter models.AudienceFilter) (int, error) {
	return m.countFunc(ctx, filter)
}

type mockRunner struct {
	runFunc func(ctx context.Context, b *models.Broadcast) error
}

func (m *mockRunner) Run(ctx context.Context, b *models.Broadcast) error {
	return m.runFunc(ctx, b)
}

func newTestController(t *testing.T) (*Controller, sqlmock.Sqlmock, *mockRunner) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	runner := &mockRunner{runFunc: func(ctx context.Context, b *models.Broadcast) error { return nil }}
	counter := &mockCounter{countFunc: func(ctx context.Context, f models.AudienceFilter) (int, error) { return 42, nil }}
	c := NewController(store.NewBroadcastRepo(db), store.NewLogRepo(db), store.NewTemplateRepo(db), counter, runner, logger.NewNoOpLogger())
	return c, mock, runner
}

func broadcastRow(id uuid.UUID, status models.BroadcastStatus) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "title", "type", "description", "filters", "estimated_audience_count",
		"channels_json", "status", "scheduled_at", "started_at", "completed_at",
		"total_recipients", "total_sent", "total_failed", "total_excluded",
		"created_by", "updated_by", "created_at", "updated_at",
	}).AddRow(id, "Promo premium", "promotion", nil, []byte(`{}`), 42,
		[]byte(`{"email":{"enabled":true,"subject":"Offre","body":"Bonjour {{prenom}}"}}`),
		status, nil, nil, nil, 0, 0, 0, 0, "admin-1", "admin-1", now, now)
}

func validDraft() Draft {
	return Draft{
		Title: "Promo premium",
		Type:  models.TypePromotion,
		Channels: models.ChannelsConfig{
			Email: &models.EmailChannelConfig{Enabled: true, Subject: "Offre", Body: "Bonjour {{prenom}}, -20% ce mois"},
		},
	}
}

func TestCreate_RejectsEmptyTitle(t *testing.T) {
	c, _, _ := newTestController(t)
	d := validDraft()
	d.Title = ""

	_, err := c.Create(context.Background(), d, "admin-1")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeValidationFailed, apperr.CodeOf(err))
}

func TestCreate_RejectsEmailWithoutSubject(t *testing.T) {
	c, _, _ := newTestController(t)
	d := validDraft()
	d.Channels.Email.Subject = ""

	_, err := c.Create(context.Background(), d, "admin-1")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeValidationFailed, apperr.CodeOf(err))
}

func TestCreate_RejectsOversizedSMS(t *testing.T) {
	c, _, _ := newTestController(t)
	long := make([]rune, 161)
	for i := range long {
		long[i] = 'a'
	}
	d := Draft{
		Title: "Rappel",
		Type:  models.TypeSystemInfo,
		Channels: models.ChannelsConfig{
			SMS: &models.SMSChannelConfig{Enabled: true, Body: string(long)},
		},
	}

	_, err := c.Create(context.Background(), d, "admin-1")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeValidationFailed, apperr.CodeOf(err))
}

func TestCreate_RejectsMalformedTemplate(t *testing.T) {
	c, _, _ := newTestController(t)
	d := validDraft()
	d.Channels.Email.Body = "Bonjour {{#if_premium}}cher membre"

	_, err := c.Create(context.Background(), d, "admin-1")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeTemplateInvalid, apperr.CodeOf(err))
}

func TestCreate_StoresDraftWithEstimate(t *testing.T) {
	c, mock, _ := newTestController(t)

	mock.ExpectExec("INSERT INTO admin_communications").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO communication_logs").
		WillReturnResult(sqlmock.NewResult(0, 1))

	b, err := c.Create(context.Background(), validDraft(), "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusDraft, b.Status)
	assert.Equal(t, 42, b.EstimatedAudience)
	assert.Equal(t, "admin-1", b.CreatedBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchedule_RejectsPastTime(t *testing.T) {
	c, _, _ := newTestController(t)

	err := c.Schedule(context.Background(), uuid.New(), time.Now().Add(-time.Minute), "admin-1")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeSchedulePast, apperr.CodeOf(err))
}

func TestCancel_SendingBroadcastIsConflict(t *testing.T) {
	c, mock, _ := newTestController(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM admin_communications WHERE id").
		WithArgs(id).
		WillReturnRows(broadcastRow(id, models.StatusSending))
	mock.ExpectExec("UPDATE admin_communications").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := c.Cancel(context.Background(), id, "admin-1")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeStateConflict, apperr.CodeOf(err))
}

func TestCancel_ScheduledBroadcast(t *testing.T) {
	c, mock, _ := newTestController(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM admin_communications WHERE id").
		WithArgs(id).
		WillReturnRows(broadcastRow(id, models.StatusScheduled))
	mock.ExpectExec("UPDATE admin_communications").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO communication_logs").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := c.Cancel(context.Background(), id, "admin-1")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSendNow_TransitionsAndRuns(t *testing.T) {
	c, mock, runner := newTestController(t)
	id := uuid.New()

	var ran bool
	runner.runFunc = func(ctx context.Context, b *models.Broadcast) error {
		ran = true
		assert.Equal(t, models.StatusSending, b.Status)
		return nil
	}

	mock.ExpectQuery("SELECT .+ FROM admin_communications WHERE id").
		WithArgs(id).
		WillReturnRows(broadcastRow(id, models.StatusDraft))
	mock.ExpectExec("UPDATE admin_communications").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO communication_logs").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := c.SendNow(context.Background(), id, "admin-1")
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestUpdate_NonDraftIsConflict(t *testing.T) {
	c, mock, _ := newTestController(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM admin_communications WHERE id").
		WithArgs(id).
		WillReturnRows(broadcastRow(id, models.StatusCompleted))

	_, err := c.Update(context.Background(), id, validDraft(), "admin-1")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeStateConflict, apperr.CodeOf(err))
}

func templateRow(id uuid.UUID, channel, subject, body string, active bool) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "name", "channel", "subject", "body", "variables",
		"is_active", "category", "created_at", "updated_at",
	}).AddRow(id, "Relance premium", channel, subject, body, []byte(`{prenom}`), active, "marketing", now, now)
}

func TestCreate_CopiesReferencedTemplateText(t *testing.T) {
	c, mock, _ := newTestController(t)
	tplID := uuid.New()
	d := validDraft()
	d.Channels.Email.Subject = ""
	d.Channels.Email.Body = ""
	d.Channels.Email.TemplateID = &tplID

	mock.ExpectQuery("SELECT .+ FROM communication_templates").
		WithArgs(tplID).
		WillReturnRows(templateRow(tplID, "email", "Offre speciale", "Bonjour {{prenom}}, -20% ce mois", true))
	mock.ExpectExec("INSERT INTO admin_communications").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO communication_logs").WillReturnResult(sqlmock.NewResult(0, 1))

	b, err := c.Create(context.Background(), d, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, "Offre speciale", b.Channels.Email.Subject)
	assert.Equal(t, "Bonjour {{prenom}}, -20% ce mois", b.Channels.Email.Body)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_RejectsTemplateChannelMismatch(t *testing.T) {
	c, mock, _ := newTestController(t)
	tplID := uuid.New()
	d := validDraft()
	d.Channels.Email.TemplateID = &tplID

	mock.ExpectQuery("SELECT .+ FROM communication_templates").
		WithArgs(tplID).
		WillReturnRows(templateRow(tplID, "sms", "", "Corps court", true))

	_, err := c.Create(context.Background(), d, "admin-1")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeValidationFailed, apperr.CodeOf(err))
}

func TestCreate_RejectsInactiveTemplate(t *testing.T) {
	c, mock, _ := newTestController(t)
	tplID := uuid.New()
	d := validDraft()
	d.Channels.Email.TemplateID = &tplID

	mock.ExpectQuery("SELECT .+ FROM communication_templates").
		WithArgs(tplID).
		WillReturnRows(templateRow(tplID, "email", "Offre", "Bonjour {{prenom}}, -20% ce mois", false))

	_, err := c.Create(context.Background(), d, "admin-1")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeValidationFailed, apperr.CodeOf(err))
}

func TestCreateTemplate_DerivesVariables(t *testing.T) {
	c, mock, _ := newTestController(t)
	mock.ExpectExec("INSERT INTO communication_templates").WillReturnResult(sqlmock.NewResult(0, 1))

	tpl := &models.Template{
		Name:    "Relance",
		Channel: models.ChannelEmail,
		Subject: "Offre pour {{prenom}}",
		Body:    "{{#if_promo}}-20% ce mois{{/if_promo}}\nBonjour {{prenom}} {{nom}}",
		Active:  true,
	}
	require.NoError(t, c.CreateTemplate(context.Background(), tpl))
	assert.Equal(t, []string{"if_promo", "prenom", "nom"}, tpl.Variables)
	assert.NotEqual(t, uuid.Nil, tpl.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateTemplate_RejectsMalformedBody(t *testing.T) {
	c, _, _ := newTestController(t)

	err := c.UpdateTemplate(context.Background(), &models.Template{
		ID:      uuid.New(),
		Name:    "Relance",
		Channel: models.ChannelSMS,
		Body:    "{{#if_a}}{{#if_b}}x{{/if_b}}{{/if_a}}",
	})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeTemplateInvalid, apperr.CodeOf(err))
}
