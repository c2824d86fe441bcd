package channel

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobdispatch/internal/common/apperr"
	"jobdispatch/internal/common/logger"
	"jobdispatch/internal/models"
)

// MockEmailSender implements emailSender with overridable behavior.
type MockEmailSender struct {
	SendEmailFunc func(ctx context.Context, input *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

func (m *MockEmailSender) SendEmail(ctx context.Context, input *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	return m.SendEmailFunc(ctx, input, optFns...)
}

// MockSMSPublisher implements smsPublisher with overridable behavior.
type MockSMSPublisher struct {
	PublishFunc func(ctx context.Context, input *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

func (m *MockSMSPublisher) Publish(ctx context.Context, input *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	return m.PublishFunc(ctx, input, optFns...)
}

type mockInserter struct {
	insertFunc func(ctx context.Context, n *models.Notification) error
}

func (m *mockInserter) Insert(ctx context.Context, n *models.Notification) error {
	return m.insertFunc(ctx, n)
}

type mockPublisher struct {
	publishFunc func(ctx context.Context, recipientID string, event models.ChangeEvent) error
}

func (m *mockPublisher) Publish(ctx context.Context, recipientID string, event models.ChangeEvent) error {
	return m.publishFunc(ctx, recipientID, event)
}

func TestRegistry_UnknownChannel(t *testing.T) {
	reg := NewRegistry()
	reg.Register(models.ChannelEmail, &EmailAdapter{})

	_, err := reg.Get(models.Channel("pigeon"))
	require.Error(t, err)
	assert.Equal(t, apperr.CodeChannelUnknown, apperr.CodeOf(err))

	a, err := reg.Get(models.ChannelEmail)
	require.NoError(t, err)
	assert.NotNil(t, a)
}

func TestEmailAdapter_SendsToRecipientAddress(t *testing.T) {
	var captured *ses.SendEmailInput
	sender := &MockEmailSender{
		SendEmailFunc: func(ctx context.Context, input *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			captured = input
			return &ses.SendEmailOutput{}, nil
		},
	}
	adapter := NewEmailAdapter(sender, "no-reply@jobguinee.com")

	err := adapter.Deliver(context.Background(), Delivery{
		Recipient: models.Recipient{ID: "u1", Email: "aminata@example.com"},
		Subject:   "Votre candidature",
		Body:      "Bonjour Aminata",
	})
	require.NoError(t, err)
	require.NotNil(t, captured)
	assert.Equal(t, "no-reply@jobguinee.com", *captured.Source)
	assert.Equal(t, []string{"aminata@example.com"}, captured.Destination.ToAddresses)
	assert.Equal(t, "Votre candidature", *captured.Message.Subject.Data)
}

func TestEmailAdapter_MissingAddress(t *testing.T) {
	adapter := NewEmailAdapter(&MockEmailSender{}, "no-reply@jobguinee.com")

	err := adapter.Deliver(context.Background(), Delivery{
		Recipient: models.Recipient{ID: "u1"},
		Subject:   "s",
		Body:      "b",
	})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeDeliveryFailed, apperr.CodeOf(err))
}

func TestEmailAdapter_ProviderErrorIsRetryable(t *testing.T) {
	sender := &MockEmailSender{
		SendEmailFunc: func(ctx context.Context, input *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			return nil, errors.New("throttled")
		},
	}
	adapter := NewEmailAdapter(sender, "no-reply@jobguinee.com")

	err := adapter.Deliver(context.Background(), Delivery{
		Recipient: models.Recipient{Email: "a@b.c"},
	})
	require.Error(t, err)
	assert.True(t, apperr.IsRetryable(err))
}

func TestSMSAdapter_SetsSenderID(t *testing.T) {
	var captured *sns.PublishInput
	publisher := &MockSMSPublisher{
		PublishFunc: func(ctx context.Context, input *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
			captured = input
			return &sns.PublishOutput{}, nil
		},
	}
	adapter := NewSMSAdapter(publisher, "JobGuinee")

	err := adapter.Deliver(context.Background(), Delivery{
		Recipient: models.Recipient{Phone: "+224620000000"},
		Body:      "Rappel: entretien demain",
	})
	require.NoError(t, err)
	require.NotNil(t, captured)
	assert.Equal(t, "+224620000000", *captured.PhoneNumber)
	assert.Equal(t, "JobGuinee", *captured.MessageAttributes["AWS.SNS.SMS.SenderID"].StringValue)
}

func TestInAppAdapter_WritesRowAndPublishes(t *testing.T) {
	var inserted *models.Notification
	var published []models.ChangeEvent
	adapter := NewInAppAdapter(
		&mockInserter{insertFunc: func(ctx context.Context, n *models.Notification) error {
			inserted = n
			return nil
		}},
		&mockPublisher{publishFunc: func(ctx context.Context, recipientID string, event models.ChangeEvent) error {
			assert.Equal(t, "u1", recipientID)
			published = append(published, event)
			return nil
		}},
		logger.NewNoOpLogger(),
	)

	err := adapter.Deliver(context.Background(), Delivery{
		Recipient: models.Recipient{ID: "u1"},
		Subject:   "Nouveau message",
		Body:      "Vous avez recu un message",
		EventType: "nouveau_message",
	})
	require.NoError(t, err)
	require.NotNil(t, inserted)
	assert.Equal(t, "nouveau_message", inserted.Type)
	assert.False(t, inserted.Read)
	require.Len(t, published, 1)
	assert.Equal(t, models.ChangeInsert, published[0].Kind)
	assert.Equal(t, inserted.ID, published[0].Notification.ID)
}

func TestInAppAdapter_PublishFailureIsNotDeliveryFailure(t *testing.T) {
	adapter := NewInAppAdapter(
		&mockInserter{insertFunc: func(ctx context.Context, n *models.Notification) error { return nil }},
		&mockPublisher{publishFunc: func(ctx context.Context, recipientID string, event models.ChangeEvent) error {
			return errors.New("redis down")
		}},
		logger.NewNoOpLogger(),
	)

	err := adapter.Deliver(context.Background(), Delivery{Recipient: models.Recipient{ID: "u1"}})
	assert.NoError(t, err)
}

func TestWhatsAppAdapter_PostsToGateway(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	adapter := NewWhatsAppAdapter(srv.URL+"/messages", "JobGuinee")
	err := adapter.Deliver(context.Background(), Delivery{
		Recipient: models.Recipient{Phone: "+224620000000"},
		Body:      "Bonjour",
	})
	require.NoError(t, err)
	assert.Equal(t, "/messages", gotPath)
}

func TestWhatsAppAdapter_GatewayErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	adapter := NewWhatsAppAdapter(srv.URL, "JobGuinee")
	err := adapter.Deliver(context.Background(), Delivery{
		Recipient: models.Recipient{Phone: "+224620000000"},
	})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeDeliveryFailed, apperr.CodeOf(err))
}
