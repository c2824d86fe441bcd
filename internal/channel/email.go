package channel

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"jobdispatch/internal/common/apperr"
	"jobdispatch/internal/models"
)

type emailSender interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// EmailAdapter delivers over SES.
type EmailAdapter struct {
	client emailSender
	from   string
}

func NewEmailAdapter(client emailSender, from string) *EmailAdapter {
	return &EmailAdapter{client: client, from: from}
}

func (a *EmailAdapter) Deliver(ctx context.Context, d Delivery) error {
	to := d.Recipient.ContactFor(models.ChannelEmail)
	if to == "" {
		return apperr.DeliveryFailed(string(models.ChannelEmail), errors.New("recipient has no email address"))
	}

	input := &ses.SendEmailInput{
		Source: aws.String(a.from),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(d.Subject),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data:    aws.String(d.Body),
					Charset: aws.String("UTF-8"),
				},
			},
		},
	}
	if _, err := a.client.SendEmail(ctx, input); err != nil {
		return apperr.DeliveryFailed(string(models.ChannelEmail), err)
	}
	return nil
}
