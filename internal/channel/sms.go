package channel

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"

	"jobdispatch/internal/common/apperr"
	"jobdispatch/internal/models"
)

type smsPublisher interface {
	Publish(ctx context.Context, input *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SMSAdapter delivers over SNS direct-to-phone publishing.
type SMSAdapter struct {
	client   smsPublisher
	senderID string
}

func NewSMSAdapter(client smsPublisher, senderID string) *SMSAdapter {
	return &SMSAdapter{client: client, senderID: senderID}
}

func (a *SMSAdapter) Deliver(ctx context.Context, d Delivery) error {
	phone := d.Recipient.ContactFor(models.ChannelSMS)
	if phone == "" {
		return apperr.DeliveryFailed(string(models.ChannelSMS), errors.New("recipient has no phone number"))
	}

	input := &sns.PublishInput{
		PhoneNumber: aws.String(phone),
		Message:     aws.String(d.Body),
	}
	if a.senderID != "" {
		input.MessageAttributes = map[string]types.MessageAttributeValue{
			"AWS.SNS.SMS.SenderID": {
				DataType:    aws.String("String"),
				StringValue: aws.String(a.senderID),
			},
		}
	}
	if _, err := a.client.Publish(ctx, input); err != nil {
		return apperr.DeliveryFailed(string(models.ChannelSMS), err)
	}
	return nil
}
