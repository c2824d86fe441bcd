package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"jobdispatch/internal/common/apperr"
	"jobdispatch/internal/models"
)

// WhatsAppAdapter posts to a gateway endpoint. The gateway contract is a
// plain JSON POST; provider specifics stay on the other side of it.
type WhatsAppAdapter struct {
	client   *http.Client
	endpoint string
	sender   string
}

func NewWhatsAppAdapter(endpoint, sender string) *WhatsAppAdapter {
	return &WhatsAppAdapter{
		client:   &http.Client{Timeout: 10 * time.Second},
		endpoint: endpoint,
		sender:   sender,
	}
}

type whatsAppPayload struct {
	From string `json:"from"`
	To   string `json:"to"`
	Body string `json:"body"`
}

func (a *WhatsAppAdapter) Deliver(ctx context.Context, d Delivery) error {
	phone := d.Recipient.ContactFor(models.ChannelWhatsApp)
	if phone == "" {
		return apperr.DeliveryFailed(string(models.ChannelWhatsApp), errors.New("recipient has no phone number"))
	}
	if a.endpoint == "" {
		return apperr.DeliveryFailed(string(models.ChannelWhatsApp), errors.New("no gateway endpoint configured"))
	}

	payload, err := json.Marshal(whatsAppPayload{From: a.sender, To: phone, Body: d.Body})
	if err != nil {
		return apperr.DeliveryFailed(string(models.ChannelWhatsApp), err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(payload))
	if err != nil {
		return apperr.DeliveryFailed(string(models.ChannelWhatsApp), err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return apperr.DeliveryFailed(string(models.ChannelWhatsApp), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return apperr.DeliveryFailed(string(models.ChannelWhatsApp),
			fmt.Errorf("gateway returned status %d", resp.StatusCode))
	}
	return nil
}
