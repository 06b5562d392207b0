package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/aluiziolira/go-price-watch/models"
)

// Webhook POSTs each event as JSON to a URL.
type Webhook struct {
	client *resty.Client
	url    string
}

// NewWebhook builds a webhook sink with its own resty client.
func NewWebhook(url string, timeout time.Duration) *Webhook {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	return &Webhook{client: client, url: url}
}

// Notify sends the event and treats any non-2xx reply as a failure.
func (w *Webhook) Notify(ctx context.Context, event *models.NotifyEvent) error {
	res, err := w.client.R().
		SetContext(ctx).
		SetBody(event).
		Post(w.url)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	if res.IsError() {
		return fmt.Errorf("webhook responded %d", res.StatusCode())
	}
	return nil
}
