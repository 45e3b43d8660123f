package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Webhook delivers messages as JSON POSTs to a fixed URL. Useful as a drop-in
// sink for chat bridges or incident tooling that accepts a generic payload.
type Webhook struct {
	url    string
	client *http.Client
}

// NewWebhook creates a Webhook sink posting to url.
func NewWebhook(url string) *Webhook {
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts {"recipient": ..., "text": ...} to the webhook URL.
// 4xx responses are permanent; 5xx and network errors are transient.
func (w *Webhook) Send(ctx context.Context, recipient int64, text string) error {
	body, _ := json.Marshal(map[string]interface{}{
		"recipient": recipient,
		"text":      text,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: post: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return fmt.Errorf("webhook: HTTP %d: %w", resp.StatusCode, ErrPermanent)
	default:
		return fmt.Errorf("webhook: HTTP %d", resp.StatusCode)
	}
}
