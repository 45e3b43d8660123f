package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const telegramAPIBase = "https://api.telegram.org"

// Telegram delivers messages through the Telegram Bot API sendMessage call.
type Telegram struct {
	token   string
	baseURL string // overridable in tests
	client  *http.Client
}

// NewTelegram creates a Telegram sink for the given bot token.
func NewTelegram(token string) *Telegram {
	return &Telegram{
		token:   token,
		baseURL: telegramAPIBase,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts one message to the recipient chat.
//
// Classification: HTTP 2xx is success; 429 and 5xx are transient; any other
// 4xx is permanent (bad request, bot blocked, chat not found). Network errors
// are transient. The bot token never appears in returned errors.
func (t *Telegram) Send(ctx context.Context, recipient int64, text string) error {
	body, err := json.Marshal(map[string]interface{}{
		"chat_id":    recipient,
		"text":       text,
		"parse_mode": "HTML",
	})
	if err != nil {
		return fmt.Errorf("telegram: marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: build request: %s", t.redact(err.Error()))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		// The transport error string embeds the full URL, token included.
		return fmt.Errorf("telegram: send: %s", t.redact(err.Error()))
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck

	switch {
	case resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("telegram: HTTP %d", resp.StatusCode)
	default:
		return fmt.Errorf("telegram: HTTP %d: %w", resp.StatusCode, ErrPermanent)
	}
}

// redact strips the bot token from an error string.
func (t *Telegram) redact(s string) string {
	if t.token == "" {
		return s
	}
	return strings.ReplaceAll(s, t.token, "****")
}
