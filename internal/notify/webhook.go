package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Webhook payload formats.
const (
	FormatJSON    = "json"
	FormatDiscord = "discord"
)

// WebhookSink posts events as JSON. The discord format wraps a summary in a "content" field,
// which Discord and Slack-compatible endpoints accept.
type WebhookSink struct {
	url        string
	format     string
	httpClient *http.Client
}

func NewWebhookSink(url, format string) *WebhookSink {
	return &WebhookSink{
		url:    url,
		format: format,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (s *WebhookSink) Name() string { return "webhook" }

func (s *WebhookSink) Deliver(ctx context.Context, e Event) error {
	var payload any = e
	if s.format == FormatDiscord {
		payload = map[string]string{"content": e.Summary()}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status: %d", resp.StatusCode)
	}
	return nil
}
