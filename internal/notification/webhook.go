package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const webhookTimeout = 10 * time.Second

// webhookEvent is the JSON body posted for both mirrored signal text and
// operational alerts; Kind tells them apart.
type webhookEvent struct {
	Kind    string `json:"kind"`
	Text    string `json:"text,omitempty"`
	Level   string `json:"level,omitempty"`
	Title   string `json:"title,omitempty"`
	Message string `json:"message,omitempty"`
	TS      string `json:"ts"`
}

// WebhookNotifier mirrors the channel feed and alerts to an HTTP endpoint.
type WebhookNotifier struct {
	url    string
	client *http.Client
	now    func() time.Time
}

func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: webhookTimeout},
		now:    time.Now,
	}
}

// SendText mirrors a channel message as kind "message".
func (w *WebhookNotifier) SendText(ctx context.Context, text string) error {
	return w.post(ctx, webhookEvent{Kind: "message", Text: text})
}

// Send posts an alert as kind "alert".
func (w *WebhookNotifier) Send(ctx context.Context, alert Alert) error {
	return w.post(ctx, webhookEvent{
		Kind:    "alert",
		Level:   string(alert.Level),
		Title:   alert.Title,
		Message: alert.Message,
	})
}

func (w *WebhookNotifier) post(ctx context.Context, ev webhookEvent) error {
	ev.TS = w.now().UTC().Format(time.RFC3339Nano)
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("webhook %s: %w", ev.Kind, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook %s: %w", ev.Kind, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook %s: %w", ev.Kind, err)
	}
	defer resp.Body.Close()
	// drain so the connection can be reused
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("webhook %s: endpoint answered %s", ev.Kind, resp.Status)
	}
	return nil
}
