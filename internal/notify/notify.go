// Package notify delivers outbound messages to owners: reminders, weekly
// summaries and anything else the scheduler produces.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dvloznov/finance-bot/internal/jobs"
	"github.com/dvloznov/finance-bot/internal/logger"
)

// Notifier sends a text message to one owner.
type Notifier interface {
	Notify(ctx context.Context, ownerID int64, text string) error
}

// LogNotifier writes notifications to the context logger. Used when no
// delivery endpoint is configured.
type LogNotifier struct{}

// Notify logs the message.
func (LogNotifier) Notify(ctx context.Context, ownerID int64, text string) error {
	log := logger.ForOwner(ctx, ownerID)
	log.Info().Str("text", text).Msg("Notification")
	return nil
}

// Webhook posts each notification as JSON to a URL.
type Webhook struct {
	url    string
	client *http.Client
}

// WebhookPayload is the body posted for each notification.
type WebhookPayload struct {
	OwnerID int64  `json:"owner_id"`
	Text    string `json:"text"`
}

// NewWebhook creates a webhook notifier. A nil client uses a 10s timeout client.
func NewWebhook(url string, client *http.Client) *Webhook {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Webhook{url: url, client: client}
}

// Notify posts the message. Any non-2xx response is an error so the job is retried.
func (w *Webhook) Notify(ctx context.Context, ownerID int64, text string) error {
	body, err := json.Marshal(WebhookPayload{OwnerID: ownerID, Text: text})
	if err != nil {
		return fmt.Errorf("Notify: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("Notify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("Notify: post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("Notify: webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// New picks the webhook notifier when url is set and the log notifier otherwise.
func New(url string) Notifier {
	if url == "" {
		return LogNotifier{}
	}
	return NewWebhook(url, nil)
}

// JobHandler adapts n into a queue handler for notification jobs.
func JobHandler(n Notifier) jobs.JobHandler {
	return func(ctx context.Context, job jobs.Job) error {
		nj, ok := job.(*jobs.NotificationJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		log := logger.ForOwner(ctx, nj.OwnerID)
		log.Debug().Str("job_id", nj.JobID).Str("job_type", string(nj.Type)).Msg("Delivering notification")

		if err := n.Notify(ctx, nj.OwnerID, nj.Text); err != nil {
			return fmt.Errorf("deliver %s: %w", nj.JobID, err)
		}
		return nil
	}
}

var (
	_ Notifier = LogNotifier{}
	_ Notifier = (*Webhook)(nil)
)
