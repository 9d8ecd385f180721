package verifycode

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const defaultTimeout = 15 * time.Second

// LogSender writes codes to the log instead of delivering them. Development only.
type LogSender struct{}

// Send implements Sender.
func (LogSender) Send(ctx context.Context, email string, purpose Purpose, code string) error {
	slog.Info("verification code issued", "email", email, "purpose", int(purpose), "code", code)
	return nil
}

// WebhookSender posts codes to a mail relay as JSON.
type WebhookSender struct {
	URL        string
	APIKey     string
	HTTPClient *http.Client
}

// NewWebhookSender returns a sender posting to url with apiKey in the Authorization header.
func NewWebhookSender(url, apiKey string) *WebhookSender {
	return &WebhookSender{
		URL:        url,
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

// Send implements Sender. Does not log the code.
func (w *WebhookSender) Send(ctx context.Context, email string, purpose Purpose, code string) error {
	if w.URL == "" {
		return fmt.Errorf("mail relay: url not configured")
	}
	raw, err := json.Marshal(map[string]interface{}{
		"to":      email,
		"purpose": int(purpose),
		"code":    code,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if w.APIKey != "" {
		req.Header.Set("Authorization", w.APIKey)
	}
	resp, err := w.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("mail relay: request failed status=%d body=%s", resp.StatusCode, string(b))
	}
	return nil
}
