package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/pricesentry/internal/domain"
)

// APITransport posts messages to an HTTP mail-sending API
type APITransport struct {
	client *http.Client
	url    string
	apiKey string
	log    zerolog.Logger
}

type apiRequest struct {
	From    string   `json:"from"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	To      []string `json:"to"`
	Bcc     []string `json:"bcc,omitempty"`
}

// NewAPITransport creates a transport that POSTs JSON to url with a bearer key
func NewAPITransport(url, apiKey string, timeout time.Duration, log zerolog.Logger) *APITransport {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &APITransport{
		client: &http.Client{Timeout: timeout},
		url:    url,
		apiKey: apiKey,
		log:    log.With().Str("client", "mail_api").Logger(),
	}
}

// Send delivers msg in a single attempt. Any non-2xx response is a failure.
func (t *APITransport) Send(ctx context.Context, msg domain.MailMessage) error {
	if len(msg.To) == 0 {
		return errors.New("message has no recipient")
	}
	body, err := json.Marshal(apiRequest{
		From:    msg.From,
		Subject: msg.Subject,
		HTML:    msg.HTML,
		To:      msg.To,
		Bcc:     msg.Bcc,
	})
	if err != nil {
		return fmt.Errorf("failed to encode mail request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("mail API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("mail API returned status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	t.log.Info().
		Strs("to", msg.To).
		Int("bcc", len(msg.Bcc)).
		Str("subject", msg.Subject).
		Msg("Alert email sent")
	return nil
}
