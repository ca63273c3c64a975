// Package email delivers rendered alert notifications over SMTP or an HTTP mail API.
package email

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"

	"github.com/aristath/pricesentry/internal/domain"
)

// SMTPConfig holds the SMTP relay settings
type SMTPConfig struct {
	Host     string
	Username string
	Password string
	Port     int
	Timeout  time.Duration
}

// SMTPTransport sends mail through an authenticated SMTP relay
type SMTPTransport struct {
	cfg SMTPConfig
	log zerolog.Logger
}

// NewSMTPTransport creates an SMTP transport. Nothing is dialled until Send.
func NewSMTPTransport(cfg SMTPConfig, log zerolog.Logger) *SMTPTransport {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &SMTPTransport{
		cfg: cfg,
		log: log.With().Str("client", "smtp").Logger(),
	}
}

// Send delivers msg in a single attempt
func (t *SMTPTransport) Send(ctx context.Context, msg domain.MailMessage) error {
	m, err := buildMessage(msg)
	if err != nil {
		return err
	}

	opts := []mail.Option{
		mail.WithPort(t.cfg.Port),
		mail.WithTimeout(t.cfg.Timeout),
		mail.WithTLSPortPolicy(mail.TLSMandatory),
	}
	if t.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(t.cfg.Username),
			mail.WithPassword(t.cfg.Password),
		)
	}

	client, err := mail.NewClient(t.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("failed to send via %s:%d: %w", t.cfg.Host, t.cfg.Port, err)
	}

	t.log.Info().
		Strs("to", msg.To).
		Int("bcc", len(msg.Bcc)).
		Str("subject", msg.Subject).
		Msg("Alert email sent")
	return nil
}

func buildMessage(msg domain.MailMessage) (*mail.Msg, error) {
	if len(msg.To) == 0 {
		return nil, errors.New("message has no recipient")
	}
	m := mail.NewMsg()
	if err := m.From(msg.From); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", msg.From, err)
	}
	if err := m.To(msg.To...); err != nil {
		return nil, fmt.Errorf("invalid recipient: %w", err)
	}
	if len(msg.Bcc) > 0 {
		if err := m.Bcc(msg.Bcc...); err != nil {
			return nil, fmt.Errorf("invalid bcc: %w", err)
		}
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextHTML, msg.HTML)
	return m, nil
}
