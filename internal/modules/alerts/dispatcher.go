package alerts

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/pricesentry/internal/domain"
)

// ErrMailDisabled is the delivery error when no transport is configured
var ErrMailDisabled = errors.New("mail transport not configured")

// Store is the persistence the dispatcher needs
type Store interface {
	ReplaceSession(ctx context.Context, session domain.Session, alerts []domain.Alert) error
}

// Archiver copies undelivered payloads off the host
type Archiver interface {
	Archive(ctx context.Context, key string, body []byte, contentType string) error
}

// Observer receives dispatch outcomes, typically for metrics
type Observer interface {
	AlertsDispatched(session domain.Session, count int, outcome string)
}

// Dispatch outcomes
const (
	OutcomeSent     = "sent"
	OutcomeFallback = "fallback"
	OutcomeEmpty    = "empty"
)

// Recipients is the envelope for every notification
type Recipients struct {
	From string
	To   []string
	Bcc  []string
}

// Report describes one dispatch
type Report struct {
	DeliveryErr  error
	BatchID      string
	FallbackPath string
	Count        int
	Sent         bool
}

// Dispatcher persists a session's alert set, renders it and delivers it once
type Dispatcher struct {
	store      Store
	transport  domain.MailTransport
	renderer   *Renderer
	fallback   *FallbackWriter
	archiver   Archiver
	observer   Observer
	recipients Recipients
	now        func() time.Time
	newID      func() string
	log        zerolog.Logger
}

// DispatcherOption configures optional collaborators
type DispatcherOption func(*Dispatcher)

// WithArchiver uploads fallback payloads as well as writing them locally
func WithArchiver(a Archiver) DispatcherOption {
	return func(d *Dispatcher) { d.archiver = a }
}

// WithObserver reports dispatch outcomes
func WithObserver(o Observer) DispatcherOption {
	return func(d *Dispatcher) { d.observer = o }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) { d.now = now }
}

// NewDispatcher creates a dispatcher. A nil transport means mail is not
// configured and every non-empty set goes to the fallback file.
func NewDispatcher(store Store, transport domain.MailTransport, renderer *Renderer, fallback *FallbackWriter, recipients Recipients, log zerolog.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		store:      store,
		transport:  transport,
		renderer:   renderer,
		fallback:   fallback,
		recipients: recipients,
		now:        time.Now,
		newID:      uuid.NewString,
		log:        log.With().Str("service", "alert_dispatcher").Logger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch replaces the session's active alerts with alerts and delivers them.
// An empty set deactivates the session's alerts and sends nothing. A transport
// failure is not retried: the payload goes to the fallback file and the report
// carries DeliveryErr. The returned error is reserved for persistence, render
// and fallback-write failures.
func (d *Dispatcher) Dispatch(ctx context.Context, alerts []domain.Alert, session domain.Session) (*Report, error) {
	if len(alerts) == 0 {
		if err := d.store.ReplaceSession(ctx, session, nil); err != nil {
			return nil, fmt.Errorf("failed to clear %s alerts: %w", session, err)
		}
		d.log.Info().Str("session", string(session)).Msg("No alerts to send")
		d.observe(session, 0, OutcomeEmpty)
		return &Report{}, nil
	}

	at := d.now()
	report := &Report{BatchID: d.newID(), Count: len(alerts)}
	batch := make([]domain.Alert, len(alerts))
	for i, a := range alerts {
		a.BatchID = report.BatchID
		a.Session = session
		a.IsActive = true
		if a.GeneratedAt.IsZero() {
			a.GeneratedAt = at
		}
		batch[i] = a
	}

	if err := d.store.ReplaceSession(ctx, session, batch); err != nil {
		return nil, fmt.Errorf("failed to store %s alerts: %w", session, err)
	}

	email, err := d.renderer.Render(batch, session, at)
	if err != nil {
		return nil, err
	}

	sendErr := ErrMailDisabled
	if d.transport != nil {
		sendErr = d.transport.Send(ctx, domain.MailMessage{
			From:    d.recipients.From,
			To:      d.recipients.To,
			Bcc:     d.recipients.Bcc,
			Subject: email.Subject,
			HTML:    email.HTML,
		})
	}

	if sendErr == nil {
		report.Sent = true
		d.log.Info().
			Str("session", string(session)).
			Str("batch_id", report.BatchID).
			Int("alerts", report.Count).
			Msg("Alerts delivered")
		d.observe(session, report.Count, OutcomeSent)
		return report, nil
	}

	report.DeliveryErr = sendErr
	path, err := d.fallback.Write(session, email.HTML, at)
	if err != nil {
		d.log.Error().Err(err).AnErr("delivery_error", sendErr).Msg("Alert delivery failed and fallback could not be written")
		return report, err
	}
	report.FallbackPath = path
	d.log.Error().
		Err(sendErr).
		Str("session", string(session)).
		Str("fallback", path).
		Int("alerts", report.Count).
		Msg("Alert delivery failed, payload written to fallback file")
	d.observe(session, report.Count, OutcomeFallback)

	if d.archiver != nil {
		key := "failed_alerts/" + filepath.Base(path)
		if err := d.archiver.Archive(ctx, key, []byte(email.HTML), "text/html; charset=utf-8"); err != nil {
			d.log.Warn().Err(err).Str("key", key).Msg("Failed to archive fallback payload")
		}
	}
	return report, nil
}

func (d *Dispatcher) observe(session domain.Session, n int, outcome string) {
	if d.observer != nil {
		d.observer.AlertsDispatched(session, n, outcome)
	}
}
