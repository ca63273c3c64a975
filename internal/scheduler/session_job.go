package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/pricesentry/internal/domain"
	"github.com/aristath/pricesentry/internal/services"
)

// SessionRunner is the part of services.SessionRunner a job needs
type SessionRunner interface {
	Run(ctx context.Context, opts services.RunOptions) (*services.RunReport, error)
}

// SessionJob runs one AM or PM session. The runner skips closed market days.
type SessionJob struct {
	ctx     context.Context
	runner  SessionRunner
	session domain.Session
	timeout time.Duration
	log     zerolog.Logger
}

// NewSessionJob creates a session job. ctx bounds every run; cancelling it
// aborts a run in flight during shutdown.
func NewSessionJob(ctx context.Context, runner SessionRunner, session domain.Session, timeout time.Duration, log zerolog.Logger) *SessionJob {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &SessionJob{
		ctx:     ctx,
		runner:  runner,
		session: session,
		timeout: timeout,
		log:     log.With().Str("job", "session_"+string(session)).Logger(),
	}
}

// Run executes the session pipeline
func (j *SessionJob) Run() error {
	ctx, cancel := context.WithTimeout(j.ctx, j.timeout)
	defer cancel()

	report, err := j.runner.Run(ctx, services.RunOptions{Session: j.session})
	if errors.Is(err, services.ErrRunInProgress) {
		j.log.Warn().Msg("Previous run of this session still in progress, skipping")
		return nil
	}
	if err != nil {
		return err
	}
	if report.Skipped {
		return nil
	}
	if report.DeliveryErr != "" {
		j.log.Warn().Str("fallback", report.FallbackPath).Str("error", report.DeliveryErr).Msg("Alerts were not delivered")
	}
	return nil
}

// Name returns the job name for scheduler
func (j *SessionJob) Name() string {
	return "session_" + string(j.session)
}
