package pricing

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/pricesentry/internal/clients/ratelimit"
	"github.com/aristath/pricesentry/internal/domain"
)

// RetryPolicy retries rate-limited calls with exponential backoff.
// Every other error returns immediately.
type RetryPolicy struct {
	Clock       ratelimit.Clock
	BaseDelay   time.Duration
	MaxAttempts int
}

// Do runs fn up to MaxAttempts times, waiting BaseDelay*2^k after a
// rate-limited attempt k.
func (p RetryPolicy) Do(ctx context.Context, log zerolog.Logger, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		err = fn(ctx)
		if err == nil || !domain.IsRateLimited(err) {
			return err
		}
		if attempt == attempts-1 {
			break
		}

		wait := p.BaseDelay << attempt
		log.Debug().
			Err(err).
			Int("attempt", attempt+1).
			Dur("backoff", wait).
			Msg("Rate limited, backing off")
		if serr := p.Clock.Sleep(ctx, wait); serr != nil {
			return serr
		}
	}
	return err
}
