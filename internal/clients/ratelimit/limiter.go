// Package ratelimit gates outbound calls per price provider.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/aristath/pricesentry/internal/domain"
)

// ErrUnknownProvider is returned by Acquire for providers without an interval
var ErrUnknownProvider = errors.New("unknown provider")

type gate struct {
	limiter  *rate.Limiter
	interval time.Duration
}

// Limiter enforces a minimum interval between grants for each provider with a
// burst-1 token bucket. Reservations are taken against the injected clock, so
// concurrent callers are granted in the order they reserved.
type Limiter struct {
	clock Clock
	gates map[domain.ProviderID]*gate
	log   zerolog.Logger
}

// New creates a limiter with one gate per provider
func New(clock Clock, intervals map[domain.ProviderID]time.Duration, log zerolog.Logger) *Limiter {
	if clock == nil {
		clock = RealClock{}
	}
	l := &Limiter{
		clock: clock,
		gates: make(map[domain.ProviderID]*gate, len(intervals)),
		log:   log.With().Str("component", "rate_limiter").Logger(),
	}
	for id, interval := range intervals {
		l.gates[id] = &gate{
			limiter:  rate.NewLimiter(rate.Every(interval), 1),
			interval: interval,
		}
	}
	return l
}

// Interval returns the configured gap for id
func (l *Limiter) Interval(id domain.ProviderID) (time.Duration, bool) {
	g, ok := l.gates[id]
	if !ok {
		return 0, false
	}
	return g.interval, true
}

// Acquire blocks until the caller's slot for id arrives or ctx is done.
// A cancelled wait hands its slot back.
func (l *Limiter) Acquire(ctx context.Context, id domain.ProviderID) error {
	g, ok := l.gates[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProvider, id)
	}

	now := l.clock.Now()
	r := g.limiter.ReserveN(now, 1)
	if !r.OK() {
		return fmt.Errorf("rate limit reservation refused for %s", id)
	}

	// token arithmetic is float64 and can land a few ns short of the interval
	wait := r.DelayFrom(now).Round(time.Millisecond)
	if wait <= 0 {
		return nil
	}
	l.log.Debug().Str("provider", string(id)).Dur("wait", wait).Msg("Waiting for rate limit slot")
	if err := l.clock.Sleep(ctx, wait); err != nil {
		r.CancelAt(l.clock.Now())
		return err
	}
	return nil
}
