package pricing

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/aristath/pricesentry/internal/clients/ratelimit"
	"github.com/aristath/pricesentry/internal/domain"
)

// BreakerSettings configures the per-provider circuit breaker.
// HalfOpenRequests should match the fetcher's concurrency so a probing pass
// is not rejected by its own breaker.
type BreakerSettings struct {
	OpenTimeout         time.Duration
	ConsecutiveFailures uint32
	HalfOpenRequests    uint32
}

// DefaultBreakerSettings trips after 5 straight failures and stays open for a minute
var DefaultBreakerSettings = BreakerSettings{ConsecutiveFailures: 5, OpenTimeout: time.Minute}

// Link is one provider in the chain, wrapped in retry and a circuit breaker
type Link struct {
	provider domain.PriceProvider
	breaker  *gobreaker.CircuitBreaker
	retry    RetryPolicy
	observer Observer
	clock    ratelimit.Clock
	log      zerolog.Logger
}

// Chain is the ordered provider fallback list
type Chain struct {
	links []*Link
}

// NewChain wraps providers in priority order
func NewChain(providers []domain.PriceProvider, retry RetryPolicy, breaker BreakerSettings, observer Observer, log zerolog.Logger) *Chain {
	if observer == nil {
		observer = nopObserver{}
	}
	if retry.Clock == nil {
		retry.Clock = ratelimit.RealClock{}
	}
	c := &Chain{links: make([]*Link, 0, len(providers))}
	for _, p := range providers {
		c.links = append(c.links, newLink(p, retry, breaker, observer, log))
	}
	return c
}

func newLink(p domain.PriceProvider, retry RetryPolicy, bs BreakerSettings, observer Observer, log zerolog.Logger) *Link {
	l := &Link{
		provider: p,
		retry:    retry,
		observer: observer,
		clock:    retry.Clock,
		log:      log.With().Str("provider", string(p.ID())).Logger(),
	}
	threshold := bs.ConsecutiveFailures
	if threshold == 0 {
		threshold = DefaultBreakerSettings.ConsecutiveFailures
	}
	l.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        string(p.ID()),
		MaxRequests: max(bs.HalfOpenRequests, 1),
		Timeout:     bs.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// a provider that rejects one symbol is still healthy
		IsSuccessful: func(err error) bool {
			return err == nil || domain.IsSymbolScoped(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			l.log.Warn().
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Provider circuit breaker changed state")
			observer.BreakerState(p.ID(), to.String())
		},
	})
	return l
}

// Links returns the chain in priority order
func (c *Chain) Links() []*Link {
	return c.links
}

// ID identifies the wrapped provider
func (l *Link) ID() domain.ProviderID { return l.provider.ID() }

// SupportsBatch reports the wrapped provider's capability
func (l *Link) SupportsBatch() bool { return l.provider.SupportsBatch() }

// Available is false while the breaker is open
func (l *Link) Available() bool {
	return l.breaker.State() != gobreaker.StateOpen
}

// State returns the breaker state name
func (l *Link) State() string {
	return l.breaker.State().String()
}

// FetchBatch calls the provider's batch endpoint through retry and breaker
func (l *Link) FetchBatch(ctx context.Context, symbols []string, category domain.Category) (map[string]domain.PriceResult, error) {
	var out map[string]domain.PriceResult
	err := l.execute(ctx, func(ctx context.Context) error {
		got, err := l.provider.FetchBatch(ctx, symbols, category)
		if got != nil {
			out = got
		}
		return err
	})
	return out, err
}

// FetchOne calls the provider's single-symbol endpoint through retry and breaker
func (l *Link) FetchOne(ctx context.Context, symbol string, category domain.Category) (domain.PriceResult, error) {
	var out domain.PriceResult
	err := l.execute(ctx, func(ctx context.Context) error {
		p, err := l.provider.FetchOne(ctx, symbol, category)
		if err == nil {
			out = p
		}
		return err
	})
	return out, err
}

func (l *Link) execute(ctx context.Context, fn func(ctx context.Context) error) error {
	start := l.clock.Now()
	_, err := l.breaker.Execute(func() (interface{}, error) {
		return nil, l.retry.Do(ctx, l.log, fn)
	})
	l.observer.ProviderCall(l.provider.ID(), outcome(err), l.clock.Now().Sub(start))
	return err
}

// isBreakerRejection reports a call refused without reaching the provider
func isBreakerRejection(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
