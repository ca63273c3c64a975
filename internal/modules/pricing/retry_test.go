package pricing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/aristath/pricesentry/internal/domain"
	testingpkg "github.com/aristath/pricesentry/internal/testing"
)

func rateLimited() error {
	return domain.NewProviderError(domain.ProviderYahoo, "AAPL", domain.KindRateLimited, errors.New("429"))
}

func TestRetryPolicy_BacksOffOnRateLimit(t *testing.T) {
	clock := testingpkg.NewFakeClock(time.Now())
	policy := RetryPolicy{Clock: clock, BaseDelay: 2 * time.Second, MaxAttempts: 3}

	calls := 0
	err := policy.Do(context.Background(), zerolog.Nop(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return rateLimited()
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, clock.Sleeps())
}

func TestRetryPolicy_GivesUpAfterMaxAttempts(t *testing.T) {
	clock := testingpkg.NewFakeClock(time.Now())
	policy := RetryPolicy{Clock: clock, BaseDelay: time.Second, MaxAttempts: 3}

	calls := 0
	err := policy.Do(context.Background(), zerolog.Nop(), func(ctx context.Context) error {
		calls++
		return rateLimited()
	})

	assert.True(t, domain.IsRateLimited(err))
	assert.Equal(t, 3, calls)
	assert.Len(t, clock.Sleeps(), 2, "no wait after the final attempt")
}

func TestRetryPolicy_OtherErrorsFailFast(t *testing.T) {
	errs := []error{
		domain.NewProviderError(domain.ProviderYahoo, "X", domain.KindPermanent, errors.New("401")),
		domain.NewProviderError(domain.ProviderYahoo, "X", domain.KindNotFound, nil),
		context.DeadlineExceeded,
		errors.New("connection reset"),
	}
	for _, want := range errs {
		clock := testingpkg.NewFakeClock(time.Now())
		policy := RetryPolicy{Clock: clock, BaseDelay: time.Second, MaxAttempts: 3}

		calls := 0
		err := policy.Do(context.Background(), zerolog.Nop(), func(ctx context.Context) error {
			calls++
			return want
		})

		assert.ErrorIs(t, err, want)
		assert.Equal(t, 1, calls)
		assert.Empty(t, clock.Sleeps())
	}
}

func TestRetryPolicy_StopsOnCancel(t *testing.T) {
	clock := testingpkg.NewFakeClock(time.Now())
	policy := RetryPolicy{Clock: clock, BaseDelay: time.Second, MaxAttempts: 3}

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := policy.Do(ctx, zerolog.Nop(), func(ctx context.Context) error {
		calls++
		cancel()
		return rateLimited()
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
