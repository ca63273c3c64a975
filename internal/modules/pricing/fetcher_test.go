package pricing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aristath/pricesentry/internal/domain"
	testingpkg "github.com/aristath/pricesentry/internal/testing"
)

type stubStale map[string]domain.PriceResult

func (s stubStale) LastKnownPrices(ctx context.Context, category domain.Category) (map[string]domain.PriceResult, error) {
	return s, nil
}

type recordingSink struct {
	session  domain.Session
	category domain.Category
	prices   map[string]domain.PriceResult
	calls    int
}

func (s *recordingSink) UpdatePrices(ctx context.Context, session domain.Session, category domain.Category, prices map[string]domain.PriceResult) error {
	s.calls++
	s.session, s.category, s.prices = session, category, prices
	return nil
}

type fixture struct {
	clock     *testingpkg.FakeClock
	cache     *Cache
	primary   *testingpkg.MockPriceProvider
	secondary *testingpkg.MockPriceProvider
	sink      *recordingSink
}

func newFixture() *fixture {
	clock := testingpkg.NewFakeClock(time.Date(2025, 3, 10, 14, 35, 0, 0, time.UTC))
	return &fixture{
		clock:     clock,
		cache:     NewCache(nil, testTTL, clock, zerolog.Nop()),
		primary:   &testingpkg.MockPriceProvider{ProviderID: domain.ProviderYahoo, Batch: true},
		secondary: &testingpkg.MockPriceProvider{ProviderID: domain.ProviderFinnhub},
		sink:      &recordingSink{},
	}
}

func (f *fixture) fetcher(stale StaleSource, breaker BreakerSettings) *Fetcher {
	retry := RetryPolicy{Clock: f.clock, BaseDelay: time.Second, MaxAttempts: 3}
	chain := NewChain([]domain.PriceProvider{f.primary, f.secondary}, retry, breaker, nil, zerolog.Nop())
	return NewFetcher(f.cache, chain, stale, f.sink, f.clock, nil, FetcherConfig{ChunkSize: 5, Concurrency: 3}, zerolog.Nop())
}

func price(symbol string, p float64, provider domain.ProviderID) domain.PriceResult {
	return domain.PriceResult{Symbol: symbol, Price: p, Provider: provider}
}

func notFound(provider domain.ProviderID, symbol string) error {
	return domain.NewProviderError(provider, symbol, domain.KindNotFound, nil)
}

func TestResolve_FreshCacheMakesNoProviderCall(t *testing.T) {
	f := newFixture()
	f.cache.Put(CacheEntry{Symbol: "AAPL", Category: domain.CategoryDaily, Price: 168.5, Provider: domain.ProviderYahoo, FetchedAt: f.clock.Now()})
	f.clock.Advance(10 * time.Minute)

	res, err := f.fetcher(nil, DefaultBreakerSettings).Resolve(context.Background(), []string{"AAPL"}, domain.CategoryDaily, domain.SessionAM)
	require.NoError(t, err)

	assert.Equal(t, 168.5, res.Prices["AAPL"].Price)
	assert.Equal(t, domain.ProviderCache, res.Prices["AAPL"].Provider)
	assert.Equal(t, 1, res.CacheHits)
	f.primary.AssertNotCalled(t, "FetchBatch", mock.Anything, mock.Anything, mock.Anything)
	f.primary.AssertNotCalled(t, "FetchOne", mock.Anything, mock.Anything, mock.Anything)
	f.secondary.AssertNotCalled(t, "FetchOne", mock.Anything, mock.Anything, mock.Anything)
}

func TestResolve_PartialBatchFallsBackToSecondary(t *testing.T) {
	f := newFixture()
	symbols := []string{"AAPL", "MPW", "XYZ"}

	f.primary.On("FetchBatch", mock.Anything, symbols, domain.CategoryDaily).Return(map[string]domain.PriceResult{
		"AAPL": price("AAPL", 168.5, domain.ProviderYahoo),
		"MPW":  price("MPW", 6.3, domain.ProviderYahoo),
	}, nil).Once()
	f.primary.On("FetchOne", mock.Anything, "XYZ", domain.CategoryDaily).Return(domain.PriceResult{}, notFound(domain.ProviderYahoo, "XYZ")).Once()
	f.secondary.On("FetchOne", mock.Anything, "XYZ", domain.CategoryDaily).Return(price("XYZ", 12.0, domain.ProviderFinnhub), nil).Once()

	res, err := f.fetcher(nil, DefaultBreakerSettings).Resolve(context.Background(), symbols, domain.CategoryDaily, domain.SessionPM)
	require.NoError(t, err)

	require.Len(t, res.Prices, 3)
	assert.Equal(t, domain.ProviderYahoo, res.Prices["AAPL"].Provider)
	assert.Equal(t, domain.ProviderFinnhub, res.Prices["XYZ"].Provider)
	assert.Equal(t, 3, res.Fetched)
	assert.Empty(t, res.Unresolved)

	// fetched prices are cached with the resolve time
	e, ok := f.cache.Fresh("XYZ", domain.CategoryDaily)
	require.True(t, ok)
	assert.Equal(t, f.clock.Now(), e.FetchedAt)

	// and written to the session slot
	assert.Equal(t, 1, f.sink.calls)
	assert.Equal(t, domain.SessionPM, f.sink.session)
	assert.Len(t, f.sink.prices, 3)

	f.primary.AssertExpectations(t)
	f.secondary.AssertExpectations(t)
}

func TestResolve_RetriesRateLimitOnSameProvider(t *testing.T) {
	f := newFixture()
	f.primary.Batch = false
	rl := domain.NewProviderError(domain.ProviderYahoo, "AAPL", domain.KindRateLimited, errors.New("429"))

	f.primary.On("FetchOne", mock.Anything, "AAPL", domain.CategoryDaily).Return(domain.PriceResult{}, rl).Once()
	f.primary.On("FetchOne", mock.Anything, "AAPL", domain.CategoryDaily).Return(price("AAPL", 168.5, domain.ProviderYahoo), nil).Once()

	res, err := f.fetcher(nil, DefaultBreakerSettings).Resolve(context.Background(), []string{"AAPL"}, domain.CategoryDaily, domain.SessionAM)
	require.NoError(t, err)

	assert.Equal(t, 168.5, res.Prices["AAPL"].Price)
	assert.Equal(t, []time.Duration{time.Second}, f.clock.Sleeps())
	f.secondary.AssertNotCalled(t, "FetchOne", mock.Anything, mock.Anything, mock.Anything)
}

func TestResolve_PermanentErrorNotRetried(t *testing.T) {
	f := newFixture()
	f.primary.Batch = false
	perm := domain.NewProviderError(domain.ProviderYahoo, "AAPL", domain.KindPermanent, errors.New("401"))

	f.primary.On("FetchOne", mock.Anything, "AAPL", domain.CategoryDaily).Return(domain.PriceResult{}, perm).Once()
	f.secondary.On("FetchOne", mock.Anything, "AAPL", domain.CategoryDaily).Return(price("AAPL", 168.4, domain.ProviderFinnhub), nil).Once()

	res, err := f.fetcher(nil, DefaultBreakerSettings).Resolve(context.Background(), []string{"AAPL"}, domain.CategoryDaily, domain.SessionAM)
	require.NoError(t, err)

	assert.Equal(t, domain.ProviderFinnhub, res.Prices["AAPL"].Provider)
	assert.Empty(t, f.clock.Sleeps())
	f.primary.AssertNumberOfCalls(t, "FetchOne", 1)
}

func TestResolve_OpenBreakerSkipsProvider(t *testing.T) {
	f := newFixture()
	f.primary.Batch = false
	fetcher := f.fetcher(nil, BreakerSettings{ConsecutiveFailures: 1, OpenTimeout: time.Hour})

	f.primary.On("FetchOne", mock.Anything, "AAPL", domain.CategoryDaily).Return(domain.PriceResult{}, errors.New("connection reset")).Once()
	f.secondary.On("FetchOne", mock.Anything, "AAPL", domain.CategoryDaily).Return(price("AAPL", 168.5, domain.ProviderFinnhub), nil).Twice()

	_, err := fetcher.Refresh(context.Background(), []string{"AAPL"}, domain.CategoryDaily, domain.SessionAM)
	require.NoError(t, err)
	assert.False(t, fetcher.chain.Links()[0].Available())

	res, err := fetcher.Refresh(context.Background(), []string{"AAPL"}, domain.CategoryDaily, domain.SessionAM)
	require.NoError(t, err)

	assert.Equal(t, domain.ProviderFinnhub, res.Prices["AAPL"].Provider)
	f.primary.AssertNumberOfCalls(t, "FetchOne", 1)
	f.secondary.AssertExpectations(t)
}

func TestResolve_NotFoundDoesNotTripBreaker(t *testing.T) {
	f := newFixture()
	f.primary.Batch = false
	fetcher := f.fetcher(nil, BreakerSettings{ConsecutiveFailures: 1, OpenTimeout: time.Hour})

	f.primary.On("FetchOne", mock.Anything, "ZZZZ", domain.CategoryDaily).Return(domain.PriceResult{}, notFound(domain.ProviderYahoo, "ZZZZ"))
	f.secondary.On("FetchOne", mock.Anything, "ZZZZ", domain.CategoryDaily).Return(domain.PriceResult{}, notFound(domain.ProviderFinnhub, "ZZZZ"))

	_, err := fetcher.Resolve(context.Background(), []string{"ZZZZ"}, domain.CategoryDaily, domain.SessionAM)
	require.NoError(t, err)

	for _, link := range fetcher.chain.Links() {
		assert.True(t, link.Available(), string(link.ID()))
	}
}

func TestResolve_BadSymbolsDoNotTripBreaker(t *testing.T) {
	f := newFixture()
	f.primary.Batch = false
	fetcher := f.fetcher(nil, DefaultBreakerSettings)

	symbols := []string{"BAD1", "BAD2", "BAD3", "BAD4", "BAD5", "GOOD"}
	for _, s := range symbols {
		f.primary.On("FetchOne", mock.Anything, s, domain.CategoryDaily).Return(domain.PriceResult{}, notFound(domain.ProviderYahoo, s))
	}
	for _, s := range symbols[:5] {
		f.secondary.On("FetchOne", mock.Anything, s, domain.CategoryDaily).
			Return(domain.PriceResult{}, domain.ErrorFromStatus(domain.ProviderFinnhub, s, 400, "Symbol not supported"))
	}
	f.secondary.On("FetchOne", mock.Anything, "GOOD", domain.CategoryDaily).Return(price("GOOD", 42, domain.ProviderFinnhub), nil)

	res, err := fetcher.Resolve(context.Background(), symbols, domain.CategoryDaily, domain.SessionAM)
	require.NoError(t, err)

	assert.Equal(t, 42.0, res.Prices["GOOD"].Price)
	assert.ElementsMatch(t, symbols[:5], res.Unresolved)
	assert.Equal(t, "closed", fetcher.chain.Links()[1].State())
}

func TestResolve_ProviderFailuresStillTripBreaker(t *testing.T) {
	f := newFixture()
	f.primary.Batch = false
	fetcher := f.fetcher(nil, BreakerSettings{ConsecutiveFailures: 2, OpenTimeout: time.Hour})

	unauthorized := domain.ErrorFromStatus(domain.ProviderYahoo, "AAPL", 401, "")
	f.primary.On("FetchOne", mock.Anything, mock.Anything, domain.CategoryDaily).Return(domain.PriceResult{}, unauthorized)
	f.secondary.On("FetchOne", mock.Anything, "AAPL", domain.CategoryDaily).Return(price("AAPL", 168.5, domain.ProviderFinnhub), nil)
	f.secondary.On("FetchOne", mock.Anything, "MSFT", domain.CategoryDaily).Return(price("MSFT", 410, domain.ProviderFinnhub), nil)

	_, err := fetcher.Resolve(context.Background(), []string{"AAPL", "MSFT"}, domain.CategoryDaily, domain.SessionAM)
	require.NoError(t, err)

	assert.False(t, fetcher.chain.Links()[0].Available())
}

func TestResolve_HalfOpenBreakerAdmitsConcurrentCalls(t *testing.T) {
	f := newFixture()
	f.primary.Batch = false
	fetcher := f.fetcher(nil, BreakerSettings{ConsecutiveFailures: 1, OpenTimeout: 50 * time.Millisecond, HalfOpenRequests: 3})

	f.primary.On("FetchOne", mock.Anything, "X", domain.CategoryDaily).Return(domain.PriceResult{}, errors.New("connection reset")).Once()
	f.secondary.On("FetchOne", mock.Anything, "X", domain.CategoryDaily).Return(price("X", 10, domain.ProviderFinnhub), nil).Once()
	_, err := fetcher.Refresh(context.Background(), []string{"X"}, domain.CategoryDaily, domain.SessionAM)
	require.NoError(t, err)
	require.False(t, fetcher.chain.Links()[0].Available())

	time.Sleep(100 * time.Millisecond) // breaker timeout uses the wall clock

	for _, s := range []string{"A", "B", "C"} {
		f.primary.On("FetchOne", mock.Anything, s, domain.CategoryDaily).Return(price(s, 20, domain.ProviderYahoo), nil).Once()
	}
	res, err := fetcher.Refresh(context.Background(), []string{"A", "B", "C"}, domain.CategoryDaily, domain.SessionAM)
	require.NoError(t, err)

	for _, s := range []string{"A", "B", "C"} {
		assert.Equal(t, domain.ProviderYahoo, res.Prices[s].Provider, s)
	}
	assert.Equal(t, "closed", fetcher.chain.Links()[0].State())
}

func TestResolve_StaleCacheIsLastResort(t *testing.T) {
	f := newFixture()
	old := f.clock.Now()
	f.cache.Put(CacheEntry{Symbol: "MPW", Category: domain.CategoryDaily, Price: 6.1, Provider: domain.ProviderYahoo, FetchedAt: old})
	f.clock.Advance(3 * time.Hour)

	f.primary.On("FetchBatch", mock.Anything, []string{"MPW"}, domain.CategoryDaily).Return(map[string]domain.PriceResult{}, nil)
	f.primary.On("FetchOne", mock.Anything, "MPW", domain.CategoryDaily).Return(domain.PriceResult{}, notFound(domain.ProviderYahoo, "MPW"))
	f.secondary.On("FetchOne", mock.Anything, "MPW", domain.CategoryDaily).Return(domain.PriceResult{}, notFound(domain.ProviderFinnhub, "MPW"))

	res, err := f.fetcher(nil, DefaultBreakerSettings).Resolve(context.Background(), []string{"MPW"}, domain.CategoryDaily, domain.SessionAM)
	require.NoError(t, err)

	assert.Equal(t, 6.1, res.Prices["MPW"].Price)
	assert.Equal(t, []string{"MPW"}, res.Stale)
	assert.Empty(t, res.Unresolved)

	// the stale entry keeps its original timestamp
	e, _ := f.cache.Get("MPW", domain.CategoryDaily)
	assert.Equal(t, old, e.FetchedAt)
}

func TestResolve_StoredPriceFallback(t *testing.T) {
	f := newFixture()
	f.primary.Batch = false
	stale := stubStale{"BTC": price("BTC", 83000, domain.ProviderYahoo)}

	f.primary.On("FetchOne", mock.Anything, mock.Anything, domain.CategoryDigitalAssets).Return(domain.PriceResult{}, notFound(domain.ProviderYahoo, ""))
	f.secondary.On("FetchOne", mock.Anything, mock.Anything, domain.CategoryDigitalAssets).Return(domain.PriceResult{}, notFound(domain.ProviderFinnhub, ""))

	res, err := f.fetcher(stale, DefaultBreakerSettings).Resolve(context.Background(), []string{"BTC", "NEW"}, domain.CategoryDigitalAssets, domain.SessionPM)
	require.NoError(t, err)

	assert.Equal(t, domain.ProviderStored, res.Prices["BTC"].Provider)
	assert.Equal(t, []string{"BTC"}, res.Stale)
	assert.Equal(t, []string{"NEW"}, res.Unresolved)
	_, ok := res.Prices["NEW"]
	assert.False(t, ok)

	// stored prices are not written back to the session slot
	assert.Equal(t, 0, f.sink.calls)
}

func TestResolve_ChunksBatches(t *testing.T) {
	f := newFixture()
	fetcher := f.fetcher(nil, DefaultBreakerSettings)
	fetcher.cfg.ChunkSize = 2

	f.primary.On("FetchBatch", mock.Anything, []string{"A", "B"}, domain.CategoryDaily).Return(map[string]domain.PriceResult{
		"A": price("A", 1, domain.ProviderYahoo), "B": price("B", 2, domain.ProviderYahoo),
	}, nil).Once()
	f.primary.On("FetchBatch", mock.Anything, []string{"C"}, domain.CategoryDaily).Return(map[string]domain.PriceResult{
		"C": price("C", 3, domain.ProviderYahoo),
	}, nil).Once()

	res, err := fetcher.Resolve(context.Background(), []string{"C", "B", "A", "A"}, domain.CategoryDaily, domain.SessionAM)
	require.NoError(t, err)

	assert.Len(t, res.Prices, 3)
	f.primary.AssertExpectations(t)
	f.primary.AssertNotCalled(t, "FetchOne", mock.Anything, mock.Anything, mock.Anything)
}

func TestForEach_Bounded(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e", "f"}
	var running, peak int
	done := make(chan struct{}, len(items))
	mu := make(chan struct{}, 1)
	mu <- struct{}{}

	forEach(context.Background(), 2, items, func(ctx context.Context, item string) {
		<-mu
		running++
		if running > peak {
			peak = running
		}
		mu <- struct{}{}

		time.Sleep(5 * time.Millisecond)

		<-mu
		running--
		mu <- struct{}{}
		done <- struct{}{}
	})

	assert.Len(t, done, len(items))
	assert.LessOrEqual(t, peak, 2)
}

func TestForEach_SkipsAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int
	forEach(ctx, 1, []string{"a", "b", "c"}, func(ctx context.Context, item string) {
		calls++
	})
	assert.Zero(t, calls)
}
