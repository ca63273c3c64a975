package pricing

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/aristath/pricesentry/internal/clients/ratelimit"
	"github.com/aristath/pricesentry/internal/domain"
)

// Resolution sources reported to the Observer
const (
	SourceCache    = "cache"
	SourceProvider = "provider"
	SourceStale    = "stale"
	SourceNone     = "unresolved"
)

// StaleSource supplies last-known prices when neither cache nor providers can
type StaleSource interface {
	LastKnownPrices(ctx context.Context, category domain.Category) (map[string]domain.PriceResult, error)
}

// PriceSink persists resolved prices into a session's price slot
type PriceSink interface {
	UpdatePrices(ctx context.Context, session domain.Session, category domain.Category, prices map[string]domain.PriceResult) error
}

// FetcherConfig tunes batching and concurrency
type FetcherConfig struct {
	ChunkDelay  time.Duration
	ChunkSize   int
	Concurrency int
}

// Resolution is the outcome of one resolve pass
type Resolution struct {
	Prices     map[string]domain.PriceResult
	Stale      []string // resolved from an old cache entry or the stored session price
	Unresolved []string
	CacheHits  int
	Fetched    int
}

// Fetcher resolves prices: fresh cache, then each provider in turn, then stale values
type Fetcher struct {
	cache    *Cache
	chain    *Chain
	stale    StaleSource
	sink     PriceSink
	clock    ratelimit.Clock
	observer Observer
	log      zerolog.Logger
	cfg      FetcherConfig
}

// NewFetcher wires the cache and provider chain. stale and sink may be nil.
func NewFetcher(cache *Cache, chain *Chain, stale StaleSource, sink PriceSink, clock ratelimit.Clock, observer Observer, cfg FetcherConfig, log zerolog.Logger) *Fetcher {
	if cfg.ChunkSize < 1 {
		cfg.ChunkSize = 5
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 3
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &Fetcher{
		cache:    cache,
		chain:    chain,
		stale:    stale,
		sink:     sink,
		clock:    clock,
		observer: observer,
		cfg:      cfg,
		log:      log.With().Str("component", "batch_fetcher").Logger(),
	}
}

// Resolve prices symbols, serving fresh cache entries without provider calls.
func (f *Fetcher) Resolve(ctx context.Context, symbols []string, category domain.Category, session domain.Session) (*Resolution, error) {
	return f.resolve(ctx, symbols, category, session, false)
}

// Refresh is Resolve with cache freshness ignored: every symbol goes to the providers.
func (f *Fetcher) Refresh(ctx context.Context, symbols []string, category domain.Category, session domain.Session) (*Resolution, error) {
	return f.resolve(ctx, symbols, category, session, true)
}

func (f *Fetcher) resolve(ctx context.Context, symbols []string, category domain.Category, session domain.Session, force bool) (*Resolution, error) {
	res := &Resolution{Prices: make(map[string]domain.PriceResult, len(symbols))}
	symbols = dedupe(symbols)

	var misses []string
	for _, s := range symbols {
		if !force {
			if e, ok := f.cache.Fresh(s, category); ok {
				res.Prices[s] = e.Result(domain.ProviderCache)
				res.CacheHits++
				f.observer.CacheLookup(category, true)
				continue
			}
		}
		f.observer.CacheLookup(category, false)
		misses = append(misses, s)
	}
	if res.CacheHits > 0 {
		f.log.Debug().Str("category", string(category)).Int("hits", res.CacheHits).Msg("Served prices from cache")
	}

	fetched := f.fetch(ctx, misses, category)
	now := f.clock.Now()
	for s, p := range fetched {
		if p.Timestamp.IsZero() {
			p.Timestamp = now
		}
		res.Prices[s] = p
		f.cache.Put(CacheEntry{Symbol: s, Category: category, Provider: p.Provider, Price: p.Price, FetchedAt: now})
	}
	res.Fetched = len(fetched)

	missing := remaining(misses, res.Prices)
	if len(missing) > 0 {
		missing = f.fallbackStale(ctx, missing, category, res)
	}
	for _, s := range missing {
		f.log.Error().
			Str("symbol", s).
			Str("category", string(category)).
			Msg("No price from any provider or cache")
	}
	res.Unresolved = missing

	f.observer.Resolved(category, SourceCache, res.CacheHits)
	f.observer.Resolved(category, SourceProvider, res.Fetched)
	f.observer.Resolved(category, SourceStale, len(res.Stale))
	f.observer.Resolved(category, SourceNone, len(res.Unresolved))

	if err := f.persist(ctx, session, category, res.Prices); err != nil {
		return res, err
	}

	f.log.Info().
		Str("category", string(category)).
		Str("session", string(session)).
		Int("requested", len(symbols)).
		Int("cache_hits", res.CacheHits).
		Int("fetched", res.Fetched).
		Int("stale", len(res.Stale)).
		Int("unresolved", len(res.Unresolved)).
		Msg("Prices resolved")
	return res, ctx.Err()
}

// fetch walks the provider chain for symbols and returns what it could price
func (f *Fetcher) fetch(ctx context.Context, symbols []string, category domain.Category) map[string]domain.PriceResult {
	got := make(map[string]domain.PriceResult, len(symbols))
	if len(symbols) == 0 || f.chain == nil {
		return got
	}

	missing := symbols
	for i, link := range f.chain.Links() {
		if len(missing) == 0 || ctx.Err() != nil {
			break
		}
		if !link.Available() {
			f.log.Warn().
				Str("provider", string(link.ID())).
				Int("symbols", len(missing)).
				Msg("Provider circuit open, skipping")
			continue
		}
		if i > 0 {
			f.log.Warn().
				Str("provider", string(link.ID())).
				Strs("symbols", missing).
				Msg("Provider fallback engaged")
		}

		if link.SupportsBatch() {
			f.fetchBatches(ctx, link, missing, category, got)
			missing = remaining(missing, got)
		}
		if len(missing) > 0 {
			f.fetchEach(ctx, link, missing, category, got)
			missing = remaining(missing, got)
		}
	}
	return got
}

func (f *Fetcher) fetchBatches(ctx context.Context, link *Link, symbols []string, category domain.Category, got map[string]domain.PriceResult) {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if f.cfg.ChunkDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(f.cfg.ChunkDelay), 1)
	}

	for start := 0; start < len(symbols); start += f.cfg.ChunkSize {
		end := min(start+f.cfg.ChunkSize, len(symbols))
		if err := limiter.Wait(ctx); err != nil {
			return
		}

		chunk := symbols[start:end]
		prices, err := link.FetchBatch(ctx, chunk, category)
		for s, p := range prices {
			if p.Price > 0 {
				got[s] = p
			}
		}
		if err != nil {
			if isBreakerRejection(err) {
				f.log.Debug().Err(err).Str("provider", string(link.ID())).Msg("Batch fetch refused by circuit breaker")
				return
			}
			f.log.Warn().
				Err(err).
				Str("provider", string(link.ID())).
				Strs("symbols", chunk).
				Msg("Batch fetch failed")
		}
	}
}

func (f *Fetcher) fetchEach(ctx context.Context, link *Link, symbols []string, category domain.Category, got map[string]domain.PriceResult) {
	var mu sync.Mutex
	forEach(ctx, f.cfg.Concurrency, symbols, func(ctx context.Context, symbol string) {
		p, err := link.FetchOne(ctx, symbol, category)
		if err != nil {
			ev := f.log.Debug()
			if !domain.IsNotFound(err) && !isBreakerRejection(err) {
				ev = f.log.Warn()
			}
			ev.Err(err).
				Str("provider", string(link.ID())).
				Str("symbol", symbol).
				Msg("Single fetch failed")
			return
		}
		if p.Price <= 0 {
			return
		}
		mu.Lock()
		got[symbol] = p
		mu.Unlock()
	})
}

// fallbackStale fills from any cache entry, then from stored session prices,
// and returns the symbols still missing.
func (f *Fetcher) fallbackStale(ctx context.Context, missing []string, category domain.Category, res *Resolution) []string {
	var still []string
	for _, s := range missing {
		e, ok := f.cache.Get(s, category)
		if !ok {
			still = append(still, s)
			continue
		}
		res.Prices[s] = e.Result(domain.ProviderCache)
		res.Stale = append(res.Stale, s)
		f.log.Warn().
			Str("symbol", s).
			Float64("price", e.Price).
			Time("fetched_at", e.FetchedAt).
			Msg("Using stale cached price")
	}

	if len(still) == 0 || f.stale == nil {
		return still
	}
	known, err := f.stale.LastKnownPrices(ctx, category)
	if err != nil {
		f.log.Warn().Err(err).Msg("Failed to load stored prices for fallback")
		return still
	}

	var unresolved []string
	for _, s := range still {
		p, ok := known[s]
		if !ok || p.Price <= 0 {
			unresolved = append(unresolved, s)
			continue
		}
		p.Provider = domain.ProviderStored
		res.Prices[s] = p
		res.Stale = append(res.Stale, s)
		f.log.Warn().
			Str("symbol", s).
			Float64("price", p.Price).
			Msg("Using last stored session price")
	}
	return unresolved
}

// persist writes everything except prices read back from the store itself
func (f *Fetcher) persist(ctx context.Context, session domain.Session, category domain.Category, prices map[string]domain.PriceResult) error {
	if f.sink == nil {
		return nil
	}
	out := make(map[string]domain.PriceResult, len(prices))
	for s, p := range prices {
		if p.Provider != domain.ProviderStored {
			out[s] = p
		}
	}
	if len(out) == 0 {
		return nil
	}
	if err := f.sink.UpdatePrices(ctx, session, category, out); err != nil {
		return fmt.Errorf("failed to store %s prices: %w", session, err)
	}
	return nil
}

func remaining(symbols []string, have map[string]domain.PriceResult) []string {
	var out []string
	for _, s := range symbols {
		if _, ok := have[s]; !ok {
			out = append(out, s)
		}
	}
	return out
}

func dedupe(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if _, ok := seen[s]; ok || s == "" {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
