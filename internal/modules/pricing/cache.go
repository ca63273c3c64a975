// Package pricing resolves current prices for tracked tickers: an explicit
// TTL cache in front of an ordered chain of rate-limited providers, with
// stale values as the last resort.
package pricing

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/pricesentry/internal/clients/ratelimit"
	"github.com/aristath/pricesentry/internal/domain"
)

// CacheEntry is the last price fetched for a (symbol, category)
type CacheEntry struct {
	FetchedAt time.Time         `json:"fetched_at" msgpack:"fetched_at"`
	Symbol    string            `json:"symbol" msgpack:"symbol"`
	Category  domain.Category   `json:"category" msgpack:"category"`
	Provider  domain.ProviderID `json:"provider" msgpack:"provider"`
	Price     float64           `json:"price" msgpack:"price"`
}

func (e CacheEntry) key() string {
	return cacheKey(e.Symbol, e.Category)
}

func cacheKey(symbol string, category domain.Category) string {
	return string(category) + ":" + symbol
}

// Result converts the entry into the internal price shape
func (e CacheEntry) Result(provider domain.ProviderID) domain.PriceResult {
	return domain.PriceResult{Symbol: e.Symbol, Price: e.Price, Provider: provider, Timestamp: e.FetchedAt}
}

// TTLPolicy holds the freshness window per category class
type TTLPolicy struct {
	Intraday time.Duration
	Weekly   time.Duration
}

// For returns the TTL that applies to category
func (p TTLPolicy) For(category domain.Category) time.Duration {
	if category.Weekly() {
		return p.Weekly
	}
	return p.Intraday
}

// Store persists cache entries across restarts
type Store interface {
	LoadAll(ctx context.Context) ([]CacheEntry, error)
	Save(ctx context.Context, entries []CacheEntry) error
}

// Cache is an in-process price cache backed by a durable Store.
// Load it once at startup and Flush it at teardown.
type Cache struct {
	store   Store
	clock   ratelimit.Clock
	entries map[string]CacheEntry
	dirty   map[string]struct{}
	log     zerolog.Logger
	ttl     TTLPolicy
	mu      sync.RWMutex
}

// NewCache creates an empty cache
func NewCache(store Store, ttl TTLPolicy, clock ratelimit.Clock, log zerolog.Logger) *Cache {
	return &Cache{
		store:   store,
		clock:   clock,
		ttl:     ttl,
		entries: make(map[string]CacheEntry),
		dirty:   make(map[string]struct{}),
		log:     log.With().Str("component", "price_cache").Logger(),
	}
}

// Load replaces the in-memory contents with what the store holds
func (c *Cache) Load(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	entries, err := c.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load price cache: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]CacheEntry, len(entries))
	c.dirty = make(map[string]struct{})
	for _, e := range entries {
		c.entries[e.key()] = e
	}

	c.log.Info().Int("entries", len(entries)).Msg("Price cache loaded")
	return nil
}

// Flush writes entries changed since the last Load or Flush
func (c *Cache) Flush(ctx context.Context) error {
	if c.store == nil {
		return nil
	}

	c.mu.Lock()
	pending := make([]CacheEntry, 0, len(c.dirty))
	for k := range c.dirty {
		pending = append(pending, c.entries[k])
	}
	c.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}
	if err := c.store.Save(ctx, pending); err != nil {
		return fmt.Errorf("failed to flush price cache: %w", err)
	}

	c.mu.Lock()
	for _, e := range pending {
		// a newer Put may have landed while saving
		if cur, ok := c.entries[e.key()]; ok && cur.FetchedAt.Equal(e.FetchedAt) {
			delete(c.dirty, e.key())
		}
	}
	c.mu.Unlock()

	c.log.Debug().Int("entries", len(pending)).Msg("Price cache flushed")
	return nil
}

// Get returns the entry for symbol regardless of age
func (c *Cache) Get(symbol string, category domain.Category) (CacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[cacheKey(symbol, category)]
	return e, ok
}

// Fresh returns the entry only if it is younger than the category TTL
func (c *Cache) Fresh(symbol string, category domain.Category) (CacheEntry, bool) {
	e, ok := c.Get(symbol, category)
	if !ok {
		return CacheEntry{}, false
	}
	if c.clock.Now().Sub(e.FetchedAt) >= c.ttl.For(category) {
		return CacheEntry{}, false
	}
	return e, true
}

// Put records a price and marks it for the next Flush
func (c *Cache) Put(e CacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[e.key()] = e
	c.dirty[e.key()] = struct{}{}
}

// Len returns the number of cached symbols
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Entries returns a snapshot ordered by category then symbol
func (c *Cache) Entries() []CacheEntry {
	c.mu.RLock()
	out := make([]CacheEntry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}
