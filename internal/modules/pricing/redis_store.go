package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

// RedisKeyPrefix namespaces every cache key
const RedisKeyPrefix = "pricesentry:price:"

// RedisStore keeps cache entries in Redis as msgpack values.
// Keys expire after the retention window, so no cleanup job is needed.
type RedisStore struct {
	client    *redis.Client
	retention time.Duration
}

// NewRedisStore wraps a go-redis client
func NewRedisStore(client *redis.Client, retention time.Duration) *RedisStore {
	return &RedisStore{client: client, retention: retention}
}

func redisKey(e CacheEntry) string {
	return RedisKeyPrefix + string(e.Category) + ":" + e.Symbol
}

// LoadAll scans the key prefix and decodes each value
func (s *RedisStore) LoadAll(ctx context.Context) ([]CacheEntry, error) {
	var keys []string
	var cursor uint64
	for {
		page, next, err := s.client.Scan(ctx, cursor, RedisKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan price keys: %w", err)
		}
		keys = append(keys, page...)
		if next == 0 {
			break
		}
		cursor = next
	}

	out := make([]CacheEntry, 0, len(keys))
	for _, k := range keys {
		raw, err := s.client.Get(ctx, k).Bytes()
		if errors.Is(err, redis.Nil) {
			continue // expired between scan and get
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get %s: %w", k, err)
		}
		var e CacheEntry
		if err := msgpack.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", k, err)
		}
		out = append(out, e)
	}
	return out, nil
}

// Save writes each entry with the retention TTL
func (s *RedisStore) Save(ctx context.Context, entries []CacheEntry) error {
	for _, e := range entries {
		raw, err := msgpack.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", e.Symbol, err)
		}
		if err := s.client.Set(ctx, redisKey(e), raw, s.retention).Err(); err != nil {
			return fmt.Errorf("failed to set %s: %w", redisKey(e), err)
		}
	}
	return nil
}
