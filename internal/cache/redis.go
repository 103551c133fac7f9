package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/theOGognf/finagg/internal/httpx"
	"github.com/theOGognf/finagg/internal/store"
)

const scanBatch = 100

// NewRedisClient builds a go-redis client for the cache.
func NewRedisClient(addr string, pswd string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: pswd,
		DB:       db,
	})
}

// Redis keeps cache entries as JSON values whose expiry is the entry TTL.
type Redis struct {
	rdb    *redis.Client
	prefix string
}

var _ Backend = (*Redis)(nil)

// NewRedis wraps rdb; every key is stored under prefix.
func NewRedis(rdb *redis.Client, prefix string) *Redis {
	return &Redis{rdb: rdb, prefix: prefix}
}

// Get returns the entry for key, or nil when redis has none.
func (r *Redis) Get(ctx context.Context, key string) (*httpx.CacheEntry, error) {
	if r == nil || r.rdb == nil {
		return nil, errors.New("redis cache is not initialized")
	}
	data, err := r.rdb.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry httpx.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decode cached response: %w", err)
	}
	return &entry, nil
}

// Set stores entry with ttl as the redis expiry.
func (r *Redis) Set(ctx context.Context, entry *httpx.CacheEntry, ttl time.Duration) error {
	if r == nil || r.rdb == nil {
		return errors.New("redis cache is not initialized")
	}
	if ttl <= 0 || entry == nil {
		return nil
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cached response: %w", err)
	}
	if err := r.rdb.Set(ctx, r.prefix+entry.Key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Prune is a no-op; redis expires keys itself.
func (r *Redis) Prune(ctx context.Context) (int64, error) {
	return 0, nil
}

// Clear deletes entries whose URL starts with urlPrefix, or every entry under
// the key prefix when urlPrefix is empty.
func (r *Redis) Clear(ctx context.Context, urlPrefix string) (int64, error) {
	var removed int64
	err := r.scan(ctx, func(key string, entry *httpx.CacheEntry) error {
		if urlPrefix != "" && (entry == nil || !strings.HasPrefix(entry.URL, urlPrefix)) {
			return nil
		}
		n, err := r.rdb.Del(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("redis del: %w", err)
		}
		removed += n
		return nil
	})
	return removed, err
}

// Stats counts live entries and their body bytes. Redis does not track hits
// or keep expired keys.
func (r *Redis) Stats(ctx context.Context) (store.CacheStats, error) {
	var stats store.CacheStats
	err := r.scan(ctx, func(key string, entry *httpx.CacheEntry) error {
		stats.Entries++
		if entry != nil {
			stats.Bytes += int64(len(entry.Body))
		}
		return nil
	})
	return stats, err
}

// Close releases the client.
func (r *Redis) Close() error {
	if r == nil || r.rdb == nil {
		return nil
	}
	return r.rdb.Close()
}

func (r *Redis) scan(ctx context.Context, fn func(key string, entry *httpx.CacheEntry) error) error {
	if r == nil || r.rdb == nil {
		return errors.New("redis cache is not initialized")
	}
	iter := r.rdb.Scan(ctx, 0, r.prefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		var entry *httpx.CacheEntry
		if data, err := r.rdb.Get(ctx, key).Bytes(); err == nil {
			decoded := &httpx.CacheEntry{}
			if json.Unmarshal(data, decoded) == nil {
				entry = decoded
			}
		} else if !errors.Is(err, redis.Nil) {
			return fmt.Errorf("redis get: %w", err)
		}
		if err := fn(key, entry); err != nil {
			return err
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	return nil
}
