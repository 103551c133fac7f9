// Package cache selects and opens the HTTP response cache backend.
package cache

import (
	"context"
	"fmt"
	"strings"

	"github.com/theOGognf/finagg/internal/config"
	"github.com/theOGognf/finagg/internal/httpx"
	"github.com/theOGognf/finagg/internal/store"
)

const (
	DriverStore = "store"
	DriverRedis = "redis"
	DriverNone  = "none"
)

// Backend is a cache that can also be administered from the CLI.
type Backend interface {
	httpx.Cache
	Prune(ctx context.Context) (int64, error)
	Clear(ctx context.Context, urlPrefix string) (int64, error)
	Stats(ctx context.Context) (store.CacheStats, error)
	Close() error
}

// Open returns the configured backend, or nil when caching is disabled.
func Open(ctx context.Context, cfg *config.Config) (Backend, error) {
	if cfg == nil || !cfg.HTTPCache.Enabled {
		return nil, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	driver := strings.ToLower(strings.TrimSpace(cfg.HTTPCache.Driver))
	switch driver {
	case "", DriverStore:
		return openStore(ctx, cfg)
	case DriverRedis:
		rdb := NewRedisClient(cfg.HTTPCache.RedisAddr, cfg.HTTPCache.RedisPassword, cfg.HTTPCache.RedisDB)
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("connect redis cache at %s: %w", cfg.HTTPCache.RedisAddr, err)
		}
		return NewRedis(rdb, cfg.HTTPCache.KeyPrefix), nil
	case DriverNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported http cache driver: %s", driver)
	}
}

// StoreConfig is the libsql location used by the store driver.
func StoreConfig(cfg *config.Config) config.StoreConfig {
	storeCfg := cfg.Store
	if path := strings.TrimSpace(cfg.HTTPCache.Path); path != "" {
		storeCfg = config.StoreConfig{Driver: cfg.Store.Driver, Path: path}
	}
	return storeCfg
}

type storeBackend struct {
	*store.HTTPCache
	db *store.Store
}

func (b *storeBackend) Close() error {
	return b.db.Close()
}

func openStore(ctx context.Context, cfg *config.Config) (Backend, error) {
	db, err := store.Open(ctx, StoreConfig(cfg))
	if err != nil {
		return nil, err
	}
	if _, err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &storeBackend{HTTPCache: store.NewHTTPCache(db), db: db}, nil
}
