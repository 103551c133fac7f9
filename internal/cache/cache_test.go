package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/theOGognf/finagg/internal/config"
)

func TestOpenDisabled(t *testing.T) {
	backend, err := Open(context.Background(), &config.Config{})
	require.NoError(t, err)
	require.Nil(t, backend)

	backend, err = Open(context.Background(), &config.Config{HTTPCache: config.HTTPCacheConfig{Enabled: true, Driver: "none"}})
	require.NoError(t, err)
	require.Nil(t, backend)

	backend, err = Open(context.Background(), nil)
	require.NoError(t, err)
	require.Nil(t, backend)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), &config.Config{HTTPCache: config.HTTPCacheConfig{Enabled: true, Driver: "memcached"}})
	require.Error(t, err)
}

func TestStoreConfigPathOverride(t *testing.T) {
	cfg := &config.Config{Store: config.StoreConfig{Driver: "libsql", Path: "/data/findata/finagg.db", URL: "libsql://remote"}}
	require.Equal(t, cfg.Store, StoreConfig(cfg))

	cfg.HTTPCache.Path = "/tmp/http_cache.db"
	require.Equal(t, config.StoreConfig{Driver: "libsql", Path: "/tmp/http_cache.db"}, StoreConfig(cfg))
}
