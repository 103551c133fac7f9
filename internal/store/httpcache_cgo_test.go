//go:build cgo

package store

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/theOGognf/finagg/internal/config"
	"github.com/theOGognf/finagg/internal/httpx"
)

func openTestCache(t *testing.T) (*HTTPCache, *time.Time) {
	t.Helper()
	ctx := context.Background()

	s, err := Open(ctx, config.StoreConfig{Driver: "libsql", Path: "file:" + t.TempDir() + "/cache.db"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	for range 2 {
		version, err := s.Migrate(ctx)
		require.NoError(t, err)
		require.Equal(t, SchemaVersion, version)
	}

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	cache := NewHTTPCache(s)
	cache.Clock = func() time.Time { return now }
	return cache, &now
}

func TestHTTPCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	cache, now := openTestCache(t)

	miss, err := cache.Get(ctx, "k1")
	require.NoError(t, err)
	require.Nil(t, miss)

	entry := &httpx.CacheEntry{
		Key:        "k1",
		URL:        "https://data.sec.gov/api/xbrl/companyfacts/CIK0000320193.json",
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": {"application/json"}},
		Body:       []byte(`{"cik":320193}`),
	}
	require.NoError(t, cache.Set(ctx, entry, time.Hour))

	got, err := cache.Get(ctx, "k1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, entry.URL, got.URL)
	require.Equal(t, entry.Body, got.Body)
	require.Equal(t, "application/json", got.Header.Get("Content-Type"))
	require.Equal(t, now.Add(time.Hour), got.ExpiresAt)

	*now = now.Add(2 * time.Hour)
	expired, err := cache.Get(ctx, "k1")
	require.NoError(t, err)
	require.Nil(t, expired)
}

func TestHTTPCacheZeroTTLIsNoop(t *testing.T) {
	ctx := context.Background()
	cache, _ := openTestCache(t)

	require.NoError(t, cache.Set(ctx, &httpx.CacheEntry{Key: "k", URL: "u", StatusCode: 200, Body: []byte("x")}, 0))
	got, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestHTTPCachePruneClearStats(t *testing.T) {
	ctx := context.Background()
	cache, now := openTestCache(t)

	require.NoError(t, cache.Set(ctx, &httpx.CacheEntry{Key: "a", URL: "https://api.stlouisfed.org/fred/series", StatusCode: 200, Body: []byte("aaaa")}, time.Minute))
	require.NoError(t, cache.Set(ctx, &httpx.CacheEntry{Key: "b", URL: "https://apps.bea.gov/api/data", StatusCode: 200, Body: []byte("bb")}, time.Hour))
	require.NoError(t, cache.Set(ctx, &httpx.CacheEntry{Key: "c", URL: "https://apps.bea.gov/api/data", StatusCode: 200, Body: []byte("c")}, time.Hour))

	_, err := cache.Get(ctx, "b")
	require.NoError(t, err)

	*now = now.Add(10 * time.Minute)
	stats, err := cache.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, CacheStats{Entries: 3, Expired: 1, Bytes: 7, Hits: 1}, stats)

	pruned, err := cache.Prune(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), pruned)

	cleared, err := cache.Clear(ctx, "https://apps.bea.gov/")
	require.NoError(t, err)
	require.Equal(t, int64(2), cleared)

	stats, err = cache.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(0), stats.Entries)
}
