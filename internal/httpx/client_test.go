package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theOGognf/finagg/internal/ratelimit"
)

type memoryCache struct {
	entries map[string]*CacheEntry
}

func (m *memoryCache) Get(ctx context.Context, key string) (*CacheEntry, error) {
	if m.entries == nil {
		return nil, nil
	}
	return m.entries[key], nil
}

func (m *memoryCache) Set(ctx context.Context, entry *CacheEntry, ttl time.Duration) error {
	if m.entries == nil {
		m.entries = make(map[string]*CacheEntry)
	}
	m.entries[entry.Key] = entry
	return nil
}

func TestClientGetAndCache(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "finagg-test", r.Header.Get("User-Agent"))
		assert.Equal(t, "GDP", r.URL.Query().Get("series_id"))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := &Client{
		HTTP:          server.Client(),
		Cache:         &memoryCache{},
		TTL:           time.Hour,
		IgnoredParams: []string{"api_key"},
		UserAgent:     "finagg-test",
	}

	req := Request{URL: server.URL + "/series", Params: url.Values{"series_id": {"GDP"}, "api_key": {"one"}}}
	first, err := client.Get(context.Background(), req)
	require.NoError(t, err)
	require.False(t, first.Cached())
	require.Equal(t, http.StatusOK, first.Status())
	require.Equal(t, len(`{"ok":true}`), first.Size())

	req.Params.Set("api_key", "two")
	second, err := client.Get(context.Background(), req)
	require.NoError(t, err)
	require.True(t, second.Cached())
	require.Equal(t, first.Body, second.Body)
	require.Equal(t, int32(1), hits.Load())

	req.NoCache = true
	third, err := client.Get(context.Background(), req)
	require.NoError(t, err)
	require.False(t, third.Cached())
	require.Equal(t, int32(2), hits.Load())

	var payload struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, third.Decode(&payload))
	require.True(t, payload.OK)
}

func TestClientDoesNotCacheErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := &Client{HTTP: server.Client(), Cache: &memoryCache{}, TTL: time.Hour}
	for i := 0; i < 2; i++ {
		resp, err := client.Get(context.Background(), Request{URL: server.URL})
		require.NoError(t, err)
		require.False(t, resp.Cached())
		var statusErr *StatusError
		require.ErrorAs(t, resp.CheckStatus(), &statusErr)
		require.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	}
	require.Equal(t, int32(2), hits.Load())
}

func TestClientTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := server.URL
	server.Close()

	client := &Client{HTTP: &http.Client{Timeout: time.Second}}
	_, err := client.Get(context.Background(), Request{URL: endpoint})
	require.Error(t, err)

	_, err = client.Get(context.Background(), Request{})
	require.Error(t, err)
}

func TestGuardSkipsCacheHits(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("payload"))
	}))
	defer server.Close()

	client := &Client{HTTP: server.Client(), Cache: &memoryCache{}, TTL: time.Hour}
	var slept []time.Duration
	guard, err := NewGuard("test", client,
		[]ratelimit.Spec{ratelimit.Requests(2, time.Minute), ratelimit.Bytes(1000, time.Minute)},
		nil,
		ratelimit.WithSleep(func(d time.Duration) { slept = append(slept, d) }),
	)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := guard.Do(context.Background(), Request{URL: server.URL})
		require.NoError(t, err)
	}

	limiters := guard.Limiters()
	require.Equal(t, 1.0, limiters[0].Total())
	require.Equal(t, float64(len("payload")), limiters[1].Total())
	require.Empty(t, slept)
}

func TestGuardHonorsRetryAfter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := &Client{HTTP: server.Client()}
	var slept []time.Duration
	guard, err := NewGuard("test", client,
		[]ratelimit.Spec{ratelimit.Requests(100, time.Minute)},
		nil,
		ratelimit.WithSleep(func(d time.Duration) { slept = append(slept, d) }),
	)
	require.NoError(t, err)

	resp, err := guard.Do(context.Background(), Request{URL: server.URL})
	require.NoError(t, err)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.Len(t, slept, 1)
	require.GreaterOrEqual(t, slept[0], 7*time.Second)
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	require.Equal(t, 30*time.Second, ParseRetryAfter("30", now))
	require.Equal(t, 1500*time.Millisecond, ParseRetryAfter("1.5", now))
	require.Equal(t, time.Duration(0), ParseRetryAfter("", now))
	require.Equal(t, time.Duration(0), ParseRetryAfter("-3", now))
	require.Equal(t, time.Duration(0), ParseRetryAfter("soon", now))

	date := now.Add(2 * time.Minute).Format(http.TimeFormat)
	require.Equal(t, 2*time.Minute, ParseRetryAfter(date, now))
}

func TestCacheKey(t *testing.T) {
	a := CacheKey("https://api.example/x?b=2", url.Values{"a": {"1"}, "api_key": {"secret"}}, []string{"api_key"})
	b := CacheKey("https://api.example/x", url.Values{"b": {"2"}, "a": {"1"}}, nil)
	c := CacheKey("https://api.example/x", url.Values{"a": {"2"}, "b": {"2"}}, nil)

	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
}

func TestBuildURL(t *testing.T) {
	got, err := BuildURL("https://api.example/x?keep=1", url.Values{"add": {"2"}})
	require.NoError(t, err)
	require.Equal(t, "https://api.example/x?add=2&keep=1", got)
}

func TestStatusErrorBodyKeepsRunesWhole(t *testing.T) {
	body := "a" + strings.Repeat("é", 150)
	resp := &Response{URL: "https://api.example/x", StatusCode: http.StatusBadGateway, Body: []byte(body)}

	var statusErr *StatusError
	require.ErrorAs(t, resp.CheckStatus(), &statusErr)
	assert.True(t, utf8.ValidString(statusErr.Body))
	assert.True(t, strings.HasSuffix(statusErr.Body, "..."))
	assert.Equal(t, body[:199]+"...", statusErr.Body)

	short := &Response{URL: "https://api.example/x", StatusCode: http.StatusNotFound, Body: []byte("  not found \n")}
	require.ErrorAs(t, short.CheckStatus(), &statusErr)
	assert.Equal(t, "not found", statusErr.Body)
}
