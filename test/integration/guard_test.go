package integration

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theOGognf/finagg/internal/api"
	"github.com/theOGognf/finagg/internal/config"
	"github.com/theOGognf/finagg/internal/httpx"
	"github.com/theOGognf/finagg/internal/observability"
	"github.com/theOGognf/finagg/internal/ratelimit"
	"github.com/theOGognf/finagg/internal/scrape"
	"github.com/theOGognf/finagg/internal/server"
	"github.com/theOGognf/finagg/internal/server/handlers"
)

// cleanupMetrics tears down global telemetry state so each test starts clean.
func cleanupMetrics(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		if observability.PrometheusExporter != nil {
			_ = observability.PrometheusExporter.Stop()
			observability.PrometheusExporter = nil
		}
		observability.TelemetrySystem = nil
	})
}

// isPermissionError normalizes OS-specific permission errors so we can skip
// when loopback sockets are blocked.
func isPermissionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrPermission) || errors.Is(err, syscall.EACCES) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, fragment := range []string{"permission denied", "operation not permitted", "not permitted"} {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

func initMetricsOrSkip(t *testing.T) {
	t.Helper()
	if err := observability.InitMetrics(config.MetricsConfig{Enabled: true, Port: 0}); err != nil {
		if isPermissionError(err) {
			t.Skipf("skipping metrics tests due to sandbox permissions: %v", err)
		}
		require.NoError(t, err)
	}
	cleanupMetrics(t)
}

// startLoopback serves h on IPv4 loopback and skips when sockets are refused.
func startLoopback(t *testing.T, h http.Handler) *httptest.Server {
	t.Helper()
	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		if isPermissionError(err) {
			t.Skipf("skipping loopback server: %v", err)
		}
		require.NoError(t, err)
	}
	ts := &httptest.Server{Listener: listener, Config: &http.Server{Handler: h}}
	ts.Start()
	t.Cleanup(ts.Close)
	return ts
}

// TestScrapeThroughSharedGuard runs a worker pool against a fake upstream
// through one registry guard and checks that the admin server reports the
// guard's state and that throttling shows up in the exported metrics.
func TestScrapeThroughSharedGuard(t *testing.T) {
	initMetricsOrSkip(t)

	var upstreamCalls atomic.Int64
	upstream := startLoopback(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ticker":"` + r.URL.Query().Get("ticker") + `"}`))
	}))

	var (
		mu     sync.Mutex
		waited []time.Duration
	)
	cfg := &config.Config{
		RateLimits: map[string][]ratelimit.Spec{
			"sec": {ratelimit.Requests(3, time.Minute)},
		},
	}
	guards := api.NewGuards(cfg, nil, api.WithGuardOptions(ratelimit.WithSleep(func(d time.Duration) {
		mu.Lock()
		waited = append(waited, d)
		mu.Unlock()
	})))
	guard, err := guards.Get("sec")
	require.NoError(t, err)

	tickers := []string{"AAPL", "MSFT", "GOOG", "AMZN", "META", "NVDA"}
	result, err := scrape.Run(context.Background(), tickers, scrape.Options{Job: "integration", Workers: 3},
		func(ctx context.Context, ticker string) (string, error) {
			resp, err := guard.Do(ctx, httpx.Request{
				URL:    upstream.URL + "/facts",
				Params: map[string][]string{"ticker": {ticker}},
			})
			if err != nil {
				return "", err
			}
			if err := resp.CheckStatus(); err != nil {
				return "", err
			}
			var body struct {
				Ticker string `json:"ticker"`
			}
			if err := resp.Decode(&body); err != nil {
				return "", err
			}
			return body.Ticker, nil
		})
	require.NoError(t, err)
	assert.Equal(t, len(tickers), result.Succeeded())
	assert.Equal(t, tickers, result.Values)
	assert.Equal(t, int64(len(tickers)), upstreamCalls.Load())

	mu.Lock()
	throttled := len(waited)
	mu.Unlock()
	assert.Equal(t, len(tickers)-3+1, throttled, "every call that leaves the window saturated should wait")

	admin := server.New(config.ServerConfig{Host: "127.0.0.1"}, server.Deps{
		Guards:   guards,
		Families: api.Families(),
		Health:   handlers.NewHealthManager("test"),
	})
	ts := startLoopback(t, admin.Handler())
	client := ts.Client()

	resp, err := client.Get(ts.URL + "/v1/ratelimits/sec")
	require.NoError(t, err)
	var report handlers.GuardReport
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, report.State)
	require.Len(t, report.State.Limiters, 1)
	assert.Equal(t, float64(len(tickers)), report.State.Limiters[0].Total)
	assert.True(t, report.State.Limiters[0].Saturated)

	resp, err = client.Get(ts.URL + "/v1/ratelimits/fred")
	require.NoError(t, err)
	var unused handlers.GuardReport
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&unused))
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, "fred", unused.Name)
	assert.Nil(t, unused.State, "unused guards have no state")

	resp, err = client.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	body, readErr := io.ReadAll(resp.Body)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, readErr)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "guard_calls_total")
	assert.Contains(t, string(body), "guard_throttles_total")
}

func TestMetricsEndpointWithTelemetryDisabled(t *testing.T) {
	originalExporter := observability.PrometheusExporter
	originalTelemetry := observability.TelemetrySystem
	observability.PrometheusExporter = nil
	observability.TelemetrySystem = nil
	t.Cleanup(func() {
		observability.PrometheusExporter = originalExporter
		observability.TelemetrySystem = originalTelemetry
	})

	admin := server.New(config.ServerConfig{Host: "127.0.0.1"}, server.Deps{})
	ts := startLoopback(t, admin.Handler())

	resp, err := ts.Client().Get(ts.URL + "/metrics")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, err = ts.Client().Get(ts.URL + "/health/live")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
