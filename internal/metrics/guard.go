// Package metrics emits finagg counters and histograms through the global
// telemetry system. Every function is a no-op when telemetry is disabled.
package metrics

import (
	"time"

	"github.com/theOGognf/finagg/internal/observability"
)

// Metric names. The Prometheus exporter prefixes them with
// observability.Namespace, so guard_calls_total is served as
// finagg_guard_calls_total.
const (
	GuardCallsTotal     = "guard_calls_total"
	GuardThrottlesTotal = "guard_throttles_total"
	GuardWait           = "guard_wait_ms"

	ScrapeTickersTotal = "scrape_tickers_total"

	ServerStartTime = "server_start_time_seconds"
)

// ObserveGuard records one guarded call and the wait it imposed. Its
// signature matches ratelimit.WithObserver.
func ObserveGuard(guard string, wait time.Duration) {
	if observability.TelemetrySystem == nil {
		return
	}

	tags := map[string]string{"guard": guard}
	_ = observability.TelemetrySystem.Counter(GuardCallsTotal, 1, tags)
	if wait > 0 {
		_ = observability.TelemetrySystem.Counter(GuardThrottlesTotal, 1, tags)
		_ = observability.TelemetrySystem.Histogram(GuardWait, wait, tags)
	}
}

// RecordScrape records one ticker processed by a scrape job.
func RecordScrape(job string, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			ScrapeTickersTotal,
			1,
			map[string]string{
				"job":    job,
				"status": status,
			},
		)
	}
}

// SetServerStartTime records the server start time (Unix timestamp)
func SetServerStartTime(timestamp int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(
			ServerStartTime,
			float64(timestamp),
			nil,
		)
	}
}
