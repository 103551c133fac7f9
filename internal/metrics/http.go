package metrics

import (
	"strconv"
	"time"

	"github.com/theOGognf/finagg/internal/observability"
)

// Admin server metric names.
const (
	HTTPRequestsTotal = "http_requests_total"
	HTTPRequestTime   = "http_request_duration_ms"
	HTTPResponseBytes = "http_response_size_bytes"
	HTTPErrorsTotal   = "http_errors_total"
	HTTPPanicsTotal   = "http_panics_total"
)

// Request describes one completed admin server request.
type Request struct {
	Method        string
	Endpoint      string
	Status        int
	Duration      time.Duration
	ResponseBytes int64
}

// ObserveRequest records a completed request. Endpoint must be a route
// pattern, not a raw path.
func ObserveRequest(req Request) {
	if observability.TelemetrySystem == nil {
		return
	}

	tags := map[string]string{
		"method":   req.Method,
		"endpoint": req.Endpoint,
		"status":   strconv.Itoa(req.Status),
	}
	_ = observability.TelemetrySystem.Counter(HTTPRequestsTotal, 1, tags)
	_ = observability.TelemetrySystem.Histogram(HTTPRequestTime, req.Duration, tags)
	_ = observability.TelemetrySystem.Gauge(HTTPResponseBytes, float64(req.ResponseBytes), map[string]string{
		"method":   req.Method,
		"endpoint": req.Endpoint,
	})
}

// RecordError counts an error envelope written to a client.
func RecordError(endpoint, code string, status int) {
	if observability.TelemetrySystem == nil {
		return
	}

	class := "client_error"
	if status >= 500 {
		class = "server_error"
	}
	_ = observability.TelemetrySystem.Counter(HTTPErrorsTotal, 1, map[string]string{
		"endpoint":   endpoint,
		"error_code": code,
		"class":      class,
	})
}

// RecordPanic counts a handler panic recovered by the admin server.
func RecordPanic(endpoint string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(HTTPPanicsTotal, 1, map[string]string{"endpoint": endpoint})
	}
}
