package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/theOGognf/finagg/internal/metrics"
	"github.com/theOGognf/finagg/internal/observability"
)

// statusRecorder captures the status code and body size of a response.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written int64
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	n, err := s.ResponseWriter.Write(b)
	s.written += int64(n)
	return n, err
}

// knownPrefixes collapse unrouted paths onto a bounded set of labels.
var knownPrefixes = []struct{ prefix, pattern string }{
	{"/health", "/health/*"},
	{"/v1/ratelimits", "/v1/ratelimits/*"},
	{"/v1/cache", "/v1/cache/*"},
}

// EndpointPattern returns the chi route pattern that matched r, falling back
// to a coarse label so metrics never carry raw paths.
func EndpointPattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}

	path := r.URL.Path
	switch path {
	case "/", "/version", "/metrics":
		return path
	}
	for _, k := range knownPrefixes {
		if path == k.prefix || strings.HasPrefix(path, k.prefix+"/") {
			return k.pattern
		}
	}
	return "/unknown"
}

// RequestMetrics records each request through the metrics package and logs
// it at debug level with its request ID.
func RequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		observed := metrics.Request{
			Method:        r.Method,
			Endpoint:      EndpointPattern(r),
			Status:        rec.status,
			Duration:      time.Since(start),
			ResponseBytes: rec.written,
		}
		metrics.ObserveRequest(observed)

		if logger := observability.ServerLogger; logger != nil {
			logger.Debug("HTTP request completed",
				zap.String("method", observed.Method),
				zap.String("path", r.URL.Path),
				zap.String("endpoint", observed.Endpoint),
				zap.Int("status", observed.Status),
				zap.Duration("duration", observed.Duration),
				zap.Int64("response_size", observed.ResponseBytes),
				zap.String("requestID", GetRequestID(r.Context())))
		}
	})
}
