package middleware

import (
	"context"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// Headers carrying a caller supplied request ID, in order of preference.
const (
	RequestIDHeader     = "X-Request-ID"
	CorrelationIDHeader = "X-Correlation-ID"
)

// maxRequestIDLen bounds caller supplied IDs so they stay log friendly.
const maxRequestIDLen = 128

type contextKey struct{ name string }

// RequestIDContextKey holds the request ID in a request context.
var RequestIDContextKey = &contextKey{"request_id"}

// RequestID attaches an ID to every request and echoes it in the response.
// An ID set by chi's RequestID middleware wins, then the inbound headers.
// Missing or oversized IDs are replaced with a fresh UUID.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := inboundRequestID(r)
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(WithRequestID(r.Context(), id)))
	})
}

func inboundRequestID(r *http.Request) string {
	candidates := []string{
		chimw.GetReqID(r.Context()),
		r.Header.Get(RequestIDHeader),
		r.Header.Get(CorrelationIDHeader),
	}
	for _, id := range candidates {
		if id != "" && len(id) <= maxRequestIDLen {
			return id
		}
	}
	return uuid.NewString()
}

// WithRequestID returns a copy of ctx carrying id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDContextKey, id)
}

// GetRequestID returns the request ID stored in ctx, or "" if there is none.
func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(RequestIDContextKey).(string); ok {
		return id
	}
	return chimw.GetReqID(ctx)
}
