package httpx

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/theOGognf/finagg/internal/ratelimit"
)

// Response is a fully read HTTP response. It is never mutated after the
// getter returns it.
type Response struct {
	RequestID  string      `json:"request_id"`
	URL        string      `json:"url"`
	StatusCode int         `json:"status_code"`
	Header     http.Header `json:"header,omitempty"`
	Body       []byte      `json:"-"`
	FromCache  bool        `json:"from_cache"`
	ReceivedAt time.Time   `json:"received_at"`
}

var _ ratelimit.Observation = (*Response)(nil)

// Status returns the HTTP status code.
func (r *Response) Status() int {
	if r == nil {
		return 0
	}
	return r.StatusCode
}

// Size returns the body length in bytes.
func (r *Response) Size() int {
	if r == nil {
		return 0
	}
	return len(r.Body)
}

// Cached reports whether the response came from the local cache.
func (r *Response) Cached() bool {
	return r != nil && r.FromCache
}

// RetryAfter parses the Retry-After header as seconds or an HTTP date.
func (r *Response) RetryAfter() time.Duration {
	if r == nil || r.Header == nil {
		return 0
	}
	return ParseRetryAfter(r.Header.Get("Retry-After"), r.ReceivedAt)
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// CheckStatus returns a *StatusError for non-2xx responses.
func (r *Response) CheckStatus() error {
	if r == nil {
		return fmt.Errorf("nil response")
	}
	if r.OK() {
		return nil
	}
	return &StatusError{URL: r.URL, StatusCode: r.StatusCode, Body: snippet(r.Body)}
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if r == nil {
		return fmt.Errorf("nil response")
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode %s: %w", r.URL, err)
	}
	return nil
}

// StatusError reports a response whose status the caller treats as failure.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// ParseRetryAfter accepts delta-seconds or an HTTP date relative to now.
func ParseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}

	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		if secs <= 0 || math.IsNaN(secs) || math.IsInf(secs, 0) {
			return 0
		}
		return time.Duration(secs * float64(time.Second))
	}

	if parsed, err := http.ParseTime(value); err == nil {
		if now.IsZero() {
			now = time.Now()
		}
		if wait := parsed.Sub(now); wait > 0 {
			return wait
		}
	}

	return 0
}

func snippet(body []byte) string {
	const limit = 200
	text := strings.TrimSpace(string(body))
	if len(text) <= limit {
		return text
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}
