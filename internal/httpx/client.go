package httpx

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultTimeout = 30 * time.Second

// Request describes one GET.
type Request struct {
	URL     string
	Params  url.Values
	Header  http.Header
	NoCache bool
}

// CacheEntry is a stored response.
type CacheEntry struct {
	Key        string      `json:"key"`
	URL        string      `json:"url"`
	StatusCode int         `json:"status_code"`
	Header     http.Header `json:"header,omitempty"`
	Body       []byte      `json:"body"`
	StoredAt   time.Time   `json:"stored_at"`
	ExpiresAt  time.Time   `json:"expires_at"`
}

// Cache stores successful responses. Get returns nil, nil on a miss.
type Cache interface {
	Get(ctx context.Context, key string) (*CacheEntry, error)
	Set(ctx context.Context, entry *CacheEntry, ttl time.Duration) error
}

// Client performs plain GETs with an optional response cache in front.
type Client struct {
	HTTP          *http.Client
	Cache         Cache
	TTL           time.Duration
	IgnoredParams []string
	UserAgent     string
	Logger        *logging.Logger
	Clock         func() time.Time
}

// Get fetches req, serving it from the cache when possible. Transport
// failures are returned as errors; any HTTP status is a response.
func (c *Client) Get(ctx context.Context, req Request) (*Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	target, err := BuildURL(req.URL, req.Params)
	if err != nil {
		return nil, err
	}

	key := CacheKey(req.URL, req.Params, c.ignoredParams())
	useCache := c != nil && c.Cache != nil && !req.NoCache

	if useCache {
		entry, err := c.Cache.Get(ctx, key)
		if err != nil {
			c.debug("Cache lookup failed", zap.String("url", target), zap.Error(err))
		} else if entry != nil {
			resp := &Response{
				RequestID:  uuid.New().String(),
				URL:        target,
				StatusCode: entry.StatusCode,
				Header:     entry.Header.Clone(),
				Body:       entry.Body,
				FromCache:  true,
				ReceivedAt: c.now(),
			}
			c.debug("Cache hit", zap.String("url", target), zap.Int("status", resp.StatusCode))
			return resp, nil
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for name, values := range req.Header {
		for _, value := range values {
			httpReq.Header.Add(name, value)
		}
	}
	if httpReq.Header.Get("User-Agent") == "" && c != nil && c.UserAgent != "" {
		httpReq.Header.Set("User-Agent", c.UserAgent)
	}

	httpResp, err := c.httpClient().Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", target, err)
	}

	resp := &Response{
		RequestID:  uuid.New().String(),
		URL:        target,
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       body,
		ReceivedAt: c.now(),
	}
	c.debug("Fetched", zap.String("url", target), zap.Int("status", resp.StatusCode), zap.Int("bytes", len(body)))

	if useCache && resp.StatusCode == http.StatusOK && c.TTL > 0 {
		entry := &CacheEntry{
			Key:        key,
			URL:        target,
			StatusCode: resp.StatusCode,
			Header:     resp.Header.Clone(),
			Body:       body,
			StoredAt:   resp.ReceivedAt,
			ExpiresAt:  resp.ReceivedAt.Add(c.TTL),
		}
		if err := c.Cache.Set(ctx, entry, c.TTL); err != nil {
			c.debug("Cache store failed", zap.String("url", target), zap.Error(err))
		}
	}

	return resp, nil
}

func (c *Client) httpClient() *http.Client {
	if c != nil && c.HTTP != nil {
		return c.HTTP
	}
	return &http.Client{Timeout: defaultTimeout}
}

func (c *Client) ignoredParams() []string {
	if c == nil {
		return nil
	}
	return c.IgnoredParams
}

func (c *Client) now() time.Time {
	if c != nil && c.Clock != nil {
		return c.Clock()
	}
	return time.Now().UTC()
}

func (c *Client) debug(msg string, fields ...zap.Field) {
	if c == nil || c.Logger == nil {
		return
	}
	c.Logger.Debug(msg, fields...)
}

// BuildURL merges params into rawURL's query string.
func BuildURL(rawURL string, params url.Values) (string, error) {
	if strings.TrimSpace(rawURL) == "" {
		return "", errors.New("url is required")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	if len(params) == 0 {
		return parsed.String(), nil
	}
	query := parsed.Query()
	for key, values := range params {
		query.Del(key)
		for _, value := range values {
			query.Add(key, value)
		}
	}
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

// CacheKey hashes the URL and its params, skipping ignored params so that
// credentials and format switches do not split the cache.
func CacheKey(rawURL string, params url.Values, ignored []string) string {
	base := rawURL
	query := url.Values{}
	if parsed, err := url.Parse(rawURL); err == nil {
		query = parsed.Query()
		parsed.RawQuery = ""
		parsed.Fragment = ""
		base = parsed.String()
	}
	for key, values := range params {
		query.Del(key)
		for _, value := range values {
			query.Add(key, value)
		}
	}
	for _, name := range ignored {
		query.Del(name)
	}

	keys := make([]string, 0, len(query))
	for key := range query {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("GET ")
	b.WriteString(base)
	for _, key := range keys {
		values := append([]string(nil), query[key]...)
		sort.Strings(values)
		for _, value := range values {
			b.WriteString("\n")
			b.WriteString(key)
			b.WriteString("=")
			b.WriteString(value)
		}
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
