// Package fred is a client for the Federal Reserve Economic Data API.
package fred

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/theOGognf/finagg/internal/httpx"
	"github.com/theOGognf/finagg/internal/ratelimit"
)

// Name identifies the API family in config and guard snapshots.
const Name = "fred"

// BaseURL prefixes every endpoint path.
const BaseURL = "https://api.stlouisfed.org/fred"

// DefaultCacheTTL is how long successful responses are reused.
const DefaultCacheTTL = 7 * 24 * time.Hour

// Sentinel dates FRED accepts for open-ended bounds.
const (
	EarliestDate = "1776-07-04"
	LatestDate   = "9999-12-31"
)

// DefaultPageSize is FRED's maximum limit for most list endpoints.
const DefaultPageSize = 1000

// ErrMissingAPIKey is returned when no FRED API key is configured.
var ErrMissingAPIKey = errors.New("no FRED API key found; set credentials.fred_api_key or FRED_API_KEY")

// DefaultLimits is FRED's documented request rate.
func DefaultLimits() []ratelimit.Spec {
	return []ratelimit.Spec{ratelimit.Requests(120, time.Minute)}
}

// IgnoredParams never split the response cache.
func IgnoredParams() []string {
	return []string{"api_key", "file_type"}
}

// Getter fetches one FRED request; *httpx.Guard satisfies it.
type Getter interface {
	Do(ctx context.Context, req httpx.Request) (*httpx.Response, error)
}

// Client issues FRED requests through a guarded getter.
type Client struct {
	getter  Getter
	apiKey  string
	baseURL string
}

// New returns a client for apiKey.
func New(getter Getter, apiKey string) *Client {
	return &Client{getter: getter, apiKey: strings.TrimSpace(apiKey), baseURL: BaseURL}
}

// WithBaseURL points the client at another endpoint root.
func (c *Client) WithBaseURL(base string) *Client {
	clone := *c
	clone.baseURL = strings.TrimRight(base, "/")
	return &clone
}

// Params are request parameters before FRED formatting. Values may be
// strings, ints, bools or string slices; nil values are dropped.
type Params map[string]any

var (
	dateParams      = []string{"observation_start", "observation_end", "realtime_start", "realtime_end"}
	tagListParams   = []string{"exclude_tag_names", "tag_names"}
	boolParams      = []string{"include_observation_values", "include_release_dates_with_no_data"}
	searchParams    = []string{"search_text", "series_search_text", "tag_search_text"}
	vintageParams   = []string{"vintage_dates"}
	passthroughKeys = map[string]bool{"paginate": true, "cache": true}
)

// Format converts p into query values: 0 and -1 date bounds become the
// earliest and latest dates, tag lists join with ";", search text with "+",
// vintage dates with ",", and booleans become "true"/"false".
func (p Params) Format() (url.Values, error) {
	values := url.Values{}
	keys := make([]string, 0, len(p))
	for key := range p {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		raw := p[key]
		if raw == nil || passthroughKeys[key] {
			continue
		}
		var (
			value string
			err   error
		)
		switch {
		case contains(dateParams, key):
			value, err = formatDate(raw)
		case contains(tagListParams, key):
			value, err = joinList(raw, ";")
		case contains(searchParams, key):
			value, err = joinList(raw, "+")
		case contains(vintageParams, key):
			value, err = joinList(raw, ",")
		case contains(boolParams, key):
			b, ok := raw.(bool)
			if !ok {
				return nil, fmt.Errorf("fred param %s: expected bool, got %T", key, raw)
			}
			value = strconv.FormatBool(b)
		default:
			value, err = scalar(raw)
		}
		if err != nil {
			return nil, fmt.Errorf("fred param %s: %w", key, err)
		}
		values.Set(key, value)
	}
	return values, nil
}

// Get requests endpoint (a path below the base URL such as "series") and
// decodes the JSON body into a generic map.
func (c *Client) Get(ctx context.Context, endpoint string, params Params) (map[string]json.RawMessage, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	query, err := params.Format()
	if err != nil {
		return nil, err
	}
	query.Set("api_key", c.apiKey)
	query.Set("file_type", "json")

	noCache := false
	if cache, ok := params["cache"].(bool); ok {
		noCache = !cache
	}

	resp, err := c.getter.Do(ctx, httpx.Request{
		URL:     c.baseURL + "/" + strings.TrimLeft(endpoint, "/"),
		Params:  query,
		NoCache: noCache,
	})
	if err != nil {
		return nil, fmt.Errorf("fred %s: %w", endpoint, err)
	}
	if err := resp.CheckStatus(); err != nil {
		return nil, err
	}

	var body map[string]json.RawMessage
	if err := resp.Decode(&body); err != nil {
		return nil, err
	}
	return body, nil
}

// List requests endpoint and returns the records under key. With
// params["paginate"] set it keeps requesting pages of params["limit"]
// records until the reported count is exhausted.
func (c *Client) List(ctx context.Context, endpoint, key string, params Params) ([]Record, error) {
	page := Params{}
	for k, v := range params {
		page[k] = v
	}
	paginate, _ := page["paginate"].(bool)
	offset := intParam(page["offset"], 0)
	limit := intParam(page["limit"], DefaultPageSize)

	var records []Record
	for {
		page["offset"] = offset
		body, err := c.Get(ctx, endpoint, page)
		if err != nil {
			return nil, err
		}

		var batch []Record
		if raw, ok := body[key]; ok {
			if err := json.Unmarshal(raw, &batch); err != nil {
				return nil, fmt.Errorf("decode fred %s: %w", key, err)
			}
		}
		records = append(records, batch...)

		if !paginate || len(batch) == 0 {
			return records, nil
		}

		var count int
		if raw, ok := body["count"]; ok {
			_ = json.Unmarshal(raw, &count)
		}
		offset += limit
		if offset > count {
			return records, nil
		}
	}
}

// Record is one item of a FRED list response.
type Record map[string]any

// Observation is one data point of a series.
type Observation struct {
	RealtimeStart string `json:"realtime_start"`
	RealtimeEnd   string `json:"realtime_end"`
	Date          string `json:"date"`
	Value         string `json:"value"`
}

// Series returns the metadata of a series.
func (c *Client) Series(ctx context.Context, seriesID string, params Params) ([]Record, error) {
	return c.List(ctx, "series", "seriess", withParam(params, "series_id", seriesID))
}

// SeriesObservations returns a series' observations.
func (c *Client) SeriesObservations(ctx context.Context, seriesID string, params Params) ([]Observation, error) {
	params = withParam(params, "series_id", seriesID)
	if _, ok := params["limit"]; !ok {
		params["limit"] = 100000
	}
	body, err := c.Get(ctx, "series/observations", params)
	if err != nil {
		return nil, err
	}
	var observations []Observation
	if raw, ok := body["observations"]; ok {
		if err := json.Unmarshal(raw, &observations); err != nil {
			return nil, fmt.Errorf("decode fred observations: %w", err)
		}
	}
	return observations, nil
}

// SeriesSearch finds series matching text.
func (c *Client) SeriesSearch(ctx context.Context, text []string, params Params) ([]Record, error) {
	return c.List(ctx, "series/search", "seriess", withParam(params, "search_text", text))
}

// Category returns one category.
func (c *Client) Category(ctx context.Context, categoryID int) ([]Record, error) {
	return c.List(ctx, "category", "categories", Params{"category_id": categoryID})
}

// CategoryChildren returns a category's child categories.
func (c *Client) CategoryChildren(ctx context.Context, categoryID int, params Params) ([]Record, error) {
	return c.List(ctx, "category/children", "categories", withParam(params, "category_id", categoryID))
}

// CategorySeries returns the series in a category.
func (c *Client) CategorySeries(ctx context.Context, categoryID int, params Params) ([]Record, error) {
	return c.List(ctx, "category/series", "seriess", withParam(params, "category_id", categoryID))
}

// Release returns one release.
func (c *Client) Release(ctx context.Context, releaseID int, params Params) ([]Record, error) {
	return c.List(ctx, "release", "releases", withParam(params, "release_id", releaseID))
}

// Releases returns all releases.
func (c *Client) Releases(ctx context.Context, params Params) ([]Record, error) {
	return c.List(ctx, "releases", "releases", params)
}

// Source returns one source.
func (c *Client) Source(ctx context.Context, sourceID int, params Params) ([]Record, error) {
	return c.List(ctx, "source", "sources", withParam(params, "source_id", sourceID))
}

// Sources returns all sources.
func (c *Client) Sources(ctx context.Context, params Params) ([]Record, error) {
	return c.List(ctx, "sources", "sources", params)
}

// Tags returns tags, optionally filtered by tag names.
func (c *Client) Tags(ctx context.Context, params Params) ([]Record, error) {
	return c.List(ctx, "tags", "tags", params)
}

// RelatedTags returns tags related to the given tag names.
func (c *Client) RelatedTags(ctx context.Context, tagNames []string, params Params) ([]Record, error) {
	return c.List(ctx, "related_tags", "tags", withParam(params, "tag_names", tagNames))
}

func withParam(params Params, key string, value any) Params {
	out := Params{}
	for k, v := range params {
		out[k] = v
	}
	out[key] = value
	return out
}

func contains(list []string, key string) bool {
	for _, item := range list {
		if item == key {
			return true
		}
	}
	return false
}

func formatDate(raw any) (string, error) {
	switch v := raw.(type) {
	case int:
		switch v {
		case 0:
			return EarliestDate, nil
		case -1:
			return LatestDate, nil
		}
		return strconv.Itoa(v), nil
	case time.Time:
		return v.Format("2006-01-02"), nil
	}
	return scalar(raw)
}

func joinList(raw any, sep string) (string, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case []string:
		return strings.Join(v, sep), nil
	}
	return "", fmt.Errorf("expected string or []string, got %T", raw)
}

func scalar(raw any) (string, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	}
	return "", fmt.Errorf("unsupported value type %T", raw)
}

func intParam(raw any, fallback int) int {
	if v, ok := raw.(int); ok && v > 0 {
		return v
	}
	return fallback
}
