// Package yfinance reads daily price history from the Yahoo! Finance chart
// API. Prices are auto-adjusted for splits and dividends.
package yfinance

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/theOGognf/finagg/internal/httpx"
	"github.com/theOGognf/finagg/internal/ratelimit"
)

// Name identifies the API family in config and guard snapshots.
const Name = "yfinance"

// ChartURL is the chart endpoint; the ticker is appended.
const ChartURL = "https://query1.finance.yahoo.com/v8/finance/chart/"

// DefaultCacheTTL is how long successful responses are reused.
const DefaultCacheTTL = 24 * time.Hour

// DefaultInterval is the bar size used when none is given.
const DefaultInterval = "1d"

// ErrNoData is returned when the chart API has no rows for a ticker.
var ErrNoData = errors.New("no price data")

// DefaultLimits are conservative; Yahoo publishes no limits.
func DefaultLimits() []ratelimit.Spec {
	return []ratelimit.Spec{
		ratelimit.Requests(60, time.Minute),
		ratelimit.Errors(10, time.Minute),
	}
}

// Getter fetches one page; *httpx.Guard satisfies it.
type Getter interface {
	Do(ctx context.Context, req httpx.Request) (*httpx.Response, error)
}

// Bar is one row of price history.
type Bar struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
	Ticker string  `json:"ticker"`
}

// APIError is the error object of a chart response.
type APIError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("yahoo finance error %s: %s", e.Code, e.Description)
}

// Client reads price history through a guarded getter.
type Client struct {
	getter  Getter
	baseURL string
}

// New returns a client using getter.
func New(getter Getter) *Client {
	return &Client{getter: getter, baseURL: ChartURL}
}

// WithBaseURL returns a copy of c that sends requests to baseURL.
func (c *Client) WithBaseURL(baseURL string) *Client {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Client{getter: c.getter, baseURL: baseURL}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol           string `json:"symbol"`
				ExchangeTimezone string `json:"exchangeTimezoneName"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *APIError `json:"error"`
	} `json:"chart"`
}

// History returns bars for ticker between start and end (inclusive dates in
// YYYY-MM-DD form). An empty start means the full history; an empty end
// means today.
func (c *Client) History(ctx context.Context, ticker, start, end, interval string) ([]Bar, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, errors.New("ticker is required")
	}
	if interval == "" {
		interval = DefaultInterval
	}

	params := url.Values{}
	params.Set("interval", interval)
	params.Set("events", "div,splits")
	if start == "" && end == "" {
		params.Set("range", "max")
	} else {
		from, to, err := dateRange(start, end)
		if err != nil {
			return nil, err
		}
		params.Set("period1", fmt.Sprint(from.Unix()))
		params.Set("period2", fmt.Sprint(to.Unix()))
	}

	resp, err := c.getter.Do(ctx, httpx.Request{URL: c.baseURL + url.PathEscape(ticker), Params: params})
	if err != nil {
		return nil, fmt.Errorf("%s history: %w", ticker, err)
	}

	var payload chartResponse
	decodeErr := resp.Decode(&payload)
	if decodeErr == nil && payload.Chart.Error != nil {
		return nil, payload.Chart.Error
	}
	if err := resp.CheckStatus(); err != nil {
		return nil, err
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	if len(payload.Chart.Result) == 0 {
		return nil, fmt.Errorf("%s: %w", ticker, ErrNoData)
	}

	result := payload.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 || len(result.Timestamp) == 0 {
		return nil, fmt.Errorf("%s: %w", ticker, ErrNoData)
	}
	quote := result.Indicators.Quote[0]
	var adj []*float64
	if len(result.Indicators.AdjClose) > 0 {
		adj = result.Indicators.AdjClose[0].AdjClose
	}

	loc := time.UTC
	if result.Meta.ExchangeTimezone != "" {
		if l, err := time.LoadLocation(result.Meta.ExchangeTimezone); err == nil {
			loc = l
		}
	}

	bars := make([]Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		open, high, low, closePrice := at(quote.Open, i), at(quote.High, i), at(quote.Low, i), at(quote.Close, i)
		if open == nil || high == nil || low == nil || closePrice == nil {
			continue
		}
		ratio := 1.0
		if a := at(adj, i); a != nil && *closePrice != 0 {
			ratio = *a / *closePrice
		}
		bar := Bar{
			Date:   time.Unix(ts, 0).In(loc).Format(time.DateOnly),
			Open:   *open * ratio,
			High:   *high * ratio,
			Low:    *low * ratio,
			Close:  *closePrice * ratio,
			Ticker: ticker,
		}
		if v := at(quote.Volume, i); v != nil {
			bar.Volume = *v
		}
		bars = append(bars, bar)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%s: %w", ticker, ErrNoData)
	}
	return bars, nil
}

func at[T any](values []*T, i int) *T {
	if i < len(values) {
		return values[i]
	}
	return nil
}

func dateRange(start, end string) (time.Time, time.Time, error) {
	from := time.Unix(0, 0).UTC()
	if start != "" {
		t, err := time.Parse(time.DateOnly, start)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start date %q: %w", start, err)
		}
		from = t
	}
	to := time.Now().UTC()
	if end != "" {
		t, err := time.Parse(time.DateOnly, end)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end date %q: %w", end, err)
		}
		to = t.Add(24 * time.Hour)
	}
	if !to.After(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("end date %q is before start date %q", end, start)
	}
	return from, to, nil
}
