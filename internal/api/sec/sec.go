// Package sec is a client for the SEC EDGAR XBRL and submissions APIs.
package sec

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/theOGognf/finagg/internal/httpx"
	"github.com/theOGognf/finagg/internal/ratelimit"
)

// Name identifies the API family in config and guard snapshots.
const Name = "sec"

// DefaultCacheTTL is how long successful responses are reused.
const DefaultCacheTTL = 7 * 24 * time.Hour

// Endpoint roots.
const (
	DataURL = "https://data.sec.gov"
	WWWURL  = "https://www.sec.gov"
)

var (
	// ErrMissingUserAgent is returned when no SEC user agent is configured.
	ErrMissingUserAgent = errors.New("no SEC API user agent declaration found; set credentials.sec_user_agent or SEC_API_USER_AGENT")

	// ErrUnknownTicker is returned when a ticker or CIK is not in the listing.
	ErrUnknownTicker = errors.New("unknown ticker")
)

// DefaultLimits stays under EDGAR's fair-access rate of 10 requests/second.
func DefaultLimits() []ratelimit.Spec {
	return []ratelimit.Spec{ratelimit.Requests(9, time.Second)}
}

// Getter fetches one SEC request; *httpx.Guard satisfies it.
type Getter interface {
	Do(ctx context.Context, req httpx.Request) (*httpx.Response, error)
}

// Client issues SEC requests through a guarded getter. Lookup tables built
// from the tickers listing are memoized per client.
type Client struct {
	getter    Getter
	userAgent string
	dataURL   string
	wwwURL    string

	// loadMu is held across the listing fetch so concurrent lookups
	// download it once.
	loadMu      sync.Mutex
	mu          sync.Mutex
	tickerToCIK map[string]string
	cikToTicker map[string]string
}

// New returns a client that declares userAgent on every request.
func New(getter Getter, userAgent string) *Client {
	return &Client{
		getter:    getter,
		userAgent: strings.TrimSpace(userAgent),
		dataURL:   DataURL,
		wwwURL:    WWWURL,
	}
}

// WithBaseURLs points the client at other data and www roots.
func (c *Client) WithBaseURLs(dataURL, wwwURL string) *Client {
	return &Client{
		getter:    c.getter,
		userAgent: c.userAgent,
		dataURL:   strings.TrimRight(dataURL, "/"),
		wwwURL:    strings.TrimRight(wwwURL, "/"),
	}
}

// NormalizeCIK zero-pads a CIK to the 10 digits EDGAR uses in paths.
func NormalizeCIK(cik string) string {
	cik = strings.TrimSpace(cik)
	cik = strings.TrimPrefix(strings.ToUpper(cik), "CIK")
	if len(cik) >= 10 {
		return cik
	}
	return strings.Repeat("0", 10-len(cik)) + cik
}

// Ticker is one entry of the company tickers listing.
type Ticker struct {
	CIK    string `json:"cik"`
	Ticker string `json:"ticker"`
	Title  string `json:"title"`
}

// Exchange is one row of the tickers-by-exchange listing.
type Exchange struct {
	CIK      string `json:"cik"`
	Name     string `json:"name"`
	Ticker   string `json:"ticker"`
	Exchange string `json:"exchange"`
}

// Fact is one reported value of a concept.
type Fact struct {
	Taxonomy    string  `json:"taxonomy"`
	Tag         string  `json:"tag"`
	Label       string  `json:"label"`
	Description string  `json:"description"`
	Units       string  `json:"units"`
	Start       string  `json:"start,omitempty"`
	End         string  `json:"end"`
	Value       float64 `json:"val"`
	Accession   string  `json:"accn"`
	FiscalYear  *int    `json:"fy"`
	FiscalPart  string  `json:"fp"`
	Form        string  `json:"form"`
	Filed       string  `json:"filed"`
	Frame       string  `json:"frame,omitempty"`
	EntityName  string  `json:"entity_name,omitempty"`
	CIK         string  `json:"cik,omitempty"`
}

// FrameFact is one entity's value in a frame.
type FrameFact struct {
	Accession  string  `json:"accn"`
	CIK        int     `json:"cik"`
	EntityName string  `json:"entityName"`
	Location   string  `json:"loc"`
	Start      string  `json:"start,omitempty"`
	End        string  `json:"end"`
	Value      float64 `json:"val"`
}

// Frame is the response of the frames API.
type Frame struct {
	Taxonomy    string      `json:"taxonomy"`
	Tag         string      `json:"tag"`
	CCP         string      `json:"ccp"`
	UOM         string      `json:"uom"`
	Label       string      `json:"label"`
	Description string      `json:"description"`
	Data        []FrameFact `json:"data"`
}

// Submissions is the company metadata part of the submissions API.
type Submissions struct {
	CIK           string   `json:"cik"`
	EntityType    string   `json:"entityType"`
	SIC           string   `json:"sic"`
	SICDesc       string   `json:"sicDescription"`
	Name          string   `json:"name"`
	Tickers       []string `json:"tickers"`
	Exchanges     []string `json:"exchanges"`
	FiscalYearEnd string   `json:"fiscalYearEnd"`
	StateOfInc    string   `json:"stateOfIncorporation"`
	Filings       struct {
		Recent map[string]json.RawMessage `json:"recent"`
	} `json:"filings"`
}

type conceptUnits struct {
	Label       string                       `json:"label"`
	Description string                       `json:"description"`
	Units       map[string][]json.RawMessage `json:"units"`
}

// Tickers returns the company tickers listing.
func (c *Client) Tickers(ctx context.Context) ([]Ticker, error) {
	var raw map[string]struct {
		CIK    int    `json:"cik_str"`
		Ticker string `json:"ticker"`
		Title  string `json:"title"`
	}
	if err := c.getJSON(ctx, c.wwwURL+"/files/company_tickers.json", &raw); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		if errA != nil || errB != nil {
			return keys[i] < keys[j]
		}
		return a < b
	})

	tickers := make([]Ticker, 0, len(raw))
	for _, key := range keys {
		item := raw[key]
		tickers = append(tickers, Ticker{
			CIK:    NormalizeCIK(strconv.Itoa(item.CIK)),
			Ticker: item.Ticker,
			Title:  item.Title,
		})
	}
	return tickers, nil
}

// Exchanges returns the tickers-by-exchange listing.
func (c *Client) Exchanges(ctx context.Context) ([]Exchange, error) {
	var raw struct {
		Fields []string `json:"fields"`
		Data   [][]any  `json:"data"`
	}
	if err := c.getJSON(ctx, c.wwwURL+"/files/company_tickers_exchange.json", &raw); err != nil {
		return nil, err
	}

	index := map[string]int{}
	for i, field := range raw.Fields {
		index[field] = i
	}
	field := func(row []any, name string) string {
		i, ok := index[name]
		if !ok || i >= len(row) || row[i] == nil {
			return ""
		}
		switch v := row[i].(type) {
		case string:
			return v
		case float64:
			return strconv.FormatInt(int64(v), 10)
		}
		return fmt.Sprint(row[i])
	}

	exchanges := make([]Exchange, 0, len(raw.Data))
	for _, row := range raw.Data {
		exchanges = append(exchanges, Exchange{
			CIK:      NormalizeCIK(field(row, "cik")),
			Name:     field(row, "name"),
			Ticker:   field(row, "ticker"),
			Exchange: field(row, "exchange"),
		})
	}
	return exchanges, nil
}

// CompanyConcept returns every fact a company reported for one tag.
func (c *Client) CompanyConcept(ctx context.Context, cik, taxonomy, tag string) ([]Fact, error) {
	cik = NormalizeCIK(cik)
	var raw struct {
		conceptUnits
		Taxonomy   string `json:"taxonomy"`
		Tag        string `json:"tag"`
		EntityName string `json:"entityName"`
	}
	url := fmt.Sprintf("%s/api/xbrl/companyconcept/CIK%s/%s/%s.json", c.dataURL, cik, taxonomy, tag)
	if err := c.getJSON(ctx, url, &raw); err != nil {
		return nil, err
	}
	return flattenUnits(raw.conceptUnits, taxonomy, tag, raw.EntityName, cik)
}

// CompanyFacts returns every fact of every concept a company reported.
func (c *Client) CompanyFacts(ctx context.Context, cik string) ([]Fact, error) {
	cik = NormalizeCIK(cik)
	var raw struct {
		EntityName string                             `json:"entityName"`
		Facts      map[string]map[string]conceptUnits `json:"facts"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("%s/api/xbrl/companyfacts/CIK%s.json", c.dataURL, cik), &raw); err != nil {
		return nil, err
	}

	var facts []Fact
	for taxonomy, tags := range raw.Facts {
		for tag, units := range tags {
			flat, err := flattenUnits(units, taxonomy, tag, raw.EntityName, cik)
			if err != nil {
				return nil, err
			}
			facts = append(facts, flat...)
		}
	}
	return facts, nil
}

// Frames returns one fact per reporting entity for a calendar period.
// quarter 0 requests the whole year; instant selects the point-in-time
// frame. Units such as "USD/shares" are rewritten to EDGAR's "USD-per-shares".
func (c *Client) Frames(ctx context.Context, taxonomy, tag, units string, year, quarter int, instant bool) (*Frame, error) {
	period := fmt.Sprintf("CY%d", year)
	if quarter > 0 {
		period += fmt.Sprintf("Q%d", quarter)
		if instant {
			period += "I"
		}
	}
	units = strings.Join(strings.Split(units, "/"), "-per-")

	var frame Frame
	url := fmt.Sprintf("%s/api/xbrl/frames/%s/%s/%s/%s.json", c.dataURL, taxonomy, tag, units, period)
	if err := c.getJSON(ctx, url, &frame); err != nil {
		return nil, err
	}
	return &frame, nil
}

// Submissions returns a company's metadata and recent filings.
func (c *Client) Submissions(ctx context.Context, cik string) (*Submissions, error) {
	var sub Submissions
	if err := c.getJSON(ctx, fmt.Sprintf("%s/submissions/CIK%s.json", c.dataURL, NormalizeCIK(cik)), &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// LookupCIK maps a ticker to its 10-digit CIK.
func (c *Client) LookupCIK(ctx context.Context, ticker string) (string, error) {
	if err := c.loadTickers(ctx); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	cik, ok := c.tickerToCIK[strings.ToUpper(strings.TrimSpace(ticker))]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTicker, ticker)
	}
	return cik, nil
}

// LookupTicker maps a CIK to its ticker.
func (c *Client) LookupTicker(ctx context.Context, cik string) (string, error) {
	if err := c.loadTickers(ctx); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	ticker, ok := c.cikToTicker[NormalizeCIK(cik)]
	if !ok {
		return "", fmt.Errorf("%w: CIK %s", ErrUnknownTicker, cik)
	}
	return ticker, nil
}

func (c *Client) loadTickers(ctx context.Context) error {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()

	c.mu.Lock()
	loaded := c.tickerToCIK != nil
	c.mu.Unlock()
	if loaded {
		return nil
	}

	tickers, err := c.Tickers(ctx)
	if err != nil {
		return err
	}

	toCIK := make(map[string]string, len(tickers))
	toTicker := make(map[string]string, len(tickers))
	for _, t := range tickers {
		toCIK[t.Ticker] = t.CIK
		// The listing ranks a company's primary ticker first.
		if _, ok := toTicker[t.CIK]; !ok {
			toTicker[t.CIK] = t.Ticker
		}
	}

	c.mu.Lock()
	c.tickerToCIK = toCIK
	c.cikToTicker = toTicker
	c.mu.Unlock()
	return nil
}

func (c *Client) getJSON(ctx context.Context, url string, v any) error {
	if c.userAgent == "" {
		return ErrMissingUserAgent
	}
	resp, err := c.getter.Do(ctx, httpx.Request{
		URL:    url,
		Header: map[string][]string{"User-Agent": {c.userAgent}},
	})
	if err != nil {
		return fmt.Errorf("sec %s: %w", url, err)
	}
	if err := resp.CheckStatus(); err != nil {
		return err
	}
	return resp.Decode(v)
}

func flattenUnits(units conceptUnits, taxonomy, tag, entity, cik string) ([]Fact, error) {
	var facts []Fact
	for unit, rows := range units.Units {
		for _, raw := range rows {
			fact := Fact{}
			if err := json.Unmarshal(raw, &fact); err != nil {
				return nil, fmt.Errorf("decode %s/%s fact: %w", taxonomy, tag, err)
			}
			fact.Taxonomy = taxonomy
			fact.Tag = tag
			fact.Label = units.Label
			fact.Description = units.Description
			fact.Units = unit
			fact.EntityName = entity
			fact.CIK = cik
			facts = append(facts, fact)
		}
	}
	return facts, nil
}
