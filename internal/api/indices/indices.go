// Package indices scrapes index constituents (DJIA, Nasdaq-100, S&P 500)
// from their Wikipedia pages.
package indices

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/theOGognf/finagg/internal/httpx"
	"github.com/theOGognf/finagg/internal/ratelimit"
)

// Name identifies the API family in config and guard snapshots.
const Name = "indices"

// DefaultCacheTTL is how long successful responses are reused.
const DefaultCacheTTL = 7 * 24 * time.Hour

// Index identifies a supported stock index.
type Index string

const (
	DJIA      Index = "djia"
	Nasdaq100 Index = "nasdaq100"
	SP500     Index = "sp500"
)

// All lists the supported indices.
var All = []Index{DJIA, Nasdaq100, SP500}

var pageURLs = map[Index]string{
	DJIA:      "https://en.wikipedia.org/wiki/Dow_Jones_Industrial_Average",
	Nasdaq100: "https://en.wikipedia.org/wiki/Nasdaq-100",
	SP500:     "https://en.wikipedia.org/wiki/List_of_S%26P_500_companies",
}

// ErrNoTable is returned when a page has no constituents table.
var ErrNoTable = errors.New("constituents table not found")

// DefaultLimits keeps scraping polite; Wikipedia publishes no hard limit.
func DefaultLimits() []ratelimit.Spec {
	return []ratelimit.Spec{ratelimit.Requests(5, time.Second)}
}

// ParseIndex accepts the index names and common spellings.
func ParseIndex(value string) (Index, error) {
	switch strings.ToLower(strings.NewReplacer("-", "", "_", "", " ", "", "&", "").Replace(value)) {
	case "djia", "dow", "dowjones":
		return DJIA, nil
	case "nasdaq100", "ndx":
		return Nasdaq100, nil
	case "sp500", "spx":
		return SP500, nil
	}
	return "", fmt.Errorf("unknown index %q (expected djia, nasdaq100 or sp500)", value)
}

// Getter fetches one page; *httpx.Guard satisfies it.
type Getter interface {
	Do(ctx context.Context, req httpx.Request) (*httpx.Response, error)
}

// Constituent is one row of an index table. Fields holds every column
// keyed by its header text.
type Constituent struct {
	Ticker  string            `json:"ticker"`
	Company string            `json:"company"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Client scrapes index pages through a guarded getter.
type Client struct {
	getter    Getter
	userAgent string
	urls      map[Index]string
}

// New returns a client. userAgent may be empty.
func New(getter Getter, userAgent string) *Client {
	urls := make(map[Index]string, len(pageURLs))
	for k, v := range pageURLs {
		urls[k] = v
	}
	return &Client{getter: getter, userAgent: strings.TrimSpace(userAgent), urls: urls}
}

// WithURL overrides the page of one index.
func (c *Client) WithURL(index Index, pageURL string) *Client {
	urls := make(map[Index]string, len(c.urls))
	for k, v := range c.urls {
		urls[k] = v
	}
	urls[index] = pageURL
	return &Client{getter: c.getter, userAgent: c.userAgent, urls: urls}
}

// Constituents returns the members of index.
func (c *Client) Constituents(ctx context.Context, index Index) ([]Constituent, error) {
	pageURL, ok := c.urls[index]
	if !ok {
		return nil, fmt.Errorf("unknown index %q", index)
	}

	req := httpx.Request{URL: pageURL}
	if c.userAgent != "" {
		req.Header = map[string][]string{"User-Agent": {c.userAgent}}
	}
	resp, err := c.getter.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", index, err)
	}
	if err := resp.CheckStatus(); err != nil {
		return nil, err
	}

	rows, err := ParseConstituents(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", index, err)
	}
	return rows, nil
}

// Tickers returns the ticker symbols of index.
func (c *Client) Tickers(ctx context.Context, index Index) ([]string, error) {
	rows, err := c.Constituents(ctx, index)
	if err != nil {
		return nil, err
	}
	tickers := make([]string, 0, len(rows))
	for _, row := range rows {
		tickers = append(tickers, row.Ticker)
	}
	return tickers, nil
}

// TickerSet returns the sorted union of the tickers of every index.
func (c *Client) TickerSet(ctx context.Context) ([]string, error) {
	seen := map[string]bool{}
	for _, index := range All {
		tickers, err := c.Tickers(ctx, index)
		if err != nil {
			return nil, err
		}
		for _, t := range tickers {
			seen[t] = true
		}
	}
	set := make([]string, 0, len(seen))
	for t := range seen {
		set = append(set, t)
	}
	sort.Strings(set)
	return set, nil
}

// ParseConstituents finds the first "wikitable" with a Symbol or Ticker
// column and returns its rows.
func ParseConstituents(page []byte) ([]Constituent, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	for _, table := range findAll(doc, atom.Table) {
		if !hasClass(table, "wikitable") {
			continue
		}
		rows := findAll(table, atom.Tr)
		if len(rows) == 0 {
			continue
		}
		headers := cellTexts(rows[0])
		tickerCol := columnIndex(headers, "symbol", "ticker")
		if tickerCol < 0 {
			continue
		}
		companyCol := columnIndex(headers, "company", "security")

		var out []Constituent
		for _, row := range rows[1:] {
			cells := cellTexts(row)
			if tickerCol >= len(cells) || cells[tickerCol] == "" {
				continue
			}
			c := Constituent{Ticker: cells[tickerCol], Fields: map[string]string{}}
			if companyCol >= 0 && companyCol < len(cells) {
				c.Company = cells[companyCol]
			}
			for i, header := range headers {
				if i < len(cells) && header != "" {
					c.Fields[header] = cells[i]
				}
			}
			out = append(out, c)
		}
		if len(out) > 0 {
			return out, nil
		}
	}
	return nil, ErrNoTable
}

func findAll(n *html.Node, a atom.Atom) []*html.Node {
	var found []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && node.DataAtom == a {
			found = append(found, node)
			if a == atom.Table {
				return
			}
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return found
}

func hasClass(n *html.Node, class string) bool {
	for _, attr := range n.Attr {
		if attr.Key == "class" {
			for _, c := range strings.Fields(attr.Val) {
				if c == class {
					return true
				}
			}
		}
	}
	return false
}

func cellTexts(row *html.Node) []string {
	var cells []string
	for child := row.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.ElementNode && (child.DataAtom == atom.Td || child.DataAtom == atom.Th) {
			cells = append(cells, strings.Join(strings.Fields(textOf(child)), " "))
		}
	}
	return cells
}

func textOf(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	// Footnote markers like [1] are not part of the cell value.
	if n.Type == html.ElementNode && n.DataAtom == atom.Sup {
		return ""
	}
	var b strings.Builder
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		b.WriteString(textOf(child))
	}
	return b.String()
}

func columnIndex(headers []string, names ...string) int {
	for i, header := range headers {
		h := strings.ToLower(header)
		for _, name := range names {
			if h == name {
				return i
			}
		}
	}
	return -1
}
