// Package api holds the process-wide guard for every API family and hands
// out clients that share them.
package api

import (
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/logging"

	"github.com/theOGognf/finagg/internal/api/bea"
	"github.com/theOGognf/finagg/internal/api/fred"
	"github.com/theOGognf/finagg/internal/api/indices"
	"github.com/theOGognf/finagg/internal/api/sec"
	"github.com/theOGognf/finagg/internal/api/yfinance"
	"github.com/theOGognf/finagg/internal/config"
	"github.com/theOGognf/finagg/internal/httpx"
	"github.com/theOGognf/finagg/internal/metrics"
	"github.com/theOGognf/finagg/internal/ratelimit"
)

// Family describes one rate-limited API.
type Family struct {
	Name          string
	Limits        func() []ratelimit.Spec
	CacheTTL      time.Duration
	IgnoredParams []string
}

var families = map[string]Family{
	bea.Name:      {Name: bea.Name, Limits: bea.DefaultLimits, CacheTTL: bea.DefaultCacheTTL, IgnoredParams: bea.IgnoredParams()},
	fred.Name:     {Name: fred.Name, Limits: fred.DefaultLimits, CacheTTL: fred.DefaultCacheTTL, IgnoredParams: fred.IgnoredParams()},
	sec.Name:      {Name: sec.Name, Limits: sec.DefaultLimits, CacheTTL: sec.DefaultCacheTTL},
	indices.Name:  {Name: indices.Name, Limits: indices.DefaultLimits, CacheTTL: indices.DefaultCacheTTL},
	yfinance.Name: {Name: yfinance.Name, Limits: yfinance.DefaultLimits, CacheTTL: yfinance.DefaultCacheTTL},
}

// Families returns the known family names in sorted order.
func Families() []string {
	names := make([]string, 0, len(families))
	for name := range families {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LookupFamily returns the family registered under name.
func LookupFamily(name string) (Family, error) {
	family, ok := families[name]
	if !ok {
		return Family{}, fmt.Errorf("unknown API family %q (expected one of %v)", name, Families())
	}
	return family, nil
}

// Option configures Guards.
type Option func(*Guards)

// WithHTTPClient sets the transport shared by every family.
func WithHTTPClient(client *http.Client) Option {
	return func(g *Guards) {
		g.httpClient = client
	}
}

// WithLogger sets the logger used for request debugging and, when
// rate_limit_warn is on, the throttling warning.
func WithLogger(logger *logging.Logger) Option {
	return func(g *Guards) {
		g.logger = logger
	}
}

// WithLimiterOptions applies opts to every limiter built.
func WithLimiterOptions(opts ...ratelimit.LimiterOption) Option {
	return func(g *Guards) {
		g.limiterOpts = append(g.limiterOpts, opts...)
	}
}

// WithGuardOptions applies opts to every guard built, after the defaults.
func WithGuardOptions(opts ...ratelimit.GuardOption) Option {
	return func(g *Guards) {
		g.guardOpts = append(g.guardOpts, opts...)
	}
}

// Guards lazily builds one guard per family and keeps it for the life of
// the value. Every client obtained from the same Guards shares limiter state.
type Guards struct {
	cfg   *config.Config
	cache httpx.Cache

	httpClient  *http.Client
	logger      *logging.Logger
	limiterOpts []ratelimit.LimiterOption
	guardOpts   []ratelimit.GuardOption

	mu     sync.Mutex
	guards map[string]*httpx.Guard
}

// NewGuards returns a registry for cfg. cache may be nil to disable response
// caching; cfg may be nil to use built-in limits and no credentials.
func NewGuards(cfg *config.Config, cache httpx.Cache, opts ...Option) *Guards {
	if cfg == nil {
		cfg = &config.Config{}
	}
	g := &Guards{
		cfg:    cfg,
		cache:  cache,
		guards: make(map[string]*httpx.Guard),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Limits returns the specs in effect for name: the rate_limits override
// when configured, else the family's built-in limits.
func (g *Guards) Limits(name string) ([]ratelimit.Spec, error) {
	family, err := LookupFamily(name)
	if err != nil {
		return nil, err
	}
	if specs, ok := g.cfg.RateLimits[name]; ok && len(specs) > 0 {
		return append([]ratelimit.Spec(nil), specs...), nil
	}
	return family.Limits(), nil
}

// Get returns the guard for name, building it on first use.
func (g *Guards) Get(name string) (*httpx.Guard, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if guard, ok := g.guards[name]; ok {
		return guard, nil
	}

	family, err := LookupFamily(name)
	if err != nil {
		return nil, err
	}
	specs, err := g.Limits(name)
	if err != nil {
		return nil, err
	}

	ttl := family.CacheTTL
	if g.cfg.HTTPCache.TTL > 0 {
		ttl = g.cfg.HTTPCache.TTL
	}

	client := &httpx.Client{
		HTTP:          g.httpClient,
		TTL:           ttl,
		IgnoredParams: family.IgnoredParams,
		UserAgent:     "finagg",
		Logger:        g.logger,
	}
	if g.cache != nil {
		client.Cache = g.cache
	}

	opts := []ratelimit.GuardOption{ratelimit.WithObserver(metrics.ObserveGuard)}
	if g.cfg.RateLimitWarn && g.logger != nil {
		opts = append(opts, ratelimit.WithLogger(g.logger))
	}
	opts = append(opts, g.guardOpts...)

	guard, err := httpx.NewGuard(name, client, specs, g.limiterOpts, opts...)
	if err != nil {
		return nil, fmt.Errorf("rate_limits.%s: %w", name, err)
	}
	g.guards[name] = guard
	return guard, nil
}

// Snapshots returns the state of every guard built so far, sorted by name.
func (g *Guards) Snapshots() []ratelimit.GuardSnapshot {
	g.mu.Lock()
	guards := make([]*httpx.Guard, 0, len(g.guards))
	for _, guard := range g.guards {
		guards = append(guards, guard)
	}
	g.mu.Unlock()

	snapshots := make([]ratelimit.GuardSnapshot, 0, len(guards))
	for _, guard := range guards {
		snapshots = append(snapshots, guard.Snapshot())
	}
	sort.Slice(snapshots, func(i, j int) bool { return snapshots[i].Name < snapshots[j].Name })
	return snapshots
}

// BEA returns a BEA client on the shared bea guard.
func (g *Guards) BEA() (*bea.Client, error) {
	guard, err := g.Get(bea.Name)
	if err != nil {
		return nil, err
	}
	return bea.New(guard, g.cfg.Credentials.BEAAPIKey), nil
}

// FRED returns a FRED client on the shared fred guard.
func (g *Guards) FRED() (*fred.Client, error) {
	guard, err := g.Get(fred.Name)
	if err != nil {
		return nil, err
	}
	return fred.New(guard, g.cfg.Credentials.FREDAPIKey), nil
}

// SEC returns an SEC client on the shared sec guard.
func (g *Guards) SEC() (*sec.Client, error) {
	guard, err := g.Get(sec.Name)
	if err != nil {
		return nil, err
	}
	return sec.New(guard, g.cfg.Credentials.SECUserAgent), nil
}

// Indices returns an index scraper on the shared indices guard.
func (g *Guards) Indices() (*indices.Client, error) {
	guard, err := g.Get(indices.Name)
	if err != nil {
		return nil, err
	}
	return indices.New(guard, g.cfg.Credentials.IndicesUserAgent), nil
}

// YFinance returns a price history client on the shared yfinance guard.
func (g *Guards) YFinance() (*yfinance.Client, error) {
	guard, err := g.Get(yfinance.Name)
	if err != nil {
		return nil, err
	}
	return yfinance.New(guard), nil
}
