package ratelimit

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Getter performs one outbound call and returns its response.
type Getter[Req any, Resp Observation] func(ctx context.Context, req Req) (Resp, error)

// Logger receives the throttling diagnostic.
type Logger interface {
	Warn(msg string, fields ...zap.Field)
}

// CallObserver is notified after every successful call with the wait the
// guard is about to apply.
type CallObserver func(guard string, wait time.Duration)

type guardOptions struct {
	sleep    func(time.Duration)
	logger   Logger
	observer CallObserver
	target   func(req any) string
}

// GuardOption configures a Guard.
type GuardOption func(*guardOptions)

// WithSleep overrides how the guard blocks.
func WithSleep(sleep func(time.Duration)) GuardOption {
	return func(o *guardOptions) {
		if sleep != nil {
			o.sleep = sleep
		}
	}
}

// WithLogger enables the throttling diagnostic.
func WithLogger(logger Logger) GuardOption {
	return func(o *guardOptions) {
		o.logger = logger
	}
}

// WithObserver registers a per-call observer.
func WithObserver(observer CallObserver) GuardOption {
	return func(o *guardOptions) {
		o.observer = observer
	}
}

// WithTarget names the request in the throttling diagnostic.
func WithTarget(target func(req any) string) GuardOption {
	return func(o *guardOptions) {
		o.target = target
	}
}

// Guard wraps a getter with one or more limiters. Each call runs the getter,
// feeds the response to every limiter, and then blocks for the largest wait
// they report, so the delay lands before the next call through the guard.
type Guard[Req any, Resp Observation] struct {
	name     string
	get      Getter[Req, Resp]
	limiters []*Limiter
	opts     guardOptions
}

// NewGuard builds a guard. The limiters are owned by the guard and must not
// be shared with another guard.
func NewGuard[Req any, Resp Observation](name string, get Getter[Req, Resp], limiters []*Limiter, opts ...GuardOption) *Guard[Req, Resp] {
	options := guardOptions{sleep: time.Sleep}
	for _, opt := range opts {
		opt(&options)
	}
	owned := make([]*Limiter, len(limiters))
	copy(owned, limiters)
	return &Guard[Req, Resp]{
		name:     name,
		get:      get,
		limiters: owned,
		opts:     options,
	}
}

// Do calls the wrapped getter. Errors from the getter are returned untouched
// and leave every limiter unchanged. Status codes are never treated as
// failures here.
func (g *Guard[Req, Resp]) Do(ctx context.Context, req Req) (Resp, error) {
	resp, err := g.get(ctx, req)
	if err != nil {
		return resp, err
	}

	var wait time.Duration
	for _, limiter := range g.limiters {
		wait = max(wait, limiter.Update(resp))
	}

	if g.opts.observer != nil {
		g.opts.observer(g.name, wait)
	}

	if wait > 0 {
		if g.opts.logger != nil {
			g.opts.logger.Warn("Throttling requests",
				zap.String("guard", g.name),
				zap.String("target", g.target(req)),
				zap.Duration("wait", wait))
		}
		g.opts.sleep(wait)
	}

	return resp, nil
}

func (g *Guard[Req, Resp]) target(req Req) string {
	if g.opts.target != nil {
		return g.opts.target(req)
	}
	return g.name
}

// Name returns the guard's name.
func (g *Guard[Req, Resp]) Name() string {
	return g.name
}

// Limiters returns the guard's limiters in order.
func (g *Guard[Req, Resp]) Limiters() []*Limiter {
	out := make([]*Limiter, len(g.limiters))
	copy(out, g.limiters)
	return out
}

// GuardSnapshot is a point-in-time copy of a guard's limiters.
type GuardSnapshot struct {
	Name     string            `json:"name" yaml:"name"`
	Limiters []LimiterSnapshot `json:"limiters" yaml:"limiters"`
}

// Snapshot returns the state of every limiter without modifying it.
func (g *Guard[Req, Resp]) Snapshot() GuardSnapshot {
	snapshot := GuardSnapshot{
		Name:     g.name,
		Limiters: make([]LimiterSnapshot, 0, len(g.limiters)),
	}
	for _, limiter := range g.limiters {
		snapshot.Limiters = append(snapshot.Limiters, limiter.Snapshot())
	}
	return snapshot
}
