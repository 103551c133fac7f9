package ratelimit

import (
	"errors"
	"sync"
	"time"
)

type observation struct {
	contribution float64
	at           time.Time
}

// Limiter is a sliding-window throttle for a single metric. It records each
// observation's contribution and reports how long the caller should wait
// before the next request to stay under the ceiling.
//
// Update is a critical section guarded by the limiter's own mutex; it never
// sleeps, so a shared limiter only serializes the bookkeeping.
type Limiter struct {
	kind      Kind
	evaluator Evaluator
	ceiling   float64
	window    time.Duration
	clock     func() time.Time

	mu      sync.Mutex
	queue   []observation
	total   float64
	pending time.Duration
}

// LimiterOption configures a Limiter.
type LimiterOption func(*Limiter)

// WithClock overrides the limiter's time source.
func WithClock(clock func() time.Time) LimiterOption {
	return func(l *Limiter) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// NewLimiter builds a limiter around an arbitrary evaluator. The buffer in
// spec is applied to the ceiling once, here.
func NewLimiter(evaluator Evaluator, spec Spec, opts ...LimiterOption) (*Limiter, error) {
	if evaluator == nil {
		return nil, errors.New("evaluator is required")
	}
	if spec.Ceiling <= 0 {
		return nil, errors.New("ceiling must be positive")
	}
	if spec.Window <= 0 {
		return nil, errors.New("window must be positive")
	}
	if spec.Buffer < 0 || spec.Buffer >= 1 {
		return nil, errors.New("buffer must be in [0, 1)")
	}

	l := &Limiter{
		kind:      spec.Kind,
		evaluator: evaluator,
		ceiling:   spec.EffectiveCeiling(),
		window:    spec.Window,
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Update scores obs, records it, and returns the wait required before the
// next call.
func (l *Limiter) Update(obs Observation) time.Duration {
	score := l.evaluator.Evaluate(obs)

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	last := now
	if n := len(l.queue); n > 0 {
		last = l.queue[n-1].at
	}
	dt := max(now.Sub(last), 0)

	l.total += score.Contribution
	l.pending = max(l.pending-dt, 0)
	l.pending = max(l.pending, score.ForcedWait)

	l.queue = append(l.queue, observation{contribution: score.Contribution, at: now})
	l.evict()

	l.pending = max(l.pending, l.projectedWait())
	return l.pending
}

// evict drops observations that are a full window older than the newest one.
func (l *Limiter) evict() {
	newest := l.queue[len(l.queue)-1].at
	drop := 0
	for drop < len(l.queue) && newest.Sub(l.queue[drop].at) >= l.window {
		l.total -= l.queue[drop].contribution
		drop++
	}
	if drop == 0 {
		return
	}
	l.queue = append(l.queue[:0], l.queue[drop:]...)
	if len(l.queue) == 0 {
		l.total = 0
	}
}

// projectedWait walks the window oldest-first until enough contributions
// would age out to bring the total back under the ceiling. The newest
// observation is not re-checked against the ceiling.
func (l *Limiter) projectedWait() time.Duration {
	if len(l.queue) == 0 || l.total < l.ceiling {
		return 0
	}

	newest := l.queue[len(l.queue)-1].at
	remaining := l.total
	var wait time.Duration
	for _, entry := range l.queue {
		wait = l.window - newest.Sub(entry.at)
		remaining -= entry.contribution
		if remaining < l.ceiling {
			break
		}
	}
	return wait
}

// Kind returns the limit kind the limiter was built for.
func (l *Limiter) Kind() Kind {
	return l.kind
}

// Ceiling returns the effective ceiling after the buffer is applied.
func (l *Limiter) Ceiling() float64 {
	return l.ceiling
}

// Window returns the sliding window duration.
func (l *Limiter) Window() time.Duration {
	return l.window
}

// Total returns the sum of contributions currently in the window.
func (l *Limiter) Total() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

// Len returns the number of observations currently in the window.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// LimiterSnapshot is a point-in-time copy of a limiter's state.
type LimiterSnapshot struct {
	Kind        Kind          `json:"kind" yaml:"kind"`
	Ceiling     float64       `json:"ceiling" yaml:"ceiling"`
	Window      time.Duration `json:"window" yaml:"window"`
	Total       float64       `json:"total" yaml:"total"`
	Entries     int           `json:"entries" yaml:"entries"`
	PendingWait time.Duration `json:"pending_wait" yaml:"pending_wait"`
	Saturated   bool          `json:"saturated" yaml:"saturated"`
}

// Snapshot returns the limiter's current state without modifying it.
func (l *Limiter) Snapshot() LimiterSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return LimiterSnapshot{
		Kind:        l.kind,
		Ceiling:     l.ceiling,
		Window:      l.window,
		Total:       l.total,
		Entries:     len(l.queue),
		PendingWait: l.pending,
		Saturated:   len(l.queue) > 0 && l.total >= l.ceiling,
	}
}
