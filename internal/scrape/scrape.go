// Package scrape fans per-ticker work out over a fixed pool of workers.
// Workers usually share one guarded client, so the guard's limiters pace
// the whole pool rather than each worker.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/theOGognf/finagg/internal/metrics"
)

// Options configures Run.
type Options struct {
	// Job names the scrape in metrics.
	Job string

	// Workers is the pool size; values below 1 mean 1.
	Workers int

	// ContinueOnError keeps going after a ticker fails and reports every
	// failure in Result.Errors instead of cancelling the rest.
	ContinueOnError bool
}

// Result holds per-ticker outcomes in input order.
type Result[T any] struct {
	Tickers []string
	Values  []T
	Errors  []error
}

// Succeeded counts tickers without an error.
func (r *Result[T]) Succeeded() int {
	n := 0
	for i := range r.Tickers {
		if r.Errors[i] == nil {
			n++
		}
	}
	return n
}

// Failed returns the tickers whose fn returned an error.
func (r *Result[T]) Failed() []string {
	var failed []string
	for i, ticker := range r.Tickers {
		if r.Errors[i] != nil {
			failed = append(failed, ticker)
		}
	}
	return failed
}

// TickerError ties an error to the ticker that produced it.
type TickerError struct {
	Ticker string
	Err    error
}

func (e *TickerError) Error() string {
	return fmt.Sprintf("%s: %v", e.Ticker, e.Err)
}

func (e *TickerError) Unwrap() error {
	return e.Err
}

type job struct {
	index  int
	ticker string
}

// Run calls fn once per ticker using opts.Workers goroutines. Without
// ContinueOnError the first failure cancels the context passed to the
// remaining calls and is returned as a *TickerError. With it, failures are
// only recorded per ticker. Cancelling ctx stops Run in either mode.
func Run[T any](ctx context.Context, tickers []string, opts Options, fn func(ctx context.Context, ticker string) (T, error)) (*Result[T], error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	result := &Result[T]{
		Tickers: append([]string(nil), tickers...),
		Values:  make([]T, len(tickers)),
		Errors:  make([]error, len(tickers)),
	}
	if len(tickers) == 0 {
		return result, nil
	}

	jobs := make(chan job)

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)

	setErr := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	worker := func() {
		defer wg.Done()
		for j := range jobs {
			if ctx.Err() != nil {
				result.Errors[j.index] = ctx.Err()
				continue
			}
			value, err := fn(ctx, j.ticker)
			metrics.RecordScrape(opts.Job, err == nil)
			if err != nil {
				tickerErr := &TickerError{Ticker: j.ticker, Err: err}
				result.Errors[j.index] = tickerErr
				if !opts.ContinueOnError {
					setErr(tickerErr)
				}
				continue
			}
			result.Values[j.index] = value
		}
	}

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(tickers) {
		workers = len(tickers)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go worker()
	}

sendLoop:
	for i, ticker := range tickers {
		select {
		case <-ctx.Done():
			for k := i; k < len(tickers); k++ {
				result.Errors[k] = ctx.Err()
			}
			break sendLoop
		case jobs <- job{index: i, ticker: ticker}:
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return result, firstErr
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// NormalizeTickers upper-cases, trims and de-duplicates tickers, keeping
// first occurrences in order. Entries may themselves be comma-separated.
func NormalizeTickers(values []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			ticker := strings.ToUpper(strings.TrimSpace(part))
			if ticker == "" || seen[ticker] {
				continue
			}
			seen[ticker] = true
			out = append(out, ticker)
		}
	}
	return out
}

// Err joins every per-ticker failure.
func (r *Result[T]) Err() error {
	var errs []error
	for _, err := range r.Errors {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
