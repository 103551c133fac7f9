package scrape

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theOGognf/finagg/internal/ratelimit"
)

func TestRunKeepsInputOrder(t *testing.T) {
	tickers := []string{"AAPL", "MSFT", "GOOGL", "AMZN", "NVDA"}

	result, err := Run(context.Background(), tickers, Options{Workers: 3}, func(ctx context.Context, ticker string) (string, error) {
		return ticker + "!", nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL!", "MSFT!", "GOOGL!", "AMZN!", "NVDA!"}, result.Values)
	assert.Equal(t, 5, result.Succeeded())
	assert.Empty(t, result.Failed())
	assert.NoError(t, result.Err())
}

func TestRunStopsOnFirstError(t *testing.T) {
	boom := errors.New("boom")
	var calls atomic.Int32

	tickers := make([]string, 50)
	for i := range tickers {
		tickers[i] = fmt.Sprintf("T%02d", i)
	}

	result, err := Run(context.Background(), tickers, Options{Workers: 1}, func(ctx context.Context, ticker string) (int, error) {
		calls.Add(1)
		if ticker == "T02" {
			return 0, boom
		}
		return 1, nil
	})
	require.ErrorIs(t, err, boom)

	var tickerErr *TickerError
	require.ErrorAs(t, err, &tickerErr)
	assert.Equal(t, "T02", tickerErr.Ticker)
	assert.Less(t, calls.Load(), int32(50))
	assert.Contains(t, result.Failed(), "T02")
}

func TestRunContinueOnError(t *testing.T) {
	result, err := Run(context.Background(), []string{"A", "B", "C", "D"}, Options{Workers: 2, ContinueOnError: true},
		func(ctx context.Context, ticker string) (int, error) {
			if ticker == "B" || ticker == "D" {
				return 0, fmt.Errorf("no data for %s", ticker)
			}
			return len(ticker), nil
		})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Succeeded())
	assert.Equal(t, []string{"B", "D"}, result.Failed())
	assert.Error(t, result.Err())
	assert.Equal(t, []int{1, 0, 1, 0}, result.Values)
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := Run(ctx, []string{"A", "B"}, Options{Workers: 2, ContinueOnError: true},
		func(ctx context.Context, ticker string) (int, error) {
			return 1, nil
		})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, result.Succeeded())
}

func TestRunEmpty(t *testing.T) {
	result, err := Run(context.Background(), nil, Options{Workers: 4}, func(ctx context.Context, ticker string) (int, error) {
		assert.Fail(t, "fn must not be called")
		return 0, nil
	})
	require.NoError(t, err)
	assert.Empty(t, result.Values)
}

type fakeResponse struct{}

func (fakeResponse) Status() int               { return 200 }
func (fakeResponse) Size() int                 { return 10 }
func (fakeResponse) Cached() bool              { return false }
func (fakeResponse) RetryAfter() time.Duration { return 0 }

// Every worker goes through one guard, so the pool as a whole saturates the
// guard's window.
func TestRunSharesGuard(t *testing.T) {
	limiter, err := ratelimit.Requests(5, time.Minute).Build()
	require.NoError(t, err)

	var throttles atomic.Int32
	guard := ratelimit.NewGuard[string, fakeResponse]("test",
		func(ctx context.Context, ticker string) (fakeResponse, error) { return fakeResponse{}, nil },
		[]*ratelimit.Limiter{limiter},
		ratelimit.WithSleep(func(time.Duration) { throttles.Add(1) }))

	tickers := []string{"A", "B", "C", "D", "E", "F", "G", "H"}
	_, err = Run(context.Background(), tickers, Options{Workers: 4}, func(ctx context.Context, ticker string) (fakeResponse, error) {
		return guard.Do(ctx, ticker)
	})
	require.NoError(t, err)

	assert.InDelta(t, 8.0, limiter.Total(), 1e-9)
	assert.Equal(t, int32(4), throttles.Load())
}

func TestNormalizeTickers(t *testing.T) {
	assert.Equal(t, []string{"AAPL", "MSFT", "GOOG"}, NormalizeTickers([]string{" aapl,msft", "AAPL", "", "goog"}))
}
