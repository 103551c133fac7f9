package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingSleeper struct {
	waits []time.Duration
}

func (s *recordingSleeper) Sleep(d time.Duration) {
	s.waits = append(s.waits, d)
}

type recordingLogger struct {
	messages []string
}

func (l *recordingLogger) Warn(msg string, fields ...zap.Field) {
	l.messages = append(l.messages, msg)
}

func forced(wait time.Duration) Evaluator {
	return EvaluatorFunc(func(obs Observation) Score {
		return Score{Contribution: 1, ForcedWait: wait}
	})
}

func staticGetter(obs fakeObservation) Getter[string, fakeObservation] {
	return func(ctx context.Context, url string) (fakeObservation, error) {
		return obs, nil
	}
}

func TestGuardUsesMaxWait(t *testing.T) {
	clock := newFakeClock()
	a, err := NewLimiter(forced(3*time.Second), Spec{Ceiling: 100, Window: time.Minute}, WithClock(clock.Now))
	require.NoError(t, err)
	b, err := NewLimiter(forced(5*time.Second), Spec{Ceiling: 100, Window: time.Minute}, WithClock(clock.Now))
	require.NoError(t, err)

	sleeper := &recordingSleeper{}
	guard := NewGuard("test", staticGetter(ok200), []*Limiter{a, b}, WithSleep(sleeper.Sleep))

	resp, err := guard.Do(context.Background(), "https://example.test")
	require.NoError(t, err)
	require.Equal(t, ok200, resp)
	require.Equal(t, []time.Duration{5 * time.Second}, sleeper.waits)
}

func TestGuardNoSleepBelowCeiling(t *testing.T) {
	clock := newFakeClock()
	limiters, err := BuildAll([]Spec{Requests(3, time.Minute), Errors(3, time.Minute)}, WithClock(clock.Now))
	require.NoError(t, err)

	sleeper := &recordingSleeper{}
	guard := NewGuard("test", staticGetter(ok200), limiters, WithSleep(sleeper.Sleep))

	for i := 0; i < 2; i++ {
		clock.At(float64(i))
		_, err := guard.Do(context.Background(), "u")
		require.NoError(t, err)
	}
	require.Empty(t, sleeper.waits)

	clock.At(2)
	_, err = guard.Do(context.Background(), "u")
	require.NoError(t, err)
	require.Equal(t, []time.Duration{58 * time.Second}, sleeper.waits)
}

func TestGuardPropagatesGetterError(t *testing.T) {
	clock := newFakeClock()
	limiters, err := BuildAll([]Spec{Requests(3, time.Minute), Bytes(100, time.Minute)}, WithClock(clock.Now))
	require.NoError(t, err)

	boom := errors.New("connection refused")
	fail := false
	get := func(ctx context.Context, url string) (fakeObservation, error) {
		if fail {
			return fakeObservation{}, boom
		}
		return fakeObservation{status: http.StatusOK, size: 10}, nil
	}

	sleeper := &recordingSleeper{}
	guard := NewGuard("test", get, limiters, WithSleep(sleeper.Sleep))

	_, err = guard.Do(context.Background(), "u")
	require.NoError(t, err)
	before := guard.Snapshot()

	fail = true
	clock.At(5)
	_, err = guard.Do(context.Background(), "u")
	require.ErrorIs(t, err, boom)
	require.Equal(t, before, guard.Snapshot())
	require.Empty(t, sleeper.waits)
}

func TestGuardReturnsErrorStatusesUntouched(t *testing.T) {
	clock := newFakeClock()
	limiters, err := BuildAll([]Spec{Errors(20, time.Minute)}, WithClock(clock.Now))
	require.NoError(t, err)

	failed := fakeObservation{status: http.StatusInternalServerError, size: 3}
	guard := NewGuard("test", staticGetter(failed), limiters, WithSleep(func(time.Duration) {}))

	resp, err := guard.Do(context.Background(), "u")
	require.NoError(t, err)
	require.Equal(t, failed, resp)
	require.Equal(t, 1.0, limiters[0].Total())
}

func TestGuardObserverAndLogger(t *testing.T) {
	clock := newFakeClock()
	limiters, err := BuildAll([]Spec{Requests(1, time.Minute)}, WithClock(clock.Now))
	require.NoError(t, err)

	var observed []time.Duration
	logger := &recordingLogger{}
	guard := NewGuard("sec", staticGetter(ok200), limiters,
		WithSleep(func(time.Duration) {}),
		WithLogger(logger),
		WithObserver(func(name string, wait time.Duration) {
			require.Equal(t, "sec", name)
			observed = append(observed, wait)
		}),
		WithTarget(func(req any) string { return req.(string) }),
	)

	_, err = guard.Do(context.Background(), "https://data.sec.gov")
	require.NoError(t, err)
	require.Equal(t, []time.Duration{time.Minute}, observed)
	require.Equal(t, []string{"Throttling requests"}, logger.messages)
}

func TestGuardOwnsLimiterSlice(t *testing.T) {
	limiters, err := BuildAll([]Spec{Requests(1, time.Minute)})
	require.NoError(t, err)

	guard := NewGuard("test", staticGetter(ok200), limiters)
	limiters[0] = nil

	require.Len(t, guard.Limiters(), 1)
	require.NotNil(t, guard.Limiters()[0])
	require.Equal(t, "test", guard.Name())
}
