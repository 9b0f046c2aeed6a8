package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roombooker/internal/apperr"
)

var errRefused = errors.New("dial tcp: connection refused")

func testConfig() Config {
	return Config{
		Timeout: 50 * time.Millisecond,
		Retry: RetryConfig{
			MaxRetries:      2,
			InitialInterval: time.Millisecond,
			MaxInterval:     2 * time.Millisecond,
			Multiplier:      2,
		},
		Breaker: BreakerConfig{
			MaxRequests:         1,
			OpenTimeout:         time.Minute,
			ConsecutiveFailures: 3,
		},
	}
}

func TestQuery_Success(t *testing.T) {
	p := NewPolicy("room", testConfig(), nil)

	got, err := Query(context.Background(), p, "capacity", func(context.Context) (int, error) {
		return 120, nil
	}, Value(0))

	require.NoError(t, err)
	assert.Equal(t, 120, got)
	assert.Zero(t, p.Fallbacks())
}

func TestQuery_RetriesThenFallsBack(t *testing.T) {
	p := NewPolicy("user", testConfig(), nil)
	var calls atomic.Int32

	got, err := Query(context.Background(), p, "role", func(context.Context) (string, error) {
		calls.Add(1)
		return "", errRefused
	}, Value("UNKNOWN"))

	require.NoError(t, err)
	assert.Equal(t, "UNKNOWN", got)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, int64(1), p.Fallbacks())
}

func TestQuery_RecoversOnRetry(t *testing.T) {
	p := NewPolicy("user", testConfig(), nil)
	var calls atomic.Int32

	got, err := Query(context.Background(), p, "role", func(context.Context) (string, error) {
		if calls.Add(1) == 1 {
			return "", errRefused
		}
		return "ADMIN", nil
	}, Value("UNKNOWN"))

	require.NoError(t, err)
	assert.Equal(t, "ADMIN", got)
	assert.Zero(t, p.Fallbacks())
}

func TestQuery_OpenBreakerSkipsCalls(t *testing.T) {
	p := NewPolicy("user", testConfig(), nil)
	var calls atomic.Int32
	call := func(context.Context) (string, error) {
		calls.Add(1)
		return "", errRefused
	}

	for i := 0; i < 3; i++ {
		got, err := Query(context.Background(), p, "role", call, Value("UNKNOWN"))
		require.NoError(t, err)
		assert.Equal(t, "UNKNOWN", got)
	}
	require.Equal(t, gobreaker.StateOpen, p.State())
	attemptsBeforeOpen := calls.Load()

	for i := 0; i < 5; i++ {
		got, err := Query(context.Background(), p, "role", call, Value("UNKNOWN"))
		require.NoError(t, err)
		assert.Equal(t, "UNKNOWN", got)
	}
	assert.Equal(t, attemptsBeforeOpen, calls.Load(), "no call may reach the dependency while open")
	assert.Equal(t, int64(8), p.Fallbacks())
}

func TestQuery_BusinessAnswerPropagates(t *testing.T) {
	p := NewPolicy("user", testConfig(), nil)
	var calls atomic.Int32

	for i := 0; i < 10; i++ {
		_, err := Query(context.Background(), p, "role", func(context.Context) (string, error) {
			calls.Add(1)
			return "", apperr.NotFound("user not found")
		}, Value("UNKNOWN"))
		require.Error(t, err)
		assert.True(t, apperr.IsNotFound(err))
	}

	assert.Equal(t, int32(10), calls.Load(), "not-found answers are never retried")
	assert.Zero(t, p.Fallbacks())
	assert.Equal(t, gobreaker.StateClosed, p.State())
}

func TestQuery_TimeoutFallsBack(t *testing.T) {
	cfg := testConfig()
	cfg.Timeout = 20 * time.Millisecond
	cfg.Retry.MaxRetries = 0
	p := NewPolicy("room", cfg, nil)

	start := time.Now()
	got, err := Query(context.Background(), p, "exists", func(ctx context.Context) (bool, error) {
		<-ctx.Done()
		return false, ctx.Err()
	}, Value(false))

	require.NoError(t, err)
	assert.False(t, got)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, int64(1), p.Fallbacks())
}

func TestQuery_NoFallbackReturnsUpstream(t *testing.T) {
	p := NewPolicy("event", testConfig(), nil)

	_, err := Query(context.Background(), p, "exists", func(context.Context) (bool, error) {
		return false, errRefused
	}, nil)

	require.Error(t, err)
	assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))
	assert.ErrorIs(t, err, errRefused)
	assert.Zero(t, p.Fallbacks())
}

func TestCommand_NotRetried(t *testing.T) {
	p := NewPolicy("booking", testConfig(), nil)
	var calls atomic.Int32

	_, err := Command(context.Background(), p, "create", func(context.Context) (int64, error) {
		calls.Add(1)
		return 0, errRefused
	})

	require.Error(t, err)
	assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestCommand_BusinessAnswerKeepsStatus(t *testing.T) {
	p := NewPolicy("booking", testConfig(), nil)

	_, err := Command(context.Background(), p, "create", func(context.Context) (int64, error) {
		return 0, apperr.Conflict("Room is under maintenance")
	})

	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Equal(t, "Room is under maintenance", apperr.Message(err))
}

func TestRegistry_PolicyPerDependency(t *testing.T) {
	r := NewRegistry(testConfig(), nil)

	assert.Same(t, r.Policy("user"), r.Policy("user"))
	assert.NotSame(t, r.Policy("user"), r.Policy("room"))
	assert.Equal(t, "room", r.Policy("room").Dependency())
}

func TestRetrier_StopsOnPermanent(t *testing.T) {
	r := NewRetrier(RetryConfig{MaxRetries: 5, InitialInterval: time.Millisecond})
	var calls int

	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		return Permanent(errRefused)
	}, nil)

	assert.ErrorIs(t, err, errRefused)
	assert.Equal(t, 1, calls)
}

func TestRetrier_IntervalCapped(t *testing.T) {
	r := NewRetrier(RetryConfig{InitialInterval: 10 * time.Millisecond, MaxInterval: 30 * time.Millisecond, Multiplier: 2})

	assert.Equal(t, 10*time.Millisecond, r.interval(0))
	assert.Equal(t, 20*time.Millisecond, r.interval(1))
	assert.Equal(t, 30*time.Millisecond, r.interval(5))
}
