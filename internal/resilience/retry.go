package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// RetryConfig configures exponential backoff between attempts of an idempotent call.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt. 0 disables retrying.
	MaxRetries      int           `mapstructure:"max_retries"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	// JitterFactor adds up to ±JitterFactor of the interval, 0.1 means ±10%.
	JitterFactor float64 `mapstructure:"jitter_factor"`
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      2,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     time.Second,
		Multiplier:      2.0,
		JitterFactor:    0.1,
	}
}

// PermanentError marks an error that must not be retried.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

type Operation func(ctx context.Context) error

// RetryCallback is called before waiting for the next attempt.
type RetryCallback func(attempt int, err error, next time.Duration)

type Retrier struct {
	cfg RetryConfig
}

func NewRetrier(cfg RetryConfig) *Retrier {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = time.Second
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 2.0
	}
	if cfg.JitterFactor < 0 {
		cfg.JitterFactor = 0
	}
	if cfg.JitterFactor > 1 {
		cfg.JitterFactor = 1
	}
	return &Retrier{cfg: cfg}
}

// Do runs op until it succeeds, returns a permanent error, or the retries are used up.
// The returned error is the last one op produced, with any Permanent wrapper removed.
func (r *Retrier) Do(ctx context.Context, op Operation, callback RetryCallback) error {
	var lastErr error
	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		err := op(ctx)
		if err == nil {
			return nil
		}

		var perm *PermanentError
		if errors.As(err, &perm) {
			return perm.Err
		}
		lastErr = err

		if attempt == r.cfg.MaxRetries {
			break
		}

		interval := r.interval(attempt)
		if callback != nil {
			callback(attempt+1, err, interval)
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}
	}
	return lastErr
}

func (r *Retrier) interval(attempt int) time.Duration {
	interval := float64(r.cfg.InitialInterval) * math.Pow(r.cfg.Multiplier, float64(attempt))

	if r.cfg.JitterFactor > 0 {
		jitter := interval * r.cfg.JitterFactor
		interval += (rand.Float64()*2 - 1) * jitter
	}
	if interval > float64(r.cfg.MaxInterval) {
		interval = float64(r.cfg.MaxInterval)
	}
	if interval < 0 {
		interval = float64(r.cfg.InitialInterval)
	}
	return time.Duration(interval)
}
