// Package resilience wraps outbound calls in a per-dependency policy:
// per-attempt timeout, retry for idempotent reads, circuit breaker and an explicit fallback.
package resilience

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"roombooker/internal/apperr"
)

type BreakerConfig struct {
	// MaxRequests is the number of probes let through while half-open.
	MaxRequests uint32 `mapstructure:"max_requests"`
	// Interval clears the closed-state counts periodically. 0 never clears them.
	Interval time.Duration `mapstructure:"interval"`
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout         time.Duration `mapstructure:"open_timeout"`
	ConsecutiveFailures uint32        `mapstructure:"consecutive_failures"`
	// FailureRatio trips the breaker once at least MinRequests were counted. 0 disables it.
	FailureRatio float64 `mapstructure:"failure_ratio"`
	MinRequests  uint32  `mapstructure:"min_requests"`
}

type Config struct {
	Timeout time.Duration `mapstructure:"timeout"`
	Retry   RetryConfig   `mapstructure:"retry"`
	Breaker BreakerConfig `mapstructure:"breaker"`
}

func DefaultConfig() Config {
	return Config{
		Timeout: 3 * time.Second,
		Retry:   DefaultRetryConfig(),
		Breaker: BreakerConfig{
			MaxRequests:         1,
			Interval:            time.Minute,
			OpenTimeout:         10 * time.Second,
			ConsecutiveFailures: 5,
			FailureRatio:        0.5,
			MinRequests:         10,
		},
	}
}

// Registry hands out one Policy per dependency name.
type Registry struct {
	cfg      Config
	log      *zerolog.Logger
	counter  metric.Int64Counter
	mu       sync.Mutex
	policies map[string]*Policy
}

func NewRegistry(cfg Config, log *zerolog.Logger) *Registry {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	counter, err := otel.Meter("roombooker/resilience").Int64Counter(
		"resilience_fallbacks_total",
		metric.WithDescription("Outbound calls answered by a fallback value instead of the dependency"),
	)
	if err != nil {
		log.Warn().Err(err).Msg("failed to create fallback counter")
	}
	return &Registry{
		cfg:      cfg,
		log:      log,
		counter:  counter,
		policies: make(map[string]*Policy),
	}
}

func (r *Registry) Policy(dependency string) *Policy {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.policies[dependency]; ok {
		return p
	}
	p := newPolicy(dependency, r.cfg, r.log, r.counter)
	r.policies[dependency] = p
	return p
}

type Policy struct {
	dependency string
	timeout    time.Duration
	retrier    *Retrier
	breaker    *gobreaker.CircuitBreaker
	log        *zerolog.Logger
	counter    metric.Int64Counter
	fallbacks  atomic.Int64
}

// NewPolicy builds a standalone policy, mostly useful in tests.
func NewPolicy(dependency string, cfg Config, log *zerolog.Logger) *Policy {
	return NewRegistry(cfg, log).Policy(dependency)
}

func newPolicy(dependency string, cfg Config, log *zerolog.Logger, counter metric.Int64Counter) *Policy {
	p := &Policy{
		dependency: dependency,
		timeout:    cfg.Timeout,
		retrier:    NewRetrier(cfg.Retry),
		log:        log,
		counter:    counter,
	}
	bc := cfg.Breaker
	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        dependency,
		MaxRequests: bc.MaxRequests,
		Interval:    bc.Interval,
		Timeout:     bc.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			if bc.ConsecutiveFailures > 0 && c.ConsecutiveFailures >= bc.ConsecutiveFailures {
				return true
			}
			if bc.FailureRatio > 0 && c.Requests >= bc.MinRequests && c.Requests > 0 {
				return float64(c.TotalFailures)/float64(c.Requests) >= bc.FailureRatio
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("dependency", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
		IsSuccessful: func(err error) bool {
			return err == nil || IsBusiness(err)
		},
	})
	return p
}

func (p *Policy) Dependency() string { return p.dependency }

// Fallbacks is the number of calls this policy answered with a fallback value.
func (p *Policy) Fallbacks() int64 { return p.fallbacks.Load() }

func (p *Policy) State() gobreaker.State { return p.breaker.State() }

// IsBusiness reports whether err is an answer of the dependency (a 4xx) rather than a failure
// to reach it. Business answers are never retried, never trip the breaker, never fall back.
func IsBusiness(err error) bool {
	var e *apperr.Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Kind {
	case apperr.KindUpstream, apperr.KindInternal, apperr.KindInconsistent:
		return false
	default:
		return true
	}
}

// Fallback computes the substitute value from the failure that triggered it.
type Fallback[T any] func(cause error) T

// Value is a Fallback that always substitutes v.
func Value[T any](v T) Fallback[T] {
	return func(error) T { return v }
}

// Query runs an idempotent read. Transport failures are retried, and once retries are exhausted
// or the breaker is open the fallback answers. With a nil fallback the failure is returned as
// an upstream error instead.
func Query[T any](ctx context.Context, p *Policy, op string, call func(context.Context) (T, error), fallback Fallback[T]) (T, error) {
	return execute(ctx, p, op, call, fallback, true)
}

// Command runs a state-changing call. It is attempted once and never substituted.
func Command[T any](ctx context.Context, p *Policy, op string, call func(context.Context) (T, error)) (T, error) {
	return execute(ctx, p, op, call, nil, false)
}

func execute[T any](ctx context.Context, p *Policy, op string, call func(context.Context) (T, error), fallback Fallback[T], retry bool) (T, error) {
	var zero T

	out, err := p.breaker.Execute(func() (interface{}, error) {
		var result T
		attempt := func(ctx context.Context) error {
			actx, cancel := p.attemptContext(ctx)
			defer cancel()
			v, err := call(actx)
			if err != nil {
				if IsBusiness(err) {
					return Permanent(err)
				}
				return err
			}
			result = v
			return nil
		}

		if !retry {
			err := unwrapPermanent(attempt(ctx))
			return result, err
		}
		err := p.retrier.Do(ctx, attempt, func(n int, err error, next time.Duration) {
			p.log.Debug().
				Err(err).
				Str("dependency", p.dependency).
				Str("operation", op).
				Int("attempt", n).
				Dur("backoff", next).
				Msg("retrying call")
		})
		return result, err
	})
	if err == nil {
		v, _ := out.(T)
		return v, nil
	}
	if IsBusiness(err) {
		return zero, err
	}

	if fallback == nil {
		p.log.Warn().
			Err(err).
			Str("dependency", p.dependency).
			Str("operation", op).
			Bool("fallback", false).
			Msg("call failed")
		if apperr.Is(err, apperr.KindUpstream) {
			return zero, err
		}
		return zero, apperr.Upstream(p.dependency+" service unavailable", err)
	}

	v := fallback(err)
	p.fallbacks.Add(1)
	if p.counter != nil {
		p.counter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("dependency", p.dependency),
			attribute.String("operation", op),
		))
	}
	p.log.Warn().
		Err(err).
		Str("dependency", p.dependency).
		Str("operation", op).
		Bool("fallback", true).
		Bool("breaker_open", isOpen(err)).
		Interface("value", v).
		Msg("call answered by fallback")
	return v, nil
}

func (p *Policy) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.timeout)
}

func unwrapPermanent(err error) error {
	var perm *PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}

func isOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
