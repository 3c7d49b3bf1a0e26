package backoff

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// Defaults match the catalog API retry schedule: 1s, 2s, 4s, ... capped at 20s,
// plus up to 500ms of jitter per attempt.
const (
	DefaultInitial   = 1 * time.Second
	DefaultMax       = 20 * time.Second
	DefaultMaxJitter = 500 * time.Millisecond
)

// Config describes a retry schedule. MaxAttempts of 0 retries until the
// operation succeeds or the context is cancelled.
type Config struct {
	Initial     time.Duration
	Max         time.Duration
	MaxJitter   time.Duration
	MaxAttempts int
}

// DefaultConfig returns the unbounded schedule used by the catalog fetcher.
func DefaultConfig() Config {
	return Config{
		Initial:   DefaultInitial,
		Max:       DefaultMax,
		MaxJitter: DefaultMaxJitter,
	}
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// RetryHook is called before each wait with the attempt that just failed.
type RetryHook func(attempt int, delay time.Duration, err error)

// Policy holds the state of one retried operation. A Policy is not safe for
// concurrent use; create one per operation.
type Policy struct {
	cfg     Config
	attempt int
	next    time.Duration

	jitter  func(max time.Duration) time.Duration
	sleep   SleepFunc
	onRetry RetryHook
}

type Option func(*Policy)

// WithSleep replaces the cancellable timer used between attempts.
func WithSleep(fn SleepFunc) Option {
	return func(p *Policy) { p.sleep = fn }
}

// WithJitter replaces the random jitter source.
func WithJitter(fn func(max time.Duration) time.Duration) Option {
	return func(p *Policy) { p.jitter = fn }
}

// OnRetry registers a hook invoked after every failed attempt that will be retried.
func OnRetry(fn RetryHook) Option {
	return func(p *Policy) { p.onRetry = fn }
}

// New creates a policy. Zero durations in cfg fall back to the defaults.
func New(cfg Config, opts ...Option) *Policy {
	if cfg.Initial <= 0 {
		cfg.Initial = DefaultInitial
	}
	if cfg.Max <= 0 {
		cfg.Max = DefaultMax
	}
	if cfg.MaxJitter < 0 {
		cfg.MaxJitter = 0
	}

	p := &Policy{
		cfg:    cfg,
		next:   cfg.Initial,
		jitter: randomJitter,
		sleep:  Sleep,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Attempts returns how many times the operation has failed so far.
func (p *Policy) Attempts() int {
	return p.attempt
}

// NextDelay records a failed attempt and returns how long to wait before the
// next one. The base delay doubles each call and never exceeds cfg.Max.
func (p *Policy) NextDelay() time.Duration {
	base := p.next
	p.attempt++

	p.next *= 2
	if p.next > p.cfg.Max || p.next <= 0 {
		p.next = p.cfg.Max
	}

	var j time.Duration
	if p.cfg.MaxJitter > 0 {
		j = p.jitter(p.cfg.MaxJitter)
	}
	return base + j
}

// Reset returns the policy to its initial state.
func (p *Policy) Reset() {
	p.attempt = 0
	p.next = p.cfg.Initial
}

// Retry runs op until it succeeds, the context ends, or MaxAttempts failures
// have been seen. Every error returned by op is treated as retryable.
func Retry[T any](ctx context.Context, p *Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	for {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		v, err := op(ctx)
		if err == nil {
			return v, nil
		}

		delay := p.NextDelay()
		if p.cfg.MaxAttempts > 0 && p.attempt >= p.cfg.MaxAttempts {
			return zero, fmt.Errorf("giving up after %d attempts: %w", p.attempt, err)
		}
		if p.onRetry != nil {
			p.onRetry(p.attempt, delay, err)
		}

		if serr := p.sleep(ctx, delay); serr != nil {
			return zero, fmt.Errorf("retry interrupted after %d attempts: %w (last error: %w)", p.attempt, serr, err)
		}
	}
}

// Sleep blocks for d unless ctx is cancelled first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Jitter returns a random duration in [0, max].
func Jitter(max time.Duration) time.Duration {
	return randomJitter(max)
}

func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(max) + 1))
}
