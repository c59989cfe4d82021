package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// Policy describes how an operation is retried. Zero fields fall back to
// the package defaults.
type Policy struct {
	// Attempts is the total number of calls, the first one included.
	Attempts       int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// Jitter adds up to this fraction of the backoff at random, 0 to 1.
	Jitter float64
}

// Policy defaults.
const (
	DefaultAttempts       = 4
	DefaultInitialBackoff = 100 * time.Millisecond
	DefaultMaxBackoff     = 30 * time.Second
	DefaultJitter         = 0.25
)

// Policies for the service's dependencies.
var (
	DatabaseConnect = Policy{Attempts: 6, InitialBackoff: 200 * time.Millisecond, MaxBackoff: 5 * time.Second}
	RedisConnect    = Policy{Attempts: 3, InitialBackoff: 50 * time.Millisecond, MaxBackoff: 500 * time.Millisecond}
	// RedisCommand keeps cache reads and writes within request latency.
	RedisCommand = Policy{Attempts: 2, InitialBackoff: 20 * time.Millisecond, MaxBackoff: 100 * time.Millisecond}
)

func (p Policy) normalized() Policy {
	if p.Attempts <= 0 {
		p.Attempts = DefaultAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = DefaultInitialBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = DefaultMaxBackoff
	}
	if p.MaxBackoff < p.InitialBackoff {
		p.MaxBackoff = p.InitialBackoff
	}
	switch {
	case p.Jitter <= 0:
		p.Jitter = DefaultJitter
	case p.Jitter > 1:
		p.Jitter = 1
	}
	return p
}

// Backoff returns the wait before retry number n (1 for the first retry).
// r is a random value in [0, 1) that scales the jitter.
func (p Policy) Backoff(n int, r float64) time.Duration {
	p = p.normalized()
	if n < 1 {
		n = 1
	}
	wait := float64(p.InitialBackoff) * math.Pow(2, float64(n-1))
	wait += wait * p.Jitter * r
	if wait > float64(p.MaxBackoff) {
		return p.MaxBackoff
	}
	return time.Duration(wait)
}

// Option adjusts a single Do call.
type Option func(*settings)

type settings struct {
	retryIf func(error) bool
	onRetry func(attempt int, err error, wait time.Duration)
	random  func() float64
}

// WithRetryIf limits retries to errors accepted by fn.
func WithRetryIf(fn func(error) bool) Option {
	return func(s *settings) { s.retryIf = fn }
}

// WithOnRetry calls fn before every wait. attempt is the number of the
// attempt that is about to run.
func WithOnRetry(fn func(attempt int, err error, wait time.Duration)) Option {
	return func(s *settings) { s.onRetry = fn }
}

// WithRandom replaces the jitter source.
func WithRandom(fn func() float64) Option {
	return func(s *settings) { s.random = fn }
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. Do returns the wrapped error.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do calls fn until it succeeds, the policy is exhausted, fn returns a
// Permanent error or ctx is done. operation labels the retry metrics;
// calls that succeed on the first attempt are not recorded.
func Do(ctx context.Context, operation string, p Policy, fn func(context.Context) error, opts ...Option) error {
	p = p.normalized()
	s := settings{random: rand.Float64}
	for _, opt := range opts {
		opt(&s)
	}

	start := time.Now()
	var err error
	for attempt := 1; ; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return finish(operation, attempt-1, start, orContext(err, ctxErr))
		}

		err = fn(ctx)
		if err == nil {
			return finish(operation, attempt, start, nil)
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return finish(operation, attempt, start, perm.err)
		}
		if s.retryIf != nil && !s.retryIf(err) {
			return finish(operation, attempt, start, err)
		}
		if attempt >= p.Attempts {
			return finish(operation, attempt, start, err)
		}

		wait := p.Backoff(attempt, s.random())
		if s.onRetry != nil {
			s.onRetry(attempt+1, err, wait)
		}
		if operation != "" {
			GetMetrics().RecordAttempt(operation, wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return finish(operation, attempt, start, orContext(err, ctx.Err()))
		case <-timer.C:
		}
	}
}

// orContext joins the last operation error with the context error so
// callers can test for either.
func orContext(last, ctxErr error) error {
	if last == nil {
		return ctxErr
	}
	return errors.Join(ctxErr, last)
}

func finish(operation string, attempts int, start time.Time, err error) error {
	if operation != "" && attempts > 1 {
		GetMetrics().RecordOutcome(operation, err == nil, time.Since(start))
	}
	return err
}
