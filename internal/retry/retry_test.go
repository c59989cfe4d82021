package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUnavailable = errors.New("connection refused")

// fast keeps waits short so tests do not sleep.
var fast = Policy{Attempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}

func TestPolicy_Normalized(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   Policy
		want Policy
	}{
		{
			name: "zero value uses defaults",
			want: Policy{
				Attempts:       DefaultAttempts,
				InitialBackoff: DefaultInitialBackoff,
				MaxBackoff:     DefaultMaxBackoff,
				Jitter:         DefaultJitter,
			},
		},
		{
			name: "max below initial is raised",
			in:   Policy{Attempts: 2, InitialBackoff: time.Second, MaxBackoff: time.Millisecond, Jitter: 0.5},
			want: Policy{Attempts: 2, InitialBackoff: time.Second, MaxBackoff: time.Second, Jitter: 0.5},
		},
		{
			name: "jitter capped at one",
			in:   Policy{Attempts: 1, InitialBackoff: time.Millisecond, MaxBackoff: time.Second, Jitter: 3},
			want: Policy{Attempts: 1, InitialBackoff: time.Millisecond, MaxBackoff: time.Second, Jitter: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.in.normalized())
		})
	}
}

func TestPolicy_Backoff(t *testing.T) {
	t.Parallel()

	p := Policy{InitialBackoff: 100 * time.Millisecond, MaxBackoff: time.Second, Jitter: 0.5}

	assert.Equal(t, 100*time.Millisecond, p.Backoff(1, 0))
	assert.Equal(t, 200*time.Millisecond, p.Backoff(2, 0))
	assert.Equal(t, 400*time.Millisecond, p.Backoff(3, 0))
	assert.Equal(t, 600*time.Millisecond, p.Backoff(3, 1), "jitter adds up to half")
	assert.Equal(t, time.Second, p.Backoff(5, 0), "capped")
	assert.Equal(t, 100*time.Millisecond, p.Backoff(0, 0), "attempt below one treated as first retry")
}

func TestDatabaseAndRedisPolicies(t *testing.T) {
	t.Parallel()

	for name, p := range map[string]Policy{
		"database.connect": DatabaseConnect,
		"redis.connect":    RedisConnect,
		"redis.command":    RedisCommand,
	} {
		n := p.normalized()
		assert.Greater(t, n.Attempts, 1, name)
		assert.LessOrEqual(t, n.Backoff(n.Attempts, 1), n.MaxBackoff, name)
	}
	assert.Less(t, RedisCommand.MaxBackoff, DatabaseConnect.MaxBackoff)
}

func TestDo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		failures  int
		wantCalls int
		wantErr   bool
	}{
		{name: "first attempt succeeds", failures: 0, wantCalls: 1},
		{name: "succeeds after retries", failures: 2, wantCalls: 3},
		{name: "policy exhausted", failures: 5, wantCalls: 3, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			calls := 0
			err := Do(context.Background(), "", fast, func(context.Context) error {
				calls++
				if calls <= tt.failures {
					return errUnavailable
				}
				return nil
			})

			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr {
				assert.ErrorIs(t, err, errUnavailable)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDo_PassesContext(t *testing.T) {
	t.Parallel()

	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "tenant-a")

	err := Do(ctx, "", fast, func(ctx context.Context) error {
		assert.Equal(t, "tenant-a", ctx.Value(key{}))
		return nil
	})
	require.NoError(t, err)
}

func TestDo_Permanent(t *testing.T) {
	t.Parallel()

	errSchema := errors.New("relation does not exist")
	calls := 0
	err := Do(context.Background(), "", fast, func(context.Context) error {
		calls++
		return Permanent(errSchema)
	})

	assert.Equal(t, 1, calls)
	assert.Same(t, errSchema, err)
	assert.Nil(t, Permanent(nil))
}

func TestDo_WithRetryIf(t *testing.T) {
	t.Parallel()

	errMiss := errors.New("miss")
	calls := 0
	err := Do(context.Background(), "", fast, func(context.Context) error {
		calls++
		if calls == 1 {
			return errUnavailable
		}
		return errMiss
	}, WithRetryIf(func(err error) bool { return !errors.Is(err, errMiss) }))

	assert.Equal(t, 2, calls)
	assert.ErrorIs(t, err, errMiss)
}

func TestDo_WithOnRetry(t *testing.T) {
	t.Parallel()

	type retryCall struct {
		attempt int
		wait    time.Duration
	}
	var seen []retryCall

	p := Policy{Attempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 10 * time.Millisecond, Jitter: 0.5}
	err := Do(context.Background(), "", p, func(context.Context) error {
		return errUnavailable
	},
		WithRandom(func() float64 { return 0 }),
		WithOnRetry(func(attempt int, err error, wait time.Duration) {
			assert.ErrorIs(t, err, errUnavailable)
			seen = append(seen, retryCall{attempt: attempt, wait: wait})
		}),
	)

	require.Error(t, err)
	assert.Equal(t, []retryCall{
		{attempt: 2, wait: time.Millisecond},
		{attempt: 3, wait: 2 * time.Millisecond},
	}, seen)
}

func TestDo_ContextCanceledBeforeFirstAttempt(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := Do(ctx, "", fast, func(context.Context) error {
		called = true
		return nil
	})

	assert.False(t, called)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDo_ContextDoneDuringBackoff(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	slow := Policy{Attempts: 10, InitialBackoff: time.Second, MaxBackoff: time.Second}
	start := time.Now()
	err := Do(ctx, "", slow, func(context.Context) error { return errUnavailable })

	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, err, errUnavailable)
}
