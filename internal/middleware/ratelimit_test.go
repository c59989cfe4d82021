package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/vyrodovalexey/ordcatalog/internal/config"
	"github.com/vyrodovalexey/ordcatalog/internal/observability"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestNewRateLimiter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		rps       int
		burst     int
		perClient bool
	}{
		{name: "global rate limiter", rps: 100, burst: 10},
		{name: "per-client rate limiter", rps: 50, burst: 5, perClient: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rl := NewRateLimiter(tt.rps, tt.burst, tt.perClient)

			assert.Equal(t, limits{enabled: true, rps: tt.rps, burst: tt.burst, perClient: tt.perClient}, rl.current())
			assert.Equal(t, DefaultClientTTL, rl.idleTTL)
		})
	}
}

func TestRateLimiter_Allow_Global(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(2, 2, false)

	assert.True(t, rl.Allow("192.168.1.1"))
	assert.True(t, rl.Allow("192.168.1.2"))
	assert.False(t, rl.Allow("192.168.1.3"))
}

func TestRateLimiter_Allow_PerClient(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(1, 1, true)

	assert.True(t, rl.Allow("192.168.1.1"))
	assert.False(t, rl.Allow("192.168.1.1"))
	assert.True(t, rl.Allow("192.168.1.2"))
	assert.Equal(t, 2, rl.clientCount())
}

func TestRateLimiter_Update(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(1, 1, true)
	require.True(t, rl.Allow("a"))
	require.False(t, rl.Allow("a"))

	rl.Update(1, 5, false)

	assert.Equal(t, 5, rl.current().burst)
	assert.False(t, rl.current().perClient)
	assert.Zero(t, rl.clientCount())
	assert.Equal(t, 5, rl.shared.Burst())
}

func TestRateLimiter_Apply(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(1, 1, false)
	t.Cleanup(rl.Stop)

	rl.Apply(&config.RateLimitConfig{Enabled: false})
	assert.False(t, rl.Enabled())
	for range 5 {
		assert.True(t, rl.Allow("a"))
	}

	rl.Apply(&config.RateLimitConfig{Enabled: true, RequestsPerSecond: 1, Burst: 1, PerClient: true})
	assert.True(t, rl.Enabled())
	assert.True(t, rl.current().perClient)
	assert.True(t, rl.Allow("b"))
	assert.False(t, rl.Allow("b"))

	rl.Apply(nil)
	assert.False(t, rl.Enabled())
	assert.True(t, rl.Allow("b"))
}

func TestRateLimit_Middleware(t *testing.T) {
	t.Parallel()

	metrics := observability.NewMetrics("test")
	rl := NewRateLimiter(1, 1, false, WithRateLimiterMetrics(metrics))
	handler := RateLimit(rl)(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/packages", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/packages", nil))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get(HeaderRetryAfter))
	assert.Equal(t, ContentTypeODataJSON, rec.Header().Get(HeaderContentType))
	assert.Equal(t, "429", gjson.Get(rec.Body.String(), "error.code").String())
	assert.Equal(t, MsgRateLimitExceeded, gjson.Get(rec.Body.String(), "error.message").String())
	assert.Equal(t, float64(1), counterValue(t, metrics.Registry(), "test_rate_limit_hits_total", "scope", "global"))
}

func TestRateLimiter_Take(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(1, 1, false)

	wait, ok := rl.take("a")
	assert.True(t, ok)
	assert.Zero(t, wait)

	wait, ok = rl.take("a")
	assert.False(t, ok)
	assert.Greater(t, wait, time.Duration(0))
	assert.LessOrEqual(t, wait, time.Second)

	// A rejected request does not consume the next token.
	_, ok = rl.take("a")
	assert.False(t, ok)
	assert.InDelta(t, 0, rl.shared.Tokens(), 0.5)
}

func TestRateLimiter_TakeWithoutBurst(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(10, 0, false)
	wait, ok := rl.take("a")
	assert.False(t, ok)
	assert.Equal(t, time.Second, wait)
}

func TestRetryAfterSeconds(t *testing.T) {
	t.Parallel()

	for wait, want := range map[time.Duration]string{
		0:                       "1",
		300 * time.Millisecond:  "1",
		time.Second:             "1",
		1500 * time.Millisecond: "2",
		10 * time.Second:        "10",
	} {
		assert.Equal(t, want, retryAfterSeconds(wait), wait.String())
	}
}

func TestRateLimit_PerClientScope(t *testing.T) {
	t.Parallel()

	metrics := observability.NewMetrics("test")
	rl := NewRateLimiter(1, 1, true, WithRateLimiterMetrics(metrics))
	handler := RateLimit(rl)(okHandler())

	for range 2 {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	}

	assert.Equal(t, float64(1), counterValue(t, metrics.Registry(), "test_rate_limit_hits_total", "scope", "client"))
}

func TestRateLimitFromConfig(t *testing.T) {
	t.Parallel()

	t.Run("nil config lets everything through", func(t *testing.T) {
		t.Parallel()

		mw, rl := RateLimitFromConfig(nil, observability.NopLogger())
		t.Cleanup(rl.Stop)
		require.NotNil(t, rl)
		assert.False(t, rl.Enabled())

		handler := mw(okHandler())
		for range 10 {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			assert.Equal(t, http.StatusOK, rec.Code)
		}
	})

	t.Run("enabled config limits", func(t *testing.T) {
		t.Parallel()

		mw, rl := RateLimitFromConfig(&config.RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 1,
			Burst:             1,
		}, observability.NopLogger())
		t.Cleanup(rl.Stop)

		handler := mw(okHandler())
		codes := make([]int, 0, 2)
		for range 2 {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			codes = append(codes, rec.Code)
		}
		assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
	})
}

func TestRateLimiter_CleanupOldClients(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(10, 10, true)
	rl.Allow("a")
	rl.Allow("b")

	rl.mu.Lock()
	rl.clients["a"].seen = time.Now().Add(-time.Hour)
	rl.mu.Unlock()

	rl.CleanupOldClients(time.Minute)

	assert.Equal(t, 1, rl.clientCount())
}

func TestRateLimiter_StopIdempotent(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(10, 10, true, WithClientTTL(time.Second))
	rl.StartAutoCleanup()
	rl.StartAutoCleanup()

	assert.NotPanics(t, func() {
		rl.Stop()
		rl.Stop()
	})

	// Starting after stop is a no-op.
	rl.StartAutoCleanup()
}

func TestRateLimiter_Concurrent(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(1000, 1000, true)
	t.Cleanup(rl.Stop)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for range 10 {
				rl.Allow(string(rune('a' + i)))
			}
			if i%5 == 0 {
				rl.Update(1000, 1000, true)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, rl.clientCount())
}
