package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/vyrodovalexey/ordcatalog/internal/config"
	"github.com/vyrodovalexey/ordcatalog/internal/observability"
)

func TestNewCircuitBreaker(t *testing.T) {
	t.Parallel()

	cb := NewCircuitBreaker("test", 5, 30*time.Second)

	require.NotNil(t, cb)
	assert.Equal(t, "test", cb.name)
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestCircuitBreaker_Execute(t *testing.T) {
	t.Parallel()

	cb := NewCircuitBreaker("execute", 2, time.Minute)

	result, err := cb.Execute(func() (interface{}, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", result)

	errBoom := errors.New("boom")
	_, err = cb.Execute(func() (interface{}, error) { return nil, errBoom })
	assert.ErrorIs(t, err, errBoom)
}

func TestCircuitBreakerMiddleware_OpensOnServerErrors(t *testing.T) {
	t.Parallel()

	var (
		mu     sync.Mutex
		states []int
	)
	cb := NewCircuitBreaker("opens", 2, time.Minute,
		WithCircuitBreakerLogger(observability.NopLogger()),
		WithCircuitBreakerStateCallback(func(name string, state int) {
			mu.Lock()
			states = append(states, state)
			mu.Unlock()
		}),
	)

	calls := 0
	handler := CircuitBreakerMiddleware(cb)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))

	for range 2 {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/packages", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	}
	assert.Equal(t, gobreaker.StateOpen, cb.State())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/packages", nil))

	assert.Equal(t, 2, calls)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "60", rec.Header().Get(HeaderRetryAfter))
	assert.Equal(t, ContentTypeODataJSON, rec.Header().Get(HeaderContentType))
	assert.Equal(t, "503", gjson.Get(rec.Body.String(), "error.code").String())
	assert.Equal(t, MsgServiceUnavailable, gjson.Get(rec.Body.String(), "error.message").String())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{int(gobreaker.StateOpen)}, states)
}

func TestCircuitBreakerMiddleware_ClientErrorsDoNotTrip(t *testing.T) {
	t.Parallel()

	cb := NewCircuitBreaker("client-errors", 2, time.Minute)
	handler := CircuitBreakerMiddleware(cb)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	for range 5 {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	}
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestCircuitBreakerFromConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  *config.CircuitBreakerConfig
	}{
		{name: "nil config", cfg: nil},
		{name: "disabled", cfg: &config.CircuitBreakerConfig{Enabled: false, Threshold: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			calls := 0
			handler := CircuitBreakerFromConfig(tt.cfg, observability.NopLogger())(
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					calls++
					w.WriteHeader(http.StatusInternalServerError)
				}),
			)

			for range 5 {
				handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
			}
			assert.Equal(t, 5, calls)
		})
	}

	t.Run("enabled", func(t *testing.T) {
		t.Parallel()

		handler := CircuitBreakerFromConfig(&config.CircuitBreakerConfig{
			Enabled:   true,
			Threshold: 1,
			Timeout:   config.Duration(time.Minute),
		}, observability.NopLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))

		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestClampUint32(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint32(0), clampUint32(-1))
	assert.Equal(t, uint32(7), clampUint32(7))
	assert.Equal(t, ^uint32(0), clampUint32(int(^uint32(0))+1))
}

func TestTripAfter(t *testing.T) {
	t.Parallel()

	trip := tripAfter(4)
	assert.False(t, trip(gobreaker.Counts{}))
	assert.False(t, trip(gobreaker.Counts{Requests: 3, TotalFailures: 3}), "below threshold")
	assert.False(t, trip(gobreaker.Counts{Requests: 4, TotalFailures: 1}))
	assert.True(t, trip(gobreaker.Counts{Requests: 4, TotalFailures: 2}))
	assert.True(t, tripAfter(0)(gobreaker.Counts{Requests: 1, TotalFailures: 1}))
}

func TestCircuitBreaker_RetryAfter(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "30", NewCircuitBreaker("a", 1, 30*time.Second).retryAfter())
	assert.Equal(t, "1", NewCircuitBreaker("b", 1, 200*time.Millisecond).retryAfter())
}
