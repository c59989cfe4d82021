package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/vyrodovalexey/ordcatalog/internal/observability"
)

// maxRequestIDLen caps incoming ids that are reused.
const maxRequestIDLen = 128

// RequestID returns a middleware that assigns every request an id and
// echoes it on the response. An incoming X-Request-ID is reused when it
// is short printable ASCII; otherwise a fresh UUID replaces it.
func RequestID() func(http.Handler) http.Handler {
	return RequestIDWithGenerator(func() string { return uuid.New().String() })
}

// RequestIDWithGenerator is RequestID with a custom id source.
func RequestIDWithGenerator(generator func() string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(HeaderXRequestID)
			if !validRequestID(requestID) {
				requestID = generator()
			}

			ctx := observability.ContextWithRequestID(r.Context(), requestID)
			w.Header().Set(HeaderXRequestID, requestID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}

// Tenant copies the tenant header into the request context for logging
// and caching. It does not reject requests without one; the catalog
// handlers do.
func Tenant(header string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tenant := strings.TrimSpace(r.Header.Get(header)); tenant != "" {
				r = r.WithContext(observability.ContextWithTenant(r.Context(), tenant))
			}
			next.ServeHTTP(w, r)
		})
	}
}
