package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/vyrodovalexey/ordcatalog/internal/observability"
)

// Recovery returns a middleware that turns a handler panic into a 500
// OData error and logs the stack.
func Recovery(logger observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				// http.ErrAbortHandler must reach net/http.
				if rec == http.ErrAbortHandler { //nolint:errorlint // sentinel compared by identity
					panic(rec)
				}

				logger.WithContext(r.Context()).Error("panic recovered",
					observability.String("path", r.URL.Path),
					observability.String("method", r.Method),
					observability.Any("error", rec),
					observability.String("stack", string(debug.Stack())),
				)
				GetMiddlewareMetrics().panics.Inc()

				WriteError(w, http.StatusInternalServerError, MsgInternalServerError)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
