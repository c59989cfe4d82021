package middleware

import (
	"net/http"
	"time"

	"github.com/vyrodovalexey/ordcatalog/internal/observability"
)

// accessWriter captures what the access log reports about a response.
type accessWriter struct {
	http.ResponseWriter
	status int
	size   int
	sent   bool
}

func (w *accessWriter) WriteHeader(code int) {
	if !w.sent {
		w.status, w.sent = code, true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *accessWriter) Write(b []byte) (int, error) {
	w.sent = true
	n, err := w.ResponseWriter.Write(b)
	w.size += n
	return n, err
}

func (w *accessWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// Logging writes one access log line per request: error level for 5xx,
// warn for 4xx, info otherwise.
func Logging(logger observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			aw := &accessWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(aw, r)

			ctx := r.Context()
			fields := []observability.Field{
				observability.String("method", r.Method),
				observability.String("path", r.URL.Path),
				observability.String("query", r.URL.RawQuery),
				observability.Int("status", aw.status),
				observability.Int("size", aw.size),
				observability.Duration("duration", time.Since(start)),
				observability.String("client_ip", getClientIP(r)),
				observability.String("user_agent", r.UserAgent()),
			}
			if route := observability.RouteFromContext(ctx); route != "" {
				fields = append(fields, observability.String("route", route))
			}

			log := logger.WithContext(ctx)
			switch {
			case aw.status >= http.StatusInternalServerError:
				log.Error("http request", fields...)
			case aw.status >= http.StatusBadRequest:
				log.Warn("http request", fields...)
			default:
				log.Info("http request", fields...)
			}
		})
	}
}
