package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/vyrodovalexey/ordcatalog/internal/observability"
)

// timeoutGracePeriod is how long a timed out handler may keep running
// before the middleware returns.
const timeoutGracePeriod = 100 * time.Millisecond

// Timeout bounds every request by timeout. The handler runs with a
// deadline on its context; when the deadline passes before it wrote
// anything the client receives a 504 OData error and later writes are
// discarded. A zero timeout disables the middleware.
func Timeout(timeout time.Duration, logger observability.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return func(next http.Handler) http.Handler {
		if timeout <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			r = r.WithContext(ctx)
			done := make(chan struct{})
			tw := &timeoutWriter{ResponseWriter: w, header: w.Header().Clone(), ctx: ctx}

			go func() {
				defer close(done)
				defer recoverInTimeout(tw, r, logger)
				next.ServeHTTP(tw, r)
			}()

			select {
			case <-done:
			case <-ctx.Done():
				handleTimeout(tw, w, r, timeout, done, logger)
			}
		})
	}
}

// recoverInTimeout handles panics raised on the handler goroutine, which
// Recovery cannot see.
func recoverInTimeout(tw *timeoutWriter, r *http.Request, logger observability.Logger) {
	rec := recover()
	if rec == nil {
		return
	}
	logger.WithContext(r.Context()).Error("panic recovered",
		observability.Any("panic", rec),
		observability.String("path", r.URL.Path),
		observability.String("method", r.Method),
	)

	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut || tw.wroteHeader {
		return
	}
	body := ErrorBody(http.StatusInternalServerError, MsgInternalServerError)
	tw.header.Set(HeaderContentType, ContentTypeODataJSON)
	tw.header.Set(HeaderContentLength, strconv.Itoa(len(body)))
	tw.writeHeaderLocked(http.StatusInternalServerError)
	_, _ = tw.ResponseWriter.Write(body)
}

func handleTimeout(
	tw *timeoutWriter,
	w http.ResponseWriter,
	r *http.Request,
	timeout time.Duration,
	done <-chan struct{},
	logger observability.Logger,
) {
	tw.mu.Lock()
	written := tw.wroteHeader
	tw.timedOut = true
	tw.mu.Unlock()

	if !written {
		GetMiddlewareMetrics().rejected(reasonTimeout)
		logger.WithContext(r.Context()).Warn("request timeout",
			observability.String("path", r.URL.Path),
			observability.String("method", r.Method),
			observability.Duration("timeout", timeout),
		)
		WriteError(w, http.StatusGatewayTimeout, MsgRequestTimeout)
	}

	select {
	case <-done:
	case <-time.After(timeoutGracePeriod):
	}
}

// timeoutWriter buffers header changes so a handler that is still
// running after the deadline cannot touch the real response.
type timeoutWriter struct {
	http.ResponseWriter
	header      http.Header
	ctx         context.Context
	mu          sync.Mutex
	wroteHeader bool
	timedOut    bool
}

func (tw *timeoutWriter) Header() http.Header {
	return tw.header
}

func (tw *timeoutWriter) WriteHeader(code int) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut || tw.wroteHeader {
		return
	}
	tw.writeHeaderLocked(code)
}

func (tw *timeoutWriter) writeHeaderLocked(code int) {
	tw.wroteHeader = true
	dst := tw.ResponseWriter.Header()
	for k := range dst {
		if _, ok := tw.header[k]; !ok {
			delete(dst, k)
		}
	}
	for k, v := range tw.header {
		dst[k] = v
	}
	tw.ResponseWriter.WriteHeader(code)
}

func (tw *timeoutWriter) Write(b []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut {
		return 0, tw.ctx.Err()
	}
	if !tw.wroteHeader {
		tw.writeHeaderLocked(http.StatusOK)
	}
	return tw.ResponseWriter.Write(b)
}
