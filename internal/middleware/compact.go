package middleware

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/vyrodovalexey/ordcatalog/internal/config"
	"github.com/vyrodovalexey/ordcatalog/internal/observability"
	"github.com/vyrodovalexey/ordcatalog/internal/transform"
)

// Compact outcomes used as metric labels.
const (
	compactOutcomeCompacted   = "compacted"
	compactOutcomePassthrough = "passthrough"
	compactOutcomeError       = "error"
)

// compactFlagValue is the only query value that enables compaction.
const compactFlagValue = "true"

// MsgCompactFailed prefixes the error message of a response that could
// not be compacted.
const MsgCompactFailed = "failed to compact response"

// Compactor rewrites a JSON body into its compact form.
type Compactor interface {
	CompactJSON(ctx context.Context, body []byte) ([]byte, error)
}

// Compact returns the response interceptor. Every response is buffered in
// full and written with an exact Content-Length. When the request carries
// queryParam=true and the response is JSON, the body is replaced by its
// compact form; a body that does not parse yields a 500 OData error and
// none of the original body. Other responses are written byte for byte.
func Compact(compactor Compactor, queryParam string, logger observability.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = observability.NopLogger()
	}
	if queryParam == "" {
		queryParam = config.DefaultCompactQueryParam
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &compactRecorder{
				header: make(http.Header),
				status: http.StatusOK,
			}

			next.ServeHTTP(rec, r)

			body := rec.body.Bytes()
			if !compactRequested(r, queryParam) || !isJSON(rec.header) || len(body) == 0 {
				GetMiddlewareMetrics().compact.WithLabelValues(compactOutcomePassthrough).Inc()
				rec.writeTo(w, body)
				return
			}

			compacted, err := compactor.CompactJSON(r.Context(), body)
			if err != nil {
				GetMiddlewareMetrics().compact.WithLabelValues(compactOutcomeError).Inc()
				logger.WithContext(r.Context()).Error("response compaction failed",
					observability.String("path", r.URL.Path),
					observability.Int("status", rec.status),
					observability.Int("size", len(body)),
					observability.Error(err),
				)
				WriteError(w, http.StatusInternalServerError, MsgCompactFailed+": "+err.Error())
				return
			}

			GetMiddlewareMetrics().compact.WithLabelValues(compactOutcomeCompacted).Inc()
			rec.writeTo(w, compacted)
		})
	}
}

// CompactFromConfig creates the interceptor from configuration. A nil or
// disabled configuration yields a pass-through, so the query flag is
// ignored entirely.
func CompactFromConfig(cfg *config.CompactConfig, logger observability.Logger) func(http.Handler) http.Handler {
	if cfg == nil || !cfg.Enabled {
		return func(next http.Handler) http.Handler { return next }
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return Compact(transform.NewCompactor(logger), cfg.QueryParam, logger)
}

func compactRequested(r *http.Request, queryParam string) bool {
	return r.URL.Query().Get(queryParam) == compactFlagValue
}

func isJSON(h http.Header) bool {
	return strings.Contains(h.Get(HeaderContentType), ContentTypeJSON)
}

// compactRecorder buffers a complete response.
type compactRecorder struct {
	header        http.Header
	status        int
	headerWritten bool
	body          bytes.Buffer
}

func (r *compactRecorder) Header() http.Header {
	return r.header
}

func (r *compactRecorder) WriteHeader(code int) {
	if !r.headerWritten {
		r.status = code
		r.headerWritten = true
	}
}

func (r *compactRecorder) Write(b []byte) (int, error) {
	r.headerWritten = true
	return r.body.Write(b)
}

// Flush is a no-op: nothing leaves before the handler returns.
func (r *compactRecorder) Flush() {}

// writeTo copies the captured headers and status to w and writes body
// with a matching Content-Length.
func (r *compactRecorder) writeTo(w http.ResponseWriter, body []byte) {
	dst := w.Header()
	for k, vals := range r.header {
		dst[k] = append([]string(nil), vals...)
	}
	if bodyAllowed(r.status) {
		dst.Set(HeaderContentLength, strconv.Itoa(len(body)))
	}
	w.WriteHeader(r.status)
	if len(body) > 0 {
		_, _ = w.Write(body)
	}
}

func bodyAllowed(status int) bool {
	return !(status >= 100 && status < 200) &&
		status != http.StatusNoContent &&
		status != http.StatusNotModified
}
