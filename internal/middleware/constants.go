package middleware

import (
	"net/http"
	"strconv"

	"github.com/tidwall/sjson"
)

// HTTP header names.
const (
	HeaderContentType   = "Content-Type"
	HeaderContentLength = "Content-Length"
	HeaderRetryAfter    = "Retry-After"
	HeaderXRequestID    = "X-Request-ID"
	HeaderXForwardedFor = "X-Forwarded-For"
	HeaderXCache        = "X-Cache"
	HeaderCacheControl  = "Cache-Control"
)

// Content types.
const (
	ContentTypeJSON = "application/json"

	// ContentTypeODataJSON is used for every error body.
	ContentTypeODataJSON = "application/json;odata.metadata=minimal"
)

// Error messages written by the middleware.
const (
	MsgRateLimitExceeded   = "rate limit exceeded"
	MsgServiceUnavailable  = "service unavailable: circuit breaker open"
	MsgInternalServerError = "internal server error"
	MsgRequestTimeout      = "request timed out"
)

// ErrorBody renders {"error":{"code":"<status>","message":"<message>"}}.
func ErrorBody(status int, message string) []byte {
	body, err := sjson.SetBytes(nil, "error.code", strconv.Itoa(status))
	if err == nil {
		body, err = sjson.SetBytes(body, "error.message", message)
	}
	if err != nil {
		return []byte(`{"error":{"code":"` + strconv.Itoa(status) + `","message":"` + MsgInternalServerError + `"}}`)
	}
	return body
}

// WriteError writes an OData error response with an exact Content-Length.
func WriteError(w http.ResponseWriter, status int, message string) {
	body := ErrorBody(status, message)
	h := w.Header()
	h.Set(HeaderContentType, ContentTypeODataJSON)
	h.Set(HeaderContentLength, strconv.Itoa(len(body)))
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
