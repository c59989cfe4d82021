// Package middleware provides the HTTP middleware that wraps the
// catalog handlers.
//
// The server assembles them outermost first:
//
//	Recovery -> RequestID -> Tenant -> Tracing -> Metrics -> Logging ->
//	RateLimit -> CircuitBreaker -> Compact -> Cache -> catalog routes
//
// Compact sits outside Cache so cached entries always hold the raw
// OData body and a compacted read can be served from the same entry.
//
// Every middleware has the func(http.Handler) http.Handler shape; the
// *FromConfig constructors return a pass-through when the feature is
// disabled. Error responses use the OData error body written by
// WriteError.
package middleware
