package observability

import (
	"context"
	"sync"
)

// routeHolder carries the route label chosen by the handler back out to
// the middleware that observed the request.
type routeHolder struct {
	mu    sync.Mutex
	route string
}

type routeHolderKey struct{}

// ContextWithRouteHolder returns a context in which SetRoute can record
// the route of the request. An existing holder is reused.
func ContextWithRouteHolder(ctx context.Context) context.Context {
	if _, ok := ctx.Value(routeHolderKey{}).(*routeHolder); ok {
		return ctx
	}
	return context.WithValue(ctx, routeHolderKey{}, &routeHolder{})
}

// SetRoute records the route label of the current request. It is a no-op
// when the context carries no holder.
func SetRoute(ctx context.Context, route string) {
	if h, ok := ctx.Value(routeHolderKey{}).(*routeHolder); ok {
		h.mu.Lock()
		h.route = route
		h.mu.Unlock()
	}
}

// RouteFromContext returns the recorded route, or "" when none was set.
func RouteFromContext(ctx context.Context) string {
	h, ok := ctx.Value(routeHolderKey{}).(*routeHolder)
	if !ok {
		return ""
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.route
}
