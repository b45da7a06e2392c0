package obs

import "context"

type routeKey struct{}

// routeSlot holds the matched chi pattern for one request. It is installed
// empty before routing and filled by the first reader that can resolve it,
// so metrics, logs and spans all report the same route.
type routeSlot struct {
	pattern string
}

// WithRoutePattern stores pattern on ctx.
func WithRoutePattern(ctx context.Context, pattern string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, routeKey{}, &routeSlot{pattern: pattern})
}

// RoutePatternFromContext returns the recorded route pattern, or "" when the
// request has not been routed yet.
func RoutePatternFromContext(ctx context.Context) string {
	if slot := routeSlotFrom(ctx); slot != nil {
		return slot.pattern
	}
	return ""
}

func routeSlotFrom(ctx context.Context) *routeSlot {
	if ctx == nil {
		return nil
	}
	slot, _ := ctx.Value(routeKey{}).(*routeSlot)
	return slot
}
