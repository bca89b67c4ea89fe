// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Values are set by middleware but consumed by services. Keeping this package
// free of net/http dependencies lets services import only what they need.
//
// Usage in services (read values):
//
//	now := requestcontext.Now(ctx)
//	requestID := requestcontext.RequestID(ctx)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"
)

type (
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// RequestID retrieves the request ID from the context, or "" if unset.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() for non-HTTP contexts (workers, CLI, tests).
//
// Every write and analytics query within one request observes the same "now",
// which keeps ledger timestamps and open-interval residency math consistent.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context. Useful for service unit
// tests that don't run the HTTP middleware chain, and for batch jobs that
// need a consistent timestamp across one unit of work.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}
