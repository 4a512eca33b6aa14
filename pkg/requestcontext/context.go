// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Middleware sets these values; services read them. Keeping the package free
// of net/http lets services import only what they need.
//
// Usage in services (read values):
//
//	buyerID := requestcontext.BuyerID(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in middleware (set values):
//
//	ctx = requestcontext.WithBuyerID(ctx, buyerID)
//	ctx = requestcontext.WithRequestID(ctx, requestID)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"

	id "agegate/pkg/domain"
)

// Context key types (unexported for encapsulation).
type (
	buyerIDKey     struct{}
	dealerIDKey    struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for tests that need raw context.WithValue.
var (
	ContextKeyBuyerID     = buyerIDKey{}
	ContextKeyDealerID    = dealerIDKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// BuyerID retrieves the authenticated buyer id from the context.
// Returns the zero value (nil UUID) if not set.
func BuyerID(ctx context.Context) id.BuyerID {
	if buyerID, ok := ctx.Value(ContextKeyBuyerID).(id.BuyerID); ok {
		return buyerID
	}
	return id.BuyerID{}
}

// WithBuyerID injects a buyer id into the context.
func WithBuyerID(ctx context.Context, buyerID id.BuyerID) context.Context {
	return context.WithValue(ctx, ContextKeyBuyerID, buyerID)
}

// DealerID retrieves the authenticated dealer id from the context.
// Returns the zero value (nil UUID) if not set.
func DealerID(ctx context.Context) id.DealerID {
	if dealerID, ok := ctx.Value(ContextKeyDealerID).(id.DealerID); ok {
		return dealerID
	}
	return id.DealerID{}
}

// WithDealerID injects a dealer id into the context.
func WithDealerID(ctx context.Context, dealerID id.DealerID) context.Context {
	return context.WithValue(ctx, ContextKeyDealerID, dealerID)
}

// RequestID retrieves the request correlation id from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request correlation id into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() for non-HTTP contexts (tests, CLI, workers).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context. Services that compare
// against expiry timestamps read time through here so tests can pin the clock.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
