// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// Middleware sets these values; services and the route gate read them without
// importing net/http code.
//
// Usage in services (read values):
//
//	sid := requestcontext.BrowserSessionID(ctx)
//	requestID := requestcontext.RequestID(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithBrowserSessionID(ctx, sid)
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"

	id "storefront/pkg/domain"
)

// Context key types (unexported for encapsulation).
type (
	browserSessionIDKey struct{}
	clientIPKey         struct{}
	userAgentKey        struct{}
	requestIDKey        struct{}
	requestTimeKey      struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeyBrowserSessionID = browserSessionIDKey{}
	ContextKeyClientIP         = clientIPKey{}
	ContextKeyUserAgent        = userAgentKey{}
	ContextKeyRequestID        = requestIDKey{}
	ContextKeyRequestTime      = requestTimeKey{}
)

// -----------------------------------------------------------------------------
// Browser session
// -----------------------------------------------------------------------------

// BrowserSessionID retrieves the browser session id from the context.
// Returns the zero value (nil UUID) if not set.
func BrowserSessionID(ctx context.Context) id.BrowserSessionID {
	if sid, ok := ctx.Value(ContextKeyBrowserSessionID).(id.BrowserSessionID); ok {
		return sid
	}
	return id.BrowserSessionID{}
}

// WithBrowserSessionID injects a browser session id into the context.
func WithBrowserSessionID(ctx context.Context, sid id.BrowserSessionID) context.Context {
	return context.WithValue(ctx, ContextKeyBrowserSessionID, sid)
}

// -----------------------------------------------------------------------------
// Client metadata (IP, User-Agent)
// -----------------------------------------------------------------------------

// ClientIP retrieves the client IP address from the context.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ContextKeyClientIP).(string); ok {
		return ip
	}
	return ""
}

// UserAgent retrieves the User-Agent from the context.
func UserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(ContextKeyUserAgent).(string); ok {
		return ua
	}
	return ""
}

// WithClientMetadata injects client IP and User-Agent into a context.
// Useful for unit tests that don't run the full HTTP middleware chain.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyClientIP, clientIP)
	ctx = context.WithValue(ctx, ContextKeyUserAgent, userAgent)
	return ctx
}

// -----------------------------------------------------------------------------
// Request metadata
// -----------------------------------------------------------------------------

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// -----------------------------------------------------------------------------
// Request time
// -----------------------------------------------------------------------------

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (background probes, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
