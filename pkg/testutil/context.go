package testutil

import (
	"context"
	"net/http"
	"time"

	id "storefront/pkg/domain"
	"storefront/pkg/requestcontext"
)

// WithBrowserSession adds a browser session ID to the request context.
// This simulates what the browsersession middleware does for every request.
// If the sessionID is not a valid UUID, it will not be added to the context.
func WithBrowserSession(req *http.Request, sessionID string) *http.Request {
	if sid, err := id.ParseBrowserSessionID(sessionID); err == nil {
		return req.WithContext(requestcontext.WithBrowserSessionID(req.Context(), sid))
	}
	return req
}

// WithRequestTime pins the request time seen by handlers.
func WithRequestTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}

// WithClient adds client IP and user agent to the request context.
func WithClient(req *http.Request, clientIP, userAgent string) *http.Request {
	return req.WithContext(requestcontext.WithClientMetadata(req.Context(), clientIP, userAgent))
}

// WithContextValue adds an arbitrary key-value pair to the request context.
func WithContextValue(req *http.Request, key, value any) *http.Request {
	ctx := context.WithValue(req.Context(), key, value)
	return req.WithContext(ctx)
}
