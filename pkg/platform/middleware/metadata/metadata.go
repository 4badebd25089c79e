package metadata

import (
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"storefront/pkg/requestcontext"
)

// ClientMetadata extracts client IP address, User-Agent and the chi request
// id from the request and adds them to the context for handlers and services.
// Apply after chi's middleware.RequestID.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithClientMetadata(r.Context(), ClientIPFromRequest(r), r.Header.Get("User-Agent"))
		if reqID := middleware.GetReqID(ctx); reqID != "" {
			ctx = requestcontext.WithRequestID(ctx, reqID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientIPFromRequest returns the host part of RemoteAddr. Forwarding
// headers are client-controlled and are only honoured when chi's RealIP runs
// first, which rewrites RemoteAddr behind a trusted proxy.
func ClientIPFromRequest(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if addr == "" {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return strings.Trim(addr, "[]")
}
