package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	platformmw "storefront/internal/platform/middleware"
	"storefront/internal/platform/metrics"
	"storefront/pkg/platform/httputil"
	"storefront/pkg/platform/middleware/metadata"
	"storefront/pkg/platform/middleware/requesttime"
)

// HealthChecker reports whether a backing dependency is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// RouterDeps is everything NewRouter wires together.
type RouterDeps struct {
	Logger *slog.Logger
	// Gate serves every page request.
	Gate http.Handler
	// Auth handles login, logout, registration and password reset.
	Auth *AuthHandler
	// Session exposes the caller's session as JSON.
	Session *SessionHandler
	// BrowserSession attaches the browser session id to page and action requests.
	BrowserSession func(http.Handler) http.Handler
	// AuthRateLimit throttles auth actions. Optional.
	AuthRateLimit func(http.Handler) http.Handler
	Metrics       *metrics.Metrics
	Gatherer      prometheus.Gatherer
	// Health checks run by /healthz, keyed by dependency name.
	Health map[string]HealthChecker
	// TrustProxy reads the client IP from forwarding headers.
	TrustProxy bool
}

// NewRouter wires all endpoints. Operational endpoints skip the browser
// session so probes and scrapers never mint cookies.
func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	if d.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(chimw.Recoverer)
	r.Use(platformmw.Logger(d.Logger))
	r.Use(platformmw.LatencyMiddleware(d.Metrics))

	r.Get("/healthz", healthHandler(d.Health))
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(d.BrowserSession)

		r.Group(func(r chi.Router) {
			if d.AuthRateLimit != nil {
				r.Use(d.AuthRateLimit)
			}
			d.Auth.Register(r)
		})
		d.Session.Register(r)

		r.Method(http.MethodGet, "/*", d.Gate)
		r.Method(http.MethodHead, "/*", d.Gate)
	})
	return r
}

func healthHandler(checks map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		body := map[string]string{"status": "ok"}
		for name, check := range checks {
			if err := check.Health(r.Context()); err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
				body[name] = err.Error()
				continue
			}
			body[name] = "ok"
		}
		httputil.WriteJSON(w, status, body)
	}
}
