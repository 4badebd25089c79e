package gate

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"storefront/internal/session/models"
	id "storefront/pkg/domain"
	"storefront/pkg/requestcontext"
)

// SessionResolver returns the session snapshot for a browser session.
type SessionResolver interface {
	Resolve(ctx context.Context, sid id.BrowserSessionID) (models.State, error)
}

// Views supplies the page for every renderable route and the loading
// placeholder. The gate treats them as opaque handlers.
type Views interface {
	View(path string) (http.Handler, bool)
	Placeholder() http.Handler
}

type sessionKey struct{}

// WithSession stores the snapshot a page was rendered for.
func WithSession(ctx context.Context, state models.State) context.Context {
	return context.WithValue(ctx, sessionKey{}, state)
}

// SessionFrom returns the snapshot stored by WithSession.
func SessionFrom(ctx context.Context) (models.State, bool) {
	state, ok := ctx.Value(sessionKey{}).(models.State)
	return state, ok
}

// Handler serves page requests through the gate.
type Handler struct {
	sessions SessionResolver
	views    Views
	logger   *slog.Logger
	metrics  *Metrics
}

type Option func(*Handler)

func WithMetrics(m *Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// NewHandler fails if any renderable route has no view.
func NewHandler(sessions SessionResolver, views Views, logger *slog.Logger, opts ...Option) (*Handler, error) {
	for _, tree := range Trees() {
		for _, p := range tree.ViewPaths() {
			if _, ok := views.View(p); !ok {
				return nil, fmt.Errorf("no view registered for %s route %s", tree.Context(), p)
			}
		}
	}
	h := &Handler{
		sessions: sessions,
		views:    views,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	state := h.resolve(ctx)

	out := Decide(state, r.URL.Path)
	h.metrics.ObserveDecision(out)

	switch out.Kind {
	case KindPlaceholder:
		w.Header().Set("Cache-Control", "no-store")
		h.views.Placeholder().ServeHTTP(w, r)
	case KindRedirect:
		h.logger.DebugContext(ctx, "gate redirect",
			"path", r.URL.Path,
			"target", out.Target,
			"context", out.Context.String(),
			"request_id", requestcontext.RequestID(ctx),
		)
		w.Header().Set("Cache-Control", "no-store")
		http.Redirect(w, r, out.Target, http.StatusFound)
	case KindRender:
		view, _ := h.views.View(out.Path)
		view.ServeHTTP(w, r.WithContext(WithSession(ctx, state)))
	}
}

// resolve never fails: a missing or unreadable session is evaluated as
// unauthenticated.
func (h *Handler) resolve(ctx context.Context) models.State {
	now := requestcontext.Now(ctx)
	sid := requestcontext.BrowserSessionID(ctx)
	if sid.IsNil() {
		return models.Unauthenticated(now)
	}
	state, err := h.sessions.Resolve(ctx, sid)
	if err != nil {
		h.metrics.IncrementStoreFailures()
		h.logger.ErrorContext(ctx, "failed to resolve session; treating request as unauthenticated",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return models.Unauthenticated(now)
	}
	return state
}
