package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"storefront/internal/gate"
	platformmw "storefront/internal/platform/middleware"
	"storefront/internal/session/models"
	id "storefront/pkg/domain"
	"storefront/pkg/platform/httputil"
	"storefront/pkg/requestcontext"
)

//go:generate mockgen -source=handlers_session.go -destination=mocks/session_mocks.go -package=mocks SessionService

// SessionService resolves and re-probes the caller's session.
type SessionService interface {
	Resolve(ctx context.Context, sid id.BrowserSessionID) (models.State, error)
	Recheck(ctx context.Context, sid id.BrowserSessionID) (models.State, error)
}

// SessionResponse is the public view of a session. Upstream credentials are
// never exposed.
type SessionResponse struct {
	AuthStatus models.AuthStatus `json:"auth_status"`
	Context    string            `json:"context,omitempty"`
	Home       string            `json:"home,omitempty"`
	User       *models.User      `json:"user,omitempty"`
	CheckedAt  *time.Time        `json:"checked_at,omitempty"`
}

type SessionHandler struct {
	sessions SessionService
	logger   *slog.Logger
}

func NewSessionHandler(sessions SessionService, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, logger: logger}
}

func (h *SessionHandler) Register(r chi.Router) {
	r.Route("/api/session", func(r chi.Router) {
		r.Use(platformmw.ContentTypeJSON)
		r.Get("/", h.handleGetSession)
		r.Post("/recheck", h.handleRecheck)
	})
}

func (h *SessionHandler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.sessions.Resolve)
}

func (h *SessionHandler) handleRecheck(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.sessions.Recheck)
}

func (h *SessionHandler) respond(w http.ResponseWriter, r *http.Request, fetch func(context.Context, id.BrowserSessionID) (models.State, error)) {
	ctx := r.Context()
	state, err := fetch(ctx, requestcontext.BrowserSessionID(ctx))
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to load session",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	httputil.WriteJSON(w, http.StatusOK, toSessionResponse(state))
}

func toSessionResponse(state models.State) SessionResponse {
	resp := SessionResponse{AuthStatus: state.AuthStatus}
	if rc, ok := gate.ContextFor(state); ok {
		resp.Context = rc.String()
		resp.Home = gate.Tree(rc).Fallback()
	}
	if state.AuthStatus == models.AuthStatusAuthenticated && state.User != nil {
		user := *state.User
		resp.User = &user
	}
	if !state.CheckedAt.IsZero() {
		checked := state.CheckedAt
		resp.CheckedAt = &checked
	}
	return resp
}
