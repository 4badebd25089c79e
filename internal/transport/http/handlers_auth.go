package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/asaskevich/govalidator"
	"github.com/go-chi/chi/v5"

	"storefront/internal/gate"
	"storefront/internal/session/models"
	"storefront/internal/upstream"
	id "storefront/pkg/domain"
	dErrors "storefront/pkg/domain-errors"
	"storefront/pkg/requestcontext"
)

//go:generate mockgen -source=handlers_auth.go -destination=mocks/mocks.go -package=mocks AuthService

// AuthService is the session service as seen by the auth actions.
type AuthService interface {
	Login(ctx context.Context, sid id.BrowserSessionID, email, password string) (models.State, error)
	Logout(ctx context.Context, sid id.BrowserSessionID) (models.State, error)
	Register(ctx context.Context, req upstream.RegisterRequest) (string, error)
	SendResetOTP(ctx context.Context, email string) (string, error)
	VerifyResetOTP(ctx context.Context, email, otp string) (string, error)
	UpdatePassword(ctx context.Context, email, password string) (string, error)
}

const (
	stepOTP      = "otp"
	stepPassword = "password"

	genericFailure = "Something went wrong. Please try again."
)

// AuthHandler serves the form posts of the auth pages. Every action answers
// with a single 303 so the browser makes exactly one navigation.
type AuthHandler struct {
	auth   AuthService
	logger *slog.Logger
}

func NewAuthHandler(auth AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

func (h *AuthHandler) Register(r chi.Router) {
	r.Post("/auth/login", h.handleLogin)
	r.Post("/auth/register", h.handleRegister)
	r.Post("/auth/logout", h.handleLogout)
	r.Post("/auth/forget-password/email", h.handleResetEmail)
	r.Post("/auth/forget-password/otp", h.handleResetOTP)
	r.Post("/auth/forget-password/password", h.handleResetPassword)
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	email, password := formValue(r, "email"), r.PostFormValue("password")

	if err := validateCredentials(email, password); err != nil {
		h.fail(w, r, gate.LoginPath, err, url.Values{"email": {email}})
		return
	}

	state, err := h.auth.Login(ctx, requestcontext.BrowserSessionID(ctx), email, password)
	if err != nil {
		h.fail(w, r, gate.LoginPath, err, url.Values{"email": {email}})
		return
	}

	rc, _ := gate.ContextFor(state)
	http.Redirect(w, r, gate.Tree(rc).Fallback(), http.StatusSeeOther)
}

func (h *AuthHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	req := upstream.RegisterRequest{
		UserName: formValue(r, "username"),
		Email:    formValue(r, "email"),
		Password: r.PostFormValue("password"),
	}
	if err := validateRegistration(req); err != nil {
		h.fail(w, r, gate.RegisterPath, err, url.Values{"email": {req.Email}})
		return
	}

	msg, err := h.auth.Register(r.Context(), req)
	if err != nil {
		h.fail(w, r, gate.RegisterPath, err, url.Values{"email": {req.Email}})
		return
	}
	redirectWith(w, r, gate.LoginPath, url.Values{"message": {orDefault(msg, "Registration successful")}, "email": {req.Email}})
}

func (h *AuthHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, err := h.auth.Logout(ctx, requestcontext.BrowserSessionID(ctx)); err != nil {
		h.fail(w, r, gate.LoginPath, err, nil)
		return
	}
	redirectWith(w, r, gate.LoginPath, url.Values{"message": {"Logged out successfully!"}})
}

func (h *AuthHandler) handleResetEmail(w http.ResponseWriter, r *http.Request) {
	email := formValue(r, "email")
	if !govalidator.IsEmail(email) {
		h.fail(w, r, gate.ForgetPath, dErrors.New(dErrors.CodeValidation, "Please enter a valid email"), url.Values{"email": {email}})
		return
	}

	msg, err := h.auth.SendResetOTP(r.Context(), email)
	if err != nil {
		h.fail(w, r, gate.ForgetPath, err, url.Values{"email": {email}})
		return
	}
	redirectWith(w, r, gate.ForgetPath, url.Values{"step": {stepOTP}, "email": {email}, "message": {orDefault(msg, "OTP sent")}})
}

func (h *AuthHandler) handleResetOTP(w http.ResponseWriter, r *http.Request) {
	email, otp := formValue(r, "email"), formValue(r, "otp")
	retry := url.Values{"step": {stepOTP}, "email": {email}}

	msg, err := h.auth.VerifyResetOTP(r.Context(), email, otp)
	if err != nil {
		h.fail(w, r, gate.ForgetPath, err, retry)
		return
	}
	redirectWith(w, r, gate.ForgetPath, url.Values{"step": {stepPassword}, "email": {email}, "message": {orDefault(msg, "OTP verified")}})
}

func (h *AuthHandler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	email, password := formValue(r, "email"), r.PostFormValue("password")
	retry := url.Values{"step": {stepPassword}, "email": {email}}

	msg, err := h.auth.UpdatePassword(r.Context(), email, password)
	if err != nil {
		h.fail(w, r, gate.ForgetPath, err, retry)
		return
	}
	redirectWith(w, r, gate.LoginPath, url.Values{"message": {orDefault(msg, "Password updated")}, "email": {email}})
}

// fail sends the browser back to the form with the error shown. Internal
// errors are logged and replaced with a generic message.
func (h *AuthHandler) fail(w http.ResponseWriter, r *http.Request, target string, err error, params url.Values) {
	ctx := r.Context()
	msg := genericFailure
	if de, ok := dErrors.As(err); ok && de.Code != dErrors.CodeInternal {
		msg = de.Message
		h.logger.WarnContext(ctx, "auth action rejected",
			"path", r.URL.Path,
			"code", de.Code,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	} else {
		h.logger.ErrorContext(ctx, "auth action failed",
			"path", r.URL.Path,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("error", msg)
	redirectWith(w, r, target, params)
}

func redirectWith(w http.ResponseWriter, r *http.Request, target string, params url.Values) {
	for k, v := range params {
		if len(v) == 0 || v[0] == "" {
			delete(params, k)
		}
	}
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func formValue(r *http.Request, key string) string {
	return strings.TrimSpace(r.PostFormValue(key))
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func validateCredentials(email, password string) error {
	if !govalidator.StringLength(email, "1", "255") || !govalidator.IsEmail(email) {
		return dErrors.New(dErrors.CodeValidation, "Please enter a valid email")
	}
	if password == "" {
		return dErrors.New(dErrors.CodeValidation, "Password is required")
	}
	return nil
}

func validateRegistration(req upstream.RegisterRequest) error {
	if !govalidator.StringLength(req.UserName, "1", "50") {
		return dErrors.New(dErrors.CodeValidation, "User name is required")
	}
	return validateCredentials(req.Email, req.Password)
}
