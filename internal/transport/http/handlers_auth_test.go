package httptransport

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"storefront/internal/gate"
	"storefront/internal/session/models"
	"storefront/internal/transport/http/mocks"
	"storefront/internal/upstream"
	id "storefront/pkg/domain"
	dErrors "storefront/pkg/domain-errors"
	"storefront/pkg/testutil"
)

var testSID = id.NewBrowserSessionID()

func newAuthRouter(t *testing.T) (http.Handler, *mocks.MockAuthService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(svc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := chi.NewRouter()
	h.Register(r)
	return r, svc
}

func postForm(t *testing.T, path string, form url.Values) *http.Request {
	t.Helper()
	return testutil.WithBrowserSession(testutil.NewFormRequest(t, path, form), testSID.String())
}

// location parses the redirect target of a 303 response.
func location(t *testing.T, rr *httptest.ResponseRecorder) *url.URL {
	t.Helper()
	return testutil.RedirectTarget(t, rr, http.StatusSeeOther)
}

func TestHandleLogin(t *testing.T) {
	t.Run("admin lands on the dashboard", func(t *testing.T) {
		router, svc := newAuthRouter(t)
		state := models.Authenticated(models.User{ID: "a-1", Role: models.RoleAdmin}, []string{"token=x"}, time.Now())
		svc.EXPECT().Login(gomock.Any(), testSID, "root@example.com", "secret").Return(state, nil)

		rr := testutil.DoRequest(router, postForm(t, "/auth/login", url.Values{"email": {" root@example.com "}, "password": {"secret"}}))

		assert.Equal(t, gate.AdminDefault, location(t, rr).String())
	})

	t.Run("customer lands on shop home", func(t *testing.T) {
		router, svc := newAuthRouter(t)
		state := models.Authenticated(models.User{ID: "c-1", Role: models.RoleCustomer}, nil, time.Now())
		svc.EXPECT().Login(gomock.Any(), testSID, gomock.Any(), gomock.Any()).Return(state, nil)

		rr := testutil.DoRequest(router, postForm(t, "/auth/login", url.Values{"email": {"jane@example.com"}, "password": {"secret"}}))

		assert.Equal(t, gate.ShopDefault, location(t, rr).String())
	})

	t.Run("invalid email never reaches the service", func(t *testing.T) {
		router, _ := newAuthRouter(t)

		rr := testutil.DoRequest(router, postForm(t, "/auth/login", url.Values{"email": {"not-an-email"}, "password": {"secret"}}))

		loc := location(t, rr)
		assert.Equal(t, gate.LoginPath, loc.Path)
		assert.Equal(t, "Please enter a valid email", loc.Query().Get("error"))
		assert.Equal(t, "not-an-email", loc.Query().Get("email"))
	})

	t.Run("upstream rejection is shown on the login page", func(t *testing.T) {
		router, svc := newAuthRouter(t)
		svc.EXPECT().Login(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(models.State{}, dErrors.New(dErrors.CodeUnauthorized, "Incorrect password! Please try again"))

		rr := testutil.DoRequest(router, postForm(t, "/auth/login", url.Values{"email": {"jane@example.com"}, "password": {"nope"}}))

		loc := location(t, rr)
		assert.Equal(t, gate.LoginPath, loc.Path)
		assert.Equal(t, "Incorrect password! Please try again", loc.Query().Get("error"))
	})

	t.Run("internal failure hides details", func(t *testing.T) {
		router, svc := newAuthRouter(t)
		svc.EXPECT().Login(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(models.State{}, dErrors.New(dErrors.CodeInternal, "redis: connection refused"))

		rr := testutil.DoRequest(router, postForm(t, "/auth/login", url.Values{"email": {"jane@example.com"}, "password": {"pw"}}))

		assert.Equal(t, genericFailure, location(t, rr).Query().Get("error"))
	})
}

func TestHandleRegister(t *testing.T) {
	t.Run("success sends the customer to login", func(t *testing.T) {
		router, svc := newAuthRouter(t)
		svc.EXPECT().Register(gomock.Any(), upstream.RegisterRequest{UserName: "jane", Email: "jane@example.com", Password: "secret"}).
			Return("Registration successful", nil)

		rr := testutil.DoRequest(router, postForm(t, "/auth/register", url.Values{
			"username": {"jane"}, "email": {"jane@example.com"}, "password": {"secret"},
		}))

		loc := location(t, rr)
		assert.Equal(t, gate.LoginPath, loc.Path)
		assert.Equal(t, "Registration successful", loc.Query().Get("message"))
	})

	t.Run("missing user name", func(t *testing.T) {
		router, _ := newAuthRouter(t)

		rr := testutil.DoRequest(router, postForm(t, "/auth/register", url.Values{"email": {"jane@example.com"}, "password": {"secret"}}))

		loc := location(t, rr)
		assert.Equal(t, gate.RegisterPath, loc.Path)
		assert.Equal(t, "User name is required", loc.Query().Get("error"))
	})

	t.Run("duplicate account", func(t *testing.T) {
		router, svc := newAuthRouter(t)
		svc.EXPECT().Register(gomock.Any(), gomock.Any()).
			Return("", dErrors.New(dErrors.CodeConflict, "User Already exists with the same email!"))

		rr := testutil.DoRequest(router, postForm(t, "/auth/register", url.Values{
			"username": {"jane"}, "email": {"jane@example.com"}, "password": {"secret"},
		}))

		assert.Equal(t, "User Already exists with the same email!", location(t, rr).Query().Get("error"))
	})
}

func TestHandleLogout(t *testing.T) {
	router, svc := newAuthRouter(t)
	svc.EXPECT().Logout(gomock.Any(), testSID).Return(models.Unauthenticated(time.Now()), nil)

	rr := testutil.DoRequest(router, postForm(t, "/auth/logout", nil))

	loc := location(t, rr)
	assert.Equal(t, gate.LoginPath, loc.Path)
	assert.Equal(t, "Logged out successfully!", loc.Query().Get("message"))
}

func TestPasswordResetFlow(t *testing.T) {
	t.Run("email step advances to otp", func(t *testing.T) {
		router, svc := newAuthRouter(t)
		svc.EXPECT().SendResetOTP(gomock.Any(), "jane@example.com").Return("OTP sent to your email", nil)

		rr := testutil.DoRequest(router, postForm(t, "/auth/forget-password/email", url.Values{"email": {"jane@example.com"}}))

		loc := location(t, rr)
		assert.Equal(t, gate.ForgetPath, loc.Path)
		assert.Equal(t, "otp", loc.Query().Get("step"))
		assert.Equal(t, "jane@example.com", loc.Query().Get("email"))
	})

	t.Run("bad otp stays on the otp step", func(t *testing.T) {
		router, svc := newAuthRouter(t)
		svc.EXPECT().VerifyResetOTP(gomock.Any(), "jane@example.com", "12").
			Return("", dErrors.New(dErrors.CodeValidation, "OTP must be 5 digits"))

		rr := testutil.DoRequest(router, postForm(t, "/auth/forget-password/otp", url.Values{"email": {"jane@example.com"}, "otp": {"12"}}))

		loc := location(t, rr)
		assert.Equal(t, "otp", loc.Query().Get("step"))
		assert.Equal(t, "OTP must be 5 digits", loc.Query().Get("error"))
	})

	t.Run("otp step advances to password", func(t *testing.T) {
		router, svc := newAuthRouter(t)
		svc.EXPECT().VerifyResetOTP(gomock.Any(), "jane@example.com", "12345").Return("OTP verified", nil)

		rr := testutil.DoRequest(router, postForm(t, "/auth/forget-password/otp", url.Values{"email": {"jane@example.com"}, "otp": {"12345"}}))

		assert.Equal(t, "password", location(t, rr).Query().Get("step"))
	})

	t.Run("password step returns to login", func(t *testing.T) {
		router, svc := newAuthRouter(t)
		svc.EXPECT().UpdatePassword(gomock.Any(), "jane@example.com", "new-secret").Return("Password updated successfully", nil)

		rr := testutil.DoRequest(router, postForm(t, "/auth/forget-password/password", url.Values{"email": {"jane@example.com"}, "password": {"new-secret"}}))

		loc := location(t, rr)
		assert.Equal(t, gate.LoginPath, loc.Path)
		assert.Equal(t, "Password updated successfully", loc.Query().Get("message"))
	})
}
