package httptransport

import (
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"storefront/internal/session/models"
	"storefront/internal/transport/http/mocks"
	dErrors "storefront/pkg/domain-errors"
	"storefront/pkg/testutil"
)

func newSessionRouter(t *testing.T) (http.Handler, *mocks.MockSessionService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockSessionService(ctrl)
	r := chi.NewRouter()
	NewSessionHandler(svc, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	return r, svc
}

func TestHandleGetSession(t *testing.T) {
	checked := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	t.Run("authenticated session hides credentials", func(t *testing.T) {
		router, svc := newSessionRouter(t)
		state := models.Authenticated(models.User{ID: "c-1", Role: models.RoleCustomer, UserName: "jane"}, []string{"token=secret"}, checked)
		svc.EXPECT().Resolve(gomock.Any(), testSID).Return(state, nil)

		req := testutil.WithBrowserSession(testutil.NewRequest(t, http.MethodGet, "/api/session"), testSID.String())
		rr := testutil.DoRequest(router, req)

		testutil.AssertStatusOK(t, rr)
		assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
		assert.NotContains(t, rr.Body.String(), "token=secret")
		resp := testutil.UnmarshalResponse[SessionResponse](t, rr)
		assert.Equal(t, models.AuthStatusAuthenticated, resp.AuthStatus)
		assert.Equal(t, "customer", resp.Context)
		assert.Equal(t, "/shop/home", resp.Home)
		require.NotNil(t, resp.User)
		assert.Equal(t, "jane", resp.User.UserName)
		require.NotNil(t, resp.CheckedAt)
		assert.True(t, checked.Equal(*resp.CheckedAt))
	})

	t.Run("unknown session has no context", func(t *testing.T) {
		router, svc := newSessionRouter(t)
		svc.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return(models.Unknown(), nil)

		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/api/session"))

		resp := testutil.UnmarshalResponse[SessionResponse](t, rr)
		assert.Equal(t, models.AuthStatusUnknown, resp.AuthStatus)
		assert.Empty(t, resp.Context)
		assert.Nil(t, resp.User)
	})

	t.Run("store failure", func(t *testing.T) {
		router, svc := newSessionRouter(t)
		svc.EXPECT().Resolve(gomock.Any(), gomock.Any()).
			Return(models.State{}, dErrors.New(dErrors.CodeInternal, "failed to load session"))

		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/api/session"))

		testutil.AssertStatusAndError(t, rr, http.StatusInternalServerError, "internal_error")
	})
}

func TestHandleRecheck(t *testing.T) {
	router, svc := newSessionRouter(t)
	svc.EXPECT().Recheck(gomock.Any(), testSID).Return(models.Unauthenticated(time.Now()), nil)

	req := testutil.WithBrowserSession(testutil.NewRequest(t, http.MethodPost, "/api/session/recheck"), testSID.String())
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatusOK(t, rr)
	testutil.AssertJSONContains(t, rr, "auth_status", "unauthenticated")
}
