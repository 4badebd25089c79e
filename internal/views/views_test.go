package views

import (
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/gate"
	"storefront/internal/session/models"
	"storefront/pkg/testutil"
)

func newRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := New(slog.New(slog.NewTextHandler(io.Discard, nil)), 2)
	require.NoError(t, err)
	return reg
}

func TestRegistry_CoversEveryRoute(t *testing.T) {
	reg := newRegistry(t)
	for _, tree := range gate.Trees() {
		for _, p := range tree.ViewPaths() {
			_, ok := reg.View(p)
			assert.True(t, ok, p)
		}
	}
	_, ok := reg.View("/admin")
	assert.False(t, ok, "index routes redirect and have no page")
}

func TestRegistry_Placeholder(t *testing.T) {
	rr := testutil.DoRequest(newRegistry(t).Placeholder(), testutil.NewRequest(t, http.MethodGet, "/shop/home"))

	testutil.AssertStatusOK(t, rr)
	assert.Contains(t, rr.Body.String(), `<meta http-equiv="refresh" content="2">`)
	assert.Contains(t, rr.Body.String(), "Loading...")
}

func TestPages(t *testing.T) {
	reg := newRegistry(t)

	t.Run("login shows flash error escaped", func(t *testing.T) {
		view, _ := reg.View(gate.LoginPath)
		rr := testutil.DoRequest(view, testutil.NewRequest(t, http.MethodGet, "/auth/login?error=%3Cb%3Ebad%3C%2Fb%3E"))

		testutil.AssertStatusOK(t, rr)
		assert.Contains(t, rr.Body.String(), `action="/auth/login"`)
		assert.Contains(t, rr.Body.String(), "&lt;b&gt;bad&lt;/b&gt;")
		assert.NotContains(t, rr.Body.String(), "Logout")
	})

	t.Run("forgot password renders the requested step", func(t *testing.T) {
		view, _ := reg.View(gate.ForgetPath)
		rr := testutil.DoRequest(view, testutil.NewRequest(t, http.MethodGet, "/auth/forget-password?step=otp&email=a%40example.com"))

		assert.Contains(t, rr.Body.String(), `action="/auth/forget-password/otp"`)
		assert.Contains(t, rr.Body.String(), `value="a@example.com"`)
	})

	t.Run("admin pages show admin navigation", func(t *testing.T) {
		view, _ := reg.View("/admin/products")
		state := models.Authenticated(models.User{ID: "a-1", Role: models.RoleAdmin, UserName: "root", Email: "root@example.com"}, nil, time.Now())
		req := testutil.NewRequest(t, http.MethodGet, "/admin/products")
		req = req.WithContext(gate.WithSession(req.Context(), state))
		rr := testutil.DoRequest(view, req)

		testutil.AssertStatusOK(t, rr)
		assert.Contains(t, rr.Body.String(), `href="/admin/order"`)
		assert.Contains(t, rr.Body.String(), "root@example.com")
		assert.NotContains(t, rr.Body.String(), `href="/shop/checkout"`)
	})

	t.Run("customer pages greet the user", func(t *testing.T) {
		view, _ := reg.View("/shop/listing")
		state := models.Authenticated(models.User{ID: "c-1", Role: models.RoleCustomer, UserName: "jane"}, nil, time.Now())
		req := testutil.NewRequest(t, http.MethodGet, "/shop/listing")
		req = req.WithContext(gate.WithSession(req.Context(), state))
		rr := testutil.DoRequest(view, req)

		assert.Contains(t, rr.Body.String(), "Welcome, jane.")
		assert.Contains(t, rr.Body.String(), `action="/auth/logout"`)
	})
}
