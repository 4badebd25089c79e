package gate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/session/models"
	id "storefront/pkg/domain"
	"storefront/pkg/testutil"
)

type stubResolver struct {
	state models.State
	err   error
	calls int
}

func (s *stubResolver) Resolve(_ context.Context, _ id.BrowserSessionID) (models.State, error) {
	s.calls++
	return s.state, s.err
}

type stubViews struct {
	missing string
}

func (v stubViews) View(p string) (http.Handler, bool) {
	if p == v.missing {
		return nil, false
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		state, _ := SessionFrom(r.Context())
		_, _ = io.WriteString(w, "view "+p+" "+state.AuthStatus.String())
	}), true
}

func (stubViews) Placeholder() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "loading")
	})
}

func newTestHandler(t *testing.T, resolver SessionResolver) (*Handler, *Metrics) {
	t.Helper()
	m := NewMetrics(prometheus.NewRegistry())
	h, err := NewHandler(resolver, stubViews{}, slog.New(slog.NewTextHandler(io.Discard, nil)), WithMetrics(m))
	require.NoError(t, err)
	return h, m
}

func pageRequest(t *testing.T, path string) *http.Request {
	req := testutil.NewRequest(t, http.MethodGet, path)
	return testutil.WithBrowserSession(req, id.NewBrowserSessionID().String())
}

func TestNewHandler_RequiresEveryView(t *testing.T) {
	_, err := NewHandler(&stubResolver{}, stubViews{missing: "/shop/checkout"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/shop/checkout")
}

func TestHandler_ServeHTTP(t *testing.T) {
	t.Run("unknown session serves an uncached placeholder", func(t *testing.T) {
		h, m := newTestHandler(t, &stubResolver{state: models.Unknown()})
		rr := testutil.DoRequest(h, pageRequest(t, "/shop/home"))

		testutil.AssertStatusOK(t, rr)
		assert.Equal(t, "loading", rr.Body.String())
		assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
		assert.Equal(t, float64(1), promtest.ToFloat64(m.Decisions.WithLabelValues("unknown", "placeholder")))
	})

	t.Run("admin on a shop path is redirected", func(t *testing.T) {
		h, _ := newTestHandler(t, &stubResolver{state: adminState()})
		rr := testutil.DoRequest(h, pageRequest(t, "/shop/home?ref=nav"))

		testutil.AssertStatus(t, rr, http.StatusFound)
		assert.Equal(t, AdminDefault, rr.Header().Get("Location"))
	})

	t.Run("customer renders the matched view with the session snapshot", func(t *testing.T) {
		h, m := newTestHandler(t, &stubResolver{state: customerState()})
		rr := testutil.DoRequest(h, pageRequest(t, "/shop/listing"))

		testutil.AssertStatusOK(t, rr)
		assert.Equal(t, "view /shop/listing authenticated", rr.Body.String())
		assert.Equal(t, float64(1), promtest.ToFloat64(m.Decisions.WithLabelValues("customer", "render")))
	})

	t.Run("store failure is evaluated as unauthenticated", func(t *testing.T) {
		resolver := &stubResolver{err: errors.New("redis down")}
		h, m := newTestHandler(t, resolver)
		rr := testutil.DoRequest(h, pageRequest(t, "/shop/listing"))

		testutil.AssertStatus(t, rr, http.StatusFound)
		assert.Equal(t, LoginPath, rr.Header().Get("Location"))
		assert.Equal(t, float64(1), promtest.ToFloat64(m.StoreFailures))
	})

	t.Run("request without a browser session skips the resolver", func(t *testing.T) {
		resolver := &stubResolver{state: adminState()}
		h, _ := newTestHandler(t, resolver)
		rr := testutil.DoRequest(h, testutil.NewRequest(t, http.MethodGet, "/auth/login"))

		testutil.AssertStatusOK(t, rr)
		assert.Equal(t, "view /auth/login unauthenticated", rr.Body.String())
		assert.Zero(t, resolver.calls)
	})

	t.Run("repeated requests give the same response", func(t *testing.T) {
		h, _ := newTestHandler(t, &stubResolver{state: customerState()})
		first := testutil.DoRequest(h, pageRequest(t, "/admin/order"))
		second := testutil.DoRequest(h, pageRequest(t, "/admin/order"))

		assert.Equal(t, first.Code, second.Code)
		assert.Equal(t, UnauthPath, first.Header().Get("Location"))
		assert.Equal(t, first.Header().Get("Location"), second.Header().Get("Location"))
	})
}
