// Package views holds the storefront pages served by the route gate.
package views

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"storefront/internal/gate"
	"storefront/internal/session/models"
	"storefront/pkg/requestcontext"
)

//go:embed templates
var templateFS embed.FS

// page pairs a route path with its title and template file.
type page struct {
	path  string
	title string
	file  string
}

var pages = []page{
	{gate.LoginPath, "Login", "login.html"},
	{gate.RegisterPath, "Register", "register.html"},
	{gate.ForgetPath, "Forgot Password", "forget_password.html"},
	{gate.NotFoundPath, "Not Found", "not_found.html"},
	{"/admin/dashboard", "Dashboard", "admin_dashboard.html"},
	{"/admin/feature", "Features", "admin_feature.html"},
	{"/admin/order", "Orders", "admin_order.html"},
	{"/admin/products", "Products", "admin_products.html"},
	{"/shop/home", "Home", "shop_home.html"},
	{"/shop/account", "Account", "shop_account.html"},
	{"/shop/checkout", "Checkout", "shop_checkout.html"},
	{"/shop/listing", "Listing", "shop_listing.html"},
	{gate.UnauthPath, "Unauthorized", "unauth.html"},
}

// Data is what every page template receives.
type Data struct {
	Title          string
	Path           string
	User           *models.User
	Admin          bool
	Error          string
	Notice         string
	Email          string
	Step           string
	RefreshSeconds int
}

// Registry maps route paths to page handlers.
type Registry struct {
	pages       map[string]http.Handler
	placeholder http.Handler
}

// New parses every page. refreshSeconds is how often the loading placeholder
// reloads itself while the session probe runs.
func New(logger *slog.Logger, refreshSeconds int) (*Registry, error) {
	if refreshSeconds < 1 {
		refreshSeconds = 1
	}
	reg := &Registry{pages: make(map[string]http.Handler, len(pages))}
	for _, p := range pages {
		tmpl, err := template.ParseFS(templateFS, "templates/layout.html", "templates/pages/"+p.file)
		if err != nil {
			return nil, fmt.Errorf("parse page %s: %w", p.path, err)
		}
		reg.pages[p.path] = &pageHandler{page: p, tmpl: tmpl, logger: logger}
	}

	tmpl, err := template.ParseFS(templateFS, "templates/layout.html", "templates/placeholder.html")
	if err != nil {
		return nil, fmt.Errorf("parse placeholder: %w", err)
	}
	reg.placeholder = &pageHandler{
		page:    page{title: "Loading"},
		tmpl:    tmpl,
		logger:  logger,
		refresh: refreshSeconds,
	}
	return reg, nil
}

// View returns the page for a route path.
func (r *Registry) View(path string) (http.Handler, bool) {
	h, ok := r.pages[path]
	return h, ok
}

// Placeholder is shown while the session is still being checked.
func (r *Registry) Placeholder() http.Handler {
	return r.placeholder
}

type pageHandler struct {
	page    page
	tmpl    *template.Template
	logger  *slog.Logger
	refresh int
}

func (h *pageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	data := Data{
		Title:          h.page.title,
		Path:           h.page.path,
		Error:          q.Get("error"),
		Notice:         q.Get("message"),
		Email:          q.Get("email"),
		Step:           q.Get("step"),
		RefreshSeconds: h.refresh,
	}
	if state, ok := gate.SessionFrom(r.Context()); ok && state.AuthStatus == models.AuthStatusAuthenticated && state.User != nil {
		user := *state.User
		data.User = &user
		data.Admin = user.Role.IsAdmin()
	}

	var buf bytes.Buffer
	if err := h.tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to render page",
			"path", h.page.path,
			"error", err,
			"request_id", requestcontext.RequestID(r.Context()),
		)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
