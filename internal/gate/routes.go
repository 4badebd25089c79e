package gate

import (
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
)

// Path conventions shared with the storefront API and the page templates.
const (
	AdminPrefix = "/admin"
	ShopPrefix  = "/shop"
	AuthPrefix  = "/auth"

	AdminDefault = "/admin/dashboard"
	ShopDefault  = "/shop/home"
	LoginPath    = "/auth/login"
	RegisterPath = "/auth/register"
	ForgetPath   = "/auth/forget-password"
	UnauthPath   = "/unauth-page"
	NotFoundPath = "/not-found"
)

// RoleContext selects which route tree is active.
type RoleContext int

const (
	ContextUnauthenticated RoleContext = iota
	ContextAdmin
	ContextCustomer
)

func (c RoleContext) String() string {
	switch c {
	case ContextAdmin:
		return "admin"
	case ContextCustomer:
		return "customer"
	default:
		return "unauthenticated"
	}
}

// Route is one entry of a route tree. A route either renders the view
// registered for Path or, when RedirectTo is set, redirects there.
type Route struct {
	Path       string
	RedirectTo string
}

// RouteTree is the immutable set of routes reachable in one role context.
type RouteTree struct {
	context  RoleContext
	routes   []Route
	byPath   map[string]Route
	mux      *chi.Mux
	fallback string
}

func newRouteTree(rc RoleContext, fallback string, routes ...Route) *RouteTree {
	t := &RouteTree{
		context:  rc,
		routes:   routes,
		byPath:   make(map[string]Route, len(routes)),
		mux:      chi.NewMux(),
		fallback: fallback,
	}
	for _, r := range routes {
		t.byPath[r.Path] = r
		t.mux.Get(r.Path, http.NotFound)
	}
	if _, ok := t.byPath[fallback]; !ok {
		panic(fmt.Sprintf("gate: fallback %s is not a route of the %s tree", fallback, rc))
	}
	return t
}

// Context reports the role context the tree belongs to.
func (t *RouteTree) Context() RoleContext { return t.context }

// Fallback is where unmatched paths are redirected.
func (t *RouteTree) Fallback() string { return t.fallback }

// Routes returns the tree's routes in declaration order.
func (t *RouteTree) Routes() []Route {
	out := make([]Route, len(t.routes))
	copy(out, t.routes)
	return out
}

// ViewPaths lists the paths that render a view.
func (t *RouteTree) ViewPaths() []string {
	var out []string
	for _, r := range t.routes {
		if r.RedirectTo == "" {
			out = append(out, r.Path)
		}
	}
	return out
}

// match resolves a normalised path against the tree.
func (t *RouteTree) match(p string) Outcome {
	rctx := chi.NewRouteContext()
	pattern := t.mux.Find(rctx, http.MethodGet, p)
	route, ok := t.byPath[pattern]
	switch {
	case !ok:
		return redirect(t.context, t.fallback)
	case route.RedirectTo != "":
		return redirect(t.context, route.RedirectTo)
	default:
		return Outcome{Kind: KindRender, Context: t.context, Path: route.Path}
	}
}

var (
	adminTree = newRouteTree(ContextAdmin, AdminDefault,
		Route{Path: AdminPrefix, RedirectTo: AdminDefault},
		Route{Path: "/admin/dashboard"},
		Route{Path: "/admin/feature"},
		Route{Path: "/admin/order"},
		Route{Path: "/admin/products"},
	)
	customerTree = newRouteTree(ContextCustomer, ShopDefault,
		Route{Path: ShopPrefix, RedirectTo: ShopDefault},
		Route{Path: "/shop/home"},
		Route{Path: "/shop/account"},
		Route{Path: "/shop/checkout"},
		Route{Path: "/shop/listing"},
		Route{Path: UnauthPath},
	)
	publicTree = newRouteTree(ContextUnauthenticated, LoginPath,
		Route{Path: AuthPrefix, RedirectTo: LoginPath},
		Route{Path: LoginPath},
		Route{Path: RegisterPath},
		Route{Path: ForgetPath},
		Route{Path: NotFoundPath},
	)
)

// Tree returns the route tree for rc.
func Tree(rc RoleContext) *RouteTree {
	switch rc {
	case ContextAdmin:
		return adminTree
	case ContextCustomer:
		return customerTree
	default:
		return publicTree
	}
}

// Trees returns every route tree.
func Trees() []*RouteTree {
	return []*RouteTree{publicTree, adminTree, customerTree}
}

// normalize cleans p into an absolute path without a trailing slash. Query
// strings are the caller's concern; only URL.Path is passed in.
func normalize(p string) string {
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}
