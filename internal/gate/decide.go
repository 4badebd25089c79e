// Package gate decides, for every page request, whether the storefront shows
// the loading placeholder, renders a page, or redirects.
package gate

import (
	"strings"

	"storefront/internal/session/models"
)

// Kind tags the variant of an Outcome.
type Kind int

const (
	KindPlaceholder Kind = iota
	KindRender
	KindRedirect
)

func (k Kind) String() string {
	switch k {
	case KindRender:
		return "render"
	case KindRedirect:
		return "redirect"
	default:
		return "placeholder"
	}
}

// Outcome is the result of one gate evaluation. Path is set for KindRender,
// Target for KindRedirect. Context is meaningless for KindPlaceholder.
type Outcome struct {
	Kind    Kind
	Context RoleContext
	Path    string
	Target  string
}

func redirect(rc RoleContext, target string) Outcome {
	return Outcome{Kind: KindRedirect, Context: rc, Target: target}
}

// ContextFor maps a session snapshot to its role context. It reports false
// while the session is unresolved. The role is only read from authenticated
// sessions.
func ContextFor(state models.State) (RoleContext, bool) {
	switch state.AuthStatus {
	case models.AuthStatusAuthenticated:
		role, ok := state.Role()
		if !ok {
			return ContextUnauthenticated, true
		}
		if role.IsAdmin() {
			return ContextAdmin, true
		}
		return ContextCustomer, true
	case models.AuthStatusUnauthenticated:
		return ContextUnauthenticated, true
	default:
		return ContextUnauthenticated, false
	}
}

// Decide maps a session snapshot and a request path to exactly one outcome.
// It has no side effects.
func Decide(state models.State, rawPath string) Outcome {
	rc, resolved := ContextFor(state)
	if !resolved {
		return Outcome{Kind: KindPlaceholder}
	}

	p := normalize(rawPath)
	switch rc {
	case ContextAdmin:
		if strings.HasPrefix(p, ShopPrefix) {
			return redirect(rc, AdminDefault)
		}
	case ContextCustomer:
		if strings.HasPrefix(p, AdminPrefix) {
			return redirect(rc, UnauthPath)
		}
	}
	return Tree(rc).match(p)
}
