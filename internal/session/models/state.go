package models

import (
	"time"

	id "storefront/pkg/domain"
)

// AuthStatus is the tri-state outcome of the session probe.
type AuthStatus string

const (
	// AuthStatusUnknown is the initial value and persists until a probe resolves.
	AuthStatusUnknown         AuthStatus = "unknown"
	AuthStatusAuthenticated   AuthStatus = "authenticated"
	AuthStatusUnauthenticated AuthStatus = "unauthenticated"
)

func (s AuthStatus) String() string {
	return string(s)
}

// Role is the storefront API's user role. Only RoleAdmin is special; every
// other value is treated as a customer.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleCustomer Role = "user"
)

// IsAdmin reports whether the role grants the admin console.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

// User is the profile returned by the check-auth endpoint.
type User struct {
	ID       id.UserID `json:"id"`
	Role     Role      `json:"role"`
	UserName string    `json:"user_name,omitempty"`
	Email    string    `json:"email,omitempty"`
}

// State is the per-browser SessionState.
//
// User is set if and only if AuthStatus is AuthStatusAuthenticated. Build
// values with Unknown, Authenticated and Unauthenticated to keep that true.
type State struct {
	AuthStatus AuthStatus `json:"auth_status"`
	User       *User      `json:"user,omitempty"`
	// Credentials are upstream cookies ("name=value") replayed on API calls.
	Credentials []string  `json:"credentials,omitempty"`
	CheckedAt   time.Time `json:"checked_at"`
	// Version is bumped by the store on every successful write.
	Version uint64 `json:"version"`
}

// Unknown is the state of a session whose probe has not resolved.
func Unknown() State {
	return State{AuthStatus: AuthStatusUnknown}
}

// Pending is an unresolved session that holds credentials still waiting for
// their first check, such as right after login.
func Pending(credentials []string) State {
	return State{
		AuthStatus:  AuthStatusUnknown,
		Credentials: append([]string(nil), credentials...),
	}
}

// Authenticated is the state after a successful probe or login.
func Authenticated(user User, credentials []string, at time.Time) State {
	u := user
	return State{
		AuthStatus:  AuthStatusAuthenticated,
		User:        &u,
		Credentials: append([]string(nil), credentials...),
		CheckedAt:   at,
	}
}

// Unauthenticated is the state after logout or a failed probe. Credentials
// are always dropped.
func Unauthenticated(at time.Time) State {
	return State{AuthStatus: AuthStatusUnauthenticated, CheckedAt: at}
}

// IsResolved reports whether the probe has produced an answer.
func (s State) IsResolved() bool {
	return s.AuthStatus == AuthStatusAuthenticated || s.AuthStatus == AuthStatusUnauthenticated
}

// Valid reports whether the user/status invariant holds.
func (s State) Valid() bool {
	switch s.AuthStatus {
	case AuthStatusAuthenticated:
		return s.User != nil && s.User.ID != ""
	case AuthStatusUnknown, AuthStatusUnauthenticated:
		return s.User == nil
	default:
		return false
	}
}

// Role returns the user's role and true only for authenticated sessions.
func (s State) Role() (Role, bool) {
	if s.AuthStatus != AuthStatusAuthenticated || s.User == nil {
		return "", false
	}
	return s.User.Role, true
}

// StaleAt reports whether an authenticated state was last checked more than
// interval before now. Other states never go stale.
func (s State) StaleAt(now time.Time, interval time.Duration) bool {
	if s.AuthStatus != AuthStatusAuthenticated || interval <= 0 {
		return false
	}
	return now.Sub(s.CheckedAt) > interval
}
