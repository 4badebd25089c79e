package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStateConstructors_HoldUserInvariant(t *testing.T) {
	now := time.Now()
	user := User{ID: "u-1", Role: RoleAdmin}

	tests := []struct {
		name  string
		state State
	}{
		{"unknown", Unknown()},
		{"pending", Pending([]string{"token=abc"})},
		{"authenticated", Authenticated(user, []string{"token=abc"}, now)},
		{"unauthenticated", Unauthenticated(now)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.state.Valid())
			_, hasRole := tt.state.Role()
			assert.Equal(t, tt.state.AuthStatus == AuthStatusAuthenticated, hasRole)
		})
	}
}

func TestState_Valid_RejectsBrokenInvariant(t *testing.T) {
	assert.False(t, State{AuthStatus: AuthStatusAuthenticated}.Valid(), "authenticated without user")
	assert.False(t, State{AuthStatus: AuthStatusAuthenticated, User: &User{}}.Valid(), "authenticated with empty id")
	assert.False(t, State{AuthStatus: AuthStatusUnauthenticated, User: &User{ID: "u"}}.Valid(), "user leaked past logout")
	assert.False(t, State{AuthStatus: "maybe"}.Valid())
}

func TestAuthenticated_CopiesInputs(t *testing.T) {
	user := User{ID: "u-1", Role: RoleCustomer}
	creds := []string{"token=abc"}

	s := Authenticated(user, creds, time.Now())
	user.Role = RoleAdmin
	creds[0] = "token=changed"

	assert.Equal(t, RoleCustomer, s.User.Role)
	assert.Equal(t, "token=abc", s.Credentials[0])
}

func TestPending_IsUnresolvedWithCredentials(t *testing.T) {
	creds := []string{"token=abc"}
	s := Pending(creds)
	creds[0] = "token=changed"

	assert.Equal(t, AuthStatusUnknown, s.AuthStatus)
	assert.False(t, s.IsResolved())
	assert.Equal(t, []string{"token=abc"}, s.Credentials)

	assert.False(t, Unknown().IsResolved())
	assert.True(t, Unauthenticated(time.Now()).IsResolved())
	assert.True(t, Authenticated(User{ID: "u-1"}, nil, time.Now()).IsResolved())
}

func TestState_StaleAt(t *testing.T) {
	checked := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := Authenticated(User{ID: "u-1"}, nil, checked)

	assert.False(t, s.StaleAt(checked.Add(time.Minute), 5*time.Minute))
	assert.True(t, s.StaleAt(checked.Add(6*time.Minute), 5*time.Minute))
	assert.False(t, s.StaleAt(checked.Add(time.Hour), 0), "zero interval disables rechecks")
	assert.False(t, Unauthenticated(checked).StaleAt(checked.Add(time.Hour), time.Minute))
}

func TestRole_IsAdmin(t *testing.T) {
	assert.True(t, RoleAdmin.IsAdmin())
	assert.False(t, RoleCustomer.IsAdmin())
	assert.False(t, Role("seller").IsAdmin())
}
