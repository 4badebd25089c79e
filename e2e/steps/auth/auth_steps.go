package auth

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POSTForm(path string, form url.Values) error
	Location() string
	GetLastResponseStatus() int
}

// RegisterSteps registers authentication-related step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &authSteps{tc: tc}

	// Form submissions
	ctx.Step(`^I log in with email "([^"]*)" and password "([^"]*)"$`, steps.logIn)
	ctx.Step(`^I log in as the configured (admin|customer)$`, steps.logInAs)
	ctx.Step(`^I register as "([^"]*)" with email "([^"]*)" and password "([^"]*)"$`, steps.register)
	ctx.Step(`^I log out$`, steps.logOut)
	ctx.Step(`^I request a password reset for "([^"]*)"$`, steps.requestReset)

	// Outcome assertions
	ctx.Step(`^I should be sent back to "([^"]*)" with error "([^"]*)"$`, steps.sentBackWithError)
	ctx.Step(`^I should be sent back to "([^"]*)" with message "([^"]*)"$`, steps.sentBackWithMessage)
}

type authSteps struct {
	tc TestContext
}

func (s *authSteps) logIn(ctx context.Context, email, password string) error {
	return s.tc.POSTForm("/auth/login", url.Values{
		"email":    {email},
		"password": {password},
	})
}

// logInAs uses accounts provisioned on the upstream API, read from
// E2E_ADMIN_EMAIL / E2E_ADMIN_PASSWORD or the E2E_CUSTOMER_* pair.
func (s *authSteps) logInAs(ctx context.Context, role string) error {
	prefix := "E2E_" + strings.ToUpper(role)
	email, password := os.Getenv(prefix+"_EMAIL"), os.Getenv(prefix+"_PASSWORD")
	if email == "" || password == "" {
		return godog.ErrSkip
	}
	return s.logIn(ctx, email, password)
}

func (s *authSteps) register(ctx context.Context, username, email, password string) error {
	return s.tc.POSTForm("/auth/register", url.Values{
		"username": {username},
		"email":    {email},
		"password": {password},
	})
}

func (s *authSteps) logOut(ctx context.Context) error {
	return s.tc.POSTForm("/auth/logout", url.Values{})
}

func (s *authSteps) requestReset(ctx context.Context, email string) error {
	return s.tc.POSTForm("/auth/forget-password/email", url.Values{"email": {email}})
}

func (s *authSteps) sentBackWithError(ctx context.Context, path, message string) error {
	return s.sentBackWith(path, "error", message)
}

func (s *authSteps) sentBackWithMessage(ctx context.Context, path, message string) error {
	return s.sentBackWith(path, "message", message)
}

func (s *authSteps) sentBackWith(path, key, want string) error {
	if status := s.tc.GetLastResponseStatus(); status != 303 {
		return fmt.Errorf("expected 303 See Other, got %d", status)
	}
	loc, err := url.Parse(s.tc.Location())
	if err != nil {
		return fmt.Errorf("parse location: %w", err)
	}
	if loc.Path != path {
		return fmt.Errorf("expected redirect to %s, got %s", path, loc.Path)
	}
	if got := loc.Query().Get(key); got != want {
		return fmt.Errorf("expected %s %q, got %q", key, want, got)
	}
	return nil
}
