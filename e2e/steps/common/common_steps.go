package common

import (
	"context"
	"fmt"
	"strings"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	NewBrowser()
	GET(path string) error
	FollowRedirect() error
	Location() string
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	GetLastResponseHeader(name string) string
}

// RegisterSteps registers visitor, request and assertion steps shared by
// every feature
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	ctx.Step(`^I am a new visitor$`, steps.newVisitor)
	ctx.Step(`^I request "([^"]*)"$`, steps.request)
	ctx.Step(`^I follow the redirect$`, steps.followRedirect)

	ctx.Step(`^the response status should be (\d+)$`, steps.statusShouldBe)
	ctx.Step(`^I should be redirected to "([^"]*)"$`, steps.redirectedTo)
	ctx.Step(`^the page should contain "([^"]*)"$`, steps.pageShouldContain)
	ctx.Step(`^the page should not contain "([^"]*)"$`, steps.pageShouldNotContain)
	ctx.Step(`^the response header "([^"]*)" should be "([^"]*)"$`, steps.headerShouldBe)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) newVisitor(ctx context.Context) error {
	s.tc.NewBrowser()
	return nil
}

func (s *commonSteps) request(ctx context.Context, path string) error {
	return s.tc.GET(path)
}

func (s *commonSteps) followRedirect(ctx context.Context) error {
	return s.tc.FollowRedirect()
}

func (s *commonSteps) statusShouldBe(ctx context.Context, want int) error {
	if got := s.tc.GetLastResponseStatus(); got != want {
		return fmt.Errorf("expected status %d, got %d: %s", want, got, truncate(s.tc.GetLastResponseBody()))
	}
	return nil
}

func (s *commonSteps) redirectedTo(ctx context.Context, want string) error {
	status := s.tc.GetLastResponseStatus()
	if status < 300 || status >= 400 {
		return fmt.Errorf("expected a redirect to %s, got status %d", want, status)
	}
	if got := s.tc.Location(); got != want {
		return fmt.Errorf("expected redirect to %s, got %s", want, got)
	}
	return nil
}

func (s *commonSteps) pageShouldContain(ctx context.Context, text string) error {
	if !strings.Contains(string(s.tc.GetLastResponseBody()), text) {
		return fmt.Errorf("expected page to contain %q: %s", text, truncate(s.tc.GetLastResponseBody()))
	}
	return nil
}

func (s *commonSteps) pageShouldNotContain(ctx context.Context, text string) error {
	if strings.Contains(string(s.tc.GetLastResponseBody()), text) {
		return fmt.Errorf("expected page not to contain %q", text)
	}
	return nil
}

func (s *commonSteps) headerShouldBe(ctx context.Context, name, want string) error {
	if got := s.tc.GetLastResponseHeader(name); got != want {
		return fmt.Errorf("expected header %s=%q, got %q", name, want, got)
	}
	return nil
}

func truncate(body []byte) string {
	const max = 300
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
