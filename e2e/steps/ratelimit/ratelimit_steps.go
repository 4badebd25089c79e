package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POSTForm(path string, form url.Values) error
	GetResponseField(field string) (interface{}, error)
	GetLastResponseHeader(name string) string
	Statuses() []int
	ResetStatuses()
}

// RegisterSteps registers rate-limiting step definitions for the auth form
// endpoints
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &ratelimitSteps{tc: tc}

	ctx.Step(`^I submit (\d+) login attempts for "([^"]*)"$`, steps.submitLoginAttempts)
	ctx.Step(`^at least one attempt should be rejected with 429$`, steps.someAttemptRejected)
	ctx.Step(`^the rejection should carry rate limit headers$`, steps.rejectionHasHeaders)
	ctx.Step(`^the rejection error should be "([^"]*)"$`, steps.rejectionErrorIs)
}

type ratelimitSteps struct {
	tc TestContext
}

func (s *ratelimitSteps) submitLoginAttempts(ctx context.Context, attempts int, email string) error {
	s.tc.ResetStatuses()
	for i := 0; i < attempts; i++ {
		err := s.tc.POSTForm("/auth/login", url.Values{
			"email":    {email},
			"password": {"wrong-password"},
		})
		if err != nil {
			return err
		}
		if s.last() == http.StatusTooManyRequests {
			return nil
		}
	}
	return nil
}

func (s *ratelimitSteps) someAttemptRejected(ctx context.Context) error {
	if s.last() != http.StatusTooManyRequests {
		return fmt.Errorf("no attempt was rate limited: %v", s.tc.Statuses())
	}
	return nil
}

func (s *ratelimitSteps) rejectionHasHeaders(ctx context.Context) error {
	for _, h := range []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"} {
		if s.tc.GetLastResponseHeader(h) == "" {
			return fmt.Errorf("missing %s header", h)
		}
	}
	return nil
}

func (s *ratelimitSteps) rejectionErrorIs(ctx context.Context, want string) error {
	got, err := s.tc.GetResponseField("error")
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("expected error %q, got %v", want, got)
	}
	return nil
}

func (s *ratelimitSteps) last() int {
	statuses := s.tc.Statuses()
	if len(statuses) == 0 {
		return 0
	}
	return statuses[len(statuses)-1]
}
