package gate

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cucumber/godog"
)

const (
	// placeholderMarker identifies the loading page served while the
	// session probe is in flight.
	placeholderMarker = `http-equiv="refresh"`
	resolveAttempts   = 20
	resolveBackoff    = 250 * time.Millisecond
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	GET(path string) error
	GetResponseField(field string) (interface{}, error)
	Location() string
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
}

// RegisterSteps registers route gate step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &gateSteps{tc: tc}

	ctx.Step(`^I visit "([^"]*)"$`, steps.visit)
	ctx.Step(`^I visit "([^"]*)" (\d+) times$`, steps.visitRepeatedly)
	ctx.Step(`^the session should be "([^"]*)"$`, steps.sessionShouldBe)
	ctx.Step(`^the session context should be "([^"]*)"$`, steps.sessionContextShouldBe)
	ctx.Step(`^every visit should be redirected the same way$`, steps.everyVisitSame)
}

type gateSteps struct {
	tc        TestContext
	locations []string
}

// visit requests path and re-requests it while the loading placeholder is
// served, the way the placeholder's meta refresh would.
func (s *gateSteps) visit(ctx context.Context, path string) error {
	for attempt := 0; attempt < resolveAttempts; attempt++ {
		if err := s.tc.GET(path); err != nil {
			return err
		}
		if !s.isPlaceholder() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(resolveBackoff):
		}
	}
	return fmt.Errorf("session for %s did not resolve after %d attempts", path, resolveAttempts)
}

func (s *gateSteps) visitRepeatedly(ctx context.Context, path string, times int) error {
	s.locations = nil
	for i := 0; i < times; i++ {
		if err := s.visit(ctx, path); err != nil {
			return err
		}
		s.locations = append(s.locations, fmt.Sprintf("%d %s", s.tc.GetLastResponseStatus(), s.tc.Location()))
	}
	return nil
}

func (s *gateSteps) everyVisitSame(ctx context.Context) error {
	if len(s.locations) == 0 {
		return fmt.Errorf("no visits recorded")
	}
	for _, loc := range s.locations[1:] {
		if loc != s.locations[0] {
			return fmt.Errorf("visits diverged: %v", s.locations)
		}
	}
	return nil
}

func (s *gateSteps) sessionShouldBe(ctx context.Context, want string) error {
	return s.sessionField(ctx, "auth_status", want)
}

func (s *gateSteps) sessionContextShouldBe(ctx context.Context, want string) error {
	return s.sessionField(ctx, "context", want)
}

func (s *gateSteps) sessionField(ctx context.Context, field, want string) error {
	for attempt := 0; attempt < resolveAttempts; attempt++ {
		if err := s.tc.GET("/api/session"); err != nil {
			return err
		}
		if s.tc.GetLastResponseStatus() != http.StatusOK {
			return fmt.Errorf("session API returned %d", s.tc.GetLastResponseStatus())
		}
		status, err := s.tc.GetResponseField("auth_status")
		if err != nil {
			return err
		}
		if status != "unknown" {
			break
		}
		time.Sleep(resolveBackoff)
	}

	got, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("expected session %s %q, got %v", field, want, got)
	}
	return nil
}

func (s *gateSteps) isPlaceholder() bool {
	return s.tc.GetLastResponseStatus() == http.StatusOK &&
		strings.Contains(string(s.tc.GetLastResponseBody()), placeholderMarker)
}
