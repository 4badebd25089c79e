package e2e

import (
	"github.com/cucumber/godog"

	"storefront/e2e/steps/auth"
	"storefront/e2e/steps/common"
	"storefront/e2e/steps/gate"
	"storefront/e2e/steps/ratelimit"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Register common steps (visitors, generic requests, assertions)
	common.RegisterSteps(ctx, tc)

	// Register route gate steps
	gate.RegisterSteps(ctx, tc)

	// Register authentication-specific steps
	auth.RegisterSteps(ctx, tc)

	// Register rate-limiting steps
	ratelimit.RegisterSteps(ctx, tc)
}
