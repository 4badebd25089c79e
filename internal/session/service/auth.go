package service

import (
	"context"
	"regexp"

	"storefront/internal/session/models"
	"storefront/internal/upstream"
	id "storefront/pkg/domain"
	dErrors "storefront/pkg/domain-errors"
	"storefront/pkg/requestcontext"
)

const (
	actionLogin          = "login"
	actionLogout         = "logout"
	actionRegister       = "register"
	actionResetEmail     = "reset_email"
	actionResetOTP       = "reset_otp"
	actionResetPassword  = "reset_password"
	minResetPasswordSize = 5
)

var otpPattern = regexp.MustCompile(`^[0-9]{5}$`)

// Login signs in upstream, confirms the new credentials with a probe and
// stores the authenticated state. The caller navigates once afterwards; there
// is no second navigation or reload.
//
// The session is stored as pending before the confirmation so page requests
// racing the login see an unresolved session rather than a signed-out one.
func (s *Service) Login(ctx context.Context, sid id.BrowserSessionID, email, password string) (models.State, error) {
	res, err := s.api.Login(ctx, email, password)
	if err != nil {
		s.metrics.IncrementAuthAction(actionLogin, "rejected")
		return models.State{}, err
	}

	if _, err := s.write(ctx, sid, models.Pending(res.Credentials)); err != nil {
		s.metrics.IncrementAuthAction(actionLogin, "error")
		return models.State{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store session")
	}

	checkCtx, cancel := s.probeContext(ctx)
	defer cancel()
	user, err := s.api.CheckAuth(checkCtx, res.Credentials)
	if err != nil {
		s.metrics.IncrementAuthAction(actionLogin, "probe_failed")
		if derr := s.repo.Delete(ctx, sid); derr != nil {
			return models.State{}, dErrors.Wrap(derr, dErrors.CodeInternal, "failed to clear session")
		}
		return models.State{}, dErrors.Wrap(err, dErrors.CodeUpstream, "login succeeded but the session could not be confirmed")
	}

	state, err := s.write(ctx, sid, models.Authenticated(user, res.Credentials, requestcontext.Now(ctx)))
	if err != nil {
		s.metrics.IncrementAuthAction(actionLogin, "error")
		return models.State{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store session")
	}

	s.metrics.IncrementAuthAction(actionLogin, "success")
	s.logger.InfoContext(ctx, "user logged in",
		"user_id", user.ID,
		"role", user.Role,
		"request_id", requestcontext.RequestID(ctx),
	)
	return state, nil
}

// Logout ends the upstream session and deletes the stored state, so the
// browser is back to a cookie with nothing behind it. Local state is cleared
// even when the upstream call fails. A probe still in flight finds the
// session gone and its result is discarded.
func (s *Service) Logout(ctx context.Context, sid id.BrowserSessionID) (models.State, error) {
	if current, err := s.repo.Load(ctx, sid); err == nil && len(current.Credentials) > 0 {
		if _, err := s.api.Logout(ctx, current.Credentials); err != nil {
			s.logger.WarnContext(ctx, "upstream logout failed; clearing local session anyway",
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
	}

	if err := s.repo.Delete(ctx, sid); err != nil {
		s.metrics.IncrementAuthAction(actionLogout, "error")
		return models.State{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to clear session")
	}
	s.metrics.IncrementAuthAction(actionLogout, "success")
	return models.Unauthenticated(requestcontext.Now(ctx)), nil
}

// Register creates an account. The session is left as it is; the customer
// logs in afterwards.
func (s *Service) Register(ctx context.Context, req upstream.RegisterRequest) (string, error) {
	msg, err := s.api.Register(ctx, req)
	s.countAction(actionRegister, err)
	return msg, err
}

// SendResetOTP starts the forgot-password flow.
func (s *Service) SendResetOTP(ctx context.Context, email string) (string, error) {
	msg, err := s.api.SendResetOTP(ctx, email)
	s.countAction(actionResetEmail, err)
	return msg, err
}

// VerifyResetOTP checks a 5-digit one-time password.
func (s *Service) VerifyResetOTP(ctx context.Context, email, otp string) (string, error) {
	if !otpPattern.MatchString(otp) {
		return "", dErrors.New(dErrors.CodeValidation, "OTP must be 5 digits")
	}
	msg, err := s.api.VerifyResetOTP(ctx, email, otp)
	s.countAction(actionResetOTP, err)
	return msg, err
}

// UpdatePassword finishes the forgot-password flow.
func (s *Service) UpdatePassword(ctx context.Context, email, password string) (string, error) {
	if len(password) < minResetPasswordSize {
		return "", dErrors.New(dErrors.CodeValidation, "Password must be at least 5 characters")
	}
	msg, err := s.api.UpdatePassword(ctx, email, password)
	s.countAction(actionResetPassword, err)
	return msg, err
}

func (s *Service) countAction(action string, err error) {
	if err != nil {
		s.metrics.IncrementAuthAction(action, "rejected")
		return
	}
	s.metrics.IncrementAuthAction(action, "success")
}
