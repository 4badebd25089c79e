// Package service owns per-browser SessionState: it runs the session probe,
// applies login and logout, and hands the route gate a consistent snapshot.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"storefront/internal/session/metrics"
	"storefront/internal/session/models"
	"storefront/internal/upstream"
	id "storefront/pkg/domain"
	dErrors "storefront/pkg/domain-errors"
	"storefront/pkg/platform/sentinel"
	"storefront/pkg/requestcontext"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks APIClient

// Repository persists SessionState. Save is a compare-and-swap on Version:
// it fails with sentinel.ErrConflict unless the stored version (0 when
// absent) equals expectedVersion. Touch restarts a stored session's expiry
// and returns sentinel.ErrNotFound when there is nothing to extend.
type Repository interface {
	Load(ctx context.Context, sid id.BrowserSessionID) (models.State, error)
	Save(ctx context.Context, sid id.BrowserSessionID, state models.State, expectedVersion uint64) (models.State, error)
	Touch(ctx context.Context, sid id.BrowserSessionID) error
	Delete(ctx context.Context, sid id.BrowserSessionID) error
}

// APIClient is the subset of the storefront API the session service calls.
type APIClient interface {
	CheckAuth(ctx context.Context, credentials []string) (models.User, error)
	Login(ctx context.Context, email, password string) (upstream.LoginResult, error)
	Register(ctx context.Context, req upstream.RegisterRequest) (string, error)
	Logout(ctx context.Context, credentials []string) (string, error)
	SendResetOTP(ctx context.Context, email string) (string, error)
	VerifyResetOTP(ctx context.Context, email, otp string) (string, error)
	UpdatePassword(ctx context.Context, email, password string) (string, error)
}

// Config bounds the probe.
type Config struct {
	// ProbeTimeout caps one check-auth call; on expiry the session resolves
	// to unauthenticated.
	ProbeTimeout time.Duration
	// ProbeWait is how long a page request waits for an in-flight probe
	// before the gate shows the loading placeholder.
	ProbeWait time.Duration
	// RecheckInterval re-probes authenticated sessions in the background
	// once they are this old. Zero disables.
	RecheckInterval time.Duration
}

const maxWriteAttempts = 3

type Service struct {
	repo    Repository
	api     APIClient
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	probes  singleflight.Group
}

// Option configures a Service.
type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(repo Repository, api APIClient, cfg Config, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		api:    api,
		cfg:    cfg,
		logger: logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Resolve returns the session snapshot the gate should evaluate.
//
// A browser with no stored session has no credentials to check, so it
// resolves to unauthenticated without a store write or an upstream call.
// Unresolved sessions are probed and Resolve waits up to ProbeWait for the
// answer; an Unknown result means the probe is still running. Stale
// authenticated sessions are re-probed in the background and returned as
// they are. Every stored session seen here has its expiry extended.
func (s *Service) Resolve(ctx context.Context, sid id.BrowserSessionID) (models.State, error) {
	state, err := s.repo.Load(ctx, sid)
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.Unauthenticated(requestcontext.Now(ctx)), nil
	}
	if err != nil {
		return models.State{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load session")
	}
	s.touch(ctx, sid)

	switch {
	case !state.IsResolved():
		return s.await(ctx, s.startProbe(ctx, sid), state), nil
	case state.StaleAt(requestcontext.Now(ctx), s.cfg.RecheckInterval):
		s.startProbe(ctx, sid)
	}
	return state, nil
}

// Recheck probes the session now and returns the resulting state.
func (s *Service) Recheck(ctx context.Context, sid id.BrowserSessionID) (models.State, error) {
	select {
	case res := <-s.startProbe(ctx, sid):
		if res.Err != nil {
			return models.State{}, dErrors.Wrap(res.Err, dErrors.CodeInternal, "failed to store probe result")
		}
		return res.Val.(models.State), nil
	case <-ctx.Done():
		return models.State{}, dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "session check did not finish")
	}
}

func (s *Service) touch(ctx context.Context, sid id.BrowserSessionID) {
	if err := s.repo.Touch(ctx, sid); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		s.logger.WarnContext(ctx, "failed to extend session expiry",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}

// startProbe runs at most one probe per session at a time; concurrent
// callers share its result. The probe outlives the request that started it.
func (s *Service) startProbe(ctx context.Context, sid id.BrowserSessionID) <-chan singleflight.Result {
	probeCtx := context.WithoutCancel(ctx)
	return s.probes.DoChan(sid.String(), func() (any, error) {
		return s.probe(probeCtx, sid)
	})
}

func (s *Service) await(ctx context.Context, ch <-chan singleflight.Result, current models.State) models.State {
	if s.cfg.ProbeWait <= 0 {
		return current
	}
	timer := time.NewTimer(s.cfg.ProbeWait)
	defer timer.Stop()

	select {
	case res := <-ch:
		if res.Err != nil {
			return current
		}
		return res.Val.(models.State)
	case <-timer.C:
		return current
	case <-ctx.Done():
		return current
	}
}

// probe calls check-auth with the session's stored credentials and writes the
// answer unless a newer write landed meanwhile. Any probe failure resolves
// the session to unauthenticated. A session without credentials cannot pass
// check-auth, so it resolves without calling upstream.
func (s *Service) probe(ctx context.Context, sid id.BrowserSessionID) (models.State, error) {
	current, err := s.repo.Load(ctx, sid)
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.Unauthenticated(time.Now()), nil
	}
	if err != nil {
		return models.State{}, err
	}
	if len(current.Credentials) == 0 {
		if current.AuthStatus == models.AuthStatusUnauthenticated {
			return current, nil
		}
		return s.settle(ctx, sid, current, models.Unauthenticated(time.Now()))
	}

	checkCtx, cancel := s.probeContext(ctx)
	defer cancel()

	start := time.Now()
	user, checkErr := s.api.CheckAuth(checkCtx, current.Credentials)
	now := time.Now()

	next := models.Authenticated(user, current.Credentials, now)
	if checkErr != nil {
		next = models.Unauthenticated(now)
		s.logger.InfoContext(ctx, "session probe resolved unauthenticated",
			"reason", checkErr,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	s.metrics.ObserveProbe(time.Since(start).Seconds(), next.AuthStatus.String())

	return s.settle(ctx, sid, current, next)
}

// settle writes a probe result over current unless a newer write landed.
func (s *Service) settle(ctx context.Context, sid id.BrowserSessionID, current, next models.State) (models.State, error) {
	saved, err := s.repo.Save(ctx, sid, next, current.Version)
	if errors.Is(err, sentinel.ErrConflict) {
		s.metrics.IncrementProbeDiscards()
		s.logger.DebugContext(ctx, "discarding probe result superseded by newer session write",
			"request_id", requestcontext.RequestID(ctx),
		)
		return s.loadOrUnauthenticated(ctx, sid)
	}
	return saved, err
}

// loadOrUnauthenticated reads the session, treating a deleted one as signed out.
func (s *Service) loadOrUnauthenticated(ctx context.Context, sid id.BrowserSessionID) (models.State, error) {
	state, err := s.repo.Load(ctx, sid)
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.Unauthenticated(time.Now()), nil
	}
	return state, err
}

func (s *Service) probeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.ProbeTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.ProbeTimeout)
}

// write stores next over whatever the session currently holds. Explicit
// actions retry on conflict; probes never do, so an action always wins.
func (s *Service) write(ctx context.Context, sid id.BrowserSessionID, next models.State) (models.State, error) {
	var lastErr error
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		var version uint64
		current, err := s.repo.Load(ctx, sid)
		switch {
		case err == nil:
			version = current.Version
		case errors.Is(err, sentinel.ErrNotFound):
		default:
			return models.State{}, err
		}

		saved, err := s.repo.Save(ctx, sid, next, version)
		if err == nil {
			return saved, nil
		}
		if !errors.Is(err, sentinel.ErrConflict) {
			return models.State{}, err
		}
		lastErr = err
	}
	return models.State{}, lastErr
}
