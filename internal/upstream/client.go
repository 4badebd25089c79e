// Package upstream is the client for the remote storefront REST API.
//
// Every call replays the browser session's stored upstream cookies, the
// server-side equivalent of a browser request made with credentials.
// Responses are the API's loose `{success, message, ...}` envelopes, read with
// gjson rather than fixed structs since field presence varies by endpoint.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"storefront/internal/session/models"
	id "storefront/pkg/domain"
	dErrors "storefront/pkg/domain-errors"
	"storefront/pkg/email"
	"storefront/pkg/platform/circuit"
	"storefront/pkg/platform/sentinel"
)

const (
	pathCheckAuth      = "/api/v1/check-auth"
	pathLogin          = "/api/v1/login"
	pathRegister       = "/api/v1/register"
	pathLogout         = "/api/v1/logout"
	pathResetEmail     = "/api/forget/verify-email"
	pathResetOTP       = "/api/forget/verify-otp"
	pathResetPassword  = "/api/forget/update-password"
	maxResponseBytes   = 1 << 20
	defaultHTTPTimeout = 10 * time.Second
)

// Client talks to the storefront API.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	tracer  trace.Tracer
	breaker *circuit.Breaker
	logger  *slog.Logger
	// breaker transitions by resulting state
	transitions *prometheus.CounterVec
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithBreaker fails calls fast while the API keeps failing. Only transport
// errors, timeouts and 5xx responses count as failures.
func WithBreaker(b *circuit.Breaker) Option {
	return func(c *Client) {
		c.breaker = b
	}
}

// WithLogger logs breaker transitions.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics registers the breaker transition counter with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *Client) {
		c.transitions = promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_upstream_breaker_transitions_total",
			Help: "Storefront API circuit breaker transitions by resulting state",
		}, []string{"breaker", "state"})
	}
}

// New builds a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid storefront api base url %q", baseURL)
	}
	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: defaultHTTPTimeout},
		tracer:  otel.Tracer("storefront/internal/upstream"),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// LoginResult carries the upstream cookies issued on login.
type LoginResult struct {
	Credentials []string
	Message     string
}

// RegisterRequest is the registration form forwarded to the API.
type RegisterRequest struct {
	UserName string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CheckAuth is the session probe. Any non-2xx response, an explicit
// `success:false`, or a payload without a user id is an error.
func (c *Client) CheckAuth(ctx context.Context, credentials []string) (models.User, error) {
	res, err := c.do(ctx, http.MethodGet, pathCheckAuth, credentials, nil)
	if err != nil {
		return models.User{}, err
	}

	user := res.body.Get("user")
	userID, err := id.ParseUserID(firstString(user, "id", "_id"))
	if err != nil {
		return models.User{}, dErrors.New(dErrors.CodeUnauthorized, "check-auth returned no user")
	}
	u := models.User{
		ID:       userID,
		Role:     models.Role(strings.ToLower(strings.TrimSpace(user.Get("role").String()))),
		UserName: firstString(user, "userName", "username", "name"),
		Email:    user.Get("email").String(),
	}
	if u.UserName == "" {
		u.UserName = email.DisplayName(u.Email)
	}
	return u, nil
}

// Login exchanges credentials for upstream session cookies.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	res, err := c.do(ctx, http.MethodPost, pathLogin, nil, map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Credentials: res.credentials, Message: res.message()}, nil
}

// Register creates a customer account.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (string, error) {
	res, err := c.do(ctx, http.MethodPost, pathRegister, nil, req)
	if err != nil {
		return "", err
	}
	return res.message(), nil
}

// Logout ends the upstream session identified by credentials.
func (c *Client) Logout(ctx context.Context, credentials []string) (string, error) {
	res, err := c.do(ctx, http.MethodPost, pathLogout, credentials, struct{}{})
	if err != nil {
		return "", err
	}
	return res.message(), nil
}

// SendResetOTP asks the API to email a one-time password.
func (c *Client) SendResetOTP(ctx context.Context, email string) (string, error) {
	res, err := c.do(ctx, http.MethodPost, pathResetEmail, nil, map[string]string{"email": email})
	if err != nil {
		return "", err
	}
	return res.message(), nil
}

// VerifyResetOTP checks the one-time password for email.
func (c *Client) VerifyResetOTP(ctx context.Context, email, otp string) (string, error) {
	res, err := c.do(ctx, http.MethodPost, pathResetOTP, nil, map[string]string{"email": email, "otp": otp})
	if err != nil {
		return "", err
	}
	return res.message(), nil
}

// UpdatePassword sets a new password once the OTP has been verified.
func (c *Client) UpdatePassword(ctx context.Context, email, password string) (string, error) {
	res, err := c.do(ctx, http.MethodPost, pathResetPassword, nil, map[string]string{"email": email, "password": password})
	if err != nil {
		return "", err
	}
	return res.message(), nil
}

type response struct {
	status      int
	body        gjson.Result
	credentials []string
}

func (r response) message() string {
	return r.body.Get("message").String()
}

func (c *Client) do(ctx context.Context, method, path string, credentials []string, payload any) (response, error) {
	ctx, span := c.tracer.Start(ctx, "upstream "+path, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.request.method", method),
		attribute.String("url.path", path),
	)

	if c.breaker != nil && !c.breaker.Allow() {
		span.SetStatus(codes.Error, "circuit open")
		return response{}, dErrors.Wrap(sentinel.ErrUnavailable, dErrors.CodeUpstream, "storefront api unavailable")
	}

	res, err := c.roundTrip(ctx, method, path, credentials, payload)
	c.record(ctx, err)
	if res.status != 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", res.status))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return res, err
}

func (c *Client) record(ctx context.Context, err error) {
	if c.breaker == nil {
		return
	}
	var change circuit.StateChange
	if errors.Is(err, sentinel.ErrUnavailable) {
		_, change = c.breaker.RecordFailure()
	} else {
		_, change = c.breaker.RecordSuccess()
	}

	switch {
	case change.Opened:
		c.logger.WarnContext(ctx, "storefront api circuit opened",
			"breaker", c.breaker.Name(),
			"error", err,
		)
		c.countTransition(circuit.StateOpen)
	case change.Closed:
		c.logger.InfoContext(ctx, "storefront api circuit closed", "breaker", c.breaker.Name())
		c.countTransition(circuit.StateClosed)
	}
}

func (c *Client) countTransition(state circuit.State) {
	if c.transitions == nil {
		return
	}
	c.transitions.WithLabelValues(c.breaker.Name(), state.String()).Inc()
}

func (c *Client) roundTrip(ctx context.Context, method, path string, credentials []string, payload any) (response, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return response{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode upstream request")
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.JoinPath(path).String(), body)
	if err != nil {
		return response{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to build upstream request")
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if len(credentials) > 0 {
		req.Header.Set("Cookie", strings.Join(credentials, "; "))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return response{}, dErrors.Wrap(errors.Join(sentinel.ErrUnavailable, err), dErrors.CodeTimeout, "storefront api timed out")
		}
		return response{}, dErrors.Wrap(errors.Join(sentinel.ErrUnavailable, err), dErrors.CodeUpstream, "storefront api unavailable")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return response{status: resp.StatusCode}, dErrors.Wrap(errors.Join(sentinel.ErrUnavailable, err), dErrors.CodeUpstream, "failed to read storefront api response")
	}

	res := response{status: resp.StatusCode, credentials: cookiePairs(resp.Cookies())}
	if gjson.ValidBytes(raw) {
		res.body = gjson.ParseBytes(raw)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return res, statusError(resp.StatusCode, res.message())
	}
	if success := res.body.Get("success"); success.Exists() && !success.Bool() {
		return res, dErrors.New(dErrors.CodeUnauthorized, messageOr(res.message(), "request rejected by storefront api"))
	}
	return res, nil
}

func statusError(status int, msg string) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return dErrors.New(dErrors.CodeUnauthorized, messageOr(msg, "not authenticated"))
	case status == http.StatusNotFound:
		return dErrors.New(dErrors.CodeNotFound, messageOr(msg, "not found"))
	case status == http.StatusConflict:
		return dErrors.New(dErrors.CodeConflict, messageOr(msg, "already exists"))
	case status == http.StatusTooManyRequests:
		return dErrors.New(dErrors.CodeRateLimited, messageOr(msg, "too many requests"))
	case status >= 400 && status < 500:
		return dErrors.New(dErrors.CodeValidation, messageOr(msg, "request rejected by storefront api"))
	default:
		return dErrors.Wrap(sentinel.ErrUnavailable, dErrors.CodeUpstream, fmt.Sprintf("storefront api returned %d", status))
	}
}

func cookiePairs(cookies []*http.Cookie) []string {
	pairs := make([]string, 0, len(cookies))
	for _, ck := range cookies {
		if ck.Name == "" || ck.MaxAge < 0 {
			continue
		}
		pairs = append(pairs, ck.Name+"="+ck.Value)
	}
	return pairs
}

func firstString(obj gjson.Result, keys ...string) string {
	for _, k := range keys {
		if v := obj.Get(k); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

func messageOr(msg, fallback string) string {
	if msg == "" {
		return fallback
	}
	return msg
}
