// Package sessioncookie signs and verifies the browser-session cookie.
//
// The cookie carries nothing but the BrowserSessionID; all session state lives
// server side. Signing stops clients from guessing or forging someone else's
// session key.
package sessioncookie

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "storefront/pkg/domain"
	dErrors "storefront/pkg/domain-errors"
	"storefront/pkg/platform/sentinel"
)

// Claims represents the JWT claims of the session cookie.
type Claims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Codec handles session cookie creation and validation.
type Codec struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
}

func NewCodec(signingKey string, issuer string, ttl time.Duration) *Codec {
	return &Codec{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		ttl:        ttl,
	}
}

// TTL is the lifetime of issued cookies.
func (c *Codec) TTL() time.Duration {
	return c.ttl
}

// Encode signs sid into a cookie value valid for the codec TTL from now.
func (c *Codec) Encode(sid id.BrowserSessionID, now time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		SessionID: sid.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    c.issuer,
			ID:        uuid.NewString(),
		},
	})

	signed, err := token.SignedString(c.signingKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign session cookie")
	}
	return signed, nil
}

// Decode verifies a cookie value and returns the session id it carries and
// when the cookie was issued. Expired cookies return an error wrapping
// sentinel.ErrExpired.
func (c *Codec) Decode(value string) (id.BrowserSessionID, time.Time, error) {
	parsed, err := jwt.ParseWithClaims(value, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return c.signingKey, nil
	}, jwt.WithIssuer(c.issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return id.BrowserSessionID{}, time.Time{}, dErrors.Wrap(sentinel.ErrExpired, dErrors.CodeUnauthorized, "session cookie has expired")
		}
		return id.BrowserSessionID{}, time.Time{}, dErrors.New(dErrors.CodeUnauthorized, "invalid session cookie")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return id.BrowserSessionID{}, time.Time{}, dErrors.New(dErrors.CodeUnauthorized, "invalid session cookie")
	}

	sid, err := id.ParseBrowserSessionID(claims.SessionID)
	if err != nil {
		return id.BrowserSessionID{}, time.Time{}, dErrors.New(dErrors.CodeUnauthorized, "invalid session cookie")
	}
	var issuedAt time.Time
	if claims.IssuedAt != nil {
		issuedAt = claims.IssuedAt.Time
	}
	return sid, issuedAt, nil
}
