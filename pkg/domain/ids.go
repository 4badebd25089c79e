// Package domain holds the typed identifiers shared across packages.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "storefront/pkg/domain-errors"
)

// BrowserSessionID identifies one browser session held by the gateway.
// It is issued by us, signed into the session cookie, and keys SessionState.
type BrowserSessionID uuid.UUID

// UserID is the storefront API's user identifier. The API owns its format
// (Mongo ObjectIDs today), so it is kept opaque.
type UserID string

// NewBrowserSessionID returns a fresh random session id.
func NewBrowserSessionID() BrowserSessionID {
	return BrowserSessionID(uuid.New())
}

// ParseBrowserSessionID validates a session id taken from an untrusted source.
func ParseBrowserSessionID(s string) (BrowserSessionID, error) {
	if s == "" {
		return BrowserSessionID{}, dErrors.New(dErrors.CodeInvalidInput, "session id is required")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return BrowserSessionID{}, dErrors.New(dErrors.CodeInvalidInput, "invalid session id")
	}
	if parsed == uuid.Nil {
		return BrowserSessionID{}, dErrors.New(dErrors.CodeInvalidInput, "invalid session id")
	}
	return BrowserSessionID(parsed), nil
}

func (id BrowserSessionID) String() string {
	return uuid.UUID(id).String()
}

// IsNil reports whether the id is the zero value.
func (id BrowserSessionID) IsNil() bool {
	return uuid.UUID(id) == uuid.Nil
}

// ParseUserID trims and validates a user id returned by the storefront API.
func ParseUserID(s string) (UserID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}
	return UserID(s), nil
}

func (id UserID) String() string {
	return string(id)
}
