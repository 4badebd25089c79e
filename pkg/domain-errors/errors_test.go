package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("matches direct error", func(t *testing.T) {
		err := New(CodeUnauthorized, "invalid credentials")
		assert.True(t, HasCode(err, CodeUnauthorized))
		assert.False(t, HasCode(err, CodeInternal))
	})

	t.Run("matches through fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("login: %w", New(CodeRateLimited, "slow down"))
		assert.True(t, HasCode(err, CodeRateLimited))
	})

	t.Run("plain errors have no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
	})
}

func TestWrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, CodeUpstream, "storefront api unavailable")

	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.True(t, HasCode(err, CodeUpstream))
	assert.Contains(t, err.Error(), "connection refused")
	assert.NoError(t, Wrap(nil, CodeInternal, "ignored"))
}

func TestIs_ComparesCodeAndMessage(t *testing.T) {
	err := New(CodeValidation, "email is required")
	assert.True(t, Is(err, New(CodeValidation, "email is required")))
	assert.False(t, Is(err, New(CodeValidation, "password is required")))
}
