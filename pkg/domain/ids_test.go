package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "storefront/pkg/domain-errors"
)

// TestParseBrowserSessionID_Invariants validates that session ids read from
// cookies are non-empty, well-formed, non-nil UUIDs.
func TestParseBrowserSessionID_Invariants(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"Empty string", "", true},
		{"Nil UUID", uuid.Nil.String(), true},
		{"Whitespace only", "   ", true},
		{"Path traversal", "../../../etc/passwd", true},
		{"Null byte injection", "550e8400\x00-e29b-41d4-a716-446655440000", true},
		{"Oversized input", strings.Repeat("a", 1000), true},
		{"Uppercase valid UUID", "550E8400-E29B-41D4-A716-446655440000", false},
		{"Valid UUID lowercase", "550e8400-e29b-41d4-a716-446655440000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBrowserSessionID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestBrowserSessionID_RoundTrip(t *testing.T) {
	id := NewBrowserSessionID()
	require.False(t, id.IsNil())

	parsed, err := ParseBrowserSessionID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestParseUserID(t *testing.T) {
	t.Run("rejects blank", func(t *testing.T) {
		_, err := ParseUserID("  ")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("keeps opaque upstream ids", func(t *testing.T) {
		id, err := ParseUserID(" 66f1c0ffee0123456789abcd ")
		require.NoError(t, err)
		assert.Equal(t, UserID("66f1c0ffee0123456789abcd"), id)
	})
}
