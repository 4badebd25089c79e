package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisplayName(t *testing.T) {
	tests := []struct {
		address string
		want    string
	}{
		{"jane.doe@example.com", "Jane Doe"},
		{"JANE_DOE+shop@example.com", "Jane Doe"},
		{"bob@example.com", "Bob"},
		{"mary-ann.smith@example.com", "Mary Ann Smith"},
		{"@example.com", "Shopper"},
		{"", "Shopper"},
		{"..@example.com", "Shopper"},
	}
	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			assert.Equal(t, tt.want, DisplayName(tt.address))
		})
	}
}
