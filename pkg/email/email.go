// Package email derives presentation values from account email addresses.
package email

import (
	"strings"
	"unicode"
)

const fallbackName = "Shopper"

// DisplayName builds a greeting name from the local part of an address:
// "jane.doe+shop@example.com" becomes "Jane Doe".
func DisplayName(address string) string {
	local := strings.TrimSpace(address)
	if at := strings.IndexByte(local, '@'); at >= 0 {
		local = local[:at]
	}
	if plus := strings.IndexByte(local, '+'); plus >= 0 {
		local = local[:plus]
	}

	parts := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-'
	})
	if len(parts) == 0 {
		return fallbackName
	}
	for i, p := range parts {
		parts[i] = capitalize(p)
	}
	return strings.Join(parts, " ")
}

func capitalize(s string) string {
	runes := []rune(strings.ToLower(s))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
