package validators

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxIDLen caps employee, client and item identifiers taken from requests.
const MaxIDLen = 128

// CleanID trims raw, drops control characters and truncates to MaxIDLen
// bytes without splitting a UTF-8 sequence.
func CleanID(raw string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, strings.TrimSpace(raw))
	if len(cleaned) <= MaxIDLen {
		return cleaned
	}
	cut := MaxIDLen
	for cut > 0 && !utf8.RuneStart(cleaned[cut]) {
		cut--
	}
	return strings.TrimSpace(cleaned[:cut])
}
