// Package validate holds the pure input checks shared by the conversation
// flows. None of these functions truncate input; length limits are enforced
// by each call site.
package validate

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var urlPattern = regexp.MustCompile(`^https?://\S+$`)

// punctuation runes allowed through SanitizeText in addition to word
// characters and whitespace.
const allowedPunct = "-.,!?@#&%€:/"

// SanitizeText strips one layer of surrounding quote characters and removes
// every rune outside the allowed set: word characters, whitespace, a fixed
// punctuation set, and the emoji range U+1F300..U+1FAFF.
func SanitizeText(s string) string {
	s = strings.Trim(s, `"'`)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if allowedRune(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func allowedRune(r rune) bool {
	switch {
	case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
		return true
	case unicode.IsSpace(r):
		return true
	case strings.ContainsRune(allowedPunct, r):
		return true
	case r >= 0x1F300 && r <= 0x1FAFF:
		return true
	}
	return false
}

// ParseDecimal parses trimmed free text as a decimal number. Failure signals
// a re-prompt, never an abort.
func ParseDecimal(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// ValidURL reports whether s looks like an http(s) URL with no embedded
// whitespace. Reachability is not checked.
func ValidURL(s string) bool {
	return urlPattern.MatchString(s)
}

// TrimQuotes removes surrounding whitespace and one layer of double quotes,
// as applied to replacement names during rename.
func TrimQuotes(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"'`)
}
