package textutil

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxFileNameBytes bounds sanitized names so "<name>.NNN.ext" stays under
// the common 255 byte file name limit.
const MaxFileNameBytes = 200

var disallowedFileRune = runes.Predicate(func(r rune) bool {
	switch {
	case unicode.IsLetter(r), unicode.IsDigit(r):
		return false
	case r == ' ', r == '-', r == '_', r == '.':
		return false
	default:
		return true
	}
})

// SafeFileName reduces name to letters, digits, space, dash, underscore, and
// dot. Runs of whitespace collapse to one space, leading dots are dropped so
// the result is never hidden, and the result is truncated on a rune boundary.
// Returns fallback when nothing survives.
func SafeFileName(name, fallback string) string {
	cleaned, _, err := transform.String(transform.Chain(norm.NFC, runes.Remove(disallowedFileRune)), name)
	if err != nil {
		cleaned = ""
	}
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	cleaned = strings.TrimLeft(cleaned, ". ")
	cleaned = truncateBytes(cleaned, MaxFileNameBytes)
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return fallback
	}
	return cleaned
}

// SanitizeToken converts a string to a lowercase filesystem-safe token.
// Letters are lowercased, digits and hyphens/underscores are kept, everything
// else becomes an underscore. Returns "unknown" for empty input.
func SanitizeToken(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	var b strings.Builder
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "_-")
	if out == "" {
		return "unknown"
	}
	return truncateBytes(out, 64)
}

func truncateBytes(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(value[cut]) {
		cut--
	}
	return value[:cut]
}
