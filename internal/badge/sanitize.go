package badge

import (
	"strings"
	"unicode"
)

// maxTextRunes bounds every string embedded in badge SVG output, including
// AI-generated text.
const maxTextRunes = 50

// Sanitize prepares user-supplied or generated text for embedding in SVG
// markup. It strips XML-significant characters (< > & ' "), drops control
// and other non-printable characters, trims surrounding whitespace, and
// truncates to a bounded rune length. Sanitize is idempotent:
// Sanitize(Sanitize(x)) == Sanitize(x).
func Sanitize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch r {
		case '<', '>', '&', '\'', '"':
			continue
		}
		if r < 0x20 || r == 0x7F || !unicode.IsPrint(r) {
			continue
		}
		b.WriteRune(r)
	}
	out := strings.TrimSpace(b.String())
	runes := []rune(out)
	if len(runes) > maxTextRunes {
		out = strings.TrimSpace(string(runes[:maxTextRunes]))
	}
	return out
}
