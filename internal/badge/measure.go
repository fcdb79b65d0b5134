package badge

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Per-character width multipliers, as fractions of the font size. These are
// a heuristic, not real glyph metrics: what matters is that they are
// deterministic and used consistently for every layout decision. Wide
// (non-ASCII) characters count roughly double a lowercase letter.
const (
	widthUpper = 0.70
	widthLower = 0.58
	widthDigit = 0.62
	widthPunct = 0.35
	widthWide  = 1.15
	widthOther = 0.60
)

// Measure estimates the rendered width of text at the given font size by
// classifying each rune and accumulating a fixed fractional multiple of the
// font size per class. It is monotonically non-decreasing in string length.
// Measurement always uses the original casing; uppercase rendering never
// affects layout.
func Measure(text string, fontSize float64) float64 {
	var w float64
	for _, r := range text {
		w += runeWidthFactor(r) * fontSize
	}
	return w
}

func runeWidthFactor(r rune) float64 {
	switch {
	case r > 0x7E: // non-ASCII: assume a wide glyph
		return widthWide
	case r >= 'A' && r <= 'Z':
		return widthUpper
	case r >= 'a' && r <= 'z':
		return widthLower
	case r >= '0' && r <= '9':
		return widthDigit
	case r == '.' || r == ',' || r == ':' || r == ';' || r == '!' ||
		r == '\'' || r == '|':
		return widthPunct
	default:
		return widthOther
	}
}

// enPrinter formats counts with en-locale digit grouping ("1,234,567").
var enPrinter = message.NewPrinter(language.English)

// FormatCount renders a visitor count the way it appears on the badge. The
// same string feeds both measurement and glyph output, so cached counts and
// freshly rendered counts lay out identically.
func FormatCount(n int64) string {
	return enPrinter.Sprintf("%d", n)
}
