package badge

import "strings"

// namedColors maps the supported color aliases to hex triples (no leading
// '#'). Any value not present here is treated as a literal hex code with a
// leading '#' stripped.
var namedColors = map[string]string{
	"brightgreen": "44cc11",
	"green":       "97ca00",
	"yellow":      "dfb317",
	"yellowgreen": "a4a61d",
	"orange":      "fe7d37",
	"red":         "e05d44",
	"blue":        "007ec6",
	"grey":        "555",
	"gray":        "555",
	"lightgrey":   "9f9f9f",
	"lightgray":   "9f9f9f",
}

// defaultColorHex backs any color value that is neither named nor a valid
// literal hex code.
const defaultColorHex = "555"

// ResolveColor maps a user-supplied color to the hex value embedded in the
// SVG fill attribute. Named colors win; everything else must be a literal
// hex code (3 to 8 hex digits, '#' optional) or it falls back to gray. The
// result is interpolated into markup unescaped, so only hex digits may
// ever pass through.
func ResolveColor(c string) string {
	if hex, ok := namedColors[c]; ok {
		return hex
	}
	hex := strings.TrimPrefix(c, "#")
	if !isHexColor(hex) {
		return defaultColorHex
	}
	return hex
}

func isHexColor(s string) bool {
	if len(s) < 3 || len(s) > 8 {
		return false
	}
	for i := 0; i < len(s); i++ {
		switch b := s[i]; {
		case b >= '0' && b <= '9':
		case b >= 'a' && b <= 'f':
		case b >= 'A' && b <= 'F':
		default:
			return false
		}
	}
	return true
}
