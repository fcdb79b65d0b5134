package badge

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Spec describes one badge to render. A Spec is constructed per request,
// never mutated, and discarded after rendering.
type Spec struct {
	Label      string
	Message    string
	Style      string // style id; unknown ids fall back to flat
	Color      string // message segment color (named or literal hex)
	LabelColor string // label segment color (named or literal hex)
	Scale      float64
	Logo       string  // optional image href (typically a data: URI)
	LogoWidth  float64 // logo edge length; defaults to 14 when a logo is set

	// Minimum segment widths in unscaled units; zero means no minimum.
	// The AI badge uses these to keep short generated texts readable.
	MinLabelWidth   float64
	MinMessageWidth float64
}

const defaultLogoWidth = 14

var upperCaser = cases.Upper(language.Und)

// Render produces a complete SVG document for the given spec. It is pure
// and deterministic: the same spec always yields byte-identical output.
// Label and message are sanitized before layout, so the output never
// contains XML-significant characters from user input.
func Render(spec Spec) string {
	profile := StyleByID(spec.Style)

	scale := spec.Scale
	if scale <= 0 {
		scale = 1
	}

	label := Sanitize(spec.Label)
	message := Sanitize(spec.Message)

	fs := profile.FontSize
	labelW := segmentWidth(label, fs, profile.PaddingH, spec.MinLabelWidth) * scale
	messageW := segmentWidth(message, fs, profile.PaddingH, spec.MinMessageWidth) * scale

	logoW := 0.0
	logoAllowance := 0.0
	if spec.Logo != "" {
		logoW = spec.LogoWidth
		if logoW <= 0 {
			logoW = defaultLogoWidth
		}
		logoW *= scale
		logoAllowance = logoW + 4*scale
	}

	height := profile.Height * scale
	totalW := labelW + messageW + logoAllowance
	fontSize := fs * scale

	labelGlyphs := label
	messageGlyphs := message
	if profile.Uppercase {
		// Glyphs only; measurement above used the original casing.
		labelGlyphs = upperCaser.String(label)
		messageGlyphs = upperCaser.String(message)
	}

	segmentRx := ""
	if profile.Rounded {
		segmentRx = fmt.Sprintf(` rx="%s"`, fmtNum(profile.Radius*scale))
	}

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	fmt.Fprintf(&b,
		`<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink" width="%s" height="%s">`+"\n",
		fmtNum(totalW), fmtNum(height))
	fmt.Fprintf(&b, "  <title>%s: %s</title>\n", label, message)

	if profile.Gradient {
		b.WriteString(`  <linearGradient id="s" x2="0" y2="100%">` + "\n")
		b.WriteString(`    <stop offset="0" stop-color="#fff" stop-opacity=".7"/>` + "\n")
		b.WriteString(`    <stop offset=".1" stop-color="#aaa" stop-opacity=".1"/>` + "\n")
		b.WriteString(`    <stop offset=".9" stop-color="#000" stop-opacity=".3"/>` + "\n")
		b.WriteString(`    <stop offset="1" stop-color="#000" stop-opacity=".5"/>` + "\n")
		b.WriteString("  </linearGradient>\n")
	}

	fmt.Fprintf(&b, "  <clipPath id=\"r\">\n    <rect width=\"%s\" height=\"%s\" rx=\"%s\" fill=\"#fff\"/>\n  </clipPath>\n",
		fmtNum(totalW), fmtNum(height), fmtNum(profile.Radius))

	b.WriteString("  <g clip-path=\"url(#r)\">\n")
	fmt.Fprintf(&b, "    <rect width=\"%s\" height=\"%s\" fill=\"#%s\"%s/>\n",
		fmtNum(labelW+logoAllowance), fmtNum(height), ResolveColor(spec.LabelColor), segmentRx)
	fmt.Fprintf(&b, "    <rect x=\"%s\" width=\"%s\" height=\"%s\" fill=\"#%s\"%s/>\n",
		fmtNum(labelW+logoAllowance), fmtNum(messageW), fmtNum(height), ResolveColor(spec.Color), segmentRx)
	if profile.Gradient {
		fmt.Fprintf(&b, "    <rect width=\"%s\" height=\"%s\" fill=\"url(#s)\"/>\n",
			fmtNum(totalW), fmtNum(height))
	}
	b.WriteString("  </g>\n")

	if profile.Shadow {
		b.WriteString("  <g fill=\"#000\" fill-opacity=\".3\">\n")
		fmt.Fprintf(&b, "    <rect x=\"1\" width=\"%s\" height=\"1\"/>\n", fmtNum(labelW+logoAllowance))
		fmt.Fprintf(&b, "    <rect x=\"%s\" width=\"%s\" height=\"1\"/>\n",
			fmtNum(labelW+logoAllowance+1), fmtNum(messageW))
		b.WriteString("  </g>\n")
	}

	fmt.Fprintf(&b,
		"  <g fill=\"#fff\" text-anchor=\"middle\" font-family=\"Verdana,Geneva,DejaVu Sans,sans-serif\" font-size=\"%s\">\n",
		fmtNum(fontSize))
	if spec.Logo != "" {
		fmt.Fprintf(&b, "    <image x=\"%s\" y=\"%s\" width=\"%s\" height=\"%s\" xlink:href=\"%s\"/>\n",
			fmtNum(5*scale), fmtNum((height-logoW)/2), fmtNum(logoW), fmtNum(logoW), escapeAttr(spec.Logo))
	}
	fmt.Fprintf(&b, "    <text x=\"%s\" y=\"%s\" dominant-baseline=\"middle\">%s</text>\n",
		fmtNum(logoAllowance+labelW/2), fmtNum(height/2), labelGlyphs)
	fmt.Fprintf(&b, "    <text x=\"%s\" y=\"%s\" dominant-baseline=\"middle\">%s</text>\n",
		fmtNum(logoAllowance+labelW+messageW/2), fmtNum(height/2), messageGlyphs)
	b.WriteString("  </g>\n")
	b.WriteString("</svg>")

	return b.String()
}

// ErrorBadge renders the fixed red-on-gray badge used for every failure
// path, with the given short message (e.g. "Rate Limited", "Server Error").
func ErrorBadge(message string) string {
	return Render(Spec{
		Label:      "Error: Too many requests",
		Message:    message,
		Style:      "flat",
		Color:      "red",
		LabelColor: "gray",
		Scale:      1,
	})
}

// segmentWidth computes one segment's unscaled width: the measured text
// width plus padding on both sides, floored at min.
func segmentWidth(text string, fontSize, paddingH, min float64) float64 {
	w := Measure(text, fontSize) + 2*paddingH
	if w < min {
		w = min
	}
	return w
}

// fmtNum formats a dimension rounded to one decimal, with no trailing
// zeros. Rounding keeps the output stable across floating-point noise.
func fmtNum(v float64) string {
	return strconv.FormatFloat(math.Round(v*10)/10, 'f', -1, 64)
}

// escapeAttr escapes the five XML-significant characters for attribute
// values (used for logo hrefs, which bypass Sanitize to keep data: URIs
// intact).
func escapeAttr(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&apos;",
	)
	return r.Replace(s)
}
