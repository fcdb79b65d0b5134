// Package badge implements the deterministic SVG badge layout engine. It is
// pure: rendering performs no I/O and identical inputs always produce
// byte-identical output. The package owns the style profile table, the named
// color table, the per-character text measurement heuristic, and the text
// sanitizer applied to every string embedded in SVG markup.
package badge

// Style is a named bundle of layout constants selecting a badge's visual
// family. All dimensions are in unscaled SVG user units.
type Style struct {
	Height    float64 // badge height
	Radius    float64 // corner radius of the clip rect
	FontSize  float64 // label/message font size
	PaddingH  float64 // horizontal padding inside each segment
	Gradient  bool    // overlay the plastic-style vertical gradient
	Shadow    bool    // draw the one-pixel drop-shadow rects
	Uppercase bool    // render glyphs uppercased (measurement unaffected)
	Rounded   bool    // fully-rounded segment rects (social family)
}

// styles maps style ids to their profiles. The table is immutable after
// process start; unknown ids fall back to "flat" rather than failing so
// badge URLs stay forgiving.
var styles = map[string]Style{
	"flat":          {Height: 20, Radius: 3, FontSize: 11, PaddingH: 8},
	"flat-square":   {Height: 20, Radius: 0, FontSize: 11, PaddingH: 8},
	"plastic":       {Height: 20, Radius: 4, FontSize: 11, PaddingH: 8, Gradient: true, Shadow: true},
	"for-the-badge": {Height: 28, Radius: 4, FontSize: 14, PaddingH: 12, Uppercase: true},
	"social":        {Height: 20, Radius: 4, FontSize: 11, PaddingH: 8, Gradient: true, Shadow: true, Rounded: true},
}

// DefaultStyleID is the profile used when a request omits or misspells the
// style parameter.
const DefaultStyleID = "flat"

// StyleByID resolves a style id to its profile. Unknown ids resolve to the
// flat profile.
func StyleByID(id string) Style {
	if s, ok := styles[id]; ok {
		return s
	}
	return styles[DefaultStyleID]
}

// KnownStyle reports whether id names a registered style profile.
func KnownStyle(id string) bool {
	_, ok := styles[id]
	return ok
}
