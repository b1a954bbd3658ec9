package imagecache

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Aspect is a placeholder shape.
type Aspect string

const (
	Landscape Aspect = "landscape"
	Square    Aspect = "square"
	Portrait  Aspect = "portrait"
)

var placeholders = map[Aspect]string{
	Landscape: svgPlaceholder(400, 300),
	Square:    svgPlaceholder(300, 300),
	Portrait:  svgPlaceholder(300, 400),
}

// svgPlaceholder draws a grey frame with a picture glyph and returns it as a
// base64 data URL.
func svgPlaceholder(w, h int) string {
	cx, cy := w/2, h/2
	svg := fmt.Sprintf(
		`<svg width="%d" height="%d" viewBox="0 0 %d %d" fill="none" xmlns="http://www.w3.org/2000/svg">`+
			`<rect width="%d" height="%d" fill="#F3F4F6"/>`+
			`<circle cx="%d" cy="%d" r="25" fill="#9CA3AF"/>`+
			`<path d="M%d %dH%dV%dH%dZ" fill="#9CA3AF"/>`+
			`<text x="%d" y="%d" text-anchor="middle" fill="#667785" font-family="system-ui, sans-serif" font-size="14">Image unavailable</text>`+
			`</svg>`,
		w, h, w, h,
		w, h,
		cx, cy-20,
		cx-35, cy+15, cx+35, cy+20, cx-35,
		cx, cy+50,
	)
	return "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString([]byte(svg))
}

// Placeholder returns the data URL for the given aspect, defaulting to landscape.
func Placeholder(a Aspect) string {
	if p, ok := placeholders[a]; ok {
		return p
	}
	return placeholders[Landscape]
}

// IsPlaceholder reports whether u is one of the built-in placeholders.
func IsPlaceholder(u string) bool {
	for _, p := range placeholders {
		if u == p {
			return true
		}
	}
	return false
}

// FallbackFor picks a placeholder for a failed URL from shape hints in the
// URL itself. A placeholder maps to itself.
func FallbackFor(u string) string {
	if IsPlaceholder(u) {
		return u
	}
	lower := strings.ToLower(u)
	switch {
	case strings.Contains(lower, "portrait"), strings.Contains(lower, "vertical"):
		return Placeholder(Portrait)
	case strings.Contains(lower, "square"):
		return Placeholder(Square)
	}
	return Placeholder(Landscape)
}
