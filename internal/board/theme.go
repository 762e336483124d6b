package board

import (
	"fmt"
	"image/color"
	"sort"
	"strings"
)

// Theme names a pair of square colours.
type Theme struct {
	Name  string `json:"name"`
	Light string `json:"light"`
	Dark  string `json:"dark"`
}

// DefaultTheme is the white and gold board.
const DefaultTheme = "gold"

var themes = map[string]Theme{
	"gold":    {Name: "gold", Light: "#ffffff", Dark: "#d4af37"},
	"classic": {Name: "classic", Light: "#f0d9b5", Dark: "#b58863"},
	"green":   {Name: "green", Light: "#eeeed2", Dark: "#769656"},
	"slate":   {Name: "slate", Light: "#dee3e6", Dark: "#788a94"},
}

// LookupTheme returns the named theme, falling back to DefaultTheme.
func LookupTheme(name string) (Theme, bool) {
	t, ok := themes[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return themes[DefaultTheme], false
	}
	return t, true
}

// Themes lists the available themes sorted by name.
func Themes() []Theme {
	out := make([]Theme, 0, len(themes))
	for _, t := range themes {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Class returns the CSS class of a square.
func (t Theme) Class(light bool) string {
	if light {
		return t.Name + "-light"
	}
	return t.Name + "-dark"
}

// Colors parses the theme's hex colours.
func (t Theme) Colors() (light, dark color.RGBA, err error) {
	if light, err = parseHex(t.Light); err != nil {
		return
	}
	dark, err = parseHex(t.Dark)
	return
}

func parseHex(s string) (color.RGBA, error) {
	var c color.RGBA
	c.A = 0xff
	if _, err := fmt.Sscanf(s, "#%02x%02x%02x", &c.R, &c.G, &c.B); err != nil {
		return c, fmt.Errorf("parse colour %q: %w", s, err)
	}
	return c, nil
}
