package ui

import "fmt"

// ansiStyle renders text wrapped in an SGR color code, or passes it
// through unchanged when code is empty (no-color mode).
type ansiStyle struct {
	code string
}

// Render wraps s in the style's ANSI escape sequence.
func (a ansiStyle) Render(s string) string {
	if a.code == "" {
		return s
	}
	return fmt.Sprintf("\x1b[%sm%s\x1b[0m", a.code, s)
}

// Styles holds the color styles used by plain-text status/progress output.
type Styles struct {
	Header  ansiStyle
	Success ansiStyle
	Warning ansiStyle
	Error   ansiStyle
}

// DefaultStyles returns ANSI-colored styles.
func DefaultStyles() Styles {
	return Styles{
		Header:  ansiStyle{code: "1;32"}, // bold green
		Success: ansiStyle{code: "32"},   // green
		Warning: ansiStyle{code: "33"},   // yellow
		Error:   ansiStyle{code: "31"},   // red
	}
}

// NoColorStyles returns styles that pass text through unchanged.
func NoColorStyles() Styles {
	return Styles{}
}

// GetStyles returns the appropriate styles based on color preference.
func GetStyles(noColor bool) Styles {
	if noColor {
		return NoColorStyles()
	}
	return DefaultStyles()
}
