// Package ui renders CLI output with optional ANSI colors.
package ui

import "fmt"

// ANSI256 color codes.
const (
	colorAccent = 74  // blue
	colorOK     = 71  // green
	colorFail   = 167 // red
	colorMuted  = 245 // gray
)

var noColor bool

func paint(code int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent returns s in the accent color, used for ids.
func RenderAccent(s string) string { return paint(colorAccent, s) }

// RenderMuted returns s in gray, used for timestamps and secondary fields.
func RenderMuted(s string) string { return paint(colorMuted, s) }

// RenderOutcome labels a relay outcome as accepted or rejected.
func RenderOutcome(accepted bool) string {
	if accepted {
		return paint(colorOK, "accepted")
	}
	return paint(colorFail, "rejected")
}

// SetColor enables or disables color output globally.
func SetColor(enabled bool) {
	noColor = !enabled
}
