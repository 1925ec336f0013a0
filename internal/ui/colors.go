// Package ui holds the terminal styling shared by CLI commands.
package ui

// ANSI color and style constants for CLI output
const (
	ColorReset = "\033[0m"
	ColorBold  = "\033[1m"
	ColorDim   = "\033[2m"

	ColorCyan   = "\033[36m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorWhite  = "\033[97m"
	ColorRed    = "\033[31m"
)

// Bold renders s in bold.
func Bold(s string) string {
	return ColorBold + s + ColorReset
}

func Success(s string) string {
	return ColorGreen + s + ColorReset
}

func Info(s string) string {
	return ColorDim + ColorYellow + s + ColorReset
}

func Error(s string) string {
	return ColorRed + s + ColorReset
}

// Dim renders secondary text such as hints and run IDs.
func Dim(s string) string {
	return ColorDim + s + ColorReset
}

// Code renders a one-time code so it stands out from surrounding text.
func Code(s string) string {
	return ColorBold + ColorGreen + s + ColorReset
}
