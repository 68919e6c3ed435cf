package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// svcbench Sky Blue Theme
var (
	DeepSkyBlue  = lipgloss.Color("#00BFFF")
	LightSkyBlue = lipgloss.Color("#B0E0E6")

	White     = lipgloss.Color("#FFFFFF")
	LightGray = lipgloss.Color("#B0B0B0")

	// Status colors
	Success = lipgloss.Color("#00FF88")
	Warning = lipgloss.Color("#FFD700")
	Error   = lipgloss.Color("#FF6B6B")

	LogoStyle = lipgloss.NewStyle().
			Foreground(DeepSkyBlue).
			Bold(true)

	LabelStyle = lipgloss.NewStyle().
			Foreground(LightSkyBlue)

	ValueStyle = lipgloss.NewStyle().
			Foreground(White).
			Bold(true)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(Success).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(Warning)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)

	DimStyle = lipgloss.NewStyle().
			Foreground(LightGray)
)

// MiniLogo returns the one-line logo.
func MiniLogo() string {
	return LogoStyle.Render(Crosshair + " svcbench")
}

// Label renders a "label: value" pair.
func Label(label, value string) string {
	return LabelStyle.Render(label+":") + " " + ValueStyle.Render(value)
}

// StatusStyle picks a style for an HTTP status line: 2xx and 3xx succeed,
// 4xx warn, anything else is an error.
func StatusStyle(status string) lipgloss.Style {
	switch {
	case strings.HasPrefix(status, "2"), strings.HasPrefix(status, "3"):
		return SuccessStyle
	case strings.HasPrefix(status, "4"):
		return WarningStyle
	default:
		return ErrorStyle
	}
}

const (
	ArrowRight = "→"
	CheckMark  = "✓"
	CrossMark  = "✗"
	Crosshair  = "⌖"
)
