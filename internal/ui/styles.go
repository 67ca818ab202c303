// Package ui holds the lipgloss styles and small renderers shared by the
// terminal UI and the CLI output.
package ui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Colors used throughout the TUI.
var (
	ColorRed     = lipgloss.Color("#FF5F5F")
	ColorGreen   = lipgloss.Color("#5FD75F")
	ColorYellow  = lipgloss.Color("#FFD75F")
	ColorCyan    = lipgloss.Color("#5FD7FF")
	ColorGray    = lipgloss.Color("#808080")
	ColorDimGray = lipgloss.Color("#444444")
	ColorWhite   = lipgloss.Color("#FFFFFF")
)

// Base styles.
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorCyan)

	TabStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(ColorGray)

	ActiveTabStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Bold(true).
			Foreground(ColorWhite).
			Underline(true)

	StatusStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorRed).
			Bold(true)

	DimStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	HighlightStyle = lipgloss.NewStyle().
			Foreground(ColorYellow)

	UpStyle = lipgloss.NewStyle().
		Foreground(ColorGreen)

	DownStyle = lipgloss.NewStyle().
			Foreground(ColorRed)

	CardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorDimGray).
			Padding(0, 1)

	FooterKeyStyle = lipgloss.NewStyle().
			Foreground(ColorYellow).
			Bold(true)

	FooterDescStyle = lipgloss.NewStyle().
			Foreground(ColorGray)
)

var sparkRunes = []rune("▁▂▃▄▅▆▇█")

// Sparkline renders values as a one-line bar chart scaled to their own
// min and max. A flat series renders at the lowest level.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	var b strings.Builder
	for _, v := range values {
		idx := 0
		if hi > lo {
			idx = int(math.Round((v - lo) / (hi - lo) * float64(len(sparkRunes)-1)))
		}
		b.WriteRune(sparkRunes[idx])
	}
	return b.String()
}

// Delta renders a signed change, green when the index went up.
func Delta(d float64) string {
	text := fmt.Sprintf("%+.3f", d)
	switch {
	case d > 0:
		return UpStyle.Render(text)
	case d < 0:
		return DownStyle.Render(text)
	default:
		return DimStyle.Render(text)
	}
}

// KeyHelp renders "key desc" pairs for a footer.
func KeyHelp(pairs ...string) string {
	var parts []string
	for i := 0; i+1 < len(pairs); i += 2 {
		parts = append(parts, FooterKeyStyle.Render(pairs[i])+" "+FooterDescStyle.Render(pairs[i+1]))
	}
	return strings.Join(parts, "  ")
}
