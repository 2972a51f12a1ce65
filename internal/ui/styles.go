package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Colors used throughout the TUI.
var (
	ColorRed     = lipgloss.Color("#FF5555")
	ColorGreen   = lipgloss.Color("#50FA7B")
	ColorYellow  = lipgloss.Color("#F1FA8C")
	ColorPurple  = lipgloss.Color("#BD93F9")
	ColorPink    = lipgloss.Color("#FF79C6")
	ColorGray    = lipgloss.Color("#6272A4")
	ColorDimGray = lipgloss.Color("#44475A")
	ColorWhite   = lipgloss.Color("#F8F8F2")
)

// Base styles reused by UI components.
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPurple)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(ColorPink)

	LiveDotStyle = lipgloss.NewStyle().
			Foreground(ColorGreen).
			Bold(true)

	IdleDotStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	OnBadgeStyle = lipgloss.NewStyle().
			Foreground(ColorGreen).
			Bold(true)

	OffBadgeStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	PendingStyle = lipgloss.NewStyle().
			Foreground(ColorYellow)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorRed).
			Bold(true)

	ErrorTextStyle = lipgloss.NewStyle().
			Foreground(ColorRed)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorGreen)

	PanelTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorWhite)

	SelectedStyle = lipgloss.NewStyle().
			Foreground(ColorPurple).
			Bold(true)

	DimStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	FooterKeyStyle = lipgloss.NewStyle().
			Foreground(ColorYellow).
			Bold(true)

	FooterDescStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	DividerStyle = lipgloss.NewStyle().
			Foreground(ColorDimGray)

	BarFilledStyle = lipgloss.NewStyle().
			Foreground(ColorPurple)

	BarHotStyle = lipgloss.NewStyle().
			Foreground(ColorPink)

	BarEmptyStyle = lipgloss.NewStyle().
			Foreground(ColorDimGray)

	SpinnerStyle = lipgloss.NewStyle().
			Foreground(ColorPink)

	DialogStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorPurple).
			Padding(1, 2)
)

// Bar renders v in [0, 1] as a fixed-width meter. The upper part of the
// range is drawn in the hot color.
func Bar(v float64, width int) string {
	if width <= 0 {
		return ""
	}
	filled := int(v*float64(width) + 0.5)
	filled = max(0, min(width, filled))

	var b strings.Builder
	for i := 0; i < width; i++ {
		switch {
		case i >= filled:
			b.WriteString(BarEmptyStyle.Render("░"))
		case float64(i)/float64(width) >= 0.75:
			b.WriteString(BarHotStyle.Render("█"))
		default:
			b.WriteString(BarFilledStyle.Render("█"))
		}
	}
	return b.String()
}

// Key renders a footer hint such as "q Quit".
func Key(key, desc string) string {
	return FooterKeyStyle.Render(key) + FooterDescStyle.Render(" "+desc)
}

// Footer joins key hints.
func Footer(hints ...string) string {
	return strings.Join(hints, "  ")
}
