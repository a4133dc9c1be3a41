package tui

import "github.com/charmbracelet/lipgloss"

// Confidence thresholds used to color bot replies.
const (
	highConfidence   = 0.7
	mediumConfidence = 0.5
)

type theme struct {
	header  lipgloss.Style
	user    lipgloss.Style
	bot     lipgloss.Style
	system  map[string]lipgloss.Style
	high    lipgloss.Style
	medium  lipgloss.Style
	low     lipgloss.Style
	muted   lipgloss.Style
	status  lipgloss.Style
	frame   lipgloss.Style
	spinner lipgloss.Style
}

func newTheme() theme {
	blue := lipgloss.Color("#3a86ff")
	green := lipgloss.Color("#2a9d8f")
	yellow := lipgloss.Color("#e9c46a")
	red := lipgloss.Color("#e63946")
	muted := lipgloss.Color("#8d99ae")

	return theme{
		header: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ffffff")).
			Background(blue).
			Bold(true).
			Padding(0, 1),
		user: lipgloss.NewStyle().Foreground(blue).Bold(true),
		bot:  lipgloss.NewStyle().Foreground(green).Bold(true),
		system: map[string]lipgloss.Style{
			"info":    lipgloss.NewStyle().Foreground(muted).Italic(true),
			"warning": lipgloss.NewStyle().Foreground(yellow).Italic(true),
			"error":   lipgloss.NewStyle().Foreground(red).Italic(true),
			"success": lipgloss.NewStyle().Foreground(green).Italic(true),
		},
		high:    lipgloss.NewStyle().Foreground(green),
		medium:  lipgloss.NewStyle().Foreground(yellow),
		low:     lipgloss.NewStyle().Foreground(red),
		muted:   lipgloss.NewStyle().Foreground(muted),
		status:  lipgloss.NewStyle().Foreground(muted),
		frame:   lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(blue),
		spinner: lipgloss.NewStyle().Foreground(green),
	}
}

// confidenceStyle picks green, yellow or red for a confidence score.
func (t theme) confidenceStyle(c float64) lipgloss.Style {
	switch {
	case c >= highConfidence:
		return t.high
	case c >= mediumConfidence:
		return t.medium
	default:
		return t.low
	}
}
