package tui

import (
	"github.com/charmbracelet/lipgloss"

	"flickrmirror/pkg/mirror"
)

var (
	// Flickr-ish palette
	accentBlue   = lipgloss.Color("#0063DC")
	accentPink   = lipgloss.Color("#FF0084")
	accentGreen  = lipgloss.Color("#3CB371")
	accentOrange = lipgloss.Color("#FF8C00")
	errorRed     = lipgloss.Color("#E03131")
	dimWhite     = lipgloss.Color("#B0B0B0")

	headerStyle = lipgloss.NewStyle().
			Foreground(accentPink).
			Bold(true).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accentBlue).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Background(accentBlue).
			Foreground(lipgloss.Color("#FFFFFF")).
			Bold(true).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(accentBlue).
			Bold(true)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	successStyle = lipgloss.NewStyle().
			Foreground(accentGreen).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(accentOrange).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(errorRed).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(dimWhite)

	logTimestampStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#666666"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			Padding(1, 0, 0, 1)
)

// stateBadge renders an artifact state as a short coloured marker
func stateBadge(s mirror.ArtifactState) string {
	switch s {
	case mirror.StateWritten:
		return successStyle.Render("✓")
	case mirror.StatePresent:
		return dimStyle.Render("=")
	case mirror.StateUnavailable:
		return dimStyle.Render("-")
	case mirror.StateSkipped:
		return warningStyle.Render("↷")
	case mirror.StateFailed:
		return errorStyle.Render("✗")
	default:
		return " "
	}
}
