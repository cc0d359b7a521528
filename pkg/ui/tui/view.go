package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// View renders the dashboard
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	half := (m.width - 4) / 2
	left := lipgloss.JoinVertical(lipgloss.Left,
		m.renderProgressPanel(half),
		m.renderStatsPanel(half),
	)
	right := lipgloss.JoinVertical(lipgloss.Left,
		m.renderRecentPanel(half),
		m.renderLogsPanel(half),
	)

	sections := []string{
		headerStyle.Render("flickrmirror · " + m.userID),
		lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right),
	}
	if m.showHelp {
		sections = append(sections, m.renderHelp())
	} else {
		sections = append(sections, helpStyle.Render("q quit · ? help"))
	}

	return lipgloss.NewStyle().Width(m.width).Render(
		lipgloss.JoinVertical(lipgloss.Left, sections...),
	)
}

func (m *Model) renderProgressPanel(width int) string {
	title := titleStyle.Render(" CATALOG ")

	status := m.spinner.View() + " "
	switch {
	case m.finished:
		status = successStyle.Render("done")
	case m.cooling():
		remaining := m.coolingUntil.Sub(m.now()).Round(time.Second)
		status += warningStyle.Render(fmt.Sprintf("cooling down (%s) %s", m.coolingOp, formatDuration(remaining)))
	case m.current != "":
		status += valueStyle.Render("syncing " + m.current)
	default:
		status += dimStyle.Render("fetching catalog")
	}

	lines := []string{
		title,
		fmt.Sprintf("%s %s", labelStyle.Render("Page:"), valueStyle.Render(fmt.Sprintf("%d / %d", m.currentPage, m.totalPages))),
		m.pageBar.ViewAs(m.pageProgress()),
		status,
	}
	return panelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (m *Model) renderStatsPanel(width int) string {
	elapsed := m.now().Sub(m.started)
	rows := [][2]string{
		{"Elapsed:", formatDuration(elapsed)},
		{"Items seen:", fmt.Sprintf("%d", m.items)},
		{"Originals written:", fmt.Sprintf("%d (%s)", m.binariesWritten, FormatBytes(m.bytes))},
		{"Sidecars written:", fmt.Sprintf("%d", m.metadataWritten)},
		{"Already mirrored:", fmt.Sprintf("%d", m.present)},
		{"No original:", fmt.Sprintf("%d", m.unavailable)},
	}

	lines := []string{titleStyle.Render(" STATS ")}
	for _, r := range rows {
		lines = append(lines, fmt.Sprintf("%s %s", labelStyle.Render(r[0]), valueStyle.Render(r[1])))
	}
	if m.failed > 0 {
		lines = append(lines, errorStyle.Render(fmt.Sprintf("%d items incomplete, rerun to retry", m.failed)))
	}
	return panelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (m *Model) renderRecentPanel(width int) string {
	lines := []string{titleStyle.Render(" RECENT ")}
	if len(m.recent) == 0 {
		lines = append(lines, dimStyle.Render("Nothing synced yet"))
	}
	for i := len(m.recent) - 1; i >= 0; i-- {
		r := m.recent[i]
		line := fmt.Sprintf("%s %s %s.%s", stateBadge(r.Binary), stateBadge(r.Metadata), r.ID, r.Format)
		if r.Bytes > 0 {
			line += " " + dimStyle.Render(FormatBytes(r.Bytes))
		}
		lines = append(lines, line)
	}
	return panelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (m *Model) renderLogsPanel(width int) string {
	start := len(m.logMessages) - 8
	if start < 0 {
		start = 0
	}

	var logs []string
	for _, log := range m.logMessages[start:] {
		message := log.Message
		if maxLen := width - 22; maxLen > 3 && len(message) > maxLen {
			message = message[:maxLen-3] + "..."
		}
		logs = append(logs, fmt.Sprintf("%s %s %s",
			logTimestampStyle.Render(log.Time.Format("15:04:05")),
			lipgloss.NewStyle().Foreground(log.Color).Bold(true).Render(fmt.Sprintf("[%-7s]", log.Level)),
			dimStyle.Render(message),
		))
	}

	content := strings.Join(logs, "\n")
	if content == "" {
		content = dimStyle.Render("No logs yet...")
	}
	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(" LOG "), content),
	)
}

func (m *Model) renderHelp() string {
	help := `
  Keys:
    q        - Stop the mirror (files written so far are kept)
    ?        - Toggle this help
    ctrl+l   - Clear the log

  Item markers (original, sidecar):
    ` + successStyle.Render("✓") + ` written   ` + dimStyle.Render("=") + ` present   ` + dimStyle.Render("-") + ` no original
    ` + warningStyle.Render("↷") + ` skipped   ` + errorStyle.Render("✗") + ` failed
`
	return panelStyle.Width(m.width - 2).Render(help)
}

// formatDuration formats a duration as mm:ss or hh:mm:ss
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d.Hours())
	mins := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, mins, s)
	}
	return fmt.Sprintf("%02d:%02d", mins, s)
}
