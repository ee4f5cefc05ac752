package overlay

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"perfoverlay/internal/metrics"
)

var (
	termAccent = lipgloss.Color("#c084fc")
	termDim    = lipgloss.Color("#9ca3af")
	termBorder = lipgloss.Color("#9333ea")
	termText   = lipgloss.Color("#e0e0e0")
)

// RenderTerminal draws the same model as the browser panel for a terminal of
// the given width.
func RenderTerminal(m Model, width int) string {
	if width < 32 {
		width = 32
	}
	inner := width - 4

	title := lipgloss.NewStyle().Bold(true).Render("⚡ Performance")
	status := statusLoading
	if m.Loaded {
		status = statusReady
	}
	lines := []string{spread(title, status, inner), ""}

	if len(m.Samples) == 0 {
		lines = append(lines, lipgloss.NewStyle().Foreground(termDim).Render("no timing entries yet"))
	}
	for _, s := range m.Samples {
		value := lipgloss.NewStyle().
			Foreground(lipgloss.Color(s.Tier.Color())).
			Bold(true).
			Render(fmt.Sprintf("%.2fs", s.ValueSeconds))
		lines = append(lines, spread(lipgloss.NewStyle().Foreground(termText).Render(s.Label), value, inner))
	}

	analysis := m.Analysis
	if analysis == "" {
		analysis = WaitingText
	}
	lines = append(lines,
		"",
		lipgloss.NewStyle().Foreground(termAccent).Bold(true).Render("🤖 AI Analysis"),
		lipgloss.NewStyle().Width(inner).Render(analysis),
	)

	if m.Details != nil && m.State.Expanded {
		lines = append(lines, "", lipgloss.NewStyle().Bold(true).Render("📊 Resource Summary"))
		lines = append(lines,
			spread("Total Resources:", fmt.Sprintf("%d", m.Details.Count), inner),
			spread("Total Transfer Size:", FormatKB(m.Details.TotalTransferBytes), inner),
			"",
			lipgloss.NewStyle().Bold(true).Render("🐌 Slowest Resources"),
		)
		for _, r := range m.Details.Slowest {
			name := truncate(r.InitiatorType+": "+metrics.DisplayName(r.URL), inner-10)
			lines = append(lines, spread(name, fmt.Sprintf("%.0fms", r.DurationMs), inner))
		}
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(termBorder).
		Padding(0, 1).
		Width(width)
	return box.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// spread places left and right at opposite ends of a line of width w.
func spread(left, right string, w int) string {
	gap := w - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 1 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
