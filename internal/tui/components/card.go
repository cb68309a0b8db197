// Package components provides reusable widgets for the household dashboard.
package components

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/household/internal/tui/theme"
)

// Metric is one headline figure on the overview, such as a cycle total.
type Metric struct {
	Label string
	Value string
	Note  string         // secondary line, omitted when empty
	Tone  lipgloss.Color // value color; TextPrimary when empty
}

// LayoutRow splits width into n column widths summing to width. Leading
// columns take the remainder.
func LayoutRow(width, n int) []int {
	if n <= 0 {
		return nil
	}
	widths := make([]int, n)
	for i := range widths {
		widths[i] = width / n
		if i < width%n {
			widths[i]++
		}
	}
	return widths
}

// panel is the rounded frame shared by every card. outer includes the border.
func panel(outer int) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.Active.Border).
		Width(max(outer-2, 10)).
		Padding(0, 1)
}

// MetricRow renders metrics as equal cards filling width.
func MetricRow(metrics []Metric, width int) string {
	if len(metrics) == 0 {
		return ""
	}
	t := theme.Active
	label := lipgloss.NewStyle().Foreground(t.TextMuted)
	note := lipgloss.NewStyle().Foreground(t.TextDim)

	widths := LayoutRow(width, len(metrics))
	cards := make([]string, len(metrics))
	for i, m := range metrics {
		tone := m.Tone
		if tone == "" {
			tone = t.TextPrimary
		}
		body := label.Render(m.Label) + "\n" + lipgloss.NewStyle().Foreground(tone).Bold(true).Render(m.Value)
		if m.Note != "" {
			body += "\n" + note.Render(m.Note)
		}
		cards[i] = panel(widths[i]).Render(body)
	}
	return CardRow(cards)
}

// ContentCard frames body under an optional bold title.
func ContentCard(title, body string, outer int) string {
	if title != "" {
		body = lipgloss.NewStyle().Foreground(theme.Active.TextMuted).Bold(true).Render(title) + "\n" + body
	}
	return panel(outer).Render(body)
}

// CardRow joins rendered cards side by side, top aligned.
func CardRow(cards []string) string {
	if len(cards) == 0 {
		return ""
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cards...)
}

// CardInnerWidth is the text width inside a ContentCard of the given outer
// width.
func CardInnerWidth(outer int) int {
	return max(outer-4, 10)
}
