package components

import (
	"fmt"
	"strings"

	"github.com/theirongolddev/household/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

// StatusInfo is what the status bar reports on its right side.
type StatusInfo struct {
	DataAge     string
	Refreshing  bool
	AutoRefresh bool
	Message     string
}

// RenderStatusBar renders the bottom status bar.
func RenderStatusBar(width int, info StatusInfo) string {
	t := theme.Active

	style := lipgloss.NewStyle().
		Foreground(t.TextMuted).
		Background(t.Surface)

	accentStyle := lipgloss.NewStyle().
		Foreground(t.Accent).
		Background(t.Surface)

	left := style.Render(" [?]help  [[ ]]cycle  [r]efresh  [q]uit")
	if info.Message != "" {
		left += style.Render("  ") + accentStyle.Render(info.Message)
	}

	var right []string
	switch {
	case info.Refreshing:
		right = append(right, accentStyle.Render("refreshing…"))
	case info.AutoRefresh:
		right = append(right, style.Render("auto"))
	}
	if info.DataAge != "" {
		right = append(right, style.Render(fmt.Sprintf("Data: %s", info.DataAge)))
	}
	r := strings.Join(right, style.Render("  ")) + style.Render(" ")

	padding := width - lipgloss.Width(left) - lipgloss.Width(r)
	if padding < 0 {
		padding = 0
	}

	return left + style.Render(strings.Repeat(" ", padding)) + r
}
