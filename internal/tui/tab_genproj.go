package tui

import (
	"fmt"
	"slices"
	"strings"

	"github.com/theirongolddev/household/internal/tui/components"
	"github.com/theirongolddev/household/internal/tui/theme"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// genprojState tracks the capability picker.
type genprojState struct {
	cursor   int
	selected []string
}

func (a App) updateGenprojKey(key string) (App, tea.Cmd, bool) {
	caps := a.catalog.All()
	switch key {
	case "j", "down":
		a.moveCursor(1)
	case "k", "up":
		a.moveCursor(-1)
	case " ", "enter":
		if a.genproj.cursor >= len(caps) {
			return a, nil, true
		}
		a.toggleCapability(caps[a.genproj.cursor].ID)
	case "C":
		a.genproj.selected = nil
		a.message = "Selection cleared"
	default:
		return a, nil, false
	}
	return a, nil, true
}

// toggleCapability deselects id, or selects it when the catalog allows it
// alongside the current selection.
func (a *App) toggleCapability(id string) {
	if i := slices.Index(a.genproj.selected, id); i >= 0 {
		a.genproj.selected = slices.Delete(slices.Clone(a.genproj.selected), i, i+1)
		a.message = "Removed " + id
		return
	}
	if ok, reason := a.catalog.CanAdd(id, a.genproj.selected); !ok {
		a.message = reason
		return
	}
	a.genproj.selected = append(slices.Clone(a.genproj.selected), id)
	a.message = "Added " + id
}

func (a App) renderGenprojTab(cw, h int) string {
	t := theme.Active
	caps := a.catalog.All()
	res := a.catalog.Resolve(a.genproj.selected)

	widths := components.LayoutRow(cw, 2)
	if a.isCompactLayout() {
		widths = []int{cw}
	}

	conflicted := make(map[string]bool)
	for _, c := range res.Conflicts {
		conflicted[c.A] = true
		conflicted[c.B] = true
	}

	rowStyle := lipgloss.NewStyle().Foreground(t.TextPrimary)
	selStyle := lipgloss.NewStyle().Foreground(t.AccentBright).Background(t.Selected).Bold(true)
	addedStyle := lipgloss.NewStyle().Foreground(t.Enriched)
	conflictStyle := lipgloss.NewStyle().Foreground(t.Overspent)
	catStyle := lipgloss.NewStyle().Foreground(t.TextDim)

	rows := max(h-3, 3)
	offset := max(a.genproj.cursor-rows+1, 0)
	inner := components.CardInnerWidth(widths[0])

	var b strings.Builder
	for i := offset; i < len(caps) && i < offset+rows; i++ {
		c := caps[i]
		mark := "[ ]"
		style := rowStyle
		switch {
		case slices.Contains(a.genproj.selected, c.ID):
			mark = "[x]"
		case slices.Contains(res.Added, c.ID):
			mark = "[+]"
			style = addedStyle
		}
		if conflicted[c.ID] {
			style = conflictStyle
		}
		name := fmt.Sprintf("%s %s %s", mark, c.Icon, c.Name)
		pad := max(inner-lipgloss.Width(name)-lipgloss.Width(c.Category), 1)
		if i == a.genproj.cursor {
			b.WriteString(selStyle.Render(name + strings.Repeat(" ", pad) + c.Category))
		} else {
			b.WriteString(style.Render(name) + strings.Repeat(" ", pad) + catStyle.Render(c.Category))
		}
		b.WriteString("\n")
	}

	cards := []string{components.ContentCard(
		fmt.Sprintf("Capabilities (%d selected)", len(a.genproj.selected)),
		strings.TrimRight(b.String(), "\n"), widths[0])}
	if len(widths) > 1 {
		cards = append(cards, a.renderGenprojSummary(widths[1]))
	}
	return components.CardRow(cards)
}

func (a App) renderGenprojSummary(w int) string {
	t := theme.Active
	label := lipgloss.NewStyle().Foreground(t.TextMuted)
	value := lipgloss.NewStyle().Foreground(t.TextPrimary)
	errStyle := lipgloss.NewStyle().Foreground(t.Overspent)
	warnStyle := lipgloss.NewStyle().Foreground(t.Caution)

	caps := a.catalog.All()
	var b strings.Builder
	if a.genproj.cursor < len(caps) {
		c := caps[a.genproj.cursor]
		b.WriteString(value.Bold(true).Render(c.Name))
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Foreground(t.TextMuted).Width(components.CardInnerWidth(w)).Render(c.Description))
		b.WriteString("\n")
		if len(c.Dependencies) > 0 {
			b.WriteString(label.Render("needs     ") + value.Render(strings.Join(c.Dependencies, ", ")) + "\n")
		}
		if len(c.Conflicts) > 0 {
			b.WriteString(label.Render("conflicts ") + value.Render(strings.Join(c.Conflicts, ", ")) + "\n")
		}
		b.WriteString("\n")
	}

	if len(a.genproj.selected) == 0 {
		b.WriteString(label.Render("Select capabilities with [space]."))
		return components.ContentCard("Plan", b.String(), w)
	}

	s := a.catalog.Summary(a.genproj.selected)
	fmt.Fprintf(&b, "%s %s\n", label.Render("Selected  "), value.Render(fmt.Sprint(s.TotalSelected)))
	fmt.Fprintf(&b, "%s %s\n", label.Render("Resolved  "), value.Render(fmt.Sprint(s.TotalResolved)))
	fmt.Fprintf(&b, "%s %s\n", label.Render("Added deps"), value.Render(fmt.Sprint(s.Added)))
	if len(s.AuthServices) > 0 {
		fmt.Fprintf(&b, "%s %s\n", label.Render("Auth      "), value.Render(strings.Join(s.AuthServices, ", ")))
	}
	if len(s.ExecutionOrder) > 0 {
		b.WriteString(label.Render("Order") + "\n")
		for i, id := range s.ExecutionOrder {
			fmt.Fprintf(&b, "  %2d. %s\n", i+1, id)
		}
	}
	for _, e := range s.Validation.Errors {
		b.WriteString(errStyle.Render("✗ "+e) + "\n")
	}
	for _, wmsg := range s.Validation.Warnings {
		b.WriteString(warnStyle.Render("! "+wmsg) + "\n")
	}
	return components.ContentCard("Plan", strings.TrimRight(b.String(), "\n"), w)
}
