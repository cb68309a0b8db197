package tui

import (
	"fmt"
	"strings"

	"github.com/theirongolddev/household/internal/cli"
	"github.com/theirongolddev/household/internal/tui/components"
	"github.com/theirongolddev/household/internal/tui/theme"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// budgetsState tracks the budgets tab state.
type budgetsState struct {
	cursor int
}

func (a App) updateBudgetsKey(key string) (App, tea.Cmd, bool) {
	switch key {
	case "j", "down":
		a.moveCursor(1)
		return a, nil, true
	case "k", "up":
		a.moveCursor(-1)
		return a, nil, true
	}
	return a, nil, false
}

func (a App) renderBudgetsTab(cw int) string {
	t := theme.Active
	budgets := a.snap.Budgets

	if len(budgets) == 0 {
		return components.ContentCard("Budgets",
			"No budgets yet. Add one with `household budgets add NAME`.", cw)
	}

	widths := components.LayoutRow(cw, 2)
	if a.isCompactLayout() {
		widths = []int{cw}
	}

	rowStyle := lipgloss.NewStyle().Foreground(t.TextPrimary)
	selStyle := lipgloss.NewStyle().Foreground(t.AccentBright).Background(t.Selected).Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(t.TextDim)

	inner := components.CardInnerWidth(widths[0])
	nameW := max(inner-30, 10)

	var b strings.Builder
	b.WriteString(dimStyle.Render(fmt.Sprintf("%-*s  %11s  %7s  %5s", nameW, "Budget", "Spent", "Charges", "Rules")))
	b.WriteString("\n")
	for i, bv := range budgets {
		name := bv.Name
		if bv.Icon != "" {
			name = bv.Icon + " " + name
		}
		line := fmt.Sprintf("%-*s  %11s  %7d  %5d", nameW, cli.Truncate(name, nameW),
			cli.FormatMoney(bv.Spent), bv.Charges, len(bv.Merchants))
		if i == a.budgets.cursor {
			b.WriteString(selStyle.Render(line))
		} else {
			b.WriteString(rowStyle.Render(line))
		}
		b.WriteString("\n")
	}

	cards := []string{components.ContentCard("Budgets this cycle", strings.TrimRight(b.String(), "\n"), widths[0])}
	if len(widths) > 1 {
		cards = append(cards, a.renderBudgetDetail(widths[1]))
	}
	out := components.CardRow(cards)

	if unassigned := unassignedMerchants(a.snap.Charges); len(unassigned) > 0 {
		body := lipgloss.NewStyle().Foreground(t.Unallocated).Render(strings.Join(unassigned, ", "))
		out += "\n" + components.ContentCard(
			fmt.Sprintf("Unassigned merchants (%d)", len(unassigned)),
			lipgloss.NewStyle().Width(components.CardInnerWidth(cw)).Render(body), cw)
	}
	return out
}

func (a App) renderBudgetDetail(w int) string {
	t := theme.Active
	if a.budgets.cursor >= len(a.snap.Budgets) {
		return components.ContentCard("Merchants", "", w)
	}
	bv := a.snap.Budgets[a.budgets.cursor]

	muted := lipgloss.NewStyle().Foreground(t.TextMuted)
	var b strings.Builder
	if len(bv.Merchants) == 0 {
		b.WriteString(muted.Render("No auto-association rules.\n"))
		b.WriteString(muted.Render("Assign a merchant with `household budgets assign MERCHANT " + bv.Name + "`."))
	}
	for _, m := range bv.Merchants {
		b.WriteString(m.MerchantNormalized)
		if m.Merchant != m.MerchantNormalized {
			b.WriteString(muted.Render("  (" + m.Merchant + ")"))
		}
		b.WriteString("\n")
	}
	return components.ContentCard(fmt.Sprintf("%s merchants", bv.Name), strings.TrimRight(b.String(), "\n"), w)
}
