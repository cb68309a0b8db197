package tui

import (
	"fmt"
	"strings"

	"github.com/theirongolddev/household/internal/cli"
	"github.com/theirongolddev/household/internal/tui/components"
	"github.com/theirongolddev/household/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

func (a App) renderOverviewTab(cw int) string {
	t := theme.Active
	snap := a.snap

	if a.loadErr != nil && !snap.hasCycle() {
		warn := lipgloss.NewStyle().Foreground(t.Overspent).Render(a.loadErr.Error())
		return components.ContentCard("Could not load data", warn+"\n\nPress [r] to retry.", cw)
	}
	if !snap.hasCycle() {
		body := "No billing cycles yet.\n\n" +
			"Create one with `household cycles add 2025-01-01 2025-01-31`,\n" +
			"then upload statements through the API."
		return components.ContentCard("Getting started", body, cw)
	}

	sum := snap.Summary
	var b strings.Builder

	// Row 1: Metric cards
	totalDelta := fmt.Sprintf("%d charges", sum.Charges)
	if snap.Previous != nil {
		totalDelta += " · " + cli.FormatDelta(sum.Total, snap.Previous.Total) + " vs prev"
	}

	allocated := sum.Total.Sub(sum.UnallocatedSum)
	allocShare := ""
	if !sum.Total.IsZero() {
		allocShare = cli.FormatPercent(allocated.Div(sum.Total).InexactFloat64()) + " of spend"
	}

	unallocatedTone := t.Allocated
	if sum.Unallocated > 0 {
		unallocatedTone = t.Unallocated
	}
	metrics := []components.Metric{
		{Label: "Total", Value: cli.FormatMoney(sum.Total), Note: totalDelta},
		{Label: "Allocated", Value: cli.FormatMoney(allocated), Note: allocShare, Tone: t.Allocated},
		{Label: "Unallocated", Value: cli.FormatNumber(int64(sum.Unallocated)), Note: cli.FormatMoney(sum.UnallocatedSum), Tone: unallocatedTone},
		{Label: "Statements", Value: cli.FormatNumber(int64(sum.Statements)), Note: fmt.Sprintf("%d foreign charges", sum.ForeignCharges)},
	}
	b.WriteString(components.MetricRow(metrics, cw))
	b.WriteString("\n")

	// Row 2: Daily spend chart
	if days := dailySpend(snap.Cycle, snap.Charges); len(days) > 0 {
		inner := components.CardInnerWidth(cw)
		chart := components.SpendChart(days, inner, 8)
		b.WriteString(components.ContentCard("Daily spend", chart, cw))
		b.WriteString("\n")
	}

	// Row 3: allocation shares + top merchants
	widths := components.LayoutRow(cw, 2)
	allocCard := components.ContentCard("By budget", a.renderAllocationBars(components.CardInnerWidth(widths[0])), widths[0])
	topCard := components.ContentCard("Top merchants", a.renderTopMerchants(components.CardInnerWidth(widths[1])), widths[1])
	b.WriteString(components.CardRow([]string{allocCard, topCard}))

	return b.String()
}

func (a App) renderAllocationBars(inner int) string {
	t := theme.Active
	sum := a.snap.Summary
	if sum.Total.IsZero() {
		return lipgloss.NewStyle().Foreground(t.TextMuted).Render("No charges this cycle.")
	}

	labelW := 14
	barW := max(inner-labelW-18, 8)
	total := sum.Total.InexactFloat64()

	var lines []string
	for _, at := range sum.ByAllocation {
		pct := at.Total.InexactFloat64() / total
		lines = append(lines, components.ShareBar(at.AllocatedTo, pct, cli.FormatMoney(at.Total), t.ShareColor(pct), labelW, barW))
	}
	if sum.Unallocated > 0 {
		pct := sum.UnallocatedSum.InexactFloat64() / total
		lines = append(lines, components.ShareBar(cli.Allocation(""), pct, cli.FormatMoney(sum.UnallocatedSum), t.Unallocated, labelW, barW))
	}
	return strings.Join(lines, "\n")
}

func (a App) renderTopMerchants(inner int) string {
	t := theme.Active
	top := topMerchants(a.snap.Charges, 8)
	if len(top) == 0 {
		return lipgloss.NewStyle().Foreground(t.TextMuted).Render("No charges this cycle.")
	}

	nameStyle := lipgloss.NewStyle().Foreground(t.TextPrimary)
	countStyle := lipgloss.NewStyle().Foreground(t.TextDim)
	nameW := max(inner-20, 8)

	var lines []string
	for _, mt := range top {
		lines = append(lines,
			nameStyle.Render(fmt.Sprintf("%-*s", nameW, cli.Truncate(mt.Merchant, nameW)))+
				countStyle.Render(fmt.Sprintf(" %3dx ", mt.Count))+
				nameStyle.Render(fmt.Sprintf("%11s", cli.FormatMoney(mt.Total))))
	}
	return strings.Join(lines, "\n")
}
