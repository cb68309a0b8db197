package components

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/theirongolddev/household/internal/cli"
	"github.com/theirongolddev/household/internal/tui/theme"
)

// DaySpend is one day of a billing cycle in the spend chart.
type DaySpend struct {
	Label       string
	Total       decimal.Decimal
	Unallocated decimal.Decimal // part of Total with no budget yet
}

// eighths are partial block glyphs, index = filled eighths of a cell.
var eighths = []rune{' ', '▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// SpendChart renders daily spend as vertical bars. The allocated part of a
// day sits at the bottom of its bar in the Spend color with the unallocated
// part stacked above it. Days are summed into wider groups when the width
// cannot fit one column per day. Below the minimum size it degrades to a
// sparkline.
func SpendChart(days []DaySpend, width, height int) string {
	if len(days) == 0 {
		return ""
	}
	const axisW = 7 // "$12.5k" plus the axis rule
	if width < axisW+8 || height < 3 {
		values := make([]float64, len(days))
		for i, d := range days {
			values[i] = d.Total.InexactFloat64()
		}
		return cli.RenderSparkline(values)
	}
	t := theme.Active

	cols := groupDays(days, width-axisW)
	n := len(cols)
	colW := max(1, min(3, (width-axisW+1)/n-1))

	peak := decimal.Zero
	anyUnallocated := false
	for _, c := range cols {
		peak = decimal.Max(peak, c.Total)
		anyUnallocated = anyUnallocated || c.Unallocated.IsPositive()
	}
	ceiling := niceCeiling(peak.InexactFloat64())

	bg := lipgloss.NewStyle().Background(t.Surface)
	axis := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)
	spend := lipgloss.NewStyle().Foreground(t.Spend).Background(t.Surface)
	open := lipgloss.NewStyle().Foreground(t.Unallocated).Background(t.Surface)

	var b strings.Builder
	for row := height; row >= 1; row-- {
		top := ceiling * float64(row) / float64(height)
		bottom := ceiling * float64(row-1) / float64(height)

		label := ""
		switch row {
		case height:
			label = compactMoney(ceiling)
		case (height + 1) / 2:
			label = compactMoney(ceiling * float64(row) / float64(height))
		}
		b.WriteString(axis.Render(fmt.Sprintf("%6s│", label)))

		for i, c := range cols {
			if i > 0 {
				b.WriteString(bg.Render(" "))
			}
			total := c.Total.InexactFloat64()
			allocated := total - c.Unallocated.InexactFloat64()
			glyph := ' '
			switch {
			case total >= top:
				glyph = '█'
			case total > bottom:
				glyph = eighths[max(1, int((total-bottom)/(top-bottom)*8))]
			}
			style := spend
			if c.Unallocated.IsPositive() && bottom >= allocated {
				style = open
			}
			b.WriteString(style.Render(strings.Repeat(string(glyph), colW)))
		}
		b.WriteString("\n")
	}

	axisLen := n*colW + n - 1
	b.WriteString(axis.Render(fmt.Sprintf("%6s└%s", "$0", strings.Repeat("─", axisLen))))
	b.WriteString("\n")
	b.WriteString(bg.Render(strings.Repeat(" ", axisW)))
	b.WriteString(axis.Render(dayLabels(cols, colW, axisLen)))

	if anyUnallocated {
		b.WriteString("\n")
		b.WriteString(spend.Render("█") + axis.Render(" allocated  ") + open.Render("█") + axis.Render(" unallocated"))
	}
	return b.String()
}

// groupDays sums consecutive days so that every column gets at least one
// cell plus a gap within width. A group keeps its first day's label.
func groupDays(days []DaySpend, width int) []DaySpend {
	per := int(math.Ceil(float64(len(days)) / float64(max((width+1)/2, 1))))
	if per <= 1 {
		return days
	}
	out := make([]DaySpend, 0, len(days)/per+1)
	for i := 0; i < len(days); i += per {
		g := DaySpend{Label: days[i].Label}
		for _, d := range days[i:min(i+per, len(days))] {
			g.Total = g.Total.Add(d.Total)
			g.Unallocated = g.Unallocated.Add(d.Unallocated)
		}
		out = append(out, g)
	}
	return out
}

// dayLabels lays out column labels left to right, skipping any that would
// touch the previous one.
func dayLabels(cols []DaySpend, colW, axisLen int) string {
	line := []rune(strings.Repeat(" ", axisLen))
	next := 0
	for i, c := range cols {
		pos := i * (colW + 1)
		lbl := []rune(c.Label)
		if pos < next || pos+len(lbl) > axisLen {
			continue
		}
		copy(line[pos:], lbl)
		next = pos + len(lbl) + 1
	}
	return strings.TrimRight(string(line), " ")
}

// niceCeiling rounds v up to 1, 2 or 5 times a power of ten so the axis
// labels stay readable.
func niceCeiling(v float64) float64 {
	if v <= 0 {
		return 1
	}
	base := math.Pow(10, math.Floor(math.Log10(v)))
	for _, m := range []float64{1, 2, 5, 10} {
		if v <= m*base {
			return m * base
		}
	}
	return 10 * base
}

// compactMoney renders an axis amount: $0.50, $40, $1.5k, $2M.
func compactMoney(v float64) string {
	d := decimal.NewFromFloat(v)
	switch {
	case v >= 1e6:
		return "$" + d.Shift(-6).Round(1).String() + "M"
	case v >= 1e3:
		return "$" + d.Shift(-3).Round(1).String() + "k"
	case v >= 1:
		return "$" + d.Round(0).String()
	default:
		return "$" + d.StringFixed(2)
	}
}
