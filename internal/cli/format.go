// Package cli provides formatting and rendering utilities for terminal output.
package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"github.com/theirongolddev/household/internal/model"
)

// FormatMoney formats an amount as dollars with comma grouping.
// e.g., 1234.5 -> "$1,234.50", -3 -> "-$3.00"
func FormatMoney(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	fixed := d.StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")
	intPart := decimal.RequireFromString(whole).IntPart()
	return sign + "$" + humanize.Comma(intPart) + "." + frac
}

// FormatForeign formats a foreign-currency amount with its currency code.
func FormatForeign(d *decimal.Decimal, currency string) string {
	if d == nil {
		return ""
	}
	s := humanize.CommafWithDigits(d.InexactFloat64(), 2)
	if currency == "" {
		return s
	}
	return s + " " + currency
}

// FormatNumber adds comma separators to an integer.
// e.g., 1234567 -> "1,234,567"
func FormatNumber(n int64) string {
	return humanize.Comma(n)
}

// FormatBytes formats a byte count, e.g. 1536000 -> "1.5 MB".
func FormatBytes(n int64) string {
	if n < 0 {
		return "?"
	}
	return humanize.Bytes(uint64(n))
}

// FormatDate formats an optional calendar date, "-" when unset.
func FormatDate(d *model.Date) string {
	if d == nil || d.IsZero() {
		return "-"
	}
	return d.String()
}

// FormatRange formats a billing cycle's dates.
func FormatRange(c model.BillingCycle) string {
	return c.StartDate.String() + " → " + c.EndDate.String()
}

// FormatAgo formats t relative to now, e.g. "3 days ago".
func FormatAgo(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.Time(t)
}

// FormatPercent formats a 0-1 float as a percentage string.
func FormatPercent(f float64) string {
	return fmt.Sprintf("%.1f%%", f*100)
}

// FormatDelta formats the change between two amounts with a sign.
func FormatDelta(current, previous decimal.Decimal) string {
	delta := current.Sub(previous)
	if delta.IsNegative() {
		return "-" + FormatMoney(delta.Neg())
	}
	return "+" + FormatMoney(delta)
}

// Truncate shortens s to at most n runes, marking the cut with an ellipsis.
func Truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}

// Allocation returns the allocation label for display.
func Allocation(s string) string {
	if s == "" {
		return "(unallocated)"
	}
	return s
}

// MaskSecret hides all but the edges of a key or token.
func MaskSecret(s string) string {
	switch {
	case s == "":
		return "(not set)"
	case len(s) > 16:
		return s[:8] + "..." + s[len(s)-4:]
	case len(s) > 4:
		return s[:4] + "..."
	default:
		return "****"
	}
}
