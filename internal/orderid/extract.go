// Package orderid finds Amazon order identifiers in statement merchant text.
package orderid

import (
	"regexp"
	"strings"
)

// Patterns are tried in priority order: the dashed XXX-XXXXXXX-XXXXXXX form,
// the 16-digit compact form, then any run of ten or more digits.
var patterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(\d{3}-\d{7}-\d{7})\b`),
	regexp.MustCompile(`\b(\d{16})\b`),
	regexp.MustCompile(`\b(\d{10,})\b`),
}

// Extract returns the first order id found in s.
func Extract(s string) (string, bool) {
	if s == "" {
		return "", false
	}
	for _, re := range patterns {
		if m := re.FindStringSubmatch(s); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// IsAmazon reports whether s names Amazon as the merchant.
func IsAmazon(s string) bool {
	upper := strings.ToUpper(s)
	return strings.Contains(upper, "AMAZON") || strings.Contains(upper, "AMZN")
}

// ExtractFromMerchant extracts an order id only when the merchant is Amazon.
func ExtractFromMerchant(merchant string) (string, bool) {
	if !IsAmazon(merchant) {
		return "", false
	}
	return Extract(merchant)
}

// ExtractMultiLine handles statements that print the order id on its own
// line below the merchant. At least one line must name Amazon.
func ExtractMultiLine(text string) (string, bool) {
	var lines []string
	amazon := false
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if IsAmazon(line) {
			amazon = true
		}
		lines = append(lines, line)
	}
	if !amazon {
		return "", false
	}
	for _, line := range lines {
		if id, ok := Extract(line); ok {
			return id, true
		}
	}
	return "", false
}
