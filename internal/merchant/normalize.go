// Package merchant normalizes raw statement merchant strings into stable
// identifiers used for budget auto-association.
package merchant

import (
	"regexp"
	"strings"

	"github.com/theirongolddev/household/internal/orderid"
)

// Unknown is the normalized name for empty merchant strings.
const Unknown = "UNKNOWN"

// Result holds a normalized merchant and any detail split off from it.
type Result struct {
	Normalized string `json:"merchant_normalized"`
	Details    string `json:"merchant_details"`
}

var airlines = []string{
	"UNITED",
	"AMERICAN",
	"DELTA",
	"SOUTHWEST",
	"JETBLUE",
	"SPIRIT",
	"FRONTIER",
	"ALASKA",
	"BRITISH AIRWAYS",
	"LUFTHANSA",
	"AIR CANADA",
	"EMIRATES",
	"QATAR",
}

var flightIndicators = []string{
	"FLIGHT",
	"AIRLINE",
	"AIRPORT",
	"TICKET",
	"TRAVEL",
	"HOTEL",
	"CAR RENTAL",
	"TRANSPORTATION",
}

var (
	caviarRe   = regexp.MustCompile(`(?i)CAVIAR\s*[-*]\s*(.+)`)
	doordashRe = regexp.MustCompile(`(?i)DOORDASH\s*[-*]\s*(.+)`)
	uberEatsRe = regexp.MustCompile(`(?i)UBER\s*EATS\s*[-*]\s*(.+)`)
	lyftRe     = regexp.MustCompile(`(?i)LYFT\s*[-*]\s*(.+)`)
	uberRe     = regexp.MustCompile(`(?i)UBER\s*[-*]\s*(.+)`)
	routeRe    = regexp.MustCompile(`(?i)([A-Z]{3})\s*[-*]\s*([A-Z]{3})`)

	kindleSvcRe     = regexp.MustCompile(`(?i)KINDLE\s+SVCS\*[A-Z0-9]+`)
	phoneRe         = regexp.MustCompile(`\d{3}-\d{3}-\d{4}`)
	maidLocationRe  = regexp.MustCompile(`(?i)MAIDMARINES\s+#\d+`)
	maidSuffixRe    = regexp.MustCompile(`(?i)MAIDMARINES\.C`)
	jacadiStoreRe   = regexp.MustCompile(`(?i)JACADI\s+#\d+`)
	jacadiNewYorkRe = regexp.MustCompile(`(?i)\s+NEW\s+YORK`)

	stateSuffixRe = regexp.MustCompile(`(?i)\s+[A-Z]{2}\s*$`)
	zipSuffixRe   = regexp.MustCompile(`\s+[0-9]{5}\s*$`)
	thePrefixRe   = regexp.MustCompile(`(?i)^THE\s+`)
	entitySuffix  = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\s+LLC$`),
		regexp.MustCompile(`(?i)\s+INC$`),
		regexp.MustCompile(`(?i)\s+CORP$`),
		regexp.MustCompile(`(?i)\s+CO$`),
	}
)

// Normalize maps a raw merchant string to its normalized identifier.
// Rules are checked in a fixed order; the first family that matches wins.
func Normalize(raw string) Result {
	if strings.TrimSpace(raw) == "" {
		return Result{Normalized: Unknown, Details: raw}
	}

	upper := strings.ToUpper(strings.TrimSpace(raw))

	switch {
	case strings.Contains(upper, "CAVIAR"):
		return Result{Normalized: "CAVIAR", Details: capture(caviarRe, raw)}
	case strings.Contains(upper, "DOORDASH"):
		return Result{Normalized: "DOORDASH", Details: capture(doordashRe, raw)}
	case strings.Contains(upper, "UBER EATS"):
		return Result{Normalized: "UBER EATS", Details: capture(uberEatsRe, raw)}
	case strings.Contains(upper, "LYFT"):
		return Result{Normalized: "LYFT", Details: capture(lyftRe, raw)}
	case strings.Contains(upper, "UBER"):
		return Result{Normalized: "UBER", Details: capture(uberRe, raw)}
	case isFlight(upper):
		return flight(raw, upper)
	case orderid.IsAmazon(upper):
		return amazon(raw, upper)
	case strings.Contains(upper, "KINDLE"):
		return Result{Normalized: "KINDLE", Details: cleanKindle(raw)}
	case strings.Contains(upper, "MAIDMARINES"):
		return Result{Normalized: "MAIDMARINES", Details: cleanMaidMarines(raw)}
	case strings.Contains(upper, "JACADI"):
		return Result{Normalized: "JACADI", Details: cleanJacadi(raw)}
	}

	return Result{Normalized: generic(raw)}
}

func capture(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func isFlight(upper string) bool {
	for _, ind := range flightIndicators {
		if strings.Contains(upper, ind) {
			return true
		}
	}
	return airlineOf(upper) != ""
}

func airlineOf(upper string) string {
	for _, a := range airlines {
		if strings.Contains(upper, a) {
			return a
		}
	}
	return ""
}

func flight(raw, upper string) Result {
	name := airlineOf(upper)
	if name == "" {
		name = "AIRLINE"
	}
	details := raw
	if m := routeRe.FindStringSubmatch(raw); m != nil {
		details = m[1] + "-" + m[2]
	}
	return Result{Normalized: name, Details: details}
}

func amazon(raw, upper string) Result {
	// Purchases carry an order id; only id-less strings can be Amazon services.
	if _, ok := orderid.Extract(raw); ok {
		return Result{Normalized: "AMAZON"}
	}
	switch {
	case strings.Contains(upper, "AMAZON PRIME"):
		return Result{Normalized: "AMAZON PRIME"}
	case strings.Contains(upper, "AMAZON FRESH"), strings.Contains(upper, "WHOLE FOODS"):
		return Result{Normalized: "AMAZON FRESH"}
	}
	return Result{Normalized: "AMAZON"}
}

func cleanKindle(raw string) string {
	s := replaceFirst(kindleSvcRe, raw, "KINDLE")
	s = phoneRe.ReplaceAllString(s, "")
	s = replaceFirst(stateSuffixRe, s, "")
	return strings.TrimSpace(s)
}

func cleanMaidMarines(raw string) string {
	s := replaceFirst(maidLocationRe, raw, "MAIDMARINES")
	s = replaceFirst(maidSuffixRe, s, "MAIDMARINES")
	s = replaceFirst(stateSuffixRe, s, "")
	return strings.TrimSpace(s)
}

func cleanJacadi(raw string) string {
	s := replaceFirst(jacadiStoreRe, raw, "JACADI")
	s = replaceFirst(jacadiNewYorkRe, s, "")
	s = replaceFirst(stateSuffixRe, s, "")
	return strings.TrimSpace(s)
}

func generic(raw string) string {
	s := thePrefixRe.ReplaceAllString(raw, "")
	for _, re := range entitySuffix {
		s = re.ReplaceAllString(s, "")
	}
	s = strings.TrimSpace(s)
	s = stateSuffixRe.ReplaceAllString(s, "")
	s = zipSuffixRe.ReplaceAllString(s, "")
	if s == "" {
		return raw
	}
	return s
}

// replaceFirst replaces only the leftmost match of re in s.
func replaceFirst(re *regexp.Regexp, s, repl string) string {
	loc := re.FindStringIndex(s)
	if loc == nil {
		return s
	}
	return s[:loc[0]] + repl + s[loc[1]:]
}
