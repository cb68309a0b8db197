package merchant

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		details string
	}{
		{"empty", "", Unknown, ""},
		{"blank", "   ", Unknown, "   "},
		{"caviar", "CAVIAR - Joe's Pizza", "CAVIAR", "Joe's Pizza"},
		{"doordash star", "DOORDASH*SWEETGREEN", "DOORDASH", "SWEETGREEN"},
		{"doordash no details", "DOORDASH", "DOORDASH", ""},
		{"uber eats", "UBER EATS - Chipotle", "UBER EATS", "Chipotle"},
		{"lyft", "LYFT *RIDE SUN 2PM", "LYFT", "RIDE SUN 2PM"},
		{"uber ride", "UBER *TRIP HELP.UBER.COM", "UBER", "TRIP HELP.UBER.COM"},
		{"airline with route", "UNITED AIRLINES SFO-JFK", "UNITED", "SFO-JFK"},
		{"airline no route", "DELTA AIR 0062345678", "DELTA", "DELTA AIR 0062345678"},
		{"generic travel", "HOTEL XYZ", "AIRLINE", "HOTEL XYZ"},
		{"amazon order id", "AMAZON.COM*123-4567890-1234567", "AMAZON", ""},
		{"amazon prime", "AMAZON PRIME*MEMBERSHIP", "AMAZON PRIME", ""},
		{"amazon fresh", "AMAZON FRESH DELIVERY", "AMAZON FRESH", ""},
		{"amazon prime with order id", "AMAZON PRIME 1234567890123456", "AMAZON", ""},
		{"amzn marketplace", "AMZN Mktp US", "AMAZON", ""},
		{"kindle", "KINDLE SVCS*N60LH2CQ0 888-802-3080 WA", "KINDLE", "KINDLE"},
		{"maidmarines", "MAIDMARINES #1861813 NEW YORK NY", "MAIDMARINES", "MAIDMARINES NEW YORK"},
		{"jacadi", "JACADI #1710 NEW YORK NY", "JACADI", "JACADI"},
		{"generic entity suffix", "THE HOME DEPOT INC", "HOME DEPOT", ""},
		{"generic state", "STARBUCKS SEATTLE WA", "STARBUCKS SEATTLE", ""},
		{"generic zip", "TRADER JOES 10001", "TRADER JOES", ""},
		{"generic untouched", "Target", "Target", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.in)
			assert.Equal(t, tt.want, got.Normalized)
			assert.Equal(t, tt.details, got.Details)
		})
	}
}

func TestVariantsShareNormalizedName(t *testing.T) {
	same := func(a, b string) bool { return Normalize(a).Normalized == Normalize(b).Normalized }
	assert.True(t, same("DOORDASH*SWEETGREEN", "DOORDASH - THAI PLACE"))
	assert.True(t, same("AMZN Mktp US", "AMAZON.COM*123-4567890-1234567"))
	assert.False(t, same("LYFT *RIDE", "UBER *TRIP"))
}

func TestReplaceFirstOnlyTouchesLeftmostMatch(t *testing.T) {
	got := replaceFirst(kindleSvcRe, "KINDLE SVCS*AAA KINDLE SVCS*BBB", "KINDLE")
	assert.Equal(t, "KINDLE KINDLE SVCS*BBB", got)
}
