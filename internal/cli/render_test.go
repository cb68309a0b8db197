package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTableAlignsColumns(t *testing.T) {
	out := RenderTable(Table{
		Headers:    []string{"Merchant", "Amount"},
		Rows:       [][]string{{"Café", "$4.50"}, Separator, {"Total", "$104.50"}},
		RightAlign: []int{1},
	})
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 7)

	width := len([]rune(stripANSI(lines[0])))
	for _, l := range lines {
		assert.Equal(t, width, len([]rune(stripANSI(l))), l)
	}
	assert.Contains(t, stripANSI(out), "   $4.50")
}

func TestRenderTableEmpty(t *testing.T) {
	assert.Equal(t, "", RenderTable(Table{}))
}

func TestRenderSparkline(t *testing.T) {
	assert.Equal(t, "", RenderSparkline(nil))
	assert.Equal(t, "▁█", RenderSparkline([]float64{0, 10}))
	assert.Equal(t, "▁▁", RenderSparkline([]float64{0, 0}))
}

func TestRenderProgressBar(t *testing.T) {
	assert.Equal(t, "", RenderProgressBar(1, 0, 10))
	assert.Contains(t, RenderProgressBar(5, 10, 10), "5/10")
}

// stripANSI removes SGR escape sequences.
func stripANSI(s string) string {
	var b strings.Builder
	inEsc := false
	for _, r := range s {
		switch {
		case r == '\x1b':
			inEsc = true
		case inEsc && r == 'm':
			inEsc = false
		case !inEsc:
			b.WriteRune(r)
		}
	}
	return b.String()
}
