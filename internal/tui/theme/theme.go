// Package theme holds the dashboard palettes. Each palette is a small set
// of base hues mapped onto the roles the budget and charge views draw with.
package theme

import "github.com/charmbracelet/lipgloss"

// Theme is a palette expressed as dashboard roles.
type Theme struct {
	Name string

	Background lipgloss.Color
	Surface    lipgloss.Color // cards and panels
	Selected   lipgloss.Color // cursor row, active tab
	Editing    lipgloss.Color // settings field under the cursor
	Border     lipgloss.Color
	Focus      lipgloss.Color // overlay and help borders

	TextDim      lipgloss.Color
	TextMuted    lipgloss.Color
	TextPrimary  lipgloss.Color
	Accent       lipgloss.Color
	AccentBright lipgloss.Color

	Spend       lipgloss.Color // daily spend bars
	Allocated   lipgloss.Color // charges with a budget, saved values
	Unallocated lipgloss.Color // charges still waiting for a budget
	Enriched    lipgloss.Color // order details, added dependencies, key hints
	Caution     lipgloss.Color
	Overspent   lipgloss.Color // errors and conflicts

	// Shares colors a budget's share of cycle spend, minor to dominant.
	Shares [4]lipgloss.Color
}

// ShareColor picks the Shares entry for a fraction of cycle spend.
func (t Theme) ShareColor(share float64) lipgloss.Color {
	switch {
	case share >= 0.5:
		return t.Shares[3]
	case share >= 0.3:
		return t.Shares[2]
	case share >= 0.15:
		return t.Shares[1]
	default:
		return t.Shares[0]
	}
}

type hues struct {
	bg, surface, raised, bright, border string
	dim, muted, text                    string
	accent, accentBright                string
	green, greenBright                  string
	orange, red, blue, yellow, cyan     string
}

func build(name string, h hues) Theme {
	c := func(s string) lipgloss.Color { return lipgloss.Color(s) }
	return Theme{
		Name:         name,
		Background:   c(h.bg),
		Surface:      c(h.surface),
		Selected:     c(h.raised),
		Editing:      c(h.bright),
		Border:       c(h.border),
		Focus:        c(h.accent),
		TextDim:      c(h.dim),
		TextMuted:    c(h.muted),
		TextPrimary:  c(h.text),
		Accent:       c(h.accent),
		AccentBright: c(h.accentBright),
		Spend:        c(h.blue),
		Allocated:    c(h.greenBright),
		Unallocated:  c(h.orange),
		Enriched:     c(h.cyan),
		Caution:      c(h.yellow),
		Overspent:    c(h.red),
		Shares:       [4]lipgloss.Color{c(h.green), c(h.yellow), c(h.orange), c(h.red)},
	}
}

var (
	// FlexokiDark is the default: warm inks on near-black paper.
	FlexokiDark = build("flexoki-dark", hues{
		bg: "#100F0F", surface: "#1C1B1A", raised: "#282726", bright: "#343331", border: "#403E3C",
		dim: "#575653", muted: "#878580", text: "#FFFCF0",
		accent: "#3AA99F", accentBright: "#5BC8BE",
		green: "#879A39", greenBright: "#A3B859",
		orange: "#DA702C", red: "#D14D41", blue: "#4385BE", yellow: "#D0A215", cyan: "#24837B",
	})

	CatppuccinMocha = build("catppuccin-mocha", hues{
		bg: "#1E1E2E", surface: "#313244", raised: "#45475A", bright: "#585B70", border: "#585B70",
		dim: "#6C7086", muted: "#A6ADC8", text: "#CDD6F4",
		accent: "#89B4FA", accentBright: "#B4D0FB",
		green: "#A6E3A1", greenBright: "#C6F6C1",
		orange: "#FAB387", red: "#F38BA8", blue: "#89B4FA", yellow: "#F9E2AF", cyan: "#94E2D5",
	})

	TokyoNight = build("tokyo-night", hues{
		bg: "#1A1B26", surface: "#24283B", raised: "#343A52", bright: "#414868", border: "#565F89",
		dim: "#565F89", muted: "#A9B1D6", text: "#C0CAF5",
		accent: "#7AA2F7", accentBright: "#A9C1FF",
		green: "#9ECE6A", greenBright: "#B9E87A",
		orange: "#FF9E64", red: "#F7768E", blue: "#7AA2F7", yellow: "#E0AF68", cyan: "#7DCFFF",
	})

	// Terminal sticks to the ANSI 16 colors.
	Terminal = build("terminal", hues{
		bg: "0", surface: "0", raised: "8", bright: "8", border: "8",
		dim: "8", muted: "7", text: "15",
		accent: "6", accentBright: "14",
		green: "2", greenBright: "10",
		orange: "3", red: "1", blue: "4", yellow: "3", cyan: "6",
	})
)

// Active is the palette the dashboard renders with.
var Active = FlexokiDark

// All lists the selectable palettes; the first is the default.
var All = []Theme{FlexokiDark, CatppuccinMocha, TokyoNight, Terminal}

// ByName returns the named palette, or the default when unknown.
func ByName(name string) Theme {
	for _, t := range All {
		if t.Name == name {
			return t
		}
	}
	return All[0]
}

// SetActive switches Active to the named palette.
func SetActive(name string) {
	Active = ByName(name)
}
