// Package tui provides the interactive Bubble Tea dashboard for household
// billing: cycle overview, charges, budgets and the genproj resolver.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/theirongolddev/household/internal/capability"
	"github.com/theirongolddev/household/internal/cli"
	"github.com/theirongolddev/household/internal/config"
	"github.com/theirongolddev/household/internal/orders"
	"github.com/theirongolddev/household/internal/tui/components"
	"github.com/theirongolddev/household/internal/tui/theme"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

// DataLoadedMsg is sent when the initial load finishes.
type DataLoadedMsg struct {
	Snap     snapshot
	Err      error
	LoadTime time.Duration
}

// ProgressMsg reports load progress.
type ProgressMsg struct {
	Current int
	Total   int
}

// RefreshDataMsg is sent when a background reload completes.
type RefreshDataMsg struct {
	Snap     snapshot
	Err      error
	LoadTime time.Duration
}

// actionDoneMsg reports the outcome of a mutation. reload asks for fresh data.
type actionDoneMsg struct {
	message string
	err     error
	reload  bool
}

// Options configures the dashboard.
type Options struct {
	Orders    *orders.Client
	Catalog   *capability.Catalog
	Config    config.Config
	NeedSetup bool
}

// App is the root Bubble Tea model.
type App struct {
	src     Source
	orders  *orders.Client
	catalog *capability.Catalog

	// Data
	snap     snapshot
	loaded   bool
	loadErr  error
	loadTime time.Duration
	cycleID  int64

	// Auto-refresh state
	autoRefresh     bool
	refreshInterval time.Duration
	lastRefresh     time.Time
	refreshing      bool

	// UI state
	width     int
	height    int
	activeTab int
	showHelp  bool
	message   string

	// Per-tab state
	charges  chargesState
	budgets  budgetsState
	genproj  genprojState
	settings settingsState

	// First-run setup (huh form)
	setupForm *huh.Form
	setupVals *SetupValues
	needSetup bool

	// Loading: channel-based progress subscription
	spinner     spinner.Model
	progress    int
	progressMax int
	loadSub     chan tea.Msg
}

const (
	minTerminalWidth = 80
	compactWidth     = 120
	maxContentWidth  = 180

	minContentHeight = 5
)

// Tab indexes, matching components.Tabs.
const (
	tabOverview = iota
	tabCharges
	tabBudgets
	tabGenproj
	tabSettings
)

// loadConfigOrDefault loads config, returning defaults on error so the
// dashboard can always start.
func loadConfigOrDefault() config.Config {
	cfg, err := config.Load()
	if err != nil {
		return config.DefaultConfig()
	}
	return cfg
}

// NewApp creates the dashboard over src.
func NewApp(src Source, opts Options) App {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Active.Accent)

	catalog := opts.Catalog
	if catalog == nil {
		catalog = capability.Default()
	}

	return App{
		src:             src,
		orders:          opts.Orders,
		catalog:         catalog,
		autoRefresh:     opts.Config.TUI.AutoRefresh,
		refreshInterval: opts.Config.TUI.RefreshInterval(),
		needSetup:       opts.NeedSetup,
		charges:         newChargesState(),
		spinner:         sp,
		loadSub:         make(chan tea.Msg, 16),
	}
}

// Init implements tea.Model.
func (a App) Init() tea.Cmd {
	return tea.Batch(
		a.spinner.Tick,
		loadDataCmd(a.src, a.cycleID, a.loadSub),
		tickCmd(),
	)
}

// Update implements tea.Model.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		if a.setupForm != nil {
			a.setupForm = a.setupForm.WithWidth(msg.Width).WithHeight(msg.Height)
		}
		return a, nil

	case tea.MouseMsg:
		return a.updateMouse(msg)

	case tea.KeyMsg:
		return a.updateKey(msg)

	case DataLoadedMsg:
		a.loaded = true
		a.loadTime = msg.LoadTime
		a.lastRefresh = time.Now()
		a.applySnapshot(msg.Snap, msg.Err)

		if a.needSetup {
			vals := DefaultSetupValues(loadConfigOrDefault())
			a.setupVals = &vals
			a.setupForm = NewSetupForm(a.setupVals)
			if a.width > 0 {
				a.setupForm = a.setupForm.WithWidth(a.width).WithHeight(a.height)
			}
			return a, a.setupForm.Init()
		}
		return a, nil

	case ProgressMsg:
		a.progress = msg.Current
		a.progressMax = msg.Total
		return a, waitForLoadMsg(a.loadSub)

	case spinner.TickMsg:
		if !a.loaded || a.charges.enriching {
			var cmd tea.Cmd
			a.spinner, cmd = a.spinner.Update(msg)
			return a, cmd
		}
		return a, nil

	case tickMsg:
		cmds := []tea.Cmd{tickCmd()}
		if a.loaded && a.autoRefresh && !a.refreshing && time.Since(a.lastRefresh) >= a.refreshInterval {
			a.refreshing = true
			cmds = append(cmds, refreshDataCmd(a.src, a.cycleID))
		}
		return a, tea.Batch(cmds...)

	case RefreshDataMsg:
		a.refreshing = false
		a.lastRefresh = time.Now()
		a.loadTime = msg.LoadTime
		a.applySnapshot(msg.Snap, msg.Err)
		return a, nil

	case actionDoneMsg:
		if msg.err != nil {
			a.message = "Error: " + msg.err.Error()
		} else {
			a.message = msg.message
		}
		if msg.reload && !a.refreshing {
			a.refreshing = true
			return a, refreshDataCmd(a.src, a.cycleID)
		}
		return a, nil

	case enrichProgressMsg:
		a.charges.enrichDone = msg.done
		a.charges.enrichTotal = msg.total
		return a, waitForEnrichMsg(a.charges.enrichSub)

	case enrichDoneMsg:
		return a.finishEnrich(msg), nil
	}

	// Forward unhandled messages to the setup form (cursor blinks, etc.)
	if a.needSetup && a.setupForm != nil {
		return a.updateSetupForm(msg)
	}
	return a, nil
}

// applySnapshot installs freshly loaded data, keeping the previous data on
// error so a failed refresh doesn't blank the screen.
func (a *App) applySnapshot(snap snapshot, err error) {
	if err != nil {
		a.loadErr = err
		a.message = "Load failed: " + err.Error()
		return
	}
	a.loadErr = nil
	a.snap = snap
	a.cycleID = snap.Cycle.ID
	a.clampCursors()
}

func (a *App) clampCursors() {
	n := len(a.filteredCharges())
	a.charges.cursor = min(a.charges.cursor, n-1)
	a.charges.cursor = max(a.charges.cursor, 0)
	a.budgets.cursor = min(a.budgets.cursor, len(a.snap.Budgets)-1)
	a.budgets.cursor = max(a.budgets.cursor, 0)
}

func (a App) updateMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if !a.loaded || a.showHelp || (a.needSetup && a.setupForm != nil) {
		return a, nil
	}

	switch msg.Button {
	case tea.MouseButtonWheelUp:
		a.moveCursor(-1)
	case tea.MouseButtonWheelDown:
		a.moveCursor(1)
	case tea.MouseButtonLeft:
		if msg.Y == 0 {
			if tab := a.tabAtX(msg.X); tab >= 0 {
				a.activeTab = tab
			}
		}
	}
	return a, nil
}

// moveCursor moves the active tab's list cursor by delta.
func (a *App) moveCursor(delta int) {
	switch a.activeTab {
	case tabCharges:
		if a.charges.searching {
			return
		}
		n := len(a.filteredCharges())
		a.charges.cursor = max(min(a.charges.cursor+delta, n-1), 0)
	case tabBudgets:
		a.budgets.cursor = max(min(a.budgets.cursor+delta, len(a.snap.Budgets)-1), 0)
	case tabGenproj:
		a.genproj.cursor = max(min(a.genproj.cursor+delta, len(a.catalog.All())-1), 0)
	}
}

func (a App) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if key == "ctrl+c" {
		return a, tea.Quit
	}
	if !a.loaded {
		return a, nil
	}

	// First-run setup wizard intercepts all keys
	if a.needSetup && a.setupForm != nil {
		return a.updateSetupForm(msg)
	}

	if a.activeTab == tabSettings && a.settings.editing {
		return a.updateSettingsInput(msg)
	}
	if a.activeTab == tabCharges && a.charges.searching {
		return a.updateChargesSearch(msg)
	}

	if key == "?" {
		a.showHelp = !a.showHelp
		return a, nil
	}
	if a.showHelp {
		a.showHelp = false
		return a, nil
	}

	var (
		cmd     tea.Cmd
		handled bool
	)
	switch a.activeTab {
	case tabCharges:
		a, cmd, handled = a.updateChargesKey(key)
	case tabBudgets:
		a, cmd, handled = a.updateBudgetsKey(key)
	case tabGenproj:
		a, cmd, handled = a.updateGenprojKey(key)
	case tabSettings:
		a, cmd, handled = a.updateSettingsKey(key)
	}
	if handled {
		return a, cmd
	}

	switch key {
	case "q":
		return a, tea.Quit
	case "r":
		if !a.refreshing {
			a.refreshing = true
			return a, refreshDataCmd(a.src, a.cycleID)
		}
		return a, nil
	case "R":
		a.autoRefresh = !a.autoRefresh
		cfg := loadConfigOrDefault()
		cfg.TUI.AutoRefresh = a.autoRefresh
		_ = config.Save(cfg)
		return a, nil
	case "[", "]":
		return a.switchCycle(key == "[")
	case "left":
		a.activeTab = (a.activeTab - 1 + len(components.Tabs)) % len(components.Tabs)
		return a, nil
	case "right", "tab":
		a.activeTab = (a.activeTab + 1) % len(components.Tabs)
		return a, nil
	}

	if r := []rune(key); len(r) == 1 {
		if idx := components.TabIdxByKey(r[0]); idx >= 0 {
			a.activeTab = idx
		}
	}
	return a, nil
}

// switchCycle moves to the older ("[") or newer ("]") cycle and reloads.
func (a App) switchCycle(older bool) (tea.Model, tea.Cmd) {
	idx := a.snap.cycleIndex()
	if idx < 0 || a.refreshing {
		return a, nil
	}
	if older {
		idx++
	} else {
		idx--
	}
	if idx < 0 || idx >= len(a.snap.Cycles) {
		return a, nil
	}
	a.cycleID = a.snap.Cycles[idx].ID
	a.charges.cursor = 0
	a.charges.enriched = nil
	a.refreshing = true
	return a, refreshDataCmd(a.src, a.cycleID)
}

func (a App) updateSetupForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	form, cmd := a.setupForm.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		a.setupForm = f
	}

	switch a.setupForm.State {
	case huh.StateCompleted:
		cfg := loadConfigOrDefault()
		ApplySetup(&cfg, *a.setupVals)
		if err := config.Save(cfg); err != nil {
			a.message = "Could not save config: " + err.Error()
		} else {
			a.message = "Saved " + config.ConfigPath()
		}
		theme.SetActive(cfg.Appearance.Theme)
		a.needSetup = false
		a.setupForm = nil
		return a, nil
	case huh.StateAborted:
		a.needSetup = false
		a.setupForm = nil
		return a, nil
	}
	return a, cmd
}

func (a App) contentWidth() int {
	return min(a.width, maxContentWidth)
}

func (a App) isCompactLayout() bool {
	return a.contentWidth() < compactWidth
}

// View implements tea.Model.
func (a App) View() string {
	if a.width == 0 {
		return ""
	}
	if a.width < minTerminalWidth {
		return a.viewTooNarrow()
	}
	if !a.loaded {
		return a.viewLoading()
	}
	if a.needSetup && a.setupForm != nil {
		return a.setupForm.View()
	}
	if a.showHelp {
		return a.viewHelp()
	}
	return a.viewMain()
}

func (a App) viewTooNarrow() string {
	h := max(a.height, 5)
	msg := fmt.Sprintf(
		"\n  Terminal too narrow (%d cols)\n\n  household needs at least %d columns.\n",
		a.width,
		minTerminalWidth,
	)
	return padHeight(truncateHeight(msg, h), h)
}

func (a App) viewLoading() string {
	t := theme.Active

	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Focus).
		Background(t.Surface).
		Padding(2, 4)

	logoStyle := lipgloss.NewStyle().
		Foreground(t.AccentBright).
		Background(t.Surface).
		Bold(true)

	subtitleStyle := lipgloss.NewStyle().
		Foreground(t.TextMuted).
		Background(t.Surface)

	spinnerStyle := lipgloss.NewStyle().
		Foreground(t.Accent).
		Background(t.Surface)

	var b strings.Builder
	b.WriteString(logoStyle.Render("◈ household"))
	b.WriteString(subtitleStyle.Render(" · billing & budgets"))
	b.WriteString("\n\n")
	b.WriteString(spinnerStyle.Render(a.spinner.View()))

	if a.progressMax > 0 {
		barW := max(min(40, a.width-30), 20)
		b.WriteString(subtitleStyle.Render(fmt.Sprintf(" Loading %d/%d\n\n", a.progress, a.progressMax)))
		b.WriteString(components.ProgressBar(float64(a.progress)/float64(a.progressMax), barW))
	} else {
		b.WriteString(subtitleStyle.Render(" Opening database..."))
	}

	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, cardStyle.Render(b.String()),
		lipgloss.WithWhitespaceBackground(t.Background))
}

type binding struct{ key, desc string }

func (a App) viewHelp() string {
	t := theme.Active

	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Focus).
		Background(t.Surface).
		Padding(1, 3)

	titleStyle := lipgloss.NewStyle().Foreground(t.AccentBright).Background(t.Surface).Bold(true)
	sectionStyle := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)
	keyStyle := lipgloss.NewStyle().Foreground(t.Enriched).Background(t.Surface).Bold(true)
	descStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	dimStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)

	sections := []struct {
		title    string
		bindings []binding
	}{
		{"Navigation", []binding{
			{"o c b g x", "Jump to tab"},
			{"← → tab", "Previous / Next tab"},
			{"[ ]", "Older / Newer billing cycle"},
			{"j k", "Navigate lists"},
		}},
		{"Charges", []binding{
			{"/", "Search merchants"},
			{"a", "Assign to next budget"},
			{"u", "Unassign"},
			{"A", "Apply auto-associations"},
			{"e", "Fetch Amazon order details"},
		}},
		{"Genproj", []binding{
			{"space", "Toggle capability"},
			{"C", "Clear selection"},
		}},
		{"General", []binding{
			{"r", "Refresh data"},
			{"R", "Toggle auto-refresh"},
			{"?", "Toggle help"},
			{"q", "Quit"},
		}},
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("◈ Keyboard Shortcuts"))
	b.WriteString("\n")
	for _, sec := range sections {
		b.WriteString("\n")
		b.WriteString(sectionStyle.Render(sec.title))
		b.WriteString("\n")
		for _, bind := range sec.bindings {
			fmt.Fprintf(&b, "  %s  %s\n",
				keyStyle.Render(fmt.Sprintf("%-10s", bind.key)),
				descStyle.Render(bind.desc))
		}
	}
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Press any key to close"))

	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, cardStyle.Render(b.String()),
		lipgloss.WithWhitespaceBackground(t.Background))
}

func (a App) viewMain() string {
	t := theme.Active
	w := a.width
	cw := a.contentWidth()
	h := a.height

	// 1. Header: tab bar + cycle pill
	pillStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)
	pillAccent := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)

	pill := pillStyle.Render(" no billing cycles ")
	if a.snap.hasCycle() {
		state := "open"
		if a.snap.Cycle.Closed {
			state = "closed"
		}
		pill = pillStyle.Render(" ") +
			pillAccent.Render(cli.FormatRange(a.snap.Cycle)) +
			pillStyle.Render(fmt.Sprintf(" │ %s │ cycle %d of %d ", state, a.snap.cycleIndex()+1, len(a.snap.Cycles)))
	}
	header := components.RenderTabBar(a.activeTab, w) + "\n" +
		lipgloss.NewStyle().Background(t.Surface).Width(w).Render(pill)

	// 2. Status bar
	statusBar := components.RenderStatusBar(w, components.StatusInfo{
		DataAge:     fmt.Sprintf("%.1fs", a.loadTime.Seconds()),
		Refreshing:  a.refreshing,
		AutoRefresh: a.autoRefresh,
		Message:     a.message,
	})

	// 3. Content zone height
	contentH := max(h-lipgloss.Height(header)-lipgloss.Height(statusBar), minContentHeight)

	// 4. Tab content
	var content string
	switch a.activeTab {
	case tabOverview:
		content = a.renderOverviewTab(cw)
	case tabCharges:
		content = a.renderChargesTab(cw, contentH)
	case tabBudgets:
		content = a.renderBudgetsTab(cw)
	case tabGenproj:
		content = a.renderGenprojTab(cw, contentH)
	case tabSettings:
		content = a.renderSettingsTab(cw)
	}

	// 5. Truncate + pad to exactly contentH lines, then fill the background
	content = padHeight(truncateHeight(content, contentH), contentH)
	content = fillLinesWithBackground(content, cw, t.Background)
	content = lipgloss.Place(w, contentH, lipgloss.Center, lipgloss.Top, content,
		lipgloss.WithWhitespaceBackground(t.Background))

	output := lipgloss.JoinVertical(lipgloss.Left, header, content, statusBar)
	return lipgloss.Place(w, h, lipgloss.Left, lipgloss.Top, output,
		lipgloss.WithWhitespaceBackground(t.Background))
}

// ─── Commands ───────────────────────────────────────────────────

type tickMsg struct{}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

// loadDataCmd loads the snapshot in a background goroutine, streaming
// ProgressMsg updates and a final DataLoadedMsg through sub.
func loadDataCmd(src Source, cycleID int64, sub chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		go func() {
			start := time.Now()
			ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
			defer cancel()

			// Non-blocking send: a dropped update is caught up by the next.
			progressFn := func(current, total int) {
				select {
				case sub <- ProgressMsg{Current: current, Total: total}:
				default:
				}
			}
			snap, err := loadSnapshot(ctx, src, cycleID, progressFn)
			sub <- DataLoadedMsg{Snap: snap, Err: err, LoadTime: time.Since(start)}
		}()
		return <-sub
	}
}

// waitForLoadMsg blocks until the next message arrives from the loader goroutine.
func waitForLoadMsg(sub chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-sub
	}
}

// refreshDataCmd reloads the snapshot without progress UI.
func refreshDataCmd(src Source, cycleID int64) tea.Cmd {
	return func() tea.Msg {
		start := time.Now()
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		snap, err := loadSnapshot(ctx, src, cycleID, nil)
		return RefreshDataMsg{Snap: snap, Err: err, LoadTime: time.Since(start)}
	}
}

// ─── Helpers ────────────────────────────────────────────────────

func truncateHeight(s string, limit int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= limit {
		return s
	}
	return strings.Join(lines[:limit], "\n")
}

func padHeight(s string, h int) string {
	lines := strings.Split(s, "\n")
	if len(lines) >= h {
		return s
	}
	return s + strings.Repeat("\n", h-len(lines))
}

// fillLinesWithBackground pads each line to width w with background color,
// so gaps between cards and empty lines get the theme background.
func fillLinesWithBackground(s string, w int, bg lipgloss.Color) string {
	lines := strings.Split(s, "\n")

	var result strings.Builder
	for i, line := range lines {
		result.WriteString(lipgloss.PlaceHorizontal(w, lipgloss.Left, line,
			lipgloss.WithWhitespaceBackground(bg)))
		if i < len(lines)-1 {
			result.WriteString("\n")
		}
	}
	return result.String()
}

// ─── Mouse Support ──────────────────────────────────────────────

// tabAtX returns the tab index at the given X coordinate, or -1 if none.
// Hitboxes use the same widths RenderTabBar draws.
func (a App) tabAtX(x int) int {
	pos := 0
	for i, tab := range components.Tabs {
		tabW := components.TabVisualWidth(tab, i == a.activeTab)
		if x >= pos && x < pos+tabW {
			return i
		}
		pos += tabW

		// Separator is one column between tabs.
		if i < len(components.Tabs)-1 {
			pos++
		}
	}
	return -1
}
