package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/household/internal/capability"
	"github.com/theirongolddev/household/internal/config"
	"github.com/theirongolddev/household/internal/model"
	"github.com/theirongolddev/household/internal/store"
	"github.com/theirongolddev/household/internal/tui/components"
)

func date(t *testing.T, s string) model.Date {
	t.Helper()
	d, err := model.ParseDate(s)
	require.NoError(t, err)
	return d
}

func datePtr(t *testing.T, s string) *model.Date {
	d := date(t, s)
	return &d
}

// seedStore creates a January cycle with one charge and a February cycle
// with three, plus a Groceries budget that auto-associates SAFEWAY.
func seedStore(t *testing.T) *store.Store {
	t.Helper()
	ctx := context.Background()
	st, err := store.OpenMemory(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	addCycle := func(start, end string, charges ...model.ParsedCharge) {
		c, err := st.CreateCycle(ctx, date(t, start), date(t, end))
		require.NoError(t, err)
		stmt, err := st.CreateStatement(ctx, model.Statement{
			BillingCycleID: c.ID,
			Filename:       start + ".pdf",
			BlobKey:        "statements/" + start,
		})
		require.NoError(t, err)
		require.NoError(t, st.ReplaceStatementPayments(ctx, stmt.ID, charges))
	}

	addCycle("2025-01-01", "2025-01-31",
		model.ParsedCharge{Merchant: "SAFEWAY", Amount: decimal.NewFromInt(10), TransactionDate: datePtr(t, "2025-01-05")})
	addCycle("2025-02-01", "2025-02-28",
		model.ParsedCharge{Merchant: "SAFEWAY", Amount: decimal.NewFromInt(40), AllocatedTo: "Groceries", TransactionDate: datePtr(t, "2025-02-02")},
		model.ParsedCharge{Merchant: "SHELL OIL", Amount: decimal.NewFromInt(25), TransactionDate: datePtr(t, "2025-02-02")},
		model.ParsedCharge{Merchant: "AMAZON MKTPLACE PMTS 112-1234567-1234567", Amount: decimal.NewFromFloat(12.5), TransactionDate: datePtr(t, "2025-02-10")},
	)

	b, err := st.CreateBudget(ctx, "Groceries", "🛒")
	require.NoError(t, err)
	_, err = st.AddBudgetMerchant(ctx, b.ID, "SAFEWAY")
	require.NoError(t, err)
	_, err = st.CreateBudget(ctx, "Travel", "")
	require.NoError(t, err)
	return st
}

// loadedApp returns an App that has received its initial data.
func loadedApp(t *testing.T, st *store.Store) App {
	t.Helper()
	app := NewApp(st, Options{Config: config.DefaultConfig(), Catalog: capability.Default()})
	snap, err := loadSnapshot(context.Background(), st, 0, nil)
	require.NoError(t, err)
	m, _ := app.Update(DataLoadedMsg{Snap: snap, LoadTime: time.Millisecond})
	m, _ = m.Update(tea.WindowSizeMsg{Width: 140, Height: 45})
	return m.(App)
}

func press(t *testing.T, a App, key string) (App, tea.Cmd) {
	t.Helper()
	var msg tea.KeyMsg
	switch key {
	case "down", "up", "enter", "esc":
		msg = tea.KeyMsg{Type: map[string]tea.KeyType{
			"down": tea.KeyDown, "up": tea.KeyUp, "enter": tea.KeyEnter, "esc": tea.KeyEsc,
		}[key]}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	m, cmd := a.Update(msg)
	return m.(App), cmd
}

func TestTabAtXMatchesTabWidths(t *testing.T) {
	for active := range components.Tabs {
		a := App{activeTab: active}
		pos := 0
		for i, tab := range components.Tabs {
			w := components.TabVisualWidth(tab, i == active)
			if got := a.tabAtX(pos + w/2); got != i {
				t.Fatalf("active=%d x=%d -> tab=%d, want %d", active, pos+w/2, got, i)
			}
			pos += w + 1
		}
		if got := a.tabAtX(pos + 50); got != -1 {
			t.Fatalf("x past the last tab should miss, got %d", got)
		}
	}
}

func TestLoadSnapshotPicksLatestCycle(t *testing.T) {
	st := seedStore(t)

	var calls, lastTotal int
	snap, err := loadSnapshot(context.Background(), st, 0, func(done, total int) {
		calls++
		lastTotal = total
		assert.LessOrEqual(t, done, total)
	})
	require.NoError(t, err)

	assert.Equal(t, "2025-02-01", snap.Cycle.StartDate.String())
	assert.Len(t, snap.Cycles, 2)
	assert.Len(t, snap.Charges, 3)
	assert.Equal(t, 1, snap.Summary.Statements)
	assert.True(t, decimal.NewFromFloat(77.5).Equal(snap.Summary.Total), snap.Summary.Total.String())
	require.NotNil(t, snap.Previous)
	assert.True(t, decimal.NewFromInt(10).Equal(snap.Previous.Total))

	require.Len(t, snap.Budgets, 2)
	byName := map[string]budgetView{}
	for _, b := range snap.Budgets {
		byName[b.Name] = b
	}
	assert.True(t, decimal.NewFromInt(40).Equal(byName["Groceries"].Spent))
	assert.Equal(t, 1, byName["Groceries"].Charges)
	assert.Len(t, byName["Groceries"].Merchants, 1)
	assert.True(t, byName["Travel"].Spent.IsZero())

	assert.Equal(t, 7, calls)
	assert.Equal(t, 7, lastTotal)
}

func TestLoadSnapshotSelectsRequestedCycle(t *testing.T) {
	st := seedStore(t)
	cycles, err := st.ListCycles(context.Background())
	require.NoError(t, err)

	snap, err := loadSnapshot(context.Background(), st, cycles[1].ID, nil)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-01", snap.Cycle.StartDate.String())
	assert.Nil(t, snap.Previous)
	assert.Equal(t, 1, snap.Summary.Unallocated)
}

func TestLoadSnapshotEmptyStore(t *testing.T) {
	st, err := store.OpenMemory(context.Background())
	require.NoError(t, err)
	defer st.Close()

	snap, err := loadSnapshot(context.Background(), st, 0, nil)
	require.NoError(t, err)
	assert.False(t, snap.hasCycle())
	assert.Equal(t, -1, snap.cycleIndex())
}

func TestDailySpend(t *testing.T) {
	cycle := model.BillingCycle{StartDate: date(t, "2025-01-30"), EndDate: date(t, "2025-02-02")}
	charges := []model.Charge{
		{Payment: model.Payment{Amount: decimal.NewFromInt(5), TransactionDate: datePtr(t, "2025-01-30")}},
		{Payment: model.Payment{Amount: decimal.NewFromInt(7), TransactionDate: datePtr(t, "2025-02-01"), AllocatedTo: "Fuel"}},
		{Payment: model.Payment{Amount: decimal.NewFromInt(3), TransactionDate: datePtr(t, "2025-02-01")}},
		{Payment: model.Payment{Amount: decimal.NewFromInt(99), TransactionDate: datePtr(t, "2025-03-01")}},
		{Payment: model.Payment{Amount: decimal.NewFromInt(99)}},
	}

	days := dailySpend(cycle, charges)
	require.Len(t, days, 4)
	var labels []string
	var totals, open []float64
	for _, d := range days {
		labels = append(labels, d.Label)
		totals = append(totals, d.Total.InexactFloat64())
		open = append(open, d.Unallocated.InexactFloat64())
	}
	assert.Equal(t, []string{"Jan 30", "31", "Feb 1", "2"}, labels)
	assert.Equal(t, []float64{5, 0, 10, 0}, totals)
	assert.Equal(t, []float64{5, 0, 3, 0}, open)
}

func TestTopAndUnassignedMerchants(t *testing.T) {
	charges := []model.Charge{
		{Payment: model.Payment{MerchantNormalized: "SHELL", Amount: decimal.NewFromInt(20)}},
		{Payment: model.Payment{MerchantNormalized: "SAFEWAY", Amount: decimal.NewFromInt(15), AllocatedTo: "Groceries"}},
		{Payment: model.Payment{MerchantNormalized: "SAFEWAY", Amount: decimal.NewFromInt(15)}},
		{Payment: model.Payment{MerchantNormalized: "ACME", Amount: decimal.NewFromInt(1)}},
	}

	top := topMerchants(charges, 2)
	require.Len(t, top, 2)
	assert.Equal(t, "SAFEWAY", top[0].Merchant)
	assert.Equal(t, 2, top[0].Count)
	assert.Equal(t, "SHELL", top[1].Merchant)

	assert.Equal(t, []string{"ACME", "SAFEWAY", "SHELL"}, unassignedMerchants(charges))
}

func TestNextBudgetWraps(t *testing.T) {
	budgets := []budgetView{{Budget: model.Budget{Name: "A"}}, {Budget: model.Budget{Name: "B"}}}
	assert.Equal(t, "A", nextBudget(budgets, ""))
	assert.Equal(t, "B", nextBudget(budgets, "A"))
	assert.Equal(t, "A", nextBudget(budgets, "B"))
	assert.Equal(t, "A", nextBudget(budgets, "gone"))
	assert.Equal(t, "", nextBudget(nil, "A"))
}

func TestAssignKeyUpdatesStore(t *testing.T) {
	st := seedStore(t)
	a := loadedApp(t, st)
	a, _ = press(t, a, "c")
	require.Equal(t, tabCharges, a.activeTab)

	a.charges.searchQuery = "shell"
	ch, ok := a.selectedCharge()
	require.True(t, ok)
	require.Equal(t, "SHELL OIL", ch.Merchant)

	a, cmd := press(t, a, "a")
	require.NotNil(t, cmd)
	done, ok := cmd().(actionDoneMsg)
	require.True(t, ok)
	require.NoError(t, done.err)
	assert.True(t, done.reload)

	got, err := st.GetPayment(context.Background(), ch.ID)
	require.NoError(t, err)
	assert.Equal(t, "Groceries", got.AllocatedTo)

	m, cmd := a.Update(done)
	a = m.(App)
	assert.True(t, a.refreshing)
	assert.Contains(t, a.message, "Groceries")
	refreshed, ok := cmd().(RefreshDataMsg)
	require.True(t, ok)
	m, _ = a.Update(refreshed)
	a = m.(App)
	assert.False(t, a.refreshing)

	_, cmd = press(t, a, "u")
	done = cmd().(actionDoneMsg)
	require.NoError(t, done.err)
	got, err = st.GetPayment(context.Background(), ch.ID)
	require.NoError(t, err)
	assert.Empty(t, got.AllocatedTo)
}

func TestApplyAutoAssociationsKey(t *testing.T) {
	st := seedStore(t)
	a := loadedApp(t, st)
	a, _ = press(t, a, "]")
	a, cmd := press(t, a, "[")
	require.NotNil(t, cmd)
	m, _ := a.Update(cmd())
	a = m.(App)
	require.Equal(t, "2025-01-01", a.snap.Cycle.StartDate.String())

	a, _ = press(t, a, "c")
	_, cmd = press(t, a, "A")
	done := cmd().(actionDoneMsg)
	require.NoError(t, done.err)
	assert.Equal(t, "Auto-associations updated 1 charges", done.message)
}

func TestSwitchCycleStopsAtEnds(t *testing.T) {
	a := loadedApp(t, seedStore(t))
	_, cmd := press(t, a, "]")
	assert.Nil(t, cmd, "newest cycle has nothing newer")

	a, cmd = press(t, a, "[")
	require.NotNil(t, cmd)
	assert.Equal(t, a.snap.Cycles[1].ID, a.cycleID)
	assert.True(t, a.refreshing)
}

func TestEnrichWithoutWorker(t *testing.T) {
	a := loadedApp(t, seedStore(t))
	a, _ = press(t, a, "c")
	a, cmd := press(t, a, "e")
	assert.Nil(t, cmd)
	assert.False(t, a.charges.enriching)
	assert.Contains(t, a.message, "not configured")
}

func TestGenprojToggleResolvesDependencies(t *testing.T) {
	a := loadedApp(t, seedStore(t))
	a, _ = press(t, a, "g")
	require.Equal(t, tabGenproj, a.activeTab)

	for i, c := range a.catalog.All() {
		if c.ID == "sonarlint" {
			a.genproj.cursor = i
		}
	}
	a, _ = press(t, a, " ")
	assert.Equal(t, []string{"sonarlint"}, a.genproj.selected)
	assert.Contains(t, a.catalog.Resolve(a.genproj.selected).Added, "java")

	view := a.View()
	assert.Contains(t, view, "[+]")
	assert.Contains(t, view, "Plan")

	a, _ = press(t, a, " ")
	assert.Empty(t, a.genproj.selected)

	a, _ = press(t, a, " ")
	a, _ = press(t, a, "C")
	assert.Empty(t, a.genproj.selected)
}

func TestViewRendersEveryTab(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	a := loadedApp(t, seedStore(t))
	want := []string{"Daily spend", "SHELL OIL", "Budgets this cycle", "Capabilities", "Refresh Interval"}
	for i := range components.Tabs {
		a.activeTab = i
		view := a.View()
		assert.Contains(t, view, want[i], "tab %d", i)
		assert.Equal(t, a.height, len(strings.Split(view, "\n")), "tab %d fills the screen", i)
	}
}

func TestViewNarrowAndLoading(t *testing.T) {
	a := NewApp(nil, Options{Config: config.DefaultConfig()})
	assert.Empty(t, a.View())

	m, _ := a.Update(tea.WindowSizeMsg{Width: 60, Height: 20})
	assert.Contains(t, m.View(), "too narrow")

	m, _ = m.Update(tea.WindowSizeMsg{Width: 100, Height: 20})
	m, _ = m.Update(ProgressMsg{Current: 2, Total: 4})
	assert.Contains(t, m.View(), "Loading 2/4")
}

func TestHelpOverlayToggles(t *testing.T) {
	a := loadedApp(t, seedStore(t))
	a, _ = press(t, a, "?")
	assert.Contains(t, a.View(), "Keyboard Shortcuts")
	a, _ = press(t, a, "x")
	assert.False(t, a.showHelp)
	assert.Equal(t, tabOverview, a.activeTab, "dismissing help swallows the key")
}

func TestSettingsRejectsBadInterval(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	a := loadedApp(t, seedStore(t))
	a, _ = press(t, a, "x")
	for range settingsFieldRefreshInterval {
		a, _ = press(t, a, "down")
	}
	a, _ = press(t, a, "enter")
	require.True(t, a.settings.editing)

	a.settings.input.SetValue("2")
	a, _ = press(t, a, "enter")
	assert.False(t, a.settings.editing)
	assert.ErrorContains(t, a.settings.saveErr, "at least 5")
	assert.False(t, config.Exists())

	a, _ = press(t, a, "enter")
	a.settings.input.SetValue("60")
	a, _ = press(t, a, "enter")
	require.NoError(t, a.settings.saveErr)
	assert.Equal(t, time.Minute, a.refreshInterval)

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 60, cfg.TUI.RefreshIntervalSec)
}

func TestApplySetup(t *testing.T) {
	cfg := config.DefaultConfig()
	vals := DefaultSetupValues(cfg)
	vals.Theme = "tokyo-night"
	vals.WorkerURL = " http://127.0.0.1:8788/ "
	vals.SchedulerEnabled = false
	ApplySetup(&cfg, vals)

	assert.Equal(t, "tokyo-night", cfg.Appearance.Theme)
	assert.Equal(t, "http://127.0.0.1:8788", cfg.Orders.WorkerURL)
	assert.False(t, cfg.Scheduler.Enabled)

	assert.NoError(t, validateWorkerURL(""))
	assert.Error(t, validateWorkerURL("ftp://x"))
	assert.Error(t, validateWorkerURL("not a url"))
}
