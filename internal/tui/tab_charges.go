package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/theirongolddev/household/internal/cli"
	"github.com/theirongolddev/household/internal/model"
	"github.com/theirongolddev/household/internal/orderid"
	"github.com/theirongolddev/household/internal/orders"
	"github.com/theirongolddev/household/internal/tui/components"
	"github.com/theirongolddev/household/internal/tui/theme"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const actionTimeout = 15 * time.Second

// chargesState tracks the charges tab state.
type chargesState struct {
	cursor      int
	offset      int
	searching   bool
	searchInput textinput.Model
	searchQuery string

	// Amazon order enrichment
	enriching   bool
	enrichDone  int
	enrichTotal int
	enrichSub   chan tea.Msg
	enriched    map[int64]orders.Enriched
}

func newChargesState() chargesState {
	return chargesState{searchInput: newSearchInput()}
}

func newSearchInput() textinput.Model {
	ti := textinput.New()
	ti.Placeholder = "merchant or budget"
	ti.CharLimit = 100
	ti.Width = 40
	ti.Prompt = "/ "
	return ti
}

// filteredCharges returns the cycle's charges matching the search query.
func (a App) filteredCharges() []model.Charge {
	return filterCharges(a.snap.Charges, a.charges.searchQuery)
}

// filterCharges keeps charges whose merchant or allocation contains query,
// case-insensitively.
func filterCharges(charges []model.Charge, query string) []model.Charge {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return charges
	}
	var out []model.Charge
	for _, ch := range charges {
		if strings.Contains(strings.ToLower(ch.Merchant), q) ||
			strings.Contains(strings.ToLower(ch.MerchantNormalized), q) ||
			strings.Contains(strings.ToLower(ch.AllocatedTo), q) {
			out = append(out, ch)
		}
	}
	return out
}

func (a App) selectedCharge() (model.Charge, bool) {
	list := a.filteredCharges()
	if a.charges.cursor < 0 || a.charges.cursor >= len(list) {
		return model.Charge{}, false
	}
	return list[a.charges.cursor], true
}

// updateChargesSearch handles key events while in search mode.
func (a App) updateChargesSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		a.charges.searchQuery = strings.TrimSpace(a.charges.searchInput.Value())
		a.charges.searching = false
		a.charges.cursor = 0
		a.charges.offset = 0
		return a, nil
	case "esc":
		a.charges.searching = false
		return a, nil
	}

	var cmd tea.Cmd
	a.charges.searchInput, cmd = a.charges.searchInput.Update(msg)
	return a, cmd
}

func (a App) updateChargesKey(key string) (App, tea.Cmd, bool) {
	list := a.filteredCharges()

	switch key {
	case "/":
		a.charges.searching = true
		a.charges.searchInput = newSearchInput()
		a.charges.searchInput.SetValue(a.charges.searchQuery)
		a.charges.searchInput.Focus()
		return a, a.charges.searchInput.Cursor.BlinkCmd(), true
	case "esc":
		if a.charges.searchQuery != "" {
			a.charges.searchQuery = ""
			a.charges.cursor = 0
			a.charges.offset = 0
		}
		return a, nil, true
	case "j", "down":
		a.moveCursor(1)
		return a, nil, true
	case "k", "up":
		a.moveCursor(-1)
		return a, nil, true
	case "home":
		a.charges.cursor = 0
		return a, nil, true
	case "end":
		a.charges.cursor = max(len(list)-1, 0)
		return a, nil, true
	case "a", "u":
		ch, ok := a.selectedCharge()
		if !ok {
			return a, nil, true
		}
		target := ""
		if key == "a" {
			target = nextBudget(a.snap.Budgets, ch.AllocatedTo)
		}
		return a, assignCmd(a.src, ch, target), true
	case "A":
		if !a.snap.hasCycle() {
			return a, nil, true
		}
		return a, refreshAssociationsCmd(a.src, a.snap.Cycle.ID), true
	case "e":
		return a.startEnrich()
	}
	return a, nil, false
}

// nextBudget returns the budget after current in list order, wrapping to
// the first. Unknown or empty current selects the first budget.
func nextBudget(budgets []budgetView, current string) string {
	if len(budgets) == 0 {
		return ""
	}
	for i, b := range budgets {
		if b.Name == current {
			return budgets[(i+1)%len(budgets)].Name
		}
	}
	return budgets[0].Name
}

func assignCmd(src Source, ch model.Charge, allocatedTo string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		err := src.BulkAssign(ctx, []model.Assignment{{ID: ch.ID, AllocatedTo: allocatedTo}})
		return actionDoneMsg{
			message: fmt.Sprintf("%s → %s", cli.Truncate(ch.Merchant, 30), cli.Allocation(allocatedTo)),
			err:     err,
			reload:  err == nil,
		}
	}
}

func refreshAssociationsCmd(src Source, cycleID int64) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		n, err := src.RefreshAutoAssociations(ctx, cycleID)
		return actionDoneMsg{
			message: fmt.Sprintf("Auto-associations updated %d charges", n),
			err:     err,
			reload:  err == nil && n > 0,
		}
	}
}

// ─── Amazon enrichment ──────────────────────────────────────────

type enrichProgressMsg struct{ done, total int }

type enrichDoneMsg struct {
	results []orders.Enriched
	err     error
}

func (a App) startEnrich() (App, tea.Cmd, bool) {
	if a.charges.enriching {
		return a, nil, true
	}
	if !a.orders.Configured() {
		a.message = "Orders worker not configured (orders.worker_url)"
		return a, nil, true
	}
	a.charges.enriching = true
	a.charges.enrichDone = 0
	a.charges.enrichTotal = 0
	a.charges.enrichSub = make(chan tea.Msg, 16)
	return a, tea.Batch(a.spinner.Tick, enrichCmd(a.orders, a.snap.Charges, a.charges.enrichSub)), true
}

// enrichCmd looks up Amazon orders in a goroutine, streaming progress
// through sub like loadDataCmd does.
func enrichCmd(client *orders.Client, charges []model.Charge, sub chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
			defer cancel()
			results, err := client.Enrich(ctx, charges, func(done, total int) {
				select {
				case sub <- enrichProgressMsg{done: done, total: total}:
				default:
				}
			})
			sub <- enrichDoneMsg{results: results, err: err}
		}()
		return <-sub
	}
}

func waitForEnrichMsg(sub chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-sub
	}
}

func (a App) finishEnrich(msg enrichDoneMsg) App {
	a.charges.enriching = false
	if a.charges.enriched == nil {
		a.charges.enriched = make(map[int64]orders.Enriched)
	}
	failed := 0
	for _, e := range msg.results {
		a.charges.enriched[e.ChargeID] = e
		if e.Err != nil {
			failed++
		}
	}
	switch {
	case msg.err != nil:
		a.message = "Order lookup stopped: " + msg.err.Error()
	case len(msg.results) == 0:
		a.message = "No Amazon charges with order ids"
	default:
		a.message = fmt.Sprintf("Fetched %d Amazon orders (%d failed)", len(msg.results)-failed, failed)
	}
	return a
}

// ─── Rendering ──────────────────────────────────────────────────

func (a App) renderChargesTab(cw, h int) string {
	t := theme.Active
	list := a.filteredCharges()

	if !a.snap.hasCycle() {
		return components.ContentCard("Charges", "No billing cycles yet.", cw)
	}

	listW := cw
	var detail string
	if !a.isCompactLayout() {
		listW = cw * 3 / 5
		detail = a.renderChargeDetail(cw - listW)
	}

	muted := lipgloss.NewStyle().Foreground(t.TextMuted)
	var b strings.Builder
	switch {
	case a.charges.searching:
		b.WriteString(a.charges.searchInput.View())
		b.WriteString("\n")
	case a.charges.searchQuery != "":
		b.WriteString(muted.Render(fmt.Sprintf("filter %q: %d of %d  [esc] clear", a.charges.searchQuery, len(list), len(a.snap.Charges))))
		b.WriteString("\n")
	}
	if a.charges.enriching {
		b.WriteString(a.spinner.View())
		b.WriteString(muted.Render(fmt.Sprintf(" Fetching Amazon orders %d/%d", a.charges.enrichDone, a.charges.enrichTotal)))
		b.WriteString("\n")
	}

	inner := components.CardInnerWidth(listW)
	merchantW := max(inner-36, 10)
	header := fmt.Sprintf("%-10s  %-*s  %10s  %-12s", "Date", merchantW, "Merchant", "Amount", "Budget")
	b.WriteString(lipgloss.NewStyle().Foreground(t.TextDim).Render(header))
	b.WriteString("\n")

	rows := max(h-6, 3)
	offset := a.charges.offset
	if a.charges.cursor < offset {
		offset = a.charges.cursor
	}
	if a.charges.cursor >= offset+rows {
		offset = a.charges.cursor - rows + 1
	}

	rowStyle := lipgloss.NewStyle().Foreground(t.TextPrimary)
	selStyle := lipgloss.NewStyle().Foreground(t.AccentBright).Background(t.Selected).Bold(true)
	unallocStyle := lipgloss.NewStyle().Foreground(t.Unallocated)
	for i := offset; i < len(list) && i < offset+rows; i++ {
		ch := list[i]
		budget := cli.Truncate(cli.Allocation(ch.AllocatedTo), 12)
		line := fmt.Sprintf("%-10s  %-*s  %10s  ", cli.FormatDate(ch.TransactionDate), merchantW,
			cli.Truncate(ch.Merchant, merchantW), cli.FormatMoney(ch.Amount))
		switch {
		case i == a.charges.cursor:
			b.WriteString(selStyle.Render(line + fmt.Sprintf("%-12s", budget)))
		case ch.AllocatedTo == "":
			b.WriteString(rowStyle.Render(line) + unallocStyle.Render(budget))
		default:
			b.WriteString(rowStyle.Render(line + budget))
		}
		b.WriteString("\n")
	}
	if len(list) == 0 {
		b.WriteString(muted.Render("No charges."))
	}

	title := fmt.Sprintf("Charges (%d)", len(list))
	listCard := components.ContentCard(title, strings.TrimRight(b.String(), "\n"), listW)
	if detail == "" {
		return listCard
	}
	return components.CardRow([]string{listCard, detail})
}

func (a App) renderChargeDetail(w int) string {
	t := theme.Active
	ch, ok := a.selectedCharge()
	if !ok {
		return components.ContentCard("Detail", "", w)
	}

	label := lipgloss.NewStyle().Foreground(t.TextMuted)
	value := lipgloss.NewStyle().Foreground(t.TextPrimary)
	row := func(k, v string) string {
		return label.Render(fmt.Sprintf("%-11s", k)) + value.Render(v) + "\n"
	}

	var b strings.Builder
	b.WriteString(row("Merchant", cli.Truncate(ch.Merchant, components.CardInnerWidth(w)-11)))
	b.WriteString(row("Normalized", ch.MerchantNormalized))
	if ch.MerchantDetails != "" {
		b.WriteString(row("Details", ch.MerchantDetails))
	}
	b.WriteString(row("Amount", cli.FormatMoney(ch.Amount)))
	if ch.IsForeignCurrency {
		b.WriteString(row("Foreign", cli.FormatForeign(ch.ForeignCurrencyAmount, ch.ForeignCurrencyType)))
	}
	b.WriteString(row("Date", cli.FormatDate(ch.TransactionDate)))
	if ch.CardName != "" {
		b.WriteString(row("Card", fmt.Sprintf("%s ••%s", ch.CardName, ch.Last4)))
	}
	b.WriteString(row("Budget", cli.Allocation(ch.AllocatedTo)))

	if id, ok := orderid.ExtractFromMerchant(ch.Merchant); ok {
		b.WriteString("\n")
		b.WriteString(row("Order", id))
		b.WriteString(a.renderOrder(ch.ID, components.CardInnerWidth(w)))
	}
	return components.ContentCard("Detail", strings.TrimRight(b.String(), "\n"), w)
}

// renderOrder shows fetched order details for a charge, if any.
func (a App) renderOrder(chargeID int64, w int) string {
	t := theme.Active
	muted := lipgloss.NewStyle().Foreground(t.TextMuted)

	e, ok := a.charges.enriched[chargeID]
	switch {
	case !ok:
		return muted.Render("press [e] to fetch order details") + "\n"
	case e.Err != nil:
		return lipgloss.NewStyle().Foreground(t.Overspent).Render(cli.Truncate(e.Err.Error(), w)) + "\n"
	}

	var b strings.Builder
	o := e.Order
	fmt.Fprintf(&b, "%s  %s  %s\n", o.OrderDate, o.Status, cli.FormatMoney(o.TotalAmount))
	for _, it := range o.Items {
		line := fmt.Sprintf("  %dx %s", it.Quantity, it.Name)
		b.WriteString(muted.Render(cli.Truncate(line, w-10)))
		b.WriteString(" " + cli.FormatMoney(it.Price) + "\n")
	}

	cats := orderid.Categorize(o.Items)
	names := make([]string, 0, len(cats))
	for name := range cats {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "%s %s\n", muted.Render(name+":"), cli.FormatMoney(cats[name].Total))
	}
	return b.String()
}
