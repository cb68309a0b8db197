package tui

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/theirongolddev/household/internal/model"
	"github.com/theirongolddev/household/internal/store"
	"github.com/theirongolddev/household/internal/tui/components"
)

// Source is what the dashboard reads, plus the few mutations it issues.
// *store.Store satisfies it.
type Source interface {
	ListCycles(ctx context.Context) ([]model.BillingCycle, error)
	CycleSummary(ctx context.Context, cycleID int64) (model.CycleSummary, error)
	ListChargesForCycle(ctx context.Context, cycleID int64) ([]model.Charge, error)
	ListStatements(ctx context.Context, cycleID int64) ([]model.Statement, error)
	ListBudgets(ctx context.Context) ([]model.Budget, error)
	ListBudgetMerchants(ctx context.Context, budgetID int64) ([]model.BudgetMerchant, error)
	BulkAssign(ctx context.Context, assignments []model.Assignment) error
	RefreshAutoAssociations(ctx context.Context, cycleID int64) (int, error)
}

// budgetView is a budget with its merchants and this cycle's spending.
type budgetView struct {
	model.Budget
	Merchants []model.BudgetMerchant
	Spent     decimal.Decimal
	Charges   int
}

// snapshot is everything one render of the dashboard needs.
type snapshot struct {
	Cycles     []model.BillingCycle
	Cycle      model.BillingCycle
	Summary    model.CycleSummary
	Previous   *model.CycleSummary
	Charges    []model.Charge
	Statements []model.Statement
	Budgets    []budgetView
}

func (s snapshot) hasCycle() bool { return s.Cycle.ID != 0 }

// cycleIndex returns the position of the selected cycle, or -1.
func (s snapshot) cycleIndex() int {
	for i, c := range s.Cycles {
		if c.ID == s.Cycle.ID {
			return i
		}
	}
	return -1
}

const loadTimeout = 30 * time.Second

// loadSnapshot reads the cycle identified by cycleID, falling back to the
// most recent cycle when it is zero or gone. progress is called after each
// step; total grows once the budget count is known.
func loadSnapshot(ctx context.Context, src Source, cycleID int64, progress func(done, total int)) (snapshot, error) {
	var snap snapshot
	done, total := 0, 3
	step := func() {
		done++
		if progress != nil {
			progress(done, total)
		}
	}

	cycles, err := src.ListCycles(ctx)
	if err != nil {
		return snap, err
	}
	snap.Cycles = cycles
	step()

	idx := 0
	for i, c := range cycles {
		if c.ID == cycleID {
			idx = i
			break
		}
	}

	if len(cycles) > 0 {
		total += 2
		snap.Cycle = cycles[idx]
		if snap.Charges, err = src.ListChargesForCycle(ctx, snap.Cycle.ID); err != nil {
			return snap, err
		}
		step()
		if snap.Statements, err = src.ListStatements(ctx, snap.Cycle.ID); err != nil {
			return snap, err
		}
		step()
		snap.Summary = store.Summarize(model.CycleSummary{
			CycleID:    snap.Cycle.ID,
			Statements: len(snap.Statements),
		}, snap.Charges)

		// Cycles are newest first, so the previous one follows.
		if idx+1 < len(cycles) {
			prev, err := src.CycleSummary(ctx, cycles[idx+1].ID)
			if err != nil {
				return snap, err
			}
			snap.Previous = &prev
		}
	}
	step()

	budgets, err := src.ListBudgets(ctx)
	if err != nil {
		return snap, err
	}
	total += len(budgets)
	step()

	spent := make(map[string]model.AllocationTotal, len(snap.Summary.ByAllocation))
	for _, at := range snap.Summary.ByAllocation {
		spent[at.AllocatedTo] = at
	}
	for _, b := range budgets {
		merchants, err := src.ListBudgetMerchants(ctx, b.ID)
		if err != nil {
			return snap, fmt.Errorf("budget %s merchants: %w", b.Name, err)
		}
		at := spent[b.Name]
		snap.Budgets = append(snap.Budgets, budgetView{
			Budget:    b,
			Merchants: merchants,
			Spent:     at.Total,
			Charges:   at.Charges,
		})
		step()
	}
	return snap, nil
}

// dailySpend sums charge amounts per day of the cycle, tracking the part
// with no budget. Charges without a transaction date or outside the cycle
// are skipped.
func dailySpend(cycle model.BillingCycle, charges []model.Charge) []components.DaySpend {
	if cycle.StartDate.IsZero() || cycle.EndDate.Before(cycle.StartDate.Time) {
		return nil
	}
	n := int(cycle.EndDate.Sub(cycle.StartDate.Time).Hours()/24) + 1
	days := make([]components.DaySpend, n)
	for i := range days {
		d := cycle.StartDate.AddDate(0, 0, i)
		if i == 0 || d.Day() == 1 {
			days[i].Label = d.Format("Jan 2")
		} else {
			days[i].Label = strconv.Itoa(d.Day())
		}
	}
	for _, ch := range charges {
		if ch.TransactionDate == nil {
			continue
		}
		i := int(ch.TransactionDate.Sub(cycle.StartDate.Time).Hours() / 24)
		if i < 0 || i >= n {
			continue
		}
		days[i].Total = days[i].Total.Add(ch.Amount)
		if ch.AllocatedTo == "" {
			days[i].Unallocated = days[i].Unallocated.Add(ch.Amount)
		}
	}
	return days
}

// merchantTotal is one row of the top-merchants card.
type merchantTotal struct {
	Merchant string
	Total    decimal.Decimal
	Count    int
}

// topMerchants groups charges by normalized merchant, largest total first.
func topMerchants(charges []model.Charge, limit int) []merchantTotal {
	byName := make(map[string]*merchantTotal)
	for _, ch := range charges {
		name := ch.MerchantNormalized
		if name == "" {
			name = ch.Merchant
		}
		mt, ok := byName[name]
		if !ok {
			mt = &merchantTotal{Merchant: name}
			byName[name] = mt
		}
		mt.Total = mt.Total.Add(ch.Amount)
		mt.Count++
	}
	out := make([]merchantTotal, 0, len(byName))
	for _, mt := range byName {
		out = append(out, *mt)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Total.Cmp(out[j].Total); c != 0 {
			return c > 0
		}
		return out[i].Merchant < out[j].Merchant
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// unassignedMerchants lists normalized merchants with unallocated charges
// in the cycle, alphabetically.
func unassignedMerchants(charges []model.Charge) []string {
	seen := make(map[string]bool)
	var out []string
	for _, ch := range charges {
		if ch.AllocatedTo != "" || seen[ch.MerchantNormalized] {
			continue
		}
		seen[ch.MerchantNormalized] = true
		out = append(out, ch.MerchantNormalized)
	}
	sort.Strings(out)
	return out
}
