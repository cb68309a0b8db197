package store

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/theirongolddev/household/internal/model"
)

// CycleSummary totals a cycle's charges per allocation. Amounts are summed
// as decimals in Go so no float rounding reaches the totals.
func (s *Store) CycleSummary(ctx context.Context, cycleID int64) (model.CycleSummary, error) {
	sum := model.CycleSummary{CycleID: cycleID, Total: decimal.Zero, UnallocatedSum: decimal.Zero}

	if _, err := s.GetCycle(ctx, cycleID); err != nil {
		return sum, err
	}
	stmts, err := s.ListStatements(ctx, cycleID)
	if err != nil {
		return sum, err
	}
	sum.Statements = len(stmts)

	charges, err := s.ListChargesForCycle(ctx, cycleID)
	if err != nil {
		return sum, err
	}
	return Summarize(sum, charges), nil
}

// Summarize folds charges into base.
func Summarize(base model.CycleSummary, charges []model.Charge) model.CycleSummary {
	byAlloc := make(map[string]*model.AllocationTotal)
	for _, ch := range charges {
		base.Charges++
		base.Total = base.Total.Add(ch.Amount)
		if ch.IsForeignCurrency {
			base.ForeignCharges++
		}
		if ch.AllocatedTo == "" {
			base.Unallocated++
			base.UnallocatedSum = base.UnallocatedSum.Add(ch.Amount)
			continue
		}
		at, ok := byAlloc[ch.AllocatedTo]
		if !ok {
			at = &model.AllocationTotal{AllocatedTo: ch.AllocatedTo, Total: decimal.Zero}
			byAlloc[ch.AllocatedTo] = at
		}
		at.Charges++
		at.Total = at.Total.Add(ch.Amount)
	}

	base.ByAllocation = make([]model.AllocationTotal, 0, len(byAlloc))
	for _, at := range byAlloc {
		base.ByAllocation = append(base.ByAllocation, *at)
	}
	sort.Slice(base.ByAllocation, func(i, j int) bool {
		a, b := base.ByAllocation[i], base.ByAllocation[j]
		if c := a.Total.Cmp(b.Total); c != 0 {
			return c > 0
		}
		return a.AllocatedTo < b.AllocatedTo
	})
	return base
}
