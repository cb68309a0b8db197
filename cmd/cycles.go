package cmd

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/theirongolddev/household/internal/blob"
	"github.com/theirongolddev/household/internal/cli"
	"github.com/theirongolddev/household/internal/model"
	"github.com/theirongolddev/household/internal/store"
)

var cyclesCmd = &cobra.Command{
	Use:   "cycles",
	Short: "Manage billing cycles",
	RunE:  runCyclesList,
}

var cyclesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List billing cycles with totals",
	Args:  cobra.NoArgs,
	RunE:  runCyclesList,
}

var cyclesAddCmd = &cobra.Command{
	Use:   "add START END",
	Short: "Create a billing cycle (dates as YYYY-MM-DD)",
	Args:  cobra.ExactArgs(2),
	RunE:  runCyclesAdd,
}

var cyclesCloseCmd = &cobra.Command{
	Use:   "close ID",
	Short: "Close a billing cycle",
	Args:  cobra.ExactArgs(1),
	RunE:  runCyclesClose,
}

var cyclesRmCmd = &cobra.Command{
	Use:   "rm ID",
	Short: "Delete a billing cycle with its statements and charges",
	Args:  cobra.ExactArgs(1),
	RunE:  runCyclesRm,
}

var cyclesSummaryCmd = &cobra.Command{
	Use:   "summary [ID]",
	Short: "Summarize a billing cycle (default: newest)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCycleSummary,
}

func init() {
	cyclesCmd.AddCommand(cyclesListCmd, cyclesAddCmd, cyclesCloseCmd, cyclesRmCmd, cyclesSummaryCmd)
	rootCmd.AddCommand(cyclesCmd)
}

func runCyclesList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	cycles, err := st.ListCycles(ctx)
	if err != nil {
		return err
	}
	if len(cycles) == 0 && !flagJSON {
		fmt.Println("\n  " + errNoCycles.Error())
		return nil
	}

	type cycleRow struct {
		model.BillingCycle
		Summary model.CycleSummary `json:"summary"`
	}
	out := make([]cycleRow, 0, len(cycles))
	for _, c := range cycles {
		sum, err := st.CycleSummary(ctx, c.ID)
		if err != nil {
			return err
		}
		out = append(out, cycleRow{BillingCycle: c, Summary: sum})
	}
	if flagJSON {
		return printJSON(out)
	}

	rows := make([][]string, 0, len(out))
	trend := make([]float64, len(out))
	for i, r := range out {
		status := "open"
		if r.Closed {
			status = cli.Muted("closed")
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", r.ID),
			cli.FormatRange(r.BillingCycle),
			status,
			cli.FormatNumber(int64(r.Summary.Statements)),
			cli.FormatNumber(int64(r.Summary.Charges)),
			cli.FormatMoney(r.Summary.Total),
			cli.FormatNumber(int64(r.Summary.Unallocated)),
		})
		// Oldest first for the trend line.
		trend[len(out)-1-i] = r.Summary.Total.InexactFloat64()
	}

	fmt.Println()
	fmt.Print(cli.RenderTable(cli.Table{
		Title:      "Billing Cycles",
		Headers:    []string{"ID", "Range", "Status", "Stmts", "Charges", "Total", "Unassigned"},
		Rows:       rows,
		RightAlign: []int{0, 3, 4, 5, 6},
	}))
	if len(trend) > 1 {
		fmt.Printf("\n  Trend  %s\n", cli.RenderSparkline(trend))
	}
	return nil
}

func runCyclesAdd(cmd *cobra.Command, args []string) error {
	start, err := model.ParseDate(args[0])
	if err != nil {
		return fmt.Errorf("start date: %w", err)
	}
	end, err := model.ParseDate(args[1])
	if err != nil {
		return fmt.Errorf("end date: %w", err)
	}

	ctx := cmd.Context()
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	c, err := st.CreateCycle(ctx, start, end)
	if err != nil {
		return err
	}
	fmt.Printf("  Created cycle %d: %s\n", c.ID, cli.FormatRange(c))
	return nil
}

func runCyclesClose(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0], "cycle")
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	if err := st.CloseCycle(ctx, id); err != nil {
		return err
	}
	fmt.Printf("  Closed cycle %d\n", id)
	return nil
}

func runCyclesRm(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0], "cycle")
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	statements, err := st.ListStatements(ctx, id)
	if err != nil {
		return err
	}
	if err := st.DeleteCycle(ctx, id); err != nil {
		return err
	}

	// Rows are gone; stored files are removed on a best-effort basis.
	if len(statements) > 0 {
		bucket, err := blob.Open(ctx, cfg.Storage)
		if err != nil {
			log.WithError(err).Warn("statement storage unavailable, files left in place")
		} else {
			for _, s := range statements {
				if err := bucket.Delete(ctx, s.BlobKey); err != nil && !errors.Is(err, blob.ErrNotFound) {
					log.WithError(err).WithField("key", s.BlobKey).Warn("deleting statement file")
				}
			}
		}
	}
	fmt.Printf("  Deleted cycle %d (%d statements)\n", id, len(statements))
	return nil
}

func runCycleSummary(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	cycle, err := resolveCycle(ctx, st, args)
	if errors.Is(err, errNoCycles) {
		fmt.Println("\n  " + err.Error())
		return nil
	}
	if err != nil {
		return err
	}
	sum, err := st.CycleSummary(ctx, cycle.ID)
	if err != nil {
		return err
	}
	if flagJSON {
		return printJSON(sum)
	}
	charges, err := st.ListChargesForCycle(ctx, cycle.ID)
	if err != nil {
		return err
	}
	prev, err := previousSummary(cmd, st, cycle)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle("BILLING CYCLE  " + cli.FormatRange(cycle)))
	fmt.Println()

	totalStr := cli.FormatMoney(sum.Total)
	if prev != nil {
		totalStr += "  (" + cli.FormatDelta(sum.Total, prev.Total) + " vs prev)"
	}
	allocated := sum.Total.Sub(sum.UnallocatedSum)
	rows := [][]string{
		{"Statements", cli.FormatNumber(int64(sum.Statements))},
		{"Charges", cli.FormatNumber(int64(sum.Charges))},
		{"Foreign", cli.FormatNumber(int64(sum.ForeignCharges))},
		cli.Separator,
		{"Total", totalStr},
		{"Allocated", cli.FormatMoney(allocated)},
		{"Unallocated", fmt.Sprintf("%s (%d charges)", cli.FormatMoney(sum.UnallocatedSum), sum.Unallocated)},
	}
	fmt.Print(cli.RenderTable(cli.Table{Rows: rows}))

	if len(sum.ByAllocation) > 0 || sum.Unallocated > 0 {
		fmt.Println()
		fmt.Println("  By budget")
		maxVal := 0.0
		for _, at := range sum.ByAllocation {
			maxVal = max(maxVal, at.Total.InexactFloat64())
		}
		maxVal = max(maxVal, sum.UnallocatedSum.InexactFloat64())
		for _, at := range sum.ByAllocation {
			fmt.Printf("%s %s\n",
				cli.RenderHorizontalBar(at.AllocatedTo, 16, at.Total.InexactFloat64(), maxVal, 30),
				cli.Money(cli.FormatMoney(at.Total)))
		}
		if sum.Unallocated > 0 {
			fmt.Printf("%s %s\n",
				cli.RenderHorizontalBar(cli.Allocation(""), 16, sum.UnallocatedSum.InexactFloat64(), maxVal, 30),
				cli.Warn(cli.FormatMoney(sum.UnallocatedSum)))
		}
	}

	if daily := dailyTotals(cycle, charges); len(daily) > 1 {
		fmt.Printf("\n  Daily  %s\n", cli.RenderSparkline(daily))
	}
	fmt.Println()
	return nil
}

// previousSummary returns the summary of the cycle before c, or nil.
func previousSummary(cmd *cobra.Command, st *store.Store, c model.BillingCycle) (*model.CycleSummary, error) {
	ctx := cmd.Context()
	cycles, err := st.ListCycles(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(cycles, func(i, j int) bool { return cycles[i].StartDate.Before(cycles[j].StartDate.Time) })
	for i, other := range cycles {
		if other.ID != c.ID || i == 0 {
			continue
		}
		sum, err := st.CycleSummary(ctx, cycles[i-1].ID)
		if err != nil {
			return nil, err
		}
		return &sum, nil
	}
	return nil, nil
}

// dailyTotals sums charges per day across the cycle. Charges without a
// transaction date are left out.
func dailyTotals(c model.BillingCycle, charges []model.Charge) []float64 {
	days := int(c.EndDate.Sub(c.StartDate.Time).Hours()/24) + 1
	if days <= 0 {
		return nil
	}
	sums := make([]decimal.Decimal, days)
	for _, ch := range charges {
		if ch.TransactionDate == nil {
			continue
		}
		i := int(ch.TransactionDate.Sub(c.StartDate.Time).Hours() / 24)
		if i < 0 || i >= days {
			continue
		}
		sums[i] = sums[i].Add(ch.Amount)
	}
	out := make([]float64, days)
	for i, s := range sums {
		out[i] = s.InexactFloat64()
	}
	return out
}
