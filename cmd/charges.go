package cmd

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/theirongolddev/household/internal/cli"
	"github.com/theirongolddev/household/internal/model"
	"github.com/theirongolddev/household/internal/orderid"
	"github.com/theirongolddev/household/internal/orders"
)

var (
	flagChargesUnassigned bool
	flagChargesBudget     string
	flagChargesClear      bool
	flagChargesAmazon     bool
)

var chargesCmd = &cobra.Command{
	Use:   "charges",
	Short: "List and allocate charges",
}

var chargesListCmd = &cobra.Command{
	Use:   "list [CYCLE]",
	Short: "List the charges of a cycle (default: newest)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runChargesList,
}

var chargesAssignCmd = &cobra.Command{
	Use:   "assign BUDGET ID...",
	Short: "Allocate charges to a budget",
	Long:  "Allocate charges to a budget. With --clear, the charges are unassigned and BUDGET is omitted.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runChargesAssign,
}

var chargesRefreshCmd = &cobra.Command{
	Use:   "refresh [CYCLE]",
	Short: "Apply budget auto-associations to unassigned charges",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runChargesRefresh,
}

func init() {
	chargesListCmd.Flags().BoolVar(&flagChargesUnassigned, "unassigned", false, "Only unassigned charges")
	chargesListCmd.Flags().StringVar(&flagChargesBudget, "budget", "", "Only charges allocated to this budget")
	chargesAssignCmd.Flags().BoolVar(&flagChargesClear, "clear", false, "Unassign the charges instead")
	chargesRefreshCmd.Flags().BoolVar(&flagChargesAmazon, "amazon", false, "Also fetch Amazon order details through the orders worker")

	chargesCmd.AddCommand(chargesListCmd, chargesAssignCmd, chargesRefreshCmd)
	rootCmd.AddCommand(chargesCmd)
}

func filterChargeList(charges []model.Charge, unassigned bool, budget string) []model.Charge {
	if !unassigned && budget == "" {
		return charges
	}
	var out []model.Charge
	for _, ch := range charges {
		if unassigned && ch.AllocatedTo != "" {
			continue
		}
		if budget != "" && !strings.EqualFold(ch.AllocatedTo, budget) {
			continue
		}
		out = append(out, ch)
	}
	return out
}

func runChargesList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	cycle, err := resolveCycle(ctx, st, args)
	if err != nil {
		return err
	}
	charges, err := st.ListChargesForCycle(ctx, cycle.ID)
	if err != nil {
		return err
	}
	charges = filterChargeList(charges, flagChargesUnassigned, flagChargesBudget)
	if flagJSON {
		return printJSON(charges)
	}
	if len(charges) == 0 {
		fmt.Printf("\n  No matching charges in %s.\n", cli.FormatRange(cycle))
		return nil
	}

	rows := make([][]string, 0, len(charges)+2)
	var total decimal.Decimal
	for _, ch := range charges {
		amount := cli.FormatMoney(ch.Amount)
		if ch.IsForeignCurrency {
			amount += " " + cli.Muted(cli.FormatForeign(ch.ForeignCurrencyAmount, ch.ForeignCurrencyType))
		}
		card := ""
		if ch.Last4 != "" {
			card = "•" + ch.Last4
		}
		alloc := cli.Allocation(ch.AllocatedTo)
		if ch.AllocatedTo == "" {
			alloc = cli.Warn(alloc)
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", ch.ID),
			cli.FormatDate(ch.TransactionDate),
			cli.Truncate(ch.Merchant, 36),
			amount,
			alloc,
			card,
		})
		total = total.Add(ch.Amount)
	}
	rows = append(rows, cli.Separator, []string{"", "", fmt.Sprintf("%d charges", len(charges)), cli.FormatMoney(total), "", ""})

	fmt.Println()
	fmt.Print(cli.RenderTable(cli.Table{
		Title:      "Charges  " + cli.FormatRange(cycle),
		Headers:    []string{"ID", "Date", "Merchant", "Amount", "Budget", "Card"},
		Rows:       rows,
		RightAlign: []int{0, 3},
	}))
	return nil
}

func runChargesAssign(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	budget := ""
	ids := args
	if !flagChargesClear {
		if len(args) < 2 {
			return errors.New("need a budget and at least one charge id")
		}
		b, err := findBudget(ctx, st, args[0])
		if err != nil {
			return err
		}
		budget, ids = b.Name, args[1:]
	}

	assignments := make([]model.Assignment, 0, len(ids))
	for _, raw := range ids {
		id, err := parseID(raw, "charge")
		if err != nil {
			return err
		}
		assignments = append(assignments, model.Assignment{ID: id, AllocatedTo: budget})
	}
	if err := st.BulkAssign(ctx, assignments); err != nil {
		return err
	}
	fmt.Printf("  %d charges → %s\n", len(assignments), cli.Allocation(budget))
	return nil
}

func runChargesRefresh(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	cycle, err := resolveCycle(ctx, st, args)
	if err != nil {
		return err
	}
	n, err := st.RefreshAutoAssociations(ctx, cycle.ID)
	if err != nil {
		return err
	}
	fmt.Printf("  Auto-associations updated %d charges in %s\n", n, cli.FormatRange(cycle))

	if !flagChargesAmazon {
		return nil
	}

	client := newOrdersClient(cfg, st)
	if !client.Configured() {
		return fmt.Errorf("%w: set orders.worker_url or HOUSEHOLD_ORDERS_URL", orders.ErrNotConfigured)
	}
	charges, err := st.ListChargesForCycle(ctx, cycle.ID)
	if err != nil {
		return err
	}

	results, err := client.Enrich(ctx, charges, func(done, total int) {
		progressf("\r  Orders %s", cli.RenderProgressBar(done, total, 24))
	})
	progressf("\n")
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("  No Amazon charges with order ids.")
		return nil
	}

	merchants := make(map[int64]string, len(charges))
	for _, ch := range charges {
		merchants[ch.ID] = ch.Merchant
	}
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "  %s %s: %v\n", cli.Error("✗"), r.OrderID, r.Err)
			continue
		}
		fmt.Printf("\n  %s  %s  %s\n", r.OrderID, cli.Muted(cli.Truncate(merchants[r.ChargeID], 30)), cli.Money(cli.FormatMoney(r.Order.TotalAmount)))
		for _, it := range r.Order.Items {
			fmt.Printf("    %dx %s  %s\n", it.Quantity, cli.Truncate(it.Name, 50), cli.FormatMoney(it.Price))
		}
		cats := orderid.Categorize(r.Order.Items)
		for _, cat := range slices.Sorted(maps.Keys(cats)) {
			ct := cats[cat]
			fmt.Printf("    %s %s (%d items)\n", cli.Muted(cat+":"), cli.FormatMoney(ct.Total), len(ct.Items))
		}
	}
	fmt.Printf("\n  Fetched %d orders, %d failed\n", len(results)-failed, failed)
	return nil
}
