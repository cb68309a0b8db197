package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/household/internal/cli"
	"github.com/theirongolddev/household/internal/model"
	"github.com/theirongolddev/household/internal/store"
)

var (
	flagBudgetIcon     string
	flagMerchantAdd    []string
	flagMerchantRemove []string
)

var budgetsCmd = &cobra.Command{
	Use:   "budgets",
	Short: "Manage budgets and their merchants",
	RunE:  runBudgetsList,
}

var budgetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List budgets",
	Args:  cobra.NoArgs,
	RunE:  runBudgetsList,
}

var budgetsAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Create a budget",
	Args:  cobra.ExactArgs(1),
	RunE:  runBudgetsAdd,
}

var budgetsRmCmd = &cobra.Command{
	Use:   "rm BUDGET",
	Short: "Delete a budget (by id or name)",
	Args:  cobra.ExactArgs(1),
	RunE:  runBudgetsRm,
}

var budgetsMerchantsCmd = &cobra.Command{
	Use:   "merchants BUDGET",
	Short: "List, add or remove merchants associated with a budget",
	Args:  cobra.ExactArgs(1),
	RunE:  runBudgetsMerchants,
}

var budgetsAssignCmd = &cobra.Command{
	Use:   "assign MERCHANT BUDGET",
	Short: "Move a merchant's auto-association to a budget",
	Args:  cobra.ExactArgs(2),
	RunE:  runBudgetsAssign,
}

func init() {
	budgetsAddCmd.Flags().StringVar(&flagBudgetIcon, "icon", "", "Icon shown next to the budget name")
	budgetsMerchantsCmd.Flags().StringArrayVar(&flagMerchantAdd, "add", nil, "Merchant to associate (repeatable)")
	budgetsMerchantsCmd.Flags().StringArrayVar(&flagMerchantRemove, "rm", nil, "Merchant to remove (repeatable)")

	budgetsCmd.AddCommand(budgetsListCmd, budgetsAddCmd, budgetsRmCmd, budgetsMerchantsCmd, budgetsAssignCmd)
	rootCmd.AddCommand(budgetsCmd)
}

// findBudget accepts a numeric id or an exact budget name.
func findBudget(ctx context.Context, st *store.Store, ref string) (model.Budget, error) {
	if id, err := parseID(ref, "budget"); err == nil {
		b, err := st.GetBudget(ctx, id)
		if err == nil || !errors.Is(err, store.ErrNotFound) {
			return b, err
		}
	}
	return st.GetBudgetByName(ctx, ref)
}

func runBudgetsList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	budgets, err := st.ListBudgets(ctx)
	if err != nil {
		return err
	}

	type budgetRow struct {
		model.Budget
		Merchants []model.BudgetMerchant `json:"merchants"`
	}
	out := make([]budgetRow, 0, len(budgets))
	for _, b := range budgets {
		ms, err := st.ListBudgetMerchants(ctx, b.ID)
		if err != nil {
			return err
		}
		out = append(out, budgetRow{Budget: b, Merchants: ms})
	}
	if flagJSON {
		return printJSON(out)
	}
	if len(out) == 0 {
		fmt.Println("\n  No budgets yet. Add one with `household budgets add NAME`.")
		return nil
	}

	rows := make([][]string, 0, len(out))
	for _, b := range out {
		names := make([]string, 0, len(b.Merchants))
		for _, m := range b.Merchants {
			names = append(names, m.MerchantNormalized)
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", b.ID),
			strings.TrimSpace(b.Icon + " " + b.Name),
			cli.FormatNumber(int64(len(b.Merchants))),
			cli.Truncate(strings.Join(names, ", "), 48),
		})
	}
	fmt.Println()
	fmt.Print(cli.RenderTable(cli.Table{
		Title:      "Budgets",
		Headers:    []string{"ID", "Budget", "Merchants", "Auto-associated"},
		Rows:       rows,
		RightAlign: []int{0, 2},
	}))
	return nil
}

func runBudgetsAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	b, err := st.CreateBudget(ctx, args[0], flagBudgetIcon)
	if err != nil {
		return err
	}
	fmt.Printf("  Created budget %d: %s\n", b.ID, strings.TrimSpace(b.Icon+" "+b.Name))
	return nil
}

func runBudgetsRm(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	b, err := findBudget(ctx, st, args[0])
	if err != nil {
		return err
	}
	if err := st.DeleteBudget(ctx, b.ID); err != nil {
		return err
	}
	fmt.Printf("  Deleted budget %s\n", b.Name)
	return nil
}

func runBudgetsMerchants(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	b, err := findBudget(ctx, st, args[0])
	if err != nil {
		return err
	}
	for _, name := range flagMerchantAdd {
		m, err := st.AddBudgetMerchant(ctx, b.ID, name)
		if err != nil {
			return err
		}
		fmt.Printf("  + %s\n", m.MerchantNormalized)
	}
	for _, name := range flagMerchantRemove {
		if err := st.RemoveBudgetMerchant(ctx, b.ID, name); err != nil {
			return err
		}
		fmt.Printf("  - %s\n", name)
	}

	merchants, err := st.ListBudgetMerchants(ctx, b.ID)
	if err != nil {
		return err
	}
	if flagJSON {
		return printJSON(merchants)
	}
	if len(merchants) == 0 {
		fmt.Printf("\n  %s has no merchants.\n", b.Name)
		return nil
	}
	rows := make([][]string, 0, len(merchants))
	for _, m := range merchants {
		rows = append(rows, []string{m.MerchantNormalized, m.Merchant})
	}
	fmt.Println()
	fmt.Print(cli.RenderTable(cli.Table{
		Title:   strings.TrimSpace(b.Icon + " " + b.Name),
		Headers: []string{"Normalized", "Added as"},
		Rows:    rows,
	}))
	return nil
}

func runBudgetsAssign(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	b, err := findBudget(ctx, st, args[1])
	if err != nil {
		return err
	}
	if err := st.SetAutoAssociation(ctx, args[0], b.Name); err != nil {
		return err
	}
	fmt.Printf("  %s now auto-assigns to %s\n", args[0], b.Name)
	return nil
}
