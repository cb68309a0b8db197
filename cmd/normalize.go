package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/household/internal/cli"
	"github.com/theirongolddev/household/internal/merchant"
)

var (
	flagNormalizeAll   bool
	flagNormalizeBatch int
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize [MERCHANT...]",
	Short: "Show merchant normalization, or re-normalize stored merchants with --all",
	RunE:  runNormalize,
}

func init() {
	normalizeCmd.Flags().BoolVar(&flagNormalizeAll, "all", false, "Recompute normalized merchants for every stored payment and budget merchant")
	normalizeCmd.Flags().IntVar(&flagNormalizeBatch, "batch", 500, "Rows per batch with --all")
	rootCmd.AddCommand(normalizeCmd)
}

func runNormalize(cmd *cobra.Command, args []string) error {
	if !flagNormalizeAll && len(args) == 0 {
		return errors.New("give merchant strings to normalize, or --all")
	}

	if len(args) > 0 {
		results := make([]merchant.Result, 0, len(args))
		rows := make([][]string, 0, len(args))
		for _, raw := range args {
			r := merchant.Normalize(raw)
			results = append(results, r)
			rows = append(rows, []string{raw, r.Normalized, r.Details})
		}
		if flagJSON {
			return printJSON(results)
		}
		fmt.Println()
		fmt.Print(cli.RenderTable(cli.Table{
			Headers: []string{"Merchant", "Normalized", "Details"},
			Rows:    rows,
		}))
	}

	if !flagNormalizeAll {
		return nil
	}

	ctx := cmd.Context()
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	progressf("  Re-normalizing merchants...\n")
	res, err := st.RenormalizeMerchants(ctx, flagNormalizeBatch)
	if err != nil {
		return err
	}
	if flagJSON {
		return printJSON(res)
	}
	fmt.Printf("  Updated %s payments and %s budget merchants\n",
		cli.FormatNumber(int64(res.Payments)), cli.FormatNumber(int64(res.BudgetMerchants)))
	return nil
}
