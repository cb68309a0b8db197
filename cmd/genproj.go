package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/theirongolddev/household/internal/capability"
	"github.com/theirongolddev/household/internal/cli"
)

var flagGenprojCategory string

var genprojCmd = &cobra.Command{
	Use:   "genproj",
	Short: "Plan project scaffolding from capabilities",
}

var genprojListCmd = &cobra.Command{
	Use:   "list",
	Short: "List capabilities",
	Args:  cobra.NoArgs,
	RunE:  runGenprojList,
}

var genprojResolveCmd = &cobra.Command{
	Use:   "resolve ID...",
	Short: "Resolve dependencies and execution order",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runGenprojResolve,
}

var genprojCheckCmd = &cobra.Command{
	Use:   "check ID...",
	Short: "Validate a selection; exits non-zero on errors",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runGenprojCheck,
}

var genprojWizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Pick capabilities interactively",
	Args:  cobra.NoArgs,
	RunE:  runGenprojWizard,
}

func init() {
	genprojListCmd.Flags().StringVar(&flagGenprojCategory, "category", "", "Only this category")
	genprojCmd.AddCommand(genprojListCmd, genprojResolveCmd, genprojCheckCmd, genprojWizardCmd)
	rootCmd.AddCommand(genprojCmd)
}

func runGenprojList(_ *cobra.Command, _ []string) error {
	cat := capability.Default()
	if flagGenprojCategory != "" {
		if _, ok := cat.Category(flagGenprojCategory); !ok {
			return fmt.Errorf("unknown category %q", flagGenprojCategory)
		}
	}
	if flagJSON {
		if flagGenprojCategory != "" {
			return printJSON(cat.ByCategory(flagGenprojCategory))
		}
		return printJSON(cat.All())
	}

	for _, c := range cat.Categories() {
		if flagGenprojCategory != "" && c.ID != flagGenprojCategory {
			continue
		}
		caps := cat.ByCategory(c.ID)
		if len(caps) == 0 {
			continue
		}
		rows := make([][]string, 0, len(caps))
		for _, cp := range caps {
			rows = append(rows, []string{
				cp.ID,
				strings.TrimSpace(cp.Icon + " " + cp.Name),
				strings.Join(cp.Dependencies, ", "),
				strings.Join(cp.Conflicts, ", "),
			})
		}
		fmt.Println()
		fmt.Print(cli.RenderTable(cli.Table{
			Title:   strings.TrimSpace(c.Icon + " " + c.Name),
			Headers: []string{"ID", "Name", "Requires", "Conflicts"},
			Rows:    rows,
		}))
	}
	return nil
}

func runGenprojResolve(_ *cobra.Command, args []string) error {
	cat := capability.Default()
	res := cat.Resolve(args)
	order, err := cat.Order(res.Resolved)
	if err != nil {
		return err
	}
	if flagJSON {
		return printJSON(struct {
			capability.Resolution
			ExecutionOrder []string `json:"execution_order"`
		}{res, order})
	}

	fmt.Println()
	fmt.Printf("  Selected:  %s\n", strings.Join(args, ", "))
	for _, id := range res.Added {
		fmt.Printf("  %s %s %s\n", cli.Money("+"), id, cli.Muted("(required by "+res.AddedBy[id]+")"))
	}
	for _, id := range res.Unknown {
		fmt.Printf("  %s unknown capability %s\n", cli.Error("✗"), id)
	}
	for _, p := range res.Conflicts {
		fmt.Printf("  %s %s conflicts with %s\n", cli.Error("✗"), p.A, p.B)
	}
	fmt.Printf("  Order:     %s\n", strings.Join(order, " → "))
	return nil
}

func printValidation(v capability.ValidationResult) {
	for _, e := range v.Errors {
		fmt.Printf("  %s %s\n", cli.Error("✗"), e)
	}
	for _, w := range v.Warnings {
		fmt.Printf("  %s %s\n", cli.Warn("!"), w)
	}
	if v.Valid {
		fmt.Printf("  %s selection is valid\n", cli.Money("✓"))
	}
}

func runGenprojCheck(_ *cobra.Command, args []string) error {
	v := capability.Default().Validate(args)
	if flagJSON {
		if err := printJSON(v); err != nil {
			return err
		}
	} else {
		fmt.Println()
		printValidation(v)
	}
	if !v.Valid {
		return errors.New("invalid selection")
	}
	return nil
}

func runGenprojWizard(_ *cobra.Command, _ []string) error {
	cat := capability.Default()

	categories := cat.Categories()
	// Indexed by category; the form writes through &picked[i].
	picked := make([][]string, len(categories))
	var groups []*huh.Group
	for i, c := range categories {
		caps := cat.ByCategory(c.ID)
		if len(caps) == 0 {
			continue
		}
		opts := make([]huh.Option[string], 0, len(caps))
		for _, cp := range caps {
			opts = append(opts, huh.NewOption(strings.TrimSpace(cp.Icon+" "+cp.Name), cp.ID))
		}
		groups = append(groups, huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title(strings.TrimSpace(c.Icon+" "+c.Name)).
				Description(c.Description).
				Options(opts...).
				Value(&picked[i]),
		))
	}
	if len(groups) == 0 {
		return errors.New("capability catalog is empty")
	}
	if err := huh.NewForm(groups...).Run(); err != nil {
		return err
	}

	var selected []string
	for _, p := range picked {
		selected = append(selected, p...)
	}
	if len(selected) == 0 {
		fmt.Println("  Nothing selected.")
		return nil
	}

	sum := cat.Summary(selected)
	if flagJSON {
		return printJSON(sum)
	}
	fmt.Println()
	fmt.Println(cli.RenderTitle("GENPROJ PLAN"))
	fmt.Println()
	fmt.Print(cli.RenderTable(cli.Table{Rows: [][]string{
		{"Selected", cli.FormatNumber(int64(sum.TotalSelected))},
		{"Resolved", cli.FormatNumber(int64(sum.TotalResolved))},
		{"Dependencies added", cli.FormatNumber(int64(sum.Added))},
		{"Conflicts", cli.FormatNumber(int64(sum.Conflicts))},
	}}))
	if len(sum.ExecutionOrder) > 0 {
		fmt.Printf("\n  Order: %s\n", strings.Join(sum.ExecutionOrder, " → "))
	}
	if len(sum.AuthServices) > 0 {
		fmt.Printf("  Auth:  %s\n", strings.Join(sum.AuthServices, ", "))
	}
	fmt.Println()
	printValidation(sum.Validation)
	return nil
}
