package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/household/internal/cli"
)

var cardsCmd = &cobra.Command{
	Use:   "cards",
	Short: "Manage credit cards",
	RunE:  runCardsList,
}

var cardsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List credit cards",
	Args:  cobra.NoArgs,
	RunE:  runCardsList,
}

var cardsAddCmd = &cobra.Command{
	Use:   "add NAME LAST4",
	Short: "Add a credit card",
	Args:  cobra.ExactArgs(2),
	RunE:  runCardsAdd,
}

var cardsRmCmd = &cobra.Command{
	Use:   "rm ID",
	Short: "Remove a credit card",
	Args:  cobra.ExactArgs(1),
	RunE:  runCardsRm,
}

func init() {
	cardsCmd.AddCommand(cardsListCmd, cardsAddCmd, cardsRmCmd)
	rootCmd.AddCommand(cardsCmd)
}

func runCardsList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	cards, err := st.ListCards(ctx)
	if err != nil {
		return err
	}
	if flagJSON {
		return printJSON(cards)
	}
	if len(cards) == 0 {
		fmt.Println("\n  No cards yet. Add one with `household cards add NAME LAST4`.")
		return nil
	}

	rows := make([][]string, 0, len(cards))
	for _, c := range cards {
		rows = append(rows, []string{
			fmt.Sprintf("%d", c.ID),
			c.Name,
			"•••• " + c.Last4,
			cli.FormatAgo(c.CreatedAt),
		})
	}
	fmt.Println()
	fmt.Print(cli.RenderTable(cli.Table{
		Title:      "Credit Cards",
		Headers:    []string{"ID", "Name", "Card", "Added"},
		Rows:       rows,
		RightAlign: []int{0},
	}))
	return nil
}

func runCardsAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	card, err := st.CreateCard(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Printf("  Added card %d: %s •••• %s\n", card.ID, card.Name, card.Last4)
	return nil
}

func runCardsRm(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0], "card")
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	if err := st.DeleteCard(ctx, id); err != nil {
		return err
	}
	fmt.Printf("  Removed card %d\n", id)
	return nil
}
