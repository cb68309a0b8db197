package cmd

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/household/internal/cli"
	"github.com/theirongolddev/household/internal/model"
	"github.com/theirongolddev/household/internal/orderid"
	"github.com/theirongolddev/household/internal/orders"
)

var (
	flagOrdersAddr    string
	flagOrdersNoCache bool
)

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "Amazon orders worker and lookups",
}

var ordersServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the orders worker on its own",
	Args:  cobra.NoArgs,
	RunE:  runOrdersServe,
}

var ordersParseCmd = &cobra.Command{
	Use:   "parse MERCHANT...",
	Short: "Extract Amazon order ids from merchant strings",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runOrdersParse,
}

var ordersFetchCmd = &cobra.Command{
	Use:   "fetch ORDER_ID...",
	Short: "Fetch order details from the worker",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runOrdersFetch,
}

var ordersHealthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the configured worker",
	Args:  cobra.NoArgs,
	RunE:  runOrdersHealth,
}

func init() {
	ordersServeCmd.Flags().StringVar(&flagOrdersAddr, "addr", "", "Listen address (default server.orders_addr)")
	ordersFetchCmd.Flags().BoolVar(&flagOrdersNoCache, "no-cache", false, "Skip the local order cache")

	ordersCmd.AddCommand(ordersServeCmd, ordersParseCmd, ordersFetchCmd, ordersHealthCmd)
	rootCmd.AddCommand(ordersCmd)
}

func runOrdersServe(cmd *cobra.Command, _ []string) error {
	addr := flagOrdersAddr
	if addr == "" {
		addr = cfg.Server.OrdersAddr
	}
	worker := orders.NewServer(orders.ServerConfig{
		Addr:   addr,
		APIKey: cfg.Orders.APIKey,
		Logger: log,
	})
	fmt.Printf("  Orders worker listening on http://%s\n", addr)
	if err := worker.Run(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runOrdersParse(cmd *cobra.Command, args []string) error {
	var results []orders.ParseResult
	client := newOrdersClient(cfg, nil)
	if client.Configured() {
		var err error
		results, err = client.Bulk(cmd.Context(), args)
		if err != nil {
			return err
		}
	} else {
		// No worker: the extraction rules are the same locally.
		for _, m := range args {
			r := orders.ParseResult{Merchant: m}
			if id, ok := orderid.ExtractFromMerchant(m); ok {
				r.OrderID, r.Found = &id, true
			}
			results = append(results, r)
		}
	}
	if flagJSON {
		return printJSON(results)
	}

	rows := make([][]string, 0, len(results))
	for _, r := range results {
		id := cli.Muted("none")
		if r.Found && r.OrderID != nil {
			id = *r.OrderID
		}
		rows = append(rows, []string{cli.Truncate(r.Merchant, 48), id})
	}
	fmt.Println()
	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Merchant", "Order ID"},
		Rows:    rows,
	}))
	return nil
}

func runOrdersFetch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	var client *orders.Client
	if flagOrdersNoCache {
		client = newOrdersClient(cfg, nil)
	} else {
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()
		client = newOrdersClient(cfg, st)
	}
	if !client.Configured() {
		return fmt.Errorf("%w: set orders.worker_url or HOUSEHOLD_ORDERS_URL", orders.ErrNotConfigured)
	}

	var fetched []model.AmazonOrder
	for _, raw := range args {
		id := raw
		if extracted, ok := orderid.Extract(raw); ok {
			id = extracted
		}
		o, err := client.FetchOrder(ctx, id)
		if err != nil {
			return fmt.Errorf("order %s: %w", id, err)
		}
		fetched = append(fetched, o)
	}
	if flagJSON {
		return printJSON(fetched)
	}

	for _, o := range fetched {
		printOrder(o)
	}
	return nil
}

func printOrder(o model.AmazonOrder) {
	fmt.Println()
	fmt.Printf("  %s  %s  %s\n", o.OrderID, cli.Muted(o.OrderDate+" "+o.Status), cli.Money(cli.FormatMoney(o.TotalAmount)))
	rows := make([][]string, 0, len(o.Items))
	for _, it := range o.Items {
		rows = append(rows, []string{fmt.Sprintf("%d", it.Quantity), cli.Truncate(it.Name, 50), cli.FormatMoney(it.Price)})
	}
	if len(rows) > 0 {
		fmt.Print(cli.RenderTable(cli.Table{
			Headers:    []string{"Qty", "Item", "Price"},
			Rows:       rows,
			RightAlign: []int{0, 2},
		}))
	}
	cats := orderid.Categorize(o.Items)
	for _, cat := range slices.Sorted(maps.Keys(cats)) {
		fmt.Printf("  %s %s\n", cli.Muted(cat+":"), cli.FormatMoney(cats[cat].Total))
	}
	if o.Note != "" {
		fmt.Printf("  %s\n", cli.Warn(o.Note))
	}
}

func runOrdersHealth(cmd *cobra.Command, _ []string) error {
	client := newOrdersClient(cfg, nil)
	if !client.Configured() {
		return fmt.Errorf("%w: set orders.worker_url or HOUSEHOLD_ORDERS_URL", orders.ErrNotConfigured)
	}
	h, err := client.Health(cmd.Context())
	if err != nil {
		return err
	}
	if flagJSON {
		return printJSON(h)
	}
	fmt.Printf("  Status: %s (%s)\n", h.Status, h.Message)
	fmt.Printf("  Credentials: %v  Cache: %v  Database: %v\n", h.HasCredentials, h.HasCache, h.HasDatabase)
	if h.Note != "" {
		fmt.Printf("  %s\n", cli.Muted(h.Note))
	}
	return nil
}
