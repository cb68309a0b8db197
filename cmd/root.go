// Package cmd implements the household CLI commands.
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/theirongolddev/household/internal/config"
	"github.com/theirongolddev/household/internal/logging"
	"github.com/theirongolddev/household/internal/model"
	"github.com/theirongolddev/household/internal/orders"
	"github.com/theirongolddev/household/internal/store"
)

var (
	flagDBPath string
	flagQuiet  bool
	flagJSON   bool
)

// Loaded once per invocation by the root pre-run hook.
var (
	cfg config.Config
	log *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:   "household",
	Short: "Household finance and project tooling",
	Long: "Track credit-card statements against budgets, look up Amazon orders,\n" +
		"and plan genproj scaffolding.",
	SilenceUsage:      true,
	PersistentPreRunE: loadRuntime,
	RunE:              runCycleSummary,
}

// Execute is the main entry point called from main.go.
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		cancel()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", "", "SQLite database path (overrides storage.db_path)")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress progress output")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Print JSON instead of tables where supported")
}

// loadRuntime reads the effective config and builds the logger every
// command shares.
func loadRuntime(_ *cobra.Command, _ []string) error {
	var err error
	cfg, err = config.LoadEffective()
	if err != nil {
		return err
	}
	if flagDBPath != "" {
		cfg.Storage.DBPath = flagDBPath
	}
	log = logging.New(cfg.General, os.Stderr)
	return nil
}

func openStore(ctx context.Context) (*store.Store, error) {
	path := cfg.Storage.DatabasePath()
	st, err := store.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}
	log.WithField("path", path).Debug("database opened")
	return st, nil
}

// newOrdersClient builds a worker client. When no worker URL is configured
// but `serve` runs the bundled worker, the client points at it.
func newOrdersClient(c config.Config, cache orders.Cache) *orders.Client {
	url := c.Orders.WorkerURL
	if url == "" && c.Server.RunOrders && c.Server.OrdersAddr != "" {
		url = "http://" + c.Server.OrdersAddr
	}
	opts := []orders.ClientOption{orders.WithTimeout(c.Orders.Timeout())}
	if c.Orders.APIKey != "" {
		opts = append(opts, orders.WithAPIKey(c.Orders.APIKey))
	}
	if cache != nil {
		opts = append(opts, orders.WithCache(cache, c.Orders.CacheMaxAge()))
	}
	return orders.NewClient(url, opts...)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseID(s, what string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", what, s)
	}
	return id, nil
}

var errNoCycles = errors.New("no billing cycles yet; create one with `household cycles add START END`")

// resolveCycle returns the cycle named by args[0], or the newest cycle
// when no argument is given.
func resolveCycle(ctx context.Context, st *store.Store, args []string) (model.BillingCycle, error) {
	if len(args) > 0 {
		id, err := parseID(args[0], "cycle")
		if err != nil {
			return model.BillingCycle{}, err
		}
		return st.GetCycle(ctx, id)
	}
	cycles, err := st.ListCycles(ctx)
	if err != nil {
		return model.BillingCycle{}, err
	}
	if len(cycles) == 0 {
		return model.BillingCycle{}, errNoCycles
	}
	return cycles[0], nil
}

func progressf(format string, args ...any) {
	if flagQuiet {
		return
	}
	fmt.Fprintf(os.Stderr, format, args...)
}
