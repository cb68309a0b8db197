package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/household/internal/cli"
	"github.com/theirongolddev/household/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long:  "Show the effective configuration: the config file, then .env, then HOUSEHOLD_* variables.",
	RunE:  runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(_ *cobra.Command, _ []string) error {
	if flagJSON {
		masked := cfg
		masked.Storage.S3AccessKey = cli.MaskSecret(masked.Storage.S3AccessKey)
		masked.Storage.S3SecretKey = cli.MaskSecret(masked.Storage.S3SecretKey)
		masked.Auth.Secret = cli.MaskSecret(masked.Auth.Secret)
		masked.Orders.APIKey = cli.MaskSecret(masked.Orders.APIKey)
		return printJSON(masked)
	}

	fmt.Printf("  Config file: %s\n", config.ConfigPath())
	if config.Exists() {
		fmt.Println("  Status: loaded")
	} else {
		fmt.Println("  Status: using defaults (no config file)")
	}
	fmt.Println()

	fmt.Println("  [General]")
	fmt.Printf("    Environment: %s\n", cfg.General.Environment)
	fmt.Printf("    Log level:   %s\n", cfg.General.LogLevel)
	fmt.Println()

	fmt.Println("  [Server]")
	fmt.Printf("    Address:        %s\n", cfg.Server.Addr)
	fmt.Printf("    Orders address: %s\n", cfg.Server.OrdersAddr)
	fmt.Printf("    Run orders:     %v\n", cfg.Server.RunOrders)
	fmt.Println()

	fmt.Println("  [Storage]")
	fmt.Printf("    Database:     %s\n", cfg.Storage.DatabasePath())
	fmt.Printf("    Blob backend: %s\n", cfg.Storage.BlobBackend)
	if cfg.Storage.BlobBackend == config.BlobS3 {
		fmt.Printf("    S3 endpoint:  %s\n", cfg.Storage.S3Endpoint)
		fmt.Printf("    S3 bucket:    %s (%s)\n", cfg.Storage.S3Bucket, cfg.Storage.S3Region)
		fmt.Printf("    S3 key:       %s\n", cli.MaskSecret(cfg.Storage.S3AccessKey))
		fmt.Printf("    S3 secret:    %s\n", cli.MaskSecret(cfg.Storage.S3SecretKey))
	} else {
		fmt.Printf("    Blob dir:     %s\n", cfg.Storage.BlobDirectory())
	}
	fmt.Println()

	fmt.Println("  [Auth]")
	fmt.Printf("    Enabled:       %v\n", cfg.Auth.Enabled)
	fmt.Printf("    Secret:        %s\n", cli.MaskSecret(cfg.Auth.Secret))
	fmt.Printf("    Issuer:        %s (audience %s)\n", cfg.Auth.Issuer, cfg.Auth.Audience)
	fmt.Printf("    Token TTL:     %s\n", cfg.Auth.TokenTTL())
	if len(cfg.Auth.AllowedUsers) > 0 {
		fmt.Printf("    Allowed users: %s\n", strings.Join(cfg.Auth.AllowedUsers, ", "))
	} else {
		fmt.Println("    Allowed users: anyone with a valid token")
	}
	fmt.Println()

	fmt.Println("  [Orders]")
	workerURL := cfg.Orders.WorkerURL
	if workerURL == "" {
		workerURL = "(not set)"
	}
	fmt.Printf("    Worker URL: %s\n", workerURL)
	fmt.Printf("    API key:    %s\n", cli.MaskSecret(cfg.Orders.APIKey))
	fmt.Printf("    Cache:      %d days\n", cfg.Orders.CacheDays)
	fmt.Printf("    Timeout:    %s\n", cfg.Orders.Timeout())
	fmt.Println()

	fmt.Println("  [Scheduler]")
	fmt.Printf("    Enabled:     %v\n", cfg.Scheduler.Enabled)
	fmt.Printf("    Timezone:    %s\n", cfg.Scheduler.Timezone)
	fmt.Printf("    Refresh:     %s\n", cfg.Scheduler.RefreshSpec)
	fmt.Printf("    Renormalize: %s\n", cfg.Scheduler.RenormalizeSpec)
	fmt.Printf("    Prune:       %s\n", cfg.Scheduler.PruneSpec)
	fmt.Println()

	fmt.Println("  [Appearance]")
	fmt.Printf("    Theme: %s\n", cfg.Appearance.Theme)
	fmt.Println()

	fmt.Println("  [TUI]")
	fmt.Printf("    Auto refresh: %v every %s\n", cfg.TUI.AutoRefresh, cfg.TUI.RefreshInterval())
	fmt.Println()

	if err := cfg.Validate(); err != nil {
		fmt.Printf("  %s %v\n\n", cli.Warn("!"), err)
	}
	fmt.Println("  Run `household setup` to reconfigure.")
	return nil
}
