package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/household/internal/config"
	"github.com/theirongolddev/household/internal/tui"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "First-time setup wizard",
	RunE:  runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(_ *cobra.Command, _ []string) error {
	// Start from the file alone so environment overrides are not persisted.
	fileCfg, err := config.Load()
	if err != nil {
		return err
	}

	vals := tui.DefaultSetupValues(fileCfg)
	if err := tui.NewSetupForm(&vals).Run(); err != nil {
		return err
	}
	tui.ApplySetup(&fileCfg, vals)

	if fileCfg.Auth.Enabled && fileCfg.Auth.Secret == "" {
		fmt.Println("  Auth is enabled but auth.secret is empty; set it in the config file")
		fmt.Println("  or HOUSEHOLD_AUTH_SECRET before running `household serve`.")
	}

	if err := config.Save(fileCfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Println()
	fmt.Printf("  Saved to %s\n", config.ConfigPath())
	fmt.Println("  Run `household setup` anytime to reconfigure.")
	fmt.Println()
	return nil
}
