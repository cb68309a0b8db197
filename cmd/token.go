package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/household/internal/auth"
)

var flagTokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "API bearer tokens",
}

var tokenIssueCmd = &cobra.Command{
	Use:   "issue EMAIL",
	Short: "Issue a signed API token for a user",
	Args:  cobra.ExactArgs(1),
	RunE:  runTokenIssue,
}

func init() {
	tokenIssueCmd.Flags().DurationVar(&flagTokenTTL, "ttl", 0, "Token lifetime (default auth.token_ttl_hours)")
	tokenCmd.AddCommand(tokenIssueCmd)
	rootCmd.AddCommand(tokenCmd)
}

func runTokenIssue(_ *cobra.Command, args []string) error {
	email := strings.TrimSpace(args[0])
	if !strings.Contains(email, "@") {
		return fmt.Errorf("%q is not an email address", email)
	}
	if cfg.Auth.Secret == "" {
		return errors.New("auth.secret is not set (or HOUSEHOLD_AUTH_SECRET)")
	}
	if flagTokenTTL > 0 {
		cfg.Auth.TokenTTLHours = max(int(flagTokenTTL.Hours()), 1)
	}

	issuer, err := newIssuer(cfg)
	if err != nil {
		return err
	}
	token, err := issuer.Issue(email)
	if err != nil {
		return err
	}
	if !auth.NewAllowlist(cfg.Auth.AllowedUsers).Allows(email) {
		progressf("  warning: %s is not in auth.allowed_users; the API will reject it\n", email)
	}
	fmt.Println(token)
	return nil
}
