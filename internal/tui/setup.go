package tui

import (
	"errors"
	"net/url"
	"strings"

	"github.com/theirongolddev/household/internal/config"
	"github.com/theirongolddev/household/internal/tui/theme"

	"github.com/charmbracelet/huh"
)

// SetupValues holds the answers of the first-run wizard.
type SetupValues struct {
	Theme            string
	WorkerURL        string
	AuthEnabled      bool
	SchedulerEnabled bool
}

// DefaultSetupValues seeds the wizard from an existing config.
func DefaultSetupValues(cfg config.Config) SetupValues {
	return SetupValues{
		Theme:            cfg.Appearance.Theme,
		WorkerURL:        cfg.Orders.WorkerURL,
		AuthEnabled:      cfg.Auth.Enabled,
		SchedulerEnabled: cfg.Scheduler.Enabled,
	}
}

// NewSetupForm builds the first-run wizard. Answers are written to vals.
func NewSetupForm(vals *SetupValues) *huh.Form {
	themeOpts := make([]huh.Option[string], 0, len(theme.All))
	for _, th := range theme.All {
		themeOpts = append(themeOpts, huh.NewOption(th.Name, th.Name))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("Welcome to household").
				Description("Credit-card statements, budgets and project scaffolding.\nA few questions and you're set."),
			huh.NewSelect[string]().
				Title("Color theme").
				Options(themeOpts...).
				Value(&vals.Theme),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Orders worker URL").
				Description("Used to look up Amazon order details. Leave blank to skip.").
				Placeholder("http://127.0.0.1:8788").
				Validate(validateWorkerURL).
				Value(&vals.WorkerURL),
			huh.NewConfirm().
				Title("Require bearer tokens on the API?").
				Description("Needs auth.secret; issue tokens with `household token issue`.").
				Value(&vals.AuthEnabled),
			huh.NewConfirm().
				Title("Run scheduled maintenance jobs in `serve`?").
				Value(&vals.SchedulerEnabled),
		),
	).WithShowHelp(true)
}

func validateWorkerURL(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("must be an http(s) URL")
	}
	return nil
}

// ApplySetup copies wizard answers into cfg.
func ApplySetup(cfg *config.Config, vals SetupValues) {
	if vals.Theme != "" {
		cfg.Appearance.Theme = vals.Theme
	}
	cfg.Orders.WorkerURL = strings.TrimRight(strings.TrimSpace(vals.WorkerURL), "/")
	cfg.Auth.Enabled = vals.AuthEnabled
	cfg.Scheduler.Enabled = vals.SchedulerEnabled
}
