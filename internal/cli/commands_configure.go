package cli

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/mekedron/fieldmap-cli/internal/config"
	"github.com/mekedron/fieldmap-cli/internal/domain"
	"github.com/spf13/cobra"
)

func newConfigureCommand(deps Dependencies) *cobra.Command {
	var mode string
	var origin string
	var show bool

	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Save the API mode and development origin used by later commands.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if deps.Config == nil {
				return fmt.Errorf("config store is not available")
			}
			cfg, err := deps.Config.Load(cmd.Context())
			if errors.Is(err, config.ErrConfigNotFound) {
				cfg = domain.Config{}
			} else if err != nil {
				return err
			}

			if show {
				return writeTable(cmd, fmt.Sprintf("Config: %s\nMode: %s\nOrigin: %s",
					deps.Config.Path(),
					fallbackString(string(cfg.Mode), "-"),
					fallbackString(cfg.Origin, "-"),
				), "")
			}

			if !cmd.Flags().Changed("mode") && !cmd.Flags().Changed("origin") {
				return fmt.Errorf("provide --mode or --origin to update settings")
			}
			if cmd.Flags().Changed("mode") {
				parsed, err := domain.ParseMode(mode)
				if err != nil {
					return err
				}
				cfg.Mode = parsed
			}
			if cmd.Flags().Changed("origin") {
				trimmed := strings.TrimRight(strings.TrimSpace(origin), "/")
				if trimmed != "" {
					parsed, err := url.Parse(trimmed)
					if err != nil || parsed.Scheme == "" || parsed.Host == "" {
						return fmt.Errorf("invalid --origin %q: expected scheme://host[:port]", origin)
					}
				}
				cfg.Origin = trimmed
			}
			if err := deps.Config.Save(cmd.Context(), cfg); err != nil {
				return err
			}
			return writeTable(cmd, "Config saved to "+deps.Config.Path(), "")
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "", "API mode: development or production.")
	cmd.Flags().StringVar(&origin, "origin", "", "Origin that relative /api paths resolve against in development mode.")
	cmd.Flags().BoolVar(&show, "show", false, "Print the saved settings instead of changing them.")
	return cmd
}
