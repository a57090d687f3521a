package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mekedron/fieldmap-cli/internal/domain"
	"github.com/mekedron/fieldmap-cli/internal/router"
	"github.com/mekedron/fieldmap-cli/internal/screen/login"
	"github.com/mekedron/fieldmap-cli/internal/service/output"
	"github.com/spf13/cobra"
)

const passwordEnv = "FIELDMAP_PASSWORD"

func newLoginCommand(deps Dependencies) *cobra.Command {
	var flags globalFlags
	var email string
	var password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password, then open the dashboard.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := parseOutputFormat(flags.Format)
			if err != nil {
				return err
			}
			mode := modeLabel(deps.Mode)
			if deps.API == nil {
				return emitError(cmd, format, mode, flags.Output, "FIELDMAP_API_UNAVAILABLE", "API client is not available.")
			}
			if strings.TrimSpace(email) == "" {
				return emitError(cmd, format, mode, flags.Output, "FIELDMAP_INVALID_ARGUMENT", requiredArg("--email"))
			}
			secret, err := resolvePassword(cmd, deps, password)
			if err != nil {
				return emitError(cmd, format, mode, flags.Output, "FIELDMAP_INVALID_ARGUMENT", err.Error())
			}

			navigated := make(chan domain.Session, 1)
			screen := login.Mount(login.Deps{
				Auth:    deps.API,
				Storage: deps.Handoff,
				Navigator: login.NavigatorFunc(func(_ string, session domain.Session) {
					navigated <- session
				}),
				Clock:  deps.Clock,
				Logger: deps.Logger,
			})
			defer screen.Unmount()

			if err := screen.SetField(login.FieldEmail, email); err != nil {
				return err
			}
			if err := screen.SetField(login.FieldPassword, secret); err != nil {
				return err
			}

			outcome, err := screen.Submit(cmd.Context())
			if err != nil {
				return emitError(cmd, format, mode, flags.Output, "FIELDMAP_LOGIN_FAILED", err.Error())
			}
			if outcome.Status != login.StatusSucceeded {
				message := outcome.Notification.Message
				if flags.Verbose && outcome.Err != nil {
					message = fmt.Sprintf("%s (%v)", message, outcome.Err)
				}
				return emitError(cmd, format, mode, flags.Output, "FIELDMAP_LOGIN_FAILED", message)
			}
			if format == output.FormatTable {
				_, _ = fmt.Fprintln(cmd.ErrOrStderr(), outcome.Notification.Message)
			}

			var session domain.Session
			select {
			case session = <-navigated:
			case <-cmd.Context().Done():
				return cmd.Context().Err()
			}

			route, err := deps.Router.Resolve(login.DashboardPath)
			if err != nil || route.Screen != router.ScreenDashboard {
				return emitError(cmd, format, mode, flags.Output, "FIELDMAP_NO_ROUTE", fmt.Sprintf("no dashboard route for %s", login.DashboardPath))
			}
			return renderDashboard(cmd, deps, flags, format, session, outcome.Notification)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email.")
	cmd.Flags().StringVar(&password, "password", "", "Account password. Falls back to FIELDMAP_PASSWORD, then an interactive prompt.")
	addGlobalFlags(cmd, &flags)
	return cmd
}

func resolvePassword(cmd *cobra.Command, deps Dependencies, flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if env := os.Getenv(passwordEnv); env != "" {
		return env, nil
	}
	if deps.Password == nil {
		return "", errors.New(requiredArg("--password"))
	}
	secret, err := deps.Password("Password: ", cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	if secret == "" {
		return "", errors.New(requiredArg("--password"))
	}
	return secret, nil
}

func newLogoutCommand(deps Dependencies) *cobra.Command {
	var flags globalFlags

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := parseOutputFormat(flags.Format)
			if err != nil {
				return err
			}
			mode := modeLabel(deps.Mode)
			if deps.Sessions == nil {
				return emitError(cmd, format, mode, flags.Output, "FIELDMAP_CONFIG_ERROR", "Session store is not available.")
			}
			if err := deps.Sessions.End(cmd.Context()); err != nil {
				return emitError(cmd, format, mode, flags.Output, "FIELDMAP_CONFIG_ERROR", err.Error())
			}
			return writeResult(cmd, deps, flags, format, "Signed out.", map[string]any{"signed_out": true}, nil)
		},
	}

	addGlobalFlags(cmd, &flags)
	return cmd
}
