package cli

import (
	"errors"
	"time"

	"github.com/mekedron/fieldmap-cli/internal/domain"
	"github.com/mekedron/fieldmap-cli/internal/service/output"
	"github.com/mekedron/fieldmap-cli/internal/service/session"
	"github.com/spf13/cobra"
)

func newDashboardCommand(deps Dependencies) *cobra.Command {
	var flags globalFlags

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show the signed-in user and session from the last login.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := parseOutputFormat(flags.Format)
			if err != nil {
				return err
			}
			mode := modeLabel(deps.Mode)
			if deps.Sessions == nil {
				return emitError(cmd, format, mode, flags.Output, "FIELDMAP_CONFIG_ERROR", "Session store is not available.")
			}
			current, err := deps.Sessions.Current(cmd.Context())
			if errors.Is(err, session.ErrNoSession) {
				return emitError(cmd, format, mode, flags.Output, "FIELDMAP_NO_SESSION", err.Error())
			}
			if err != nil {
				return emitError(cmd, format, mode, flags.Output, "FIELDMAP_CONFIG_ERROR", err.Error())
			}
			return renderDashboard(cmd, deps, flags, format, current, domain.Notification{})
		},
	}

	addGlobalFlags(cmd, &flags)
	return cmd
}

func renderDashboard(
	cmd *cobra.Command,
	deps Dependencies,
	flags globalFlags,
	format output.Format,
	current domain.Session,
	notification domain.Notification,
) error {
	summary := session.Describe(current, deps.Clock.Now())
	data := map[string]any{
		"screen":  "dashboard",
		"session": summary,
	}
	if notification.Visible {
		data["notification"] = notification
	}
	return writeResult(cmd, deps, flags, format, buildDashboardTable(summary), data, nil)
}

func buildDashboardTable(summary session.Summary) string {
	expires := "-"
	if summary.ExpiresAt != nil {
		expires = summary.ExpiresAt.Format(time.RFC3339)
	}
	sessionTable := output.RenderTable("Dashboard", []string{"Field", "Value"}, [][]string{
		{"Token", fallbackString(summary.TokenPreview, "-")},
		{"Expires", expires},
		{"Expired", boolToYesNo(summary.Expired)},
	})

	rows := make([][]string, 0, len(summary.User))
	for _, field := range summary.User {
		rows = append(rows, []string{field.Name, fallbackString(field.Value, "-")})
	}
	userTable := ""
	if len(rows) > 0 {
		userTable = output.RenderTable("User", []string{"Field", "Value"}, rows)
	}
	return output.RenderSections(sessionTable, userTable)
}
