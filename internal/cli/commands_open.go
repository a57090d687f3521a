package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mekedron/fieldmap-cli/internal/router"
	"github.com/mekedron/fieldmap-cli/internal/service/output"
	"github.com/spf13/cobra"
)

func newOpenCommand(deps Dependencies) *cobra.Command {
	cmd := &cobra.Command{
		Use:                "open <path> [screen options]",
		Short:              "Open the screen registered for an application path, for example / or /map.",
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 || strings.HasPrefix(args[0], "-") {
				if len(args) > 0 && (args[0] == "--help" || args[0] == "-h") {
					return cmd.Help()
				}
				return emitError(cmd, output.FormatTable, modeLabel(deps.Mode), "", "FIELDMAP_INVALID_ARGUMENT", requiredArg("<path>"))
			}
			path, rest := args[0], args[1:]
			format := formatFromArgs(rest)

			route, err := deps.Router.Resolve(path)
			if errors.Is(err, router.ErrNoRoute) || errors.Is(err, router.ErrInvalidPath) {
				return emitError(cmd, format, modeLabel(deps.Mode), "", "FIELDMAP_NO_ROUTE", err.Error())
			}
			if err != nil {
				return err
			}
			if !route.Available {
				return emitError(cmd, format, modeLabel(deps.Mode), "", "FIELDMAP_SCREEN_UNAVAILABLE",
					fmt.Sprintf("The %s screen at %s is not available in this client.", route.Screen, route.Path))
			}

			target, _, err := cmd.Root().Find([]string{string(route.Screen)})
			if err != nil || target == nil || target == cmd.Root() {
				return emitError(cmd, format, modeLabel(deps.Mode), "", "FIELDMAP_NO_ROUTE", fmt.Sprintf("no command for screen %s", route.Screen))
			}
			if err := target.ParseFlags(rest); err != nil {
				return err
			}
			target.SetContext(cmd.Context())
			target.SetOut(cmd.OutOrStdout())
			target.SetErr(cmd.ErrOrStderr())
			attachVerbose(target, deps)
			return target.RunE(target, target.Flags().Args())
		},
	}
	return cmd
}

// formatFromArgs finds --format in unparsed screen arguments so routing
// errors use the requested encoding.
func formatFromArgs(args []string) output.Format {
	for i, arg := range args {
		var raw string
		switch {
		case strings.HasPrefix(arg, "--format="):
			raw = strings.TrimPrefix(arg, "--format=")
		case arg == "--format" && i+1 < len(args):
			raw = args[i+1]
		default:
			continue
		}
		if format, err := output.ParseFormat(raw); err == nil {
			return format
		}
	}
	return output.FormatTable
}
