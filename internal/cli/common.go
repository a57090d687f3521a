package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mekedron/fieldmap-cli/internal/domain"
	"github.com/mekedron/fieldmap-cli/internal/gateway/api"
	"github.com/mekedron/fieldmap-cli/internal/service/output"
	"github.com/spf13/cobra"
)

type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return ""
}

type globalFlags struct {
	Format  string
	Output  string
	Verbose bool
}

const sharedGlobalFlagAnnotation = "fieldmap_shared_global"

func addGlobalFlags(cmd *cobra.Command, flags *globalFlags) {
	addSharedGlobalFlag(cmd, "format", func() {
		cmd.Flags().StringVar(&flags.Format, "format", "table", "Output format: table, json, or yaml.")
	})
	addSharedGlobalFlag(cmd, "output", func() {
		cmd.Flags().StringVar(&flags.Output, "output", "", "Also write the rendered output to this file.")
	})
	addSharedGlobalFlag(cmd, "verbose", func() {
		cmd.Flags().BoolVar(&flags.Verbose, "verbose", false, "Enable verbose output (debug logs, upstream request trace and detailed error diagnostics).")
	})
}

func addSharedGlobalFlag(cmd *cobra.Command, name string, register func()) {
	if cmd.Flags().Lookup(name) != nil {
		return
	}
	register()
	flag := cmd.Flags().Lookup(name)
	if flag == nil {
		return
	}
	if flag.Annotations == nil {
		flag.Annotations = map[string][]string{}
	}
	flag.Annotations[sharedGlobalFlagAnnotation] = []string{"true"}
}

func parseOutputFormat(format string) (output.Format, error) {
	return output.ParseFormat(format)
}

func modeLabel(mode domain.Mode) string {
	if mode == "" {
		return string(domain.ModeDevelopment)
	}
	return string(mode)
}

func writeTable(cmd *cobra.Command, text string, outputPath string) error {
	if err := output.WriteOutput(cmd.OutOrStdout(), text, outputPath); err != nil {
		return err
	}
	return nil
}

func writeMachinePayload(cmd *cobra.Command, env output.Envelope, format output.Format, outputPath string) error {
	rendered, err := output.RenderPayload(env, format)
	if err != nil {
		return err
	}
	if err := output.WriteOutput(cmd.OutOrStdout(), rendered, outputPath); err != nil {
		return err
	}
	return nil
}

// writeResult renders data as a table or machine envelope.
func writeResult(cmd *cobra.Command, deps Dependencies, flags globalFlags, format output.Format, table string, data any, warnings []string) error {
	if format == output.FormatTable {
		return writeTable(cmd, table, flags.Output)
	}
	env := output.BuildEnvelope(modeLabel(deps.Mode), data, warnings, nil)
	return writeMachinePayload(cmd, env, format, flags.Output)
}

func emitError(
	cmd *cobra.Command,
	format output.Format,
	mode string,
	outputPath string,
	code string,
	message string,
) error {
	if format == output.FormatTable {
		if err := output.WriteOutput(cmd.OutOrStdout(), message, outputPath); err != nil {
			return err
		}
		return &exitError{code: 1}
	}
	env := output.BuildEnvelope(mode, nil, []string{}, map[string]any{
		"code":    code,
		"message": message,
	})
	if err := writeMachinePayload(cmd, env, format, outputPath); err != nil {
		return err
	}
	return &exitError{code: 1}
}

func emitUpstreamError(
	cmd *cobra.Command,
	format output.Format,
	mode string,
	outputPath string,
	verbose bool,
	err error,
) error {
	if err == nil {
		err = api.ErrUpstream
	}
	if verbose {
		return emitError(cmd, format, mode, outputPath, "FIELDMAP_UPSTREAM_ERROR", err.Error())
	}

	message := api.ErrUpstream.Error() + " (use --verbose for details)"
	var upstreamErr *api.UpstreamRequestError
	if errors.As(err, &upstreamErr) && upstreamErr.StatusCode > 0 {
		message = fmt.Sprintf("%s (status %d, use --verbose for details)", api.ErrUpstream.Error(), upstreamErr.StatusCode)
	}
	return emitError(cmd, format, mode, outputPath, "FIELDMAP_UPSTREAM_ERROR", message)
}

func requiredArg(name string) string {
	return fmt.Sprintf("%s is required", name)
}

// parsePair reads "a,b" into two floats.
func parsePair(raw string) (float64, float64, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected two comma-separated numbers, got %q", raw)
	}
	a, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid number %q", parts[0])
	}
	b, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid number %q", parts[1])
	}
	return a, b, nil
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// formatCoordinate prints degrees at roughly centimeter precision.
func formatCoordinate(value float64) string {
	return strconv.FormatFloat(value, 'f', 7, 64)
}

func fallbackString(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func boolToYesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
