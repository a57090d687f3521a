package cli

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/mekedron/fieldmap-cli/internal/router"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// sharedOptions are declared on every command but documented once, under
// the root help's global section.
var sharedOptions = []string{"format", "output", "verbose"}

type optionDoc struct {
	name      string
	token     string
	usage     string
	required  bool
	inherited bool
	shared    bool
}

func renderRootHelp(out io.Writer, root *cobra.Command, routes []router.Route) {
	w := func(format string, args ...any) { _, _ = fmt.Fprintf(out, format, args...) }

	w("%s: %s\n\n", root.Name(), root.Short)
	w("usage: %s <command> [options]\n", root.Name())
	w("global options (all optional unless marked required):\n")
	for _, option := range rootOptions(root) {
		w("  %s%s: %s\n", option.token, optionLabels(option), option.usage)
	}

	w("\ncommands:\n")
	for _, cmd := range visibleCommands(root) {
		w("  %-10s %s\n", cmd.Name(), cmd.Short)
	}

	if len(routes) > 0 {
		w("\nscreens (fieldmap open <path>):\n")
		for _, route := range routes {
			status := string(route.Screen)
			if !route.Available {
				status += " (not available)"
			}
			w("  %-11s %s\n", route.Path, status)
		}
	}

	w("\nnotes:\n")
	w("  - options are optional unless marked [required].\n")
	w("  - the API host follows the build mode: production talks to the fixed API host, development resolves /api paths against the configured origin.\n")
	w("\nfull reference:\n")
	for _, cmd := range visibleCommands(root) {
		w("- %s %s\n  %s\n", root.Name(), cmd.Use, cmd.Short)
		if options := commandOptions(cmd); len(options) > 0 {
			w("  options:\n")
			for _, option := range options {
				w("    %s%s: %s\n", option.token, optionLabels(option), option.usage)
			}
		}
		w("\n")
	}
}

func visibleCommands(parent *cobra.Command) []*cobra.Command {
	return slices.DeleteFunc(slices.Clone(parent.Commands()), func(cmd *cobra.Command) bool {
		return cmd.Hidden
	})
}

// rootOptions lists the root's own flags followed by the shared options,
// taken from the first command that declares each.
func rootOptions(root *cobra.Command) []optionDoc {
	options := optionDocs(root.Flags(), false)
	for _, name := range sharedOptions {
		for _, cmd := range visibleCommands(root) {
			if flag := cmd.Flags().Lookup(name); flag != nil {
				options = append(options, docFor(flag, false))
				break
			}
		}
	}
	return options
}

// commandOptions lists a command's own options without the shared ones.
func commandOptions(cmd *cobra.Command) []optionDoc {
	local := optionDocs(cmd.NonInheritedFlags(), false)
	inherited := optionDocs(cmd.InheritedFlags(), true)
	options := make([]optionDoc, 0, len(local)+len(inherited))
	for _, option := range append(local, inherited...) {
		if option.shared || slices.Contains(sharedOptions, option.name) {
			continue
		}
		if slices.ContainsFunc(options, func(o optionDoc) bool { return o.name == option.name }) {
			continue
		}
		options = append(options, option)
	}
	return options
}

func optionDocs(flags *pflag.FlagSet, inherited bool) []optionDoc {
	var options []optionDoc
	flags.VisitAll(func(flag *pflag.Flag) {
		if flag.Hidden || flag.Name == "help" {
			return
		}
		options = append(options, docFor(flag, inherited))
	})
	slices.SortFunc(options, func(a, b optionDoc) int { return strings.Compare(a.name, b.name) })
	return options
}

func docFor(flag *pflag.Flag, inherited bool) optionDoc {
	return optionDoc{
		name:      flag.Name,
		token:     flagToken(flag),
		usage:     strings.TrimSpace(flag.Usage),
		required:  isFlagRequired(flag),
		inherited: inherited,
		shared:    annotationSet(flag, sharedGlobalFlagAnnotation),
	}
}

func flagToken(flag *pflag.Flag) string {
	if flag.Shorthand == "" {
		return "--" + flag.Name
	}
	return "--" + flag.Name + "/-" + flag.Shorthand
}

func isFlagRequired(flag *pflag.Flag) bool {
	return annotationSet(flag, cobra.BashCompOneRequiredFlag)
}

func annotationSet(flag *pflag.Flag, key string) bool {
	if flag == nil {
		return false
	}
	values := flag.Annotations[key]
	return len(values) > 0 && (strings.EqualFold(values[0], "true") || values[0] == "1")
}

func optionLabels(option optionDoc) string {
	var labels []string
	if option.required {
		labels = append(labels, "required")
	}
	if option.inherited {
		labels = append(labels, "global")
	}
	if len(labels) == 0 {
		return ""
	}
	return " [" + strings.Join(labels, ", ") + "]"
}
