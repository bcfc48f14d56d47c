// Package globals provides shared flag structures and utilities for CLI commands.
package globals

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Flags holds global common flags across all commands.
type Flags struct {
	Output  string
	Schema  string
	Quiet   bool
	Verbose bool
	NoColor bool
}

// Formats lists the values accepted by --output.
var Formats = []string{"table", "json", "yaml", "markdown"}

// AddFlags adds common flags to the root command.
func AddFlags(cmd *cobra.Command) *Flags {
	flags := &Flags{}

	cmd.PersistentFlags().StringVarP(&flags.Output, "output", "o", "",
		"Output format: table, json, yaml, markdown")
	cmd.PersistentFlags().StringVarP(&flags.Schema, "schema", "s", "",
		"Schema file (yaml, toml or json)")
	cmd.PersistentFlags().BoolVarP(&flags.Quiet, "quiet", "q", false,
		"Only log errors")
	cmd.PersistentFlags().BoolVarP(&flags.Verbose, "verbose", "v", false,
		"Log match decisions")
	cmd.PersistentFlags().BoolVar(&flags.NoColor, "no-color", false,
		"Disable colored output")

	cmd.SetGlobalNormalizationFunc(normalize)
	_ = cmd.RegisterFlagCompletionFunc("output", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return Formats, cobra.ShellCompDirectiveNoFileComp
	})
	_ = cmd.RegisterFlagCompletionFunc("schema", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{"yaml", "yml", "toml", "json"}, cobra.ShellCompDirectiveFilterFileExt
	})

	return flags
}

// normalize maps flag aliases onto their canonical names.
func normalize(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	switch name {
	case "format":
		name = "output"
	case "log_level":
		name = "log-level"
	}
	return pflag.NormalizedName(name)
}
