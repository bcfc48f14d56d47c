package app

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	entcmd "github.com/agentstation/entsync/cmd/entsync/cmd"
	"github.com/agentstation/entsync/internal/cmd/globals"
	"github.com/agentstation/entsync/internal/cmd/output"
	"github.com/agentstation/entsync/internal/config"
	"github.com/agentstation/entsync/pkg/logging"
)

// Execute runs the entsync CLI with the given arguments.
func (a *App) Execute(ctx context.Context, args []string) error {
	rootCmd := a.createRootCommand()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

func (a *App) createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "entsync",
		Short:   "Entity matching and reconciliation",
		Version: a.version,
		Long: `entsync reconciles edited entity snapshots against their stored
counterparts. It pairs entities that carry no identifier with a
probabilistic field-by-field model, then emits the minimal changesets
that turn the stored data into the edited data.

Entity files are YAML or JSON. The schema describing the fields is
passed with --schema or set in .entsync.yaml.`,
		PersistentPreRunE: a.setupCommand,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}
	rootCmd.SetOut(a.stdout)

	rootCmd.AddGroup(&cobra.Group{ID: "core", Title: "Core Commands:"})
	rootCmd.AddGroup(&cobra.Group{ID: "inspect", Title: "Inspection Commands:"})

	rootCmd.PersistentFlags().StringVar(&a.configFile, "config", "", "config file (default is ./.entsync.yaml or $HOME/.entsync.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: trace, debug, info, warn, error (overridden by -v/-q)")
	a.flags = globals.AddFlags(rootCmd)

	bindings := map[string]string{
		config.KeyOutput:   "output",
		config.KeySchema:   "schema",
		config.KeyLogLevel: "log-level",
	}
	for key, flag := range bindings {
		if err := a.viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic("programming error: binding flag " + flag + ": " + err.Error())
		}
	}

	rootCmd.SetVersionTemplate("entsync {{.Version}}\n")
	a.registerCommands(rootCmd)
	return rootCmd
}

// setupCommand resolves configuration and the logger before any command
// runs.
func (a *App) setupCommand(_ *cobra.Command, _ []string) error {
	if err := config.Init(a.viper, a.configFile); err != nil {
		return err
	}
	cfg, err := config.FromViper(a.viper)
	if err != nil {
		return err
	}
	format, err := output.ParseFormat(cfg.Output)
	if err != nil {
		return err
	}
	cfg.Output = string(format)
	a.config = cfg

	logger := a.NewLogger()
	a.logger = &logger
	logging.SetDefault(logger)
	if cfg.File != "" {
		a.logger.Debug().Str("file", cfg.File).Msg("using config file")
	}
	return nil
}

func (a *App) registerCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(entcmd.NewDiffCommand(a))
	rootCmd.AddCommand(entcmd.NewQueryCommand(a))
	rootCmd.AddCommand(entcmd.NewMergeCommand(a))
	rootCmd.AddCommand(entcmd.NewTreeCommand(a))

	rootCmd.AddCommand(entcmd.NewMatchCommand(a))
	rootCmd.AddCommand(entcmd.NewClassifyCommand(a))

	rootCmd.AddCommand(entcmd.NewVersionCommand(a))
	rootCmd.AddCommand(entcmd.NewCompletionCommand())
	rootCmd.AddCommand(entcmd.NewManCommand())
}

// ExitOnError prints err and exits with status 1.
func ExitOnError(err error) {
	if err != nil {
		_, _ = os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}
