// Package cmd provides CLI command implementations.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/comp-lang/comp/internal/config"
	"github.com/comp-lang/comp/internal/output"
)

var (
	// Global flags
	configFlag     string
	verboseFlag    bool
	moduleRootFlag string
	timestampsFlag bool

	// Resolved configuration (loaded during PersistentPreRunE)
	compConfig *config.Config
)

// NewRootCmd creates the root command for the comp CLI.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "comp",
		Short:         "Comp language runtime",
		Long:          `comp evaluates Comp AST documents: it loads modules, dispatches pipelines, and renders result values.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initializeGlobals(cmd)
		},
	}

	// Add global flags
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Path to config file (env: COMP_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&moduleRootFlag, "module-root", "", "Directory AST documents resolve against (env: COMP_MODULE_ROOT)")
	rootCmd.PersistentFlags().BoolVar(&timestampsFlag, "timestamps", true, "Show timestamps in log output")

	// Add subcommands
	rootCmd.AddCommand(NewRunCmd())
	rootCmd.AddCommand(NewEvalCmd())
	rootCmd.AddCommand(NewVersionCmd())

	return rootCmd
}

// initializeGlobals sets up logging and loads configuration.
func initializeGlobals(cmd *cobra.Command) error {
	cfg, resolved, err := config.Load(config.LoaderOptions{
		ConfigFlag:     configFlag,
		ModuleRootFlag: moduleRootFlag,
	})
	if err != nil {
		return err
	}
	compConfig = cfg

	// Build LogConfig with precedence: flag > config > default(true).
	logCfg := output.LogConfig{
		Verbose: verboseFlag,
	}
	if cmd.Flags().Changed("timestamps") {
		logCfg.Timestamps = output.BoolPtr(timestampsFlag)
	} else if cfg.Log.Timestamps != nil {
		logCfg.Timestamps = cfg.Log.Timestamps
	}
	output.SetupLogging(logCfg)

	if verboseFlag {
		for _, rv := range resolved {
			output.Debug("config resolved", "key", rv.Key, "value", rv.Value, "source", rv.Source)
		}
	}
	return nil
}

// Config returns the loaded CLI configuration.
func Config() *config.Config {
	return compConfig
}
