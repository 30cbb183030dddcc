// Package cli provides the command-line interface for ezvis.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ezvis/internal/cli/commands"
)

// Execute runs the root command and returns the exit code.
func Execute() int {
	rootCmd := NewRootCommand()

	if err := rootCmd.Execute(); err != nil {
		// Print error to stderr (SilenceErrors prevents Cobra from doing this)
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2 // Configuration or runtime error
	}
	return commands.ExitCode
}

// NewRootCommand creates the root cobra command.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ezvis",
		Short: "Import and analyze EZproxy access logs",
		Long: `ezvis loads EZproxy access logs into a local SQLite store and answers
dashboard queries over it:

  - Requests and bandwidth per hour
  - Top hosts, paths and countries
  - Status code mix and per-host errors
  - Browser families and a weekday/hour heatmap

Configuration comes from .env, the environment and an optional YAML file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("config", "", "YAML config file (default $EZVIS_CONFIG)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: trace, debug, info, warn, error (overrides LOG_LEVEL)")

	// Add subcommands
	rootCmd.AddCommand(commands.NewImportCommand())
	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewQueryCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	return rootCmd
}
