package handlers

import (
	"fmt"
	"os"

	"axial/internal/config"
	"axial/internal/logger"

	"github.com/spf13/cobra"
)

var cfgFile string

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "axial",
		Short: "Axial ingests news feeds, clusters stories and writes a daily digest",
		Long: `Axial - multi-outlet news pipeline

Axial pulls RSS/Atom feeds from a curated set of outlets, scores every
article, groups articles about the same event into story clusters,
summarizes the biggest stories with a framing comparison across outlet
leanings, and composes one digest per day.

Core workflows:
  • serve    Run the scheduler and the operational HTTP API
  • sync     Run one ingestion pass
  • enrich   Summarize unsummarized story clusters
  • digest   Compose today's digest

Examples:
  # Prepare the database and seed sources
  axial migrate up
  axial source seed configs/sources.yaml

  # Run everything on its schedule
  axial serve

  # One-off runs
  axial sync && axial enrich && axial digest`,
		SilenceUsage: true,
	}

	// Initialize configuration
	cobra.OnInitialize(initConfig)

	// Add persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./.axial.yaml or $HOME/.axial.yaml)")

	// Add subcommands
	rootCmd.AddCommand(NewServeCmd())
	rootCmd.AddCommand(NewSyncCmd())
	rootCmd.AddCommand(NewEnrichCmd())
	rootCmd.AddCommand(NewDigestCmd())
	rootCmd.AddCommand(NewStatusCmd())
	rootCmd.AddCommand(NewMigrateCmd())
	rootCmd.AddCommand(NewSourceCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	if !logger.SetLevel(cfg.Logging.Level) {
		fmt.Fprintf(os.Stderr, "Unknown log level %q, using info\n", cfg.Logging.Level)
	}

	// Show which config file is being used (if any)
	if cfg.App.ConfigFile != "" {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", cfg.App.ConfigFile)
	}
}
