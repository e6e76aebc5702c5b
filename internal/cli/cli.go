// Package cli implements the command-line interface for stockwatcher.
package cli

import (
	"github.com/spf13/cobra"

	"stockwatcher/internal/platform/config"
	"stockwatcher/internal/platform/logging"
)

// Version is set at build time with -ldflags "-X stockwatcher/internal/cli.Version=...".
var Version = "dev"

var (
	// Global flags
	logLevel string

	// Global config
	cfg *config.Config

	rootCmd = newRootCmd()
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "stockwatcher",
		Short: "StockWatcher data-access service",
		Long: `stockwatcher runs the StockWatcher admin surface and the daily summary
job against a replicated PostgreSQL cluster. Configuration is read from the
environment and an optional .env file.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"log level (debug, info, warn, error)")

	root.AddCommand(versionCmd)
	root.AddCommand(serveCmd)
	root.AddCommand(summarizeCmd)
	root.AddCommand(migrateCmd)
	root.AddCommand(tokenCmd)
	return root
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func initConfig() error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return err
	}

	// Override with CLI flags
	if logLevel != "" {
		cfg.App.LogLevel = logLevel
	}

	logging.Init(logging.Config{
		Level:  cfg.App.LogLevel,
		Pretty: cfg.App.Env == "development",
	})
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println("stockwatcher " + Version)
	},
}
