// Package cmd provides the CLI commands for thaiproxy.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/thaiproxy/searchproxy/internal/config"
	"github.com/thaiproxy/searchproxy/internal/logging"
	"github.com/thaiproxy/searchproxy/pkg/version"
)

// Debug logging flag, shared across every subcommand via PersistentPreRunE.
var (
	debugMode      bool
	configPath     string
	loggingCleanup func()
)

// NewRootCmd creates the root command for the thaiproxy CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "thaiproxy",
		Short: "Thai-aware search proxy with compound-word tokenization",
		Long: `thaiproxy fans a Thai query out into weighted variants (original,
tokenised, compound-split, character fallback), dispatches them to a
search backend, and re-ranks the merged results.

Run 'thaiproxy serve' to start the HTTP API, or use the one-shot
'thaiproxy tokenize' command to inspect how a query gets split.`,
		Version: version.Version,
	}

	cmd.SetVersionTemplate("thaiproxy version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging to ~/.thaiproxy/logs/")
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (spec §6 precedence: defaults < file < env)")

	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newTokenizeCmd())
	cmd.AddCommand(newCompoundsCmd())
	cmd.AddCommand(newDictCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startLogging configures slog for the whole process before any
// subcommand's RunE runs.
func startLogging(_ *cobra.Command, _ []string) error {
	cfg := logging.DefaultConfig()
	if appCfg, err := config.Load(configPath); err == nil {
		cfg.Level = appCfg.Server.LogLevel
	}
	if debugMode {
		cfg = logging.DebugConfig()
	}
	logger, cleanup, err := logging.Setup(cfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
