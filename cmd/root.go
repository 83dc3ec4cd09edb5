// Package cmd implements the omnidoc command-line interface.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/omnidoc/omnidoc/internal/config"
	"github.com/omnidoc/omnidoc/internal/log"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "omnidoc",
	Short: "omnidoc - question answering over your own documents",
	Long: `omnidoc answers questions from documents you have ingested.

Questions are served from a learned-answer cache when possible, then
from your documents via vector search and grounded generation. When
the local answer is weak, omnidoc offers an explicit fallback to the
model's general knowledge, and remembers confident fallback answers
for next time.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// loadConfig loads and validates configuration, and builds the logger.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("validating config: %w", err)
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level})

	return cfg, logger, nil
}
