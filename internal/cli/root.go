// Package cli holds the leadscraper command tree.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lucasfdcampos/lead-scraper/internal/config"
	"github.com/lucasfdcampos/lead-scraper/internal/logging"
)

var (
	logLevel  string
	logFormat string

	// cfg is loaded once in the root pre-run.
	cfg   *config.Config
	flush = func() {}
)

var rootCmd = &cobra.Command{
	Use:           "leadscraper",
	Short:         "leadscraper collects business leads from US directory sites.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") || c.LogLevel == "" {
			c.LogLevel = logLevel
		}
		if cmd.Flags().Changed("log-format") || c.LogFormat == "" {
			c.LogFormat = logFormat
		}
		f, err := logging.Init(c.LogLevel, c.LogFormat)
		if err != nil {
			return err
		}
		cfg, flush = c, f
		zap.L().Debug("config loaded", zap.Stringer("config", cfg))
		return nil
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		flush()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error.")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "Log format: console or json.")
}

// ExecuteContext runs the command tree and exits non-zero on error.
func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
