package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewRootCmd builds the base command with every subcommand attached
func NewRootCmd() *cobra.Command {
	var logLevel string // Log verbosity level

	rootCmd := &cobra.Command{
		Use:           "epochwatch",
		Short:         "Per-epoch ROC AUC tracking for model training runs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logrus.ParseLevel(logLevel)
			if err != nil {
				return fmt.Errorf("invalid log level: %s", logLevel)
			}
			logrus.SetLevel(level)
			logrus.SetOutput(cmd.ErrOrStderr())
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")

	rootCmd.AddCommand(
		newReplayCmd(),
		newSummaryCmd(),
		newCleanCmd(),
		newPlotCmd(),
		newAUCCmd(),
	)

	return rootCmd
}

// Execute runs the CLI and exits non-zero on error
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}
