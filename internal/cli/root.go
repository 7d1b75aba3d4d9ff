// Package cli implements the ecswait command line.
package cli

import (
	"log/slog"
	"os"

	"github.com/me/ecswait/internal/logging"
	"github.com/spf13/cobra"
)

var (
	flagServer    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
	client *Client
)

// defaultServer returns the default server URL, checking ECSWAIT_SERVER env var first.
func defaultServer() string {
	if s := os.Getenv("ECSWAIT_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

// NewRootCmd creates the root cobra command for the ecswait CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ecswait",
		Short: "ecswait: wait for ECS clusters to drain",
		Long: "ecswait checks whether an ECS cluster still has tasks matching a filter, " +
			"blocks until it has none, or hands the wait to an ecswait server.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := logging.ResolveLevel(flagLogLevel, cmd.Flags().Changed("log-level"), flagDebug)
			logger = logging.NewLoggerWithWriter(level, flagLogFormat, cmd.ErrOrStderr())
			client = NewClient(flagServer, logger)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagServer, "server", defaultServer(), "ecswait server URL (or ECSWAIT_SERVER env)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error; or ECSWAIT_LOG_LEVEL env)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newCheckCmd(),
		newWaitCmd(),
		newServeCmd(),
		newSubmitCmd(),
		newStatusCmd(),
		newListCmd(),
		newCancelCmd(),
	)

	return root
}
