// Package cli implements the termlens command line tool: offline analysis of
// a local term export without the server-side infrastructure.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vantagelab/termlens/internal/infrastructure/monitoring/logging"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// RootOptions holds the global CLI flags.
type RootOptions struct {
	LogLevel  string
	LogFormat string
}

// NewRootCommand creates the root command with its global flags and
// subcommands.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "termlens",
		Short:         "Search-term clustering and trend analysis",
		Long:          "TermLens groups e-commerce search terms into opportunity-scored clusters and tracks how they evolve across historical snapshots.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "warn", "log level: debug|info|warn|error")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "console", "log format: json|console")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(NewAnalyzeCmd(opts))
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "termlens %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
		},
	}
}

func (o *RootOptions) buildLogger() (logging.Logger, error) {
	return logging.NewLogger(logging.Config{
		Level:  o.LogLevel,
		Format: o.LogFormat,
	})
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
