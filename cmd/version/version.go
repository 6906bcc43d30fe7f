// Package version implements the version subcommand.
package version

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Build information, overridden at link time via -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Command creates the version command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "masq-monitor %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
