// Package report implements the report subcommand: offline regeneration of a
// run directory's HTML report from its cached results.
package report

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MalasadaTech/masq-monitor/cmd/common"
	"github.com/MalasadaTech/masq-monitor/internal/monitor"
)

// Command creates the report command.
func Command() *cobra.Command {
	var tlpLevel string

	cmd := &cobra.Command{
		Use:   "report <run-dir>",
		Short: "Re-render the report for an existing run directory",
		Long: `Re-render the HTML report and IOC artifacts for an existing run directory
from its cached results.json, without calling any platform API. Useful for
producing the same run at a different TLP level or after template changes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := common.NewCommandDeps()
			if err != nil {
				return err
			}

			m, err := monitor.New(monitor.Options{Config: deps.Config, Logger: deps.Logger})
			if err != nil {
				return err
			}

			result, err := m.Rebuild(args[0], monitor.RunOptions{TLPLevel: tlpLevel})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Report: %s\n", result.ReportPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&tlpLevel, "tlp", "", "override the report TLP level (clear, white, green, amber, red)")

	return cmd
}
