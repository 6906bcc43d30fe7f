// Package iocs implements the iocs subcommand: offline IOC re-extraction from
// a run directory's cached results.
package iocs

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MalasadaTech/masq-monitor/cmd/common"
	"github.com/MalasadaTech/masq-monitor/internal/ioc"
	"github.com/MalasadaTech/masq-monitor/internal/monitor"
)

// Command creates the iocs command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "iocs <run-dir>",
		Short: "Re-extract IOC artifacts for an existing run directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := common.NewCommandDeps()
			if err != nil {
				return err
			}

			m, err := monitor.New(monitor.Options{Config: deps.Config, Logger: deps.Logger})
			if err != nil {
				return err
			}

			result, err := m.ExtractRun(args[0])
			if err != nil {
				return err
			}

			for _, category := range ioc.Categories {
				values := result.IOCs.Values(category)
				if len(values) == 0 {
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d\n", category, len(values))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "total: %d\n", result.IOCs.Count())
			return nil
		},
	}
}
