// Package run implements the run subcommand: execute one query, one group or
// every configured query.
package run

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MalasadaTech/masq-monitor/cmd/common"
	"github.com/MalasadaTech/masq-monitor/internal/monitor"
)

// errNameOrAll is returned when neither a name nor --all was given.
var errNameOrAll = errors.New("provide a query or group name, or --all")

// Command creates the run command.
func Command() *cobra.Command {
	var (
		all             bool
		days            int
		tlpLevel        string
		skipScreenshots bool
	)

	cmd := &cobra.Command{
		Use:   "run [name]",
		Short: "Execute a saved query or query group",
		Long: `Execute a saved query or query group against its platform, writing the
HTML report, cached results and IOC artifacts into a fresh run directory.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return errNameOrAll
			}

			deps, err := common.NewCommandDeps()
			if err != nil {
				return err
			}

			m, cleanup, err := common.NewMonitor(deps)
			if err != nil {
				return err
			}
			defer cleanup()

			opts := monitor.RunOptions{
				TLPLevel:        tlpLevel,
				Days:            days,
				SkipScreenshots: skipScreenshots,
			}

			ctx := cmd.Context()
			if all {
				results, runErr := m.RunAll(ctx, opts)
				for _, result := range results {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", result.Name, result.ReportPath)
				}
				return runErr
			}

			name := args[0]
			var result *monitor.Result
			if deps.Config.IsGroup(name) {
				result, err = m.RunGroup(ctx, name, opts)
			} else {
				result, err = m.RunQuery(ctx, name, opts)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Report: %s\n", result.ReportPath)
			fmt.Fprintf(cmd.OutOrStdout(), "Records: %d, IOCs: %d\n", result.RecordCount, result.IOCs.Count())
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "run every configured query")
	cmd.Flags().IntVarP(&days, "days", "d", 0, "limit results to the last N days (0 uses the configured default, negative disables)")
	cmd.Flags().StringVar(&tlpLevel, "tlp", "", "override the report TLP level (clear, white, green, amber, red)")
	cmd.Flags().BoolVar(&skipScreenshots, "no-screenshots", false, "skip screenshot downloads")

	return cmd
}
