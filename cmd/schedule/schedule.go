// Package schedule implements the schedule subcommand: a long-running daemon
// that executes queries on their configured frequency.
package schedule

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/MalasadaTech/masq-monitor/cmd/common"
	"github.com/MalasadaTech/masq-monitor/internal/monitor"
)

// Command creates the schedule command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run queries on their configured frequency until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := common.NewCommandDeps()
			if err != nil {
				return err
			}

			m, cleanup, err := common.NewMonitor(deps)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			scheduler := cron.New()
			scheduled := 0
			for i := range deps.Config.Queries {
				q := deps.Config.Queries[i]
				if q.Frequency == "" {
					continue
				}

				spec := cronSpec(q.Frequency)
				_, addErr := scheduler.AddFunc(spec, func() {
					result, runErr := m.RunQuery(ctx, q.Name, monitor.RunOptions{})
					if runErr != nil {
						deps.Logger.Error("Scheduled run failed", "query", q.Name, "error", runErr)
						return
					}
					deps.Logger.Info("Scheduled run complete",
						"query", q.Name,
						"report", result.ReportPath,
						"records", result.RecordCount)
				})
				if addErr != nil {
					return fmt.Errorf("invalid frequency %q for query %q: %w", q.Frequency, q.Name, addErr)
				}
				scheduled++
			}

			if scheduled == 0 {
				return errors.New("no queries carry a frequency; nothing to schedule")
			}

			deps.Logger.Info("Scheduler started", "queries", scheduled)
			scheduler.Start()

			<-ctx.Done()

			deps.Logger.Info("Scheduler stopping")
			waitForJobs(scheduler)
			return nil
		},
	}
}

// cronSpec maps the friendly frequency names onto cron descriptors; anything
// else is passed through as a raw cron expression.
func cronSpec(frequency string) string {
	switch frequency {
	case "hourly":
		return "@hourly"
	case "daily":
		return "@daily"
	case "weekly":
		return "@weekly"
	case "monthly":
		return "@monthly"
	default:
		return frequency
	}
}

// waitForJobs stops the scheduler and waits for in-flight runs to finish.
func waitForJobs(scheduler *cron.Cron) {
	<-scheduler.Stop().Done()
}
