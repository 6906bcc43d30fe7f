// Package queries implements the queries subcommand: a table listing of every
// configured query and group.
package queries

import (
	"context"
	"errors"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/MalasadaTech/masq-monitor/cmd/common"
	"github.com/MalasadaTech/masq-monitor/internal/config"
	"github.com/MalasadaTech/masq-monitor/internal/history"
)

// Command creates the queries command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "queries",
		Short: "List configured queries and query groups",
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := common.NewCommandDeps()
			if err != nil {
				return err
			}

			lastRuns := loadLastRuns(cmd.Context(), deps.Config)
			renderTable(deps.Config, lastRuns)
			return nil
		},
	}
}

// loadLastRuns pulls last-run times from the history ledger. A missing or
// unreadable ledger only blanks the column.
func loadLastRuns(ctx context.Context, cfg *config.Config) map[string]string {
	lastRuns := make(map[string]string)

	db, err := history.Open(cfg.History.Path)
	if err != nil {
		return lastRuns
	}
	defer db.Close()

	repo := history.NewRunRepository(db)
	for i := range cfg.Queries {
		name := cfg.Queries[i].Name
		run, runErr := repo.LastRun(ctx, name)
		if runErr != nil {
			if !errors.Is(runErr, history.ErrNoRuns) {
				continue
			}
			lastRuns[name] = "never"
			continue
		}
		lastRuns[name] = run.FinishedAt.Format("2006-01-02 15:04:05")
	}
	return lastRuns
}

func renderTable(cfg *config.Config, lastRuns map[string]string) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Name", "Type", "Platform", "TLP", "Highest TLP", "Frequency", "Last Run", "Description"})

	for i := range cfg.Queries {
		q := &cfg.Queries[i]
		t.AppendRow(table.Row{
			q.Name,
			"query",
			q.Platform,
			q.DefaultTLPLevel,
			string(q.HighestTLPLevel()),
			q.Frequency,
			lastRuns[q.Name],
			q.Description,
		})
	}
	for i := range cfg.QueryGroups {
		g := &cfg.QueryGroups[i]
		t.AppendRow(table.Row{
			g.Name,
			"group",
			"",
			g.DefaultTLPLevel,
			string(g.HighestTLPLevel()),
			"",
			"",
			g.Description,
		})
	}

	t.Render()
}
