package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const runColumns = `id, query_name, platform, run_dir, report_path,
	record_count, ioc_count, tlp_level, started_at, finished_at`

// RunRepository handles database operations for the run ledger.
type RunRepository struct {
	db *sqlx.DB
}

// NewRunRepository creates a new run repository.
func NewRunRepository(db *sqlx.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Record inserts a completed run and sets run.ID.
func (r *RunRepository) Record(ctx context.Context, run *Run) error {
	query := `
		INSERT INTO runs (query_name, platform, run_dir, report_path,
			record_count, ioc_count, tlp_level, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	res, err := r.db.ExecContext(
		ctx,
		query,
		run.QueryName,
		run.Platform,
		run.RunDir,
		run.ReportPath,
		run.RecordCount,
		run.IOCCount,
		run.TLPLevel,
		run.StartedAt,
		run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read run id: %w", err)
	}
	run.ID = id

	return nil
}

// LastRun retrieves the most recent run for the named query.
func (r *RunRepository) LastRun(ctx context.Context, queryName string) (*Run, error) {
	var run Run
	query := `
		SELECT ` + runColumns + `
		FROM runs
		WHERE query_name = ?
		ORDER BY finished_at DESC, id DESC
		LIMIT 1
	`

	err := r.db.GetContext(ctx, &run, query, queryName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w for query: %s", ErrNoRuns, queryName)
		}
		return nil, fmt.Errorf("failed to get last run: %w", err)
	}

	return &run, nil
}

// RecentRuns retrieves up to limit runs across all queries, newest first.
func (r *RunRepository) RecentRuns(ctx context.Context, limit int) ([]*Run, error) {
	var runs []*Run
	query := `
		SELECT ` + runColumns + `
		FROM runs
		ORDER BY finished_at DESC, id DESC
		LIMIT ?
	`

	if err := r.db.SelectContext(ctx, &runs, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list recent runs: %w", err)
	}

	return runs, nil
}

// RunsForQuery retrieves up to limit runs for one query, newest first.
func (r *RunRepository) RunsForQuery(ctx context.Context, queryName string, limit int) ([]*Run, error) {
	var runs []*Run
	query := `
		SELECT ` + runColumns + `
		FROM runs
		WHERE query_name = ?
		ORDER BY finished_at DESC, id DESC
		LIMIT ?
	`

	if err := r.db.SelectContext(ctx, &runs, query, queryName, limit); err != nil {
		return nil, fmt.Errorf("failed to list runs for query: %w", err)
	}

	return runs, nil
}

// Totals represents ledger-wide aggregates.
type Totals struct {
	Runs    int `db:"runs"`
	Records int `db:"records"`
	IOCs    int `db:"iocs"`
}

// Totals retrieves aggregate counts across the whole ledger.
func (r *RunRepository) Totals(ctx context.Context) (*Totals, error) {
	var totals Totals
	query := `
		SELECT
			COUNT(*) AS runs,
			COALESCE(SUM(record_count), 0) AS records,
			COALESCE(SUM(ioc_count), 0) AS iocs
		FROM runs
	`

	if err := r.db.GetContext(ctx, &totals, query); err != nil {
		return nil, fmt.Errorf("failed to get run totals: %w", err)
	}

	return &totals, nil
}
