package history_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MalasadaTech/masq-monitor/internal/history"
)

func openTestRepo(t *testing.T) *history.RunRepository {
	t.Helper()

	db, err := history.Open(filepath.Join(t.TempDir(), "masq", "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return history.NewRunRepository(db)
}

func sampleRun(name string, finished time.Time) *history.Run {
	return &history.Run{
		QueryName:   name,
		Platform:    "urlscan",
		RunDir:      "output/" + name + "_20250301_120000",
		ReportPath:  "output/" + name + "_20250301_120000/report.html",
		RecordCount: 4,
		IOCCount:    7,
		TLPLevel:    "amber",
		StartedAt:   finished.Add(-30 * time.Second),
		FinishedAt:  finished,
	}
}

func TestRecordAssignsID(t *testing.T) {
	t.Parallel()

	repo := openTestRepo(t)
	ctx := context.Background()

	run := sampleRun("phish_kit", time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, repo.Record(ctx, run))
	require.NotZero(t, run.ID)

	second := sampleRun("phish_kit", time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC))
	require.NoError(t, repo.Record(ctx, second))
	require.Greater(t, second.ID, run.ID)
}

func TestLastRun(t *testing.T) {
	t.Parallel()

	repo := openTestRepo(t)
	ctx := context.Background()

	older := sampleRun("phish_kit", time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	newer := sampleRun("phish_kit", time.Date(2025, 3, 3, 9, 30, 0, 0, time.UTC))
	other := sampleRun("brand_watch", time.Date(2025, 3, 4, 8, 0, 0, 0, time.UTC))
	for _, run := range []*history.Run{older, newer, other} {
		require.NoError(t, repo.Record(ctx, run))
	}

	got, err := repo.LastRun(ctx, "phish_kit")
	require.NoError(t, err)
	require.Equal(t, newer.ID, got.ID)
	require.Equal(t, "phish_kit", got.QueryName)
	require.Equal(t, "urlscan", got.Platform)
	require.Equal(t, 4, got.RecordCount)
	require.Equal(t, 7, got.IOCCount)
	require.Equal(t, "amber", got.TLPLevel)
	require.WithinDuration(t, newer.FinishedAt, got.FinishedAt, time.Second)
	require.Equal(t, 30*time.Second, got.Duration().Round(time.Second))
}

func TestLastRunUnknownQuery(t *testing.T) {
	t.Parallel()

	repo := openTestRepo(t)

	got, err := repo.LastRun(context.Background(), "never_ran")
	require.Nil(t, got)
	require.ErrorIs(t, err, history.ErrNoRuns)
}

func TestRecentRunsOrderAndLimit(t *testing.T) {
	t.Parallel()

	repo := openTestRepo(t)
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	names := []string{"a", "b", "c", "d"}
	for i, name := range names {
		run := sampleRun(name, base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, repo.Record(ctx, run))
	}

	runs, err := repo.RecentRuns(ctx, 3)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	require.Equal(t, "d", runs[0].QueryName)
	require.Equal(t, "c", runs[1].QueryName)
	require.Equal(t, "b", runs[2].QueryName)
}

func TestRunsForQuery(t *testing.T) {
	t.Parallel()

	repo := openTestRepo(t)
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := range 3 {
		require.NoError(t, repo.Record(ctx, sampleRun("phish_kit", base.Add(time.Duration(i)*time.Hour))))
	}
	require.NoError(t, repo.Record(ctx, sampleRun("brand_watch", base)))

	runs, err := repo.RunsForQuery(ctx, "phish_kit", 10)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	for _, run := range runs {
		require.Equal(t, "phish_kit", run.QueryName)
	}

	runs, err = repo.RunsForQuery(ctx, "phish_kit", 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
}

func TestTotals(t *testing.T) {
	t.Parallel()

	repo := openTestRepo(t)
	ctx := context.Background()

	empty, err := repo.Totals(ctx)
	require.NoError(t, err)
	require.Zero(t, empty.Runs)
	require.Zero(t, empty.Records)
	require.Zero(t, empty.IOCs)

	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Record(ctx, sampleRun("a", base)))
	require.NoError(t, repo.Record(ctx, sampleRun("b", base.Add(time.Hour))))

	totals, err := repo.Totals(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, totals.Runs)
	require.Equal(t, 8, totals.Records)
	require.Equal(t, 14, totals.IOCs)
}
