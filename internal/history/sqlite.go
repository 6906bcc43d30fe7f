// Package history persists a ledger of completed monitor runs.
package history

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// ErrNoRuns is returned when the ledger holds no run for the requested query.
var ErrNoRuns = errors.New("no runs recorded")

// dsnOptions enables WAL mode and waits out short write contention.
const dsnOptions = "?_busy_timeout=5000&_journal_mode=WAL"

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	query_name   TEXT NOT NULL,
	platform     TEXT NOT NULL,
	run_dir      TEXT NOT NULL,
	report_path  TEXT NOT NULL DEFAULT '',
	record_count INTEGER NOT NULL DEFAULT 0,
	ioc_count    INTEGER NOT NULL DEFAULT 0,
	tlp_level    TEXT NOT NULL DEFAULT '',
	started_at   TIMESTAMP NOT NULL,
	finished_at  TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_query_name ON runs (query_name);
CREATE INDEX IF NOT EXISTS idx_runs_finished_at ON runs (finished_at);
`

// Run is one recorded monitor run.
type Run struct {
	ID          int64     `db:"id"`
	QueryName   string    `db:"query_name"`
	Platform    string    `db:"platform"`
	RunDir      string    `db:"run_dir"`
	ReportPath  string    `db:"report_path"`
	RecordCount int       `db:"record_count"`
	IOCCount    int       `db:"ioc_count"`
	TLPLevel    string    `db:"tlp_level"`
	StartedAt   time.Time `db:"started_at"`
	FinishedAt  time.Time `db:"finished_at"`
}

// Duration reports how long the run took.
func (r *Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Open opens the run ledger at path, creating the file and schema on
// first use.
func Open(path string) (*sqlx.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sqlx.Connect("sqlite3", "file:"+path+dsnOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	// SQLite allows a single writer; a second connection would only
	// trade busy timeouts for lock errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create runs schema: %w", err)
	}

	return db, nil
}
