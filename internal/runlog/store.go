// Package runlog keeps a local history of ingestion runs in SQLite, so
// operators can audit what each run touched without digging through logs.
package runlog

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/finlens-ai/invoice-engine/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id                   TEXT PRIMARY KEY,
	started_at           TIMESTAMP NOT NULL,
	finished_at          TIMESTAMP,
	status               TEXT NOT NULL,
	error                TEXT NOT NULL DEFAULT '',
	files_total          INTEGER NOT NULL DEFAULT 0,
	files_processed      INTEGER NOT NULL DEFAULT 0,
	files_skipped        INTEGER NOT NULL DEFAULT 0,
	files_failed         INTEGER NOT NULL DEFAULT 0,
	invoices_updated     INTEGER NOT NULL DEFAULT 0,
	invoices_appended    INTEGER NOT NULL DEFAULT 0,
	line_items_appended  INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC);
`

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Run is one recorded ingestion run.
type Run struct {
	ID                string
	StartedAt         time.Time
	FinishedAt        time.Time
	Status            string
	Error             string
	FilesTotal        int
	FilesProcessed    int
	FilesSkipped      int
	FilesFailed       int
	InvoicesUpdated   int
	InvoicesAppended  int
	LineItemsAppended int
}

// Store is the SQLite-backed run history.
type Store struct {
	db *sql.DB
}

// Open opens (and if needed initializes) the run history at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, domain.IOError("failed to open run log "+path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, domain.IOError("failed to initialize run log schema", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// RecordStart inserts a new running entry.
func (s *Store) RecordStart(ctx context.Context, id string, startedAt time.Time, filesTotal int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, status, files_total) VALUES (?, ?, ?, ?)`,
		id, startedAt.UTC(), StatusRunning, filesTotal)
	if err != nil {
		return domain.IOError("failed to record run start", err)
	}
	return nil
}

// RecordFinish fills in the final counters and status for a run.
func (s *Store) RecordFinish(ctx context.Context, run Run) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET
			finished_at = ?, status = ?, error = ?,
			files_total = ?, files_processed = ?, files_skipped = ?, files_failed = ?,
			invoices_updated = ?, invoices_appended = ?, line_items_appended = ?
		WHERE id = ?`,
		run.FinishedAt.UTC(), run.Status, run.Error,
		run.FilesTotal, run.FilesProcessed, run.FilesSkipped, run.FilesFailed,
		run.InvoicesUpdated, run.InvoicesAppended, run.LineItemsAppended,
		run.ID)
	if err != nil {
		return domain.IOError("failed to record run finish", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.IOError("run "+run.ID+" was never started", nil)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, COALESCE(finished_at, started_at), status, error,
			files_total, files_processed, files_skipped, files_failed,
			invoices_updated, invoices_appended, line_items_appended
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, domain.IOError("failed to query run log", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(
			&r.ID, &r.StartedAt, &r.FinishedAt, &r.Status, &r.Error,
			&r.FilesTotal, &r.FilesProcessed, &r.FilesSkipped, &r.FilesFailed,
			&r.InvoicesUpdated, &r.InvoicesAppended, &r.LineItemsAppended,
		); err != nil {
			return nil, domain.IOError("failed to scan run log row", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.IOError("failed to read run log rows", err)
	}
	return runs, nil
}
