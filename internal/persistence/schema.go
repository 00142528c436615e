package persistence

import (
	"context"
)

// initSchema creates all required tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS task_runs (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		priority INTEGER NOT NULL,
		status TEXT NOT NULL,
		retry_count INTEGER NOT NULL,
		depends_on TEXT,
		result TEXT,
		error TEXT,
		created_at DATETIME NOT NULL,
		started_at DATETIME,
		completed_at DATETIME,
		archived_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_task_runs_completed_at ON task_runs(completed_at);

	CREATE TABLE IF NOT EXISTS chain_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		chain TEXT NOT NULL,
		steps INTEGER NOT NULL,
		passed INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		skipped INTEGER NOT NULL,
		aborted INTEGER NOT NULL,
		finished_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS chain_steps (
		run_id INTEGER NOT NULL,
		step_index INTEGER NOT NULL,
		task_id TEXT NOT NULL,
		name TEXT NOT NULL,
		outcome TEXT NOT NULL,
		attempts INTEGER NOT NULL,
		error TEXT,
		PRIMARY KEY (run_id, step_index),
		FOREIGN KEY (run_id) REFERENCES chain_runs(id) ON DELETE CASCADE
	);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}
