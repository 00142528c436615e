package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/akarsh/gamepilot/internal/scheduler"
)

// TaskRun is the archived record of one terminal task.
type TaskRun struct {
	ID          string
	Name        string
	Priority    int
	Status      string
	RetryCount  int
	DependsOn   []string
	Result      string
	Error       string
	CreatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time
}

// ArchiveTask writes a terminal task into the archive. Uses ON CONFLICT so
// re-archiving the same task is idempotent.
func (s *SQLiteStore) ArchiveTask(ctx context.Context, task *scheduler.Task) error {
	errorStr := ""
	if task.Err != nil {
		errorStr = task.Err.Error()
	}
	resultStr := ""
	if task.Result != nil {
		resultStr = fmt.Sprintf("%v", task.Result)
	}
	dependsOn := strings.Join(task.DependsOn, ",")

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO task_runs (id, name, priority, status, retry_count, depends_on, result, error, created_at, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			priority = excluded.priority,
			status = excluded.status,
			retry_count = excluded.retry_count,
			depends_on = excluded.depends_on,
			result = excluded.result,
			error = excluded.error,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at
	`, task.ID, task.Name, int(task.Priority), task.Status.String(), task.RetryCount,
		dependsOn, resultStr, errorStr, task.CreatedAt, task.StartedAt, task.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to archive task %s: %w", task.ID, err)
	}
	return nil
}

// GetTaskRun retrieves one archived task by ID.
func (s *SQLiteStore) GetTaskRun(ctx context.Context, taskID string) (*TaskRun, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, priority, status, retry_count, depends_on, result, error, created_at, started_at, completed_at
		FROM task_runs
		WHERE id = ?
	`, taskID)

	run, err := scanTaskRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("task run not found: %s", taskID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query task run: %w", err)
	}
	return run, nil
}

// ListTaskRuns returns archived tasks, most recently completed first.
// A limit <= 0 returns everything.
func (s *SQLiteStore) ListTaskRuns(ctx context.Context, limit int) ([]TaskRun, error) {
	query := `
		SELECT id, name, priority, status, retry_count, depends_on, result, error, created_at, started_at, completed_at
		FROM task_runs
		ORDER BY completed_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list task runs: %w", err)
	}
	defer rows.Close()

	var runs []TaskRun
	for rows.Next() {
		run, err := scanTaskRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// rowScanner covers both sql.Row and sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTaskRun(row rowScanner) (*TaskRun, error) {
	var run TaskRun
	var dependsOn string
	err := row.Scan(&run.ID, &run.Name, &run.Priority, &run.Status, &run.RetryCount,
		&dependsOn, &run.Result, &run.Error, &run.CreatedAt, &run.StartedAt, &run.CompletedAt)
	if err != nil {
		return nil, err
	}
	if dependsOn != "" {
		run.DependsOn = strings.Split(dependsOn, ",")
	}
	return &run, nil
}
