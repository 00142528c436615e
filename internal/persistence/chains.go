package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/akarsh/gamepilot/internal/scheduler"
)

// ChainStep is the archived record of one step in a chain run.
type ChainStep struct {
	Index    int
	TaskID   string
	Name     string
	Outcome  string
	Attempts int
	Error    string
}

// ChainRun is the archived record of one finished chain.
type ChainRun struct {
	ID         int64
	Chain      string
	StepsTotal int
	Passed     int
	Failed     int
	Skipped    int
	Aborted    bool
	FinishedAt time.Time
	Steps      []ChainStep
}

// SaveChainRun archives a finished chain run with its per-step outcomes and
// returns the run's archive ID.
func (s *SQLiteStore) SaveChainRun(ctx context.Context, result *scheduler.ChainResult) (int64, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO chain_runs (chain, steps, passed, failed, skipped, aborted)
		VALUES (?, ?, ?, ?, ?, ?)
	`, result.Chain, len(result.Steps), result.Passed, result.Failed, result.Skipped, boolToInt(result.Aborted))
	if err != nil {
		return 0, fmt.Errorf("failed to insert chain run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read chain run ID: %w", err)
	}

	for i, step := range result.Steps {
		errorStr := ""
		if step.Err != nil {
			errorStr = step.Err.Error()
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO chain_steps (run_id, step_index, task_id, name, outcome, attempts, error)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, runID, i, step.TaskID, step.Name, step.Outcome, step.Attempts, errorStr)
		if err != nil {
			return 0, fmt.Errorf("failed to insert chain step %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return runID, nil
}

// GetChainRun retrieves one archived chain run with its steps.
func (s *SQLiteStore) GetChainRun(ctx context.Context, runID int64) (*ChainRun, error) {
	var run ChainRun
	var aborted int
	err := s.db.QueryRowContext(ctx, `
		SELECT id, chain, steps, passed, failed, skipped, aborted, finished_at
		FROM chain_runs
		WHERE id = ?
	`, runID).Scan(&run.ID, &run.Chain, &run.StepsTotal, &run.Passed, &run.Failed, &run.Skipped, &aborted, &run.FinishedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("chain run not found: %d", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query chain run: %w", err)
	}
	run.Aborted = aborted != 0

	rows, err := s.db.QueryContext(ctx, `
		SELECT step_index, task_id, name, outcome, attempts, error
		FROM chain_steps
		WHERE run_id = ?
		ORDER BY step_index
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chain steps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var step ChainStep
		if err := rows.Scan(&step.Index, &step.TaskID, &step.Name, &step.Outcome, &step.Attempts, &step.Error); err != nil {
			return nil, fmt.Errorf("failed to scan chain step: %w", err)
		}
		run.Steps = append(run.Steps, step)
	}
	return &run, rows.Err()
}

// ListChainRuns returns archived chain runs without their steps, most
// recent first. A limit <= 0 returns everything.
func (s *SQLiteStore) ListChainRuns(ctx context.Context, limit int) ([]ChainRun, error) {
	query := `
		SELECT id, chain, steps, passed, failed, skipped, aborted, finished_at
		FROM chain_runs
		ORDER BY finished_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list chain runs: %w", err)
	}
	defer rows.Close()

	var runs []ChainRun
	for rows.Next() {
		var run ChainRun
		var aborted int
		if err := rows.Scan(&run.ID, &run.Chain, &run.StepsTotal, &run.Passed, &run.Failed, &run.Skipped, &aborted, &run.FinishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chain run: %w", err)
		}
		run.Aborted = aborted != 0
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
