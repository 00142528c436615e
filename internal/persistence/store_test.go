package persistence

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/akarsh/gamepilot/internal/scheduler"
)

func newMemoryStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewMemoryStore(context.Background())
	if err != nil {
		t.Fatalf("NewMemoryStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleTask(id string, status scheduler.Status) *scheduler.Task {
	now := time.Date(2026, 2, 10, 9, 30, 0, 0, time.UTC)
	return &scheduler.Task{
		ID:          id,
		Name:        "launch game",
		Priority:    scheduler.PriorityHigh,
		DependsOn:   []string{"setup", "patch"},
		RetryCount:  1,
		Status:      status,
		Result:      "exit 0",
		CreatedAt:   now,
		StartedAt:   now.Add(time.Second),
		CompletedAt: now.Add(30 * time.Second),
	}
}

// TestArchiveAndGetTaskRun verifies the round trip of a completed task.
func TestArchiveAndGetTaskRun(t *testing.T) {
	store := newMemoryStore(t)
	ctx := context.Background()

	task := sampleTask("run-1", scheduler.StatusCompleted)
	if err := store.ArchiveTask(ctx, task); err != nil {
		t.Fatalf("ArchiveTask: %v", err)
	}

	run, err := store.GetTaskRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetTaskRun: %v", err)
	}

	if run.Name != "launch game" {
		t.Errorf("name = %q, want 'launch game'", run.Name)
	}
	if run.Status != "COMPLETED" {
		t.Errorf("status = %q, want COMPLETED", run.Status)
	}
	if run.Priority != int(scheduler.PriorityHigh) {
		t.Errorf("priority = %d, want %d", run.Priority, int(scheduler.PriorityHigh))
	}
	if run.RetryCount != 1 {
		t.Errorf("retry count = %d, want 1", run.RetryCount)
	}
	if len(run.DependsOn) != 2 || run.DependsOn[0] != "setup" || run.DependsOn[1] != "patch" {
		t.Errorf("depends_on = %v, want [setup patch]", run.DependsOn)
	}
	if run.Result != "exit 0" {
		t.Errorf("result = %q, want 'exit 0'", run.Result)
	}
	if run.Error != "" {
		t.Errorf("error = %q, want empty", run.Error)
	}
}

// TestArchiveTaskWithError verifies the captured error string survives.
func TestArchiveTaskWithError(t *testing.T) {
	store := newMemoryStore(t)
	ctx := context.Background()

	task := sampleTask("run-2", scheduler.StatusFailed)
	task.Result = nil
	task.Err = errors.New("login window never appeared")
	if err := store.ArchiveTask(ctx, task); err != nil {
		t.Fatalf("ArchiveTask: %v", err)
	}

	run, err := store.GetTaskRun(ctx, "run-2")
	if err != nil {
		t.Fatalf("GetTaskRun: %v", err)
	}
	if run.Status != "FAILED" {
		t.Errorf("status = %q, want FAILED", run.Status)
	}
	if run.Error != "login window never appeared" {
		t.Errorf("error = %q, want the original message", run.Error)
	}
	if run.Result != "" {
		t.Errorf("result = %q, want empty", run.Result)
	}
}

// TestArchiveTaskIdempotent verifies re-archiving the same ID updates
// instead of failing.
func TestArchiveTaskIdempotent(t *testing.T) {
	store := newMemoryStore(t)
	ctx := context.Background()

	task := sampleTask("run-3", scheduler.StatusFailed)
	if err := store.ArchiveTask(ctx, task); err != nil {
		t.Fatalf("first ArchiveTask: %v", err)
	}

	task.Status = scheduler.StatusCompleted
	task.RetryCount = 2
	if err := store.ArchiveTask(ctx, task); err != nil {
		t.Fatalf("second ArchiveTask: %v", err)
	}

	run, err := store.GetTaskRun(ctx, "run-3")
	if err != nil {
		t.Fatalf("GetTaskRun: %v", err)
	}
	if run.Status != "COMPLETED" {
		t.Errorf("status = %q, want the updated COMPLETED", run.Status)
	}
	if run.RetryCount != 2 {
		t.Errorf("retry count = %d, want 2", run.RetryCount)
	}
}

// TestGetTaskRunNotFound verifies missing IDs return an error.
func TestGetTaskRunNotFound(t *testing.T) {
	store := newMemoryStore(t)
	if _, err := store.GetTaskRun(context.Background(), "ghost"); err == nil {
		t.Fatal("expected error for unknown task run")
	}
}

// TestListTaskRuns verifies ordering and the limit clause.
func TestListTaskRuns(t *testing.T) {
	store := newMemoryStore(t)
	ctx := context.Background()

	base := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		task := sampleTask(id, scheduler.StatusCompleted)
		task.CompletedAt = base.Add(time.Duration(i) * time.Hour)
		if err := store.ArchiveTask(ctx, task); err != nil {
			t.Fatalf("ArchiveTask %s: %v", id, err)
		}
	}

	runs, err := store.ListTaskRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListTaskRuns: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("got %d runs, want 3", len(runs))
	}
	if runs[0].ID != "new" || runs[2].ID != "old" {
		t.Errorf("order = [%s %s %s], want most recent first", runs[0].ID, runs[1].ID, runs[2].ID)
	}

	limited, err := store.ListTaskRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListTaskRuns limited: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("got %d runs with limit 2, want 2", len(limited))
	}
}

// TestSaveAndGetChainRun verifies a chain run round trip with its steps.
func TestSaveAndGetChainRun(t *testing.T) {
	store := newMemoryStore(t)
	ctx := context.Background()

	result := &scheduler.ChainResult{
		Chain:   "daily",
		Passed:  1,
		Failed:  1,
		Skipped: 1,
		Aborted: true,
		Steps: []scheduler.StepResult{
			{TaskID: "launch", Name: "launch", Outcome: scheduler.StepPassed, Attempts: 1},
			{TaskID: "login", Name: "login", Outcome: scheduler.StepFailed, Attempts: 3, Err: errors.New("captcha")},
			{TaskID: "daily-tasks", Name: "daily-tasks", Outcome: scheduler.StepSkipped},
		},
	}

	runID, err := store.SaveChainRun(ctx, result)
	if err != nil {
		t.Fatalf("SaveChainRun: %v", err)
	}

	run, err := store.GetChainRun(ctx, runID)
	if err != nil {
		t.Fatalf("GetChainRun: %v", err)
	}

	if run.Chain != "daily" {
		t.Errorf("chain = %q, want daily", run.Chain)
	}
	if !run.Aborted {
		t.Error("expected aborted run")
	}
	if run.StepsTotal != 3 || len(run.Steps) != 3 {
		t.Fatalf("steps = %d/%d, want 3/3", run.StepsTotal, len(run.Steps))
	}
	if run.Steps[1].Outcome != scheduler.StepFailed || run.Steps[1].Attempts != 3 {
		t.Errorf("step 2 = %+v, want failed with 3 attempts", run.Steps[1])
	}
	if run.Steps[1].Error != "captcha" {
		t.Errorf("step 2 error = %q, want captcha", run.Steps[1].Error)
	}
	if run.Steps[2].Outcome != scheduler.StepSkipped {
		t.Errorf("step 3 outcome = %q, want skipped", run.Steps[2].Outcome)
	}
}

// TestListChainRuns verifies listing without steps.
func TestListChainRuns(t *testing.T) {
	store := newMemoryStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result := &scheduler.ChainResult{
			Chain:  "daily",
			Passed: 2,
			Steps: []scheduler.StepResult{
				{TaskID: "a", Name: "a", Outcome: scheduler.StepPassed, Attempts: 1},
				{TaskID: "b", Name: "b", Outcome: scheduler.StepPassed, Attempts: 1},
			},
		}
		if _, err := store.SaveChainRun(ctx, result); err != nil {
			t.Fatalf("SaveChainRun %d: %v", i, err)
		}
	}

	runs, err := store.ListChainRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListChainRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].ID <= runs[1].ID {
		t.Errorf("order = [%d %d], want most recent first", runs[0].ID, runs[1].ID)
	}
	if len(runs[0].Steps) != 0 {
		t.Errorf("list should not hydrate steps, got %d", len(runs[0].Steps))
	}
}

// TestNewSQLiteStoreCreatesFile verifies the file-backed store and parent
// directory creation.
func TestNewSQLiteStoreCreatesFile(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "nested", "runs.db")

	store, err := NewSQLiteStore(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Fatalf("database file was not created: %s", dbPath)
	}

	task := sampleTask("file-run", scheduler.StatusCompleted)
	if err := store.ArchiveTask(context.Background(), task); err != nil {
		t.Fatalf("ArchiveTask on file store: %v", err)
	}
}
