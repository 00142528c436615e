package scheduler

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnknownTask is returned when a task ID is not tracked by the scheduler.
var ErrUnknownTask = errors.New("unknown task")

// ErrNotCompleted is returned by Result when the task has not completed.
var ErrNotCompleted = errors.New("task not completed")

// ErrSchedulerStopped is returned for operations on a stopped scheduler.
var ErrSchedulerStopped = errors.New("scheduler stopped")

// ValidationError rejects a malformed submission (missing work function,
// negative timeout, unknown dependency ID). Raised synchronously by Submit.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid task submission: %s", e.Reason)
}

// DependencyCycleError rejects a submission that would create a dependency
// cycle. Raised synchronously by Submit; the task never enters the pending set.
type DependencyCycleError struct {
	TaskID string
	Cause  error
}

func (e *DependencyCycleError) Error() string {
	return fmt.Sprintf("task %q would create a dependency cycle: %v", e.TaskID, e.Cause)
}

func (e *DependencyCycleError) Unwrap() error { return e.Cause }

// ExecutionError captures a work item's own failure after the retry budget
// is exhausted.
type ExecutionError struct {
	TaskID   string
	Attempts int
	Err      error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("task %q failed after %d attempt(s): %v", e.TaskID, e.Attempts, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// TimeoutError records a deadline exceeded during execution. It counts
// against the retry budget exactly like an ExecutionError.
type TimeoutError struct {
	TaskID  string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("task %q exceeded its %s deadline", e.TaskID, e.Timeout)
}

// CancellationError is surfaced when a caller awaits the result of a task
// that was cancelled.
type CancellationError struct {
	TaskID string
}

func (e *CancellationError) Error() string {
	return fmt.Sprintf("task %q was cancelled", e.TaskID)
}

// ChainError reports the step at which a chain aborted.
type ChainError struct {
	Step   int // Zero-based index into the executed list
	TaskID string
	Err    error
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("chain failed at step %d (%s): %v", e.Step+1, e.TaskID, e.Err)
}

func (e *ChainError) Unwrap() error { return e.Err }
