package scheduler

import (
	"context"
	"time"
)

// Status represents the current state of a task.
type Status int

const (
	StatusPending   Status = iota // Submitted, waiting for dependencies
	StatusReady                   // All dependencies resolved, queued
	StatusRunning                 // Admitted and executing
	StatusCompleted               // Finished successfully
	StatusFailed                  // Finished with error, retry budget exhausted
	StatusTimeout                 // Final attempt exceeded its deadline
	StatusCancelled               // Removed before or during execution
)

// String returns a human-readable status name.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusReady:
		return "READY"
	case StatusRunning:
		return "RUNNING"
	case StatusCompleted:
		return "COMPLETED"
	case StatusFailed:
		return "FAILED"
	case StatusTimeout:
		return "TIMEOUT"
	case StatusCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether a task in this status will never run again.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusTimeout, StatusCancelled:
		return true
	}
	return false
}

// Priority orders ready tasks. Higher values are scheduled first.
type Priority int

const (
	PriorityLowest  Priority = 0
	PriorityLow     Priority = 1
	PriorityNormal  Priority = 2
	PriorityHigh    Priority = 3
	PriorityHighest Priority = 4
)

// String returns a human-readable priority name.
func (p Priority) String() string {
	switch p {
	case PriorityLowest:
		return "LOWEST"
	case PriorityLow:
		return "LOW"
	case PriorityNormal:
		return "NORMAL"
	case PriorityHigh:
		return "HIGH"
	case PriorityHighest:
		return "HIGHEST"
	default:
		return "UNKNOWN"
	}
}

// WorkFunc is the opaque operation a task performs. The scheduler never
// inspects its semantics; it only observes the returned value or error.
// Implementations should honor ctx cancellation.
type WorkFunc func(ctx context.Context) (any, error)

// TaskSpec describes a task at submission time.
type TaskSpec struct {
	ID         string   // Optional explicit ID; generated when empty
	Name       string   // Human-readable name
	Work       WorkFunc // Required
	Priority   Priority
	DependsOn  []string          // IDs of tasks that must complete first
	Timeout    time.Duration     // Per-attempt deadline; 0 means unbounded
	MaxRetries int               // Re-execution budget after failure
	Metadata   map[string]string // Caller-owned annotations
}

// Task is the unit-of-work record tracked by the scheduler.
type Task struct {
	ID          string
	Name        string
	Priority    Priority
	DependsOn   []string
	Timeout     time.Duration
	MaxRetries  int
	RetryCount  int
	Metadata    map[string]string
	Status      Status
	CreatedAt   time.Time
	StartedAt   time.Time // Zero until first admitted
	CompletedAt time.Time // Zero until terminal
	Result      any       // Success payload; nil unless StatusCompleted
	Err         error     // Captured failure; nil unless failed/timed out/cancelled

	work     WorkFunc
	cancel   context.CancelFunc // Set while running
	done     chan struct{}      // Closed when the task reaches a terminal status
	schedule *retrySchedule     // Per-task backoff delays
}

// cloneTask returns a snapshot safe to hand to callers. The work function
// and internal channels are not copied.
func cloneTask(t *Task) *Task {
	if t == nil {
		return nil
	}
	cp := *t
	cp.work = nil
	cp.cancel = nil
	cp.done = nil
	cp.schedule = nil
	if t.DependsOn != nil {
		cp.DependsOn = append([]string(nil), t.DependsOn...)
	}
	if t.Metadata != nil {
		cp.Metadata = make(map[string]string, len(t.Metadata))
		for k, v := range t.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}
