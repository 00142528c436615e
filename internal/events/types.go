package events

import (
	"time"
)

// Event is the base interface for all scheduler lifecycle events.
type Event interface {
	EventType() string
	TaskID() string
}

// Topic constants.
const (
	TopicTask      = "task"
	TopicChain     = "chain"
	TopicScheduler = "scheduler"
)

// Event type constants.
const (
	EventTypeTaskSubmitted = "task.submitted"
	EventTypeTaskStarted   = "task.started"
	EventTypeTaskCompleted = "task.completed"
	EventTypeTaskFailed    = "task.failed"
	EventTypeTaskRetrying  = "task.retrying"
	EventTypeTaskCancelled = "task.cancelled"
	EventTypeChainStep     = "chain.step"
	EventTypeChainFinished = "chain.finished"
	EventTypeStats         = "scheduler.stats"
)

// TaskSubmittedEvent is published when a task enters the scheduler.
type TaskSubmittedEvent struct {
	ID        string
	Name      string
	Priority  string
	DependsOn []string
	Timestamp time.Time
}

func (e TaskSubmittedEvent) EventType() string { return EventTypeTaskSubmitted }
func (e TaskSubmittedEvent) TaskID() string    { return e.ID }

// TaskStartedEvent is published when a task is admitted and begins execution.
type TaskStartedEvent struct {
	ID        string
	Name      string
	Attempt   int // 1-based attempt number
	Timestamp time.Time
}

func (e TaskStartedEvent) EventType() string { return EventTypeTaskStarted }
func (e TaskStartedEvent) TaskID() string    { return e.ID }

// TaskCompletedEvent is published when a task completes successfully.
type TaskCompletedEvent struct {
	ID        string
	Name      string
	Duration  time.Duration
	Timestamp time.Time
}

func (e TaskCompletedEvent) EventType() string { return EventTypeTaskCompleted }
func (e TaskCompletedEvent) TaskID() string    { return e.ID }

// TaskFailedEvent is published when a task exhausts its retry budget and
// ends FAILED or TIMEOUT.
type TaskFailedEvent struct {
	ID        string
	Name      string
	Err       error
	TimedOut  bool
	Attempts  int
	Timestamp time.Time
}

func (e TaskFailedEvent) EventType() string { return EventTypeTaskFailed }
func (e TaskFailedEvent) TaskID() string    { return e.ID }

// TaskRetryingEvent is published when a failed attempt schedules re-entry to
// the pending pipeline after its backoff delay.
type TaskRetryingEvent struct {
	ID        string
	Name      string
	Attempt   int // Attempts consumed so far
	Delay     time.Duration
	Err       error
	Timestamp time.Time
}

func (e TaskRetryingEvent) EventType() string { return EventTypeTaskRetrying }
func (e TaskRetryingEvent) TaskID() string    { return e.ID }

// TaskCancelledEvent is published when a task is removed before completion.
type TaskCancelledEvent struct {
	ID        string
	Name      string
	Timestamp time.Time
}

func (e TaskCancelledEvent) EventType() string { return EventTypeTaskCancelled }
func (e TaskCancelledEvent) TaskID() string    { return e.ID }

// ChainStepEvent is published after each step of a chain finishes.
type ChainStepEvent struct {
	Chain     string
	Step      int // Zero-based index into the chain's task list
	ID        string
	Outcome   string // "passed", "failed", or "skipped"
	Timestamp time.Time
}

func (e ChainStepEvent) EventType() string { return EventTypeChainStep }
func (e ChainStepEvent) TaskID() string    { return e.ID }

// ChainFinishedEvent is published when a chain run ends.
type ChainFinishedEvent struct {
	Chain     string
	Steps     int
	Passed    int
	Failed    int
	Skipped   int
	Aborted   bool // True when the stop policy cut the chain short
	Timestamp time.Time
}

func (e ChainFinishedEvent) EventType() string { return EventTypeChainFinished }
func (e ChainFinishedEvent) TaskID() string    { return "" }

// StatsEvent carries a periodic snapshot of scheduler counters.
type StatsEvent struct {
	Pending   int
	Ready     int
	Running   int
	Completed int
	Failed    int
	Timestamp time.Time
}

func (e StatsEvent) EventType() string { return EventTypeStats }
func (e StatsEvent) TaskID() string    { return "" }
