package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/akarsh/gamepilot/internal/events"
)

// Logger is the narrow logging interface the scheduler writes to.
type Logger interface {
	Infof(format string, args ...any)
	Errorf(format string, args ...any)
}

// nopLogger discards everything; used when no logger is configured.
type nopLogger struct{}

func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}

// Archiver receives terminal tasks evicted from the bounded registry.
type Archiver interface {
	ArchiveTask(ctx context.Context, t *Task) error
}

// Config configures a Scheduler instance.
type Config struct {
	MaxConcurrency int           // Run slots; defaults to 4
	Tick           time.Duration // Scheduling tick; defaults to 100ms
	CPUCeiling     float64       // Percent; 0 disables resource gating
	MemoryCeiling  float64       // Percent; 0 disables resource gating
	RetryBaseDelay time.Duration // First backoff delay; defaults to 100ms
	CancelGrace    time.Duration // Wait for cooperative cancellation; defaults to 5s
	RetentionSize  int           // Terminal registry bound; defaults to 256

	Sampler  ResourceSampler // Defaults to host sampling when ceilings are set
	Bus      *events.Bus     // Optional lifecycle notification bus
	Logger   Logger          // Optional; defaults to a no-op logger
	Archiver Archiver        // Optional sink for evicted terminal tasks
}

func (c *Config) applyDefaults() {
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = 4
	}
	if c.Tick <= 0 {
		c.Tick = 100 * time.Millisecond
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = 100 * time.Millisecond
	}
	if c.CancelGrace <= 0 {
		c.CancelGrace = 5 * time.Second
	}
	if c.RetentionSize <= 0 {
		c.RetentionSize = 256
	}
	if c.Logger == nil {
		c.Logger = nopLogger{}
	}
	if c.Sampler == nil && (c.CPUCeiling > 0 || c.MemoryCeiling > 0) {
		c.Sampler = systemSampler{}
	}
}

// Statistics is a point-in-time snapshot of scheduler counters.
type Statistics struct {
	Pending        int // Waiting on dependencies or a retry delay
	Ready          int // Queued, waiting for admission
	Running        int
	Completed      int // Includes archived/evicted tasks
	Failed         int // FAILED and TIMEOUT, includes archived/evicted tasks
	QueueDepth     int // Same as Ready; exposed for monitoring parity
	MaxConcurrency int // Configured run slots
}

// Scheduler coordinates dependency-aware, priority-ordered task execution
// under resource admission control. Instances are created with New, own all
// of their state, and are safe for concurrent use.
type Scheduler struct {
	cfg    Config
	admit  *AdmissionController
	bus    *events.Bus
	logger Logger

	mu            sync.Mutex
	tasks         map[string]*Task // Live tasks: pending, ready, running
	terminal      map[string]*Task // Bounded terminal registry
	terminalOrder []string         // FIFO eviction order
	tracker       *depTracker
	ready         *readyQueue
	timers        map[string]*time.Timer // Pending retry re-entries
	completed     int
	failed        int
	started       bool
	stopped       bool

	runCtx    context.Context
	runCancel context.CancelFunc
	wake      chan struct{}
	loopDone  chan struct{}
	execWG    sync.WaitGroup
}

// New creates a Scheduler. Call Start before submitting work and Stop to
// shut it down; there are no package-level scheduler instances.
func New(cfg Config) *Scheduler {
	cfg.applyDefaults()
	return &Scheduler{
		cfg:      cfg,
		admit:    NewAdmissionController(cfg.MaxConcurrency, cfg.CPUCeiling, cfg.MemoryCeiling, cfg.Sampler),
		bus:      cfg.Bus,
		logger:   cfg.Logger,
		tasks:    make(map[string]*Task),
		terminal: make(map[string]*Task),
		tracker:  newDepTracker(),
		ready:    newReadyQueue(),
		timers:   make(map[string]*time.Timer),
		wake:     make(chan struct{}, 1),
		loopDone: make(chan struct{}),
	}
}

// Start launches the coordinating loop.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrSchedulerStopped
	}
	if s.started {
		return errors.New("scheduler already started")
	}
	s.started = true
	s.runCtx, s.runCancel = context.WithCancel(context.Background())
	go s.loop()
	return nil
}

// Stop cancels all running tasks and waits for the loop and execution
// goroutines to drain, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.stopped = true
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()

	s.runCancel()

	drained := make(chan struct{})
	go func() {
		s.execWG.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-s.loopDone:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// Submit validates a task spec and enters it into the scheduling pipeline.
// It returns the assigned task ID, or a ValidationError /
// DependencyCycleError without side effects.
func (s *Scheduler) Submit(spec TaskSpec) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return "", ErrSchedulerStopped
	}

	if spec.Work == nil {
		return "", &ValidationError{Reason: "work function is required"}
	}
	if spec.Timeout < 0 {
		return "", &ValidationError{Reason: "timeout must not be negative"}
	}
	if spec.MaxRetries < 0 {
		return "", &ValidationError{Reason: "max retries must not be negative"}
	}
	if spec.Priority < PriorityLowest || spec.Priority > PriorityHighest {
		return "", &ValidationError{Reason: fmt.Sprintf("priority %d out of range", spec.Priority)}
	}

	id := spec.ID
	if id == "" {
		id = uuid.NewString()
	}
	if _, dup := s.tasks[id]; dup {
		return "", &ValidationError{Reason: fmt.Sprintf("task ID %q already exists", id)}
	}
	if _, dup := s.terminal[id]; dup {
		return "", &ValidationError{Reason: fmt.Sprintf("task ID %q already exists", id)}
	}

	var unmet []string
	blocked := false
	for _, dep := range spec.DependsOn {
		if dep == id {
			return "", &DependencyCycleError{TaskID: id, Cause: errors.New("task depends on itself")}
		}
		if done, ok := s.terminal[dep]; ok {
			if done.Status != StatusCompleted {
				// The prerequisite already ended in a non-success state;
				// this task can never be promoted.
				blocked = true
			}
			continue
		}
		if _, ok := s.tasks[dep]; !ok {
			return "", &ValidationError{Reason: fmt.Sprintf("unknown dependency %q", dep)}
		}
		unmet = append(unmet, dep)
	}

	if err := validateGraph(s.tasks, id, spec.DependsOn); err != nil {
		return "", &DependencyCycleError{TaskID: id, Cause: err}
	}

	name := spec.Name
	if name == "" {
		name = id
	}
	t := &Task{
		ID:         id,
		Name:       name,
		Priority:   spec.Priority,
		DependsOn:  append([]string(nil), spec.DependsOn...),
		Timeout:    spec.Timeout,
		MaxRetries: spec.MaxRetries,
		Metadata:   spec.Metadata,
		Status:     StatusPending,
		CreatedAt:  time.Now(),
		work:       spec.Work,
		done:       make(chan struct{}),
		schedule:   newRetrySchedule(s.cfg.RetryBaseDelay),
	}
	s.tasks[id] = t

	s.publish(events.TopicTask, events.TaskSubmittedEvent{
		ID:        id,
		Name:      name,
		Priority:  t.Priority.String(),
		DependsOn: t.DependsOn,
		Timestamp: time.Now(),
	})

	switch {
	case blocked:
		s.finalizeLocked(t, StatusCancelled, nil, &CancellationError{TaskID: id})
	case len(unmet) == 0:
		s.promoteLocked(t)
		s.wakeLoop()
	default:
		s.tracker.add(id, unmet)
	}
	return id, nil
}

// Cancel removes a queued task without execution, or signals cooperative
// cancellation to a running one. It returns true unless the task is unknown
// or already terminal.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	t, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return false
	}

	if t.Status == StatusRunning {
		cancel := t.cancel
		s.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		return true
	}

	if timer, ok := s.timers[id]; ok {
		timer.Stop()
		delete(s.timers, id)
	}
	s.tracker.remove(id)
	s.finalizeLocked(t, StatusCancelled, nil, &CancellationError{TaskID: id})
	s.cancelBlockedLocked(id)
	s.mu.Unlock()
	return true
}

// Status reports the current state of a task.
func (s *Scheduler) Status(id string) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[id]; ok {
		return t.Status, nil
	}
	if t, ok := s.terminal[id]; ok {
		return t.Status, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownTask, id)
}

// Task returns a snapshot of a task, or false if it is unknown (including
// after archival eviction).
func (s *Scheduler) Task(id string) (*Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[id]; ok {
		return cloneTask(t), true
	}
	if t, ok := s.terminal[id]; ok {
		return cloneTask(t), true
	}
	return nil, false
}

// Result returns the success payload of a completed task. For failed,
// timed-out, or cancelled tasks it returns the captured error; for tasks
// still in flight it returns ErrNotCompleted.
func (s *Scheduler) Result(id string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.terminal[id]; ok {
		if t.Status == StatusCompleted {
			return t.Result, nil
		}
		return nil, t.Err
	}
	if _, ok := s.tasks[id]; ok {
		return nil, ErrNotCompleted
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownTask, id)
}

// AwaitResult blocks until the task reaches a terminal status or ctx
// expires, then returns its result or captured error.
func (s *Scheduler) AwaitResult(ctx context.Context, id string) (any, error) {
	s.mu.Lock()
	t, ok := s.tasks[id]
	if !ok {
		t, ok = s.terminal[id]
	}
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}
	doneCh := t.done
	s.mu.Unlock()

	select {
	case <-doneCh:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	switch t.Status {
	case StatusCompleted:
		return t.Result, nil
	default:
		return nil, t.Err
	}
}

// Statistics returns current scheduler counters.
func (s *Scheduler) Statistics() Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := Statistics{
		Completed:      s.completed,
		Failed:         s.failed,
		MaxConcurrency: s.cfg.MaxConcurrency,
	}
	for _, t := range s.tasks {
		switch t.Status {
		case StatusPending:
			stats.Pending++
		case StatusReady:
			stats.Ready++
		case StatusRunning:
			stats.Running++
		}
	}
	stats.QueueDepth = stats.Ready
	return stats
}

// loop is the coordinating process: it dispatches on a fixed tick and on
// event-driven wakeups from submissions, completions, and retry re-entries.
func (s *Scheduler) loop() {
	defer close(s.loopDone)
	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()
	for {
		s.dispatch()
		select {
		case <-s.runCtx.Done():
			return
		case <-ticker.C:
		case <-s.wake:
		}
	}
}

// admittedTask pairs a task with its per-run cancellation context.
type admittedTask struct {
	task    *Task
	ctx     context.Context
	attempt int
}

// dispatch pops ready tasks while admission allows and starts their
// execution. A task popped but denied admission is pushed back unmodified
// and reconsidered on the next tick.
func (s *Scheduler) dispatch() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	var admitted []admittedTask
	for {
		t := s.ready.pop()
		if t == nil {
			break
		}
		if t.Status != StatusReady {
			// Cancelled while queued; the heap drops it lazily.
			continue
		}
		if !s.admit.TryAcquire() {
			s.ready.push(t)
			break
		}
		t.Status = StatusRunning
		if t.StartedAt.IsZero() {
			t.StartedAt = time.Now()
		}
		ctx, cancel := context.WithCancel(s.runCtx)
		t.cancel = cancel
		// The WaitGroup counter must grow under the lock: Stop flips
		// s.stopped under the same lock before it waits, so it can never
		// observe a drained counter while admissions are still in flight.
		s.execWG.Add(1)
		admitted = append(admitted, admittedTask{task: t, ctx: ctx, attempt: t.RetryCount + 1})
	}
	s.mu.Unlock()

	for _, a := range admitted {
		go s.execute(a)
	}
}

// execute runs one admitted task attempt under the retry/timeout guard and
// applies the outcome.
func (s *Scheduler) execute(a admittedTask) {
	defer s.execWG.Done()
	t := a.task

	s.publish(events.TopicTask, events.TaskStartedEvent{
		ID:        t.ID,
		Name:      t.Name,
		Attempt:   a.attempt,
		Timestamp: time.Now(),
	})
	s.logger.Infof("task %s starting (attempt %d)", t.ID, a.attempt)

	outcome := runGuarded(a.ctx, t, s.cfg.CancelGrace)
	s.admit.Release()
	s.applyOutcome(t, outcome)
	s.wakeLoop()
}

// applyOutcome updates the task's state machine after an attempt: success
// promotes dependents, a retriable failure schedules backoff re-entry, and
// exhaustion finalizes the task and cancels tasks it permanently blocks.
func (s *Scheduler) applyOutcome(t *Task, outcome attemptOutcome) {
	s.mu.Lock()

	switch {
	case outcome.cancelled:
		s.finalizeLocked(t, StatusCancelled, nil, &CancellationError{TaskID: t.ID})
		s.cancelBlockedLocked(t.ID)
		s.mu.Unlock()
		s.logger.Infof("task %s cancelled", t.ID)

	case outcome.err == nil:
		s.finalizeLocked(t, StatusCompleted, outcome.result, nil)
		for _, readyID := range s.tracker.satisfy(t.ID) {
			if dependent, ok := s.tasks[readyID]; ok && dependent.Status == StatusPending {
				s.promoteLocked(dependent)
			}
		}
		duration := t.CompletedAt.Sub(t.StartedAt)
		s.mu.Unlock()
		s.publish(events.TopicTask, events.TaskCompletedEvent{
			ID:        t.ID,
			Name:      t.Name,
			Duration:  duration,
			Timestamp: time.Now(),
		})
		s.logger.Infof("task %s completed in %s", t.ID, duration)

	case t.RetryCount < t.MaxRetries:
		t.RetryCount++
		t.Status = StatusPending
		t.cancel = nil
		delay := t.schedule.next()
		attempt := t.RetryCount
		id := t.ID
		s.timers[id] = time.AfterFunc(delay, func() { s.requeue(id) })
		s.mu.Unlock()
		s.publish(events.TopicTask, events.TaskRetryingEvent{
			ID:        id,
			Name:      t.Name,
			Attempt:   attempt,
			Delay:     delay,
			Err:       outcome.err,
			Timestamp: time.Now(),
		})
		s.logger.Infof("task %s failed, retrying in %s (%d/%d): %v", id, delay, attempt, t.MaxRetries, outcome.err)

	default:
		status := StatusFailed
		var terminalErr error
		if outcome.timedOut {
			status = StatusTimeout
			terminalErr = &TimeoutError{TaskID: t.ID, Timeout: t.Timeout}
		} else {
			terminalErr = &ExecutionError{TaskID: t.ID, Attempts: t.RetryCount + 1, Err: outcome.err}
		}
		s.finalizeLocked(t, status, nil, terminalErr)
		s.cancelBlockedLocked(t.ID)
		attempts := t.RetryCount + 1
		s.mu.Unlock()
		s.publish(events.TopicTask, events.TaskFailedEvent{
			ID:        t.ID,
			Name:      t.Name,
			Err:       terminalErr,
			TimedOut:  outcome.timedOut,
			Attempts:  attempts,
			Timestamp: time.Now(),
		})
		s.logger.Errorf("task %s ended %s after %d attempt(s): %v", t.ID, status, attempts, terminalErr)
	}
	s.publishStats()
}

// requeue moves a task back to the ready queue after its backoff delay.
func (s *Scheduler) requeue(id string) {
	s.mu.Lock()
	delete(s.timers, id)
	t, ok := s.tasks[id]
	if !ok || t.Status != StatusPending {
		// Cancelled or finalized while the delay timer was pending.
		s.mu.Unlock()
		return
	}
	s.promoteLocked(t)
	s.mu.Unlock()
	s.wakeLoop()
}

// promoteLocked moves a task whose dependencies are satisfied into the
// ready queue. Caller holds s.mu.
func (s *Scheduler) promoteLocked(t *Task) {
	t.Status = StatusReady
	s.ready.push(t)
}

// cancelBlockedLocked cancels every pending task made permanently
// unreachable by a non-success terminal transition of id. Caller holds s.mu.
func (s *Scheduler) cancelBlockedLocked(id string) {
	for _, blockedID := range s.tracker.block(id) {
		t, ok := s.tasks[blockedID]
		if !ok || t.Status.Terminal() {
			continue
		}
		s.finalizeLocked(t, StatusCancelled, nil, &CancellationError{TaskID: blockedID})
		s.logger.Infof("task %s cancelled: prerequisite %s will never complete", blockedID, id)
	}
}

// finalizeLocked applies a terminal status, moves the task into the bounded
// registry, and evicts the oldest entries past the retention size. Caller
// holds s.mu.
func (s *Scheduler) finalizeLocked(t *Task, status Status, result any, err error) {
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.Status = status
	t.Result = result
	t.Err = err
	t.CompletedAt = time.Now()

	delete(s.tasks, t.ID)
	if timer, ok := s.timers[t.ID]; ok {
		timer.Stop()
		delete(s.timers, t.ID)
	}
	s.terminal[t.ID] = t
	s.terminalOrder = append(s.terminalOrder, t.ID)

	switch status {
	case StatusCompleted:
		s.completed++
	case StatusFailed, StatusTimeout:
		s.failed++
	case StatusCancelled:
		s.publishCancelledLocked(t)
	}
	close(t.done)

	for len(s.terminalOrder) > s.cfg.RetentionSize {
		oldest := s.terminalOrder[0]
		s.terminalOrder = s.terminalOrder[1:]
		evicted, ok := s.terminal[oldest]
		if !ok {
			continue
		}
		delete(s.terminal, oldest)
		if s.cfg.Archiver != nil {
			go s.archive(cloneTask(evicted))
		}
	}
}

func (s *Scheduler) publishCancelledLocked(t *Task) {
	s.publish(events.TopicTask, events.TaskCancelledEvent{
		ID:        t.ID,
		Name:      t.Name,
		Timestamp: time.Now(),
	})
}

// archive hands an evicted task to the configured archiver off the
// scheduler lock.
func (s *Scheduler) archive(t *Task) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.cfg.Archiver.ArchiveTask(ctx, t); err != nil {
		s.logger.Errorf("archiving task %s: %v", t.ID, err)
	}
}

func (s *Scheduler) publishStats() {
	if s.bus == nil {
		return
	}
	stats := s.Statistics()
	s.bus.Publish(events.TopicScheduler, events.StatsEvent{
		Pending:   stats.Pending,
		Ready:     stats.Ready,
		Running:   stats.Running,
		Completed: stats.Completed,
		Failed:    stats.Failed,
		Timestamp: time.Now(),
	})
}

func (s *Scheduler) publish(topic string, event events.Event) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(topic, event)
}

func (s *Scheduler) wakeLoop() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
