package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/akarsh/gamepilot/internal/events"
)

// ChainPolicy controls how a chain reacts to a failed step.
type ChainPolicy string

const (
	// PolicyContinue records the failure and moves on to the next step.
	PolicyContinue ChainPolicy = "continue"
	// PolicyStop skips every remaining step after a failure.
	PolicyStop ChainPolicy = "stop"
	// PolicyRetry re-runs a failed step up to the configured limit, then
	// behaves like PolicyStop.
	PolicyRetry ChainPolicy = "retry"
)

// Step outcomes reported in a ChainResult.
const (
	StepPassed  = "passed"
	StepFailed  = "failed"
	StepSkipped = "skipped"
)

// StepResult records what happened to one step of a chain run.
type StepResult struct {
	TaskID   string
	Name     string
	Outcome  string
	Attempts int // Submissions made for this step; 0 when skipped
	Err      error
}

// ChainResult summarizes a full chain run.
type ChainResult struct {
	Chain   string
	Steps   []StepResult
	Passed  int
	Failed  int
	Skipped int
	Aborted bool // True when the stop policy cut the run short
}

// ChainScheduler runs a registered list of tasks strictly one at a time, in
// order, on a dedicated single-slot scheduler core. Steps may declare
// dependencies on earlier steps; a step whose prerequisite did not pass is
// skipped rather than run.
type ChainScheduler struct {
	name        string
	sched       *Scheduler
	bus         *events.Bus
	stepRetries int

	specs  map[string]TaskSpec
	order  []string
	runSeq int
}

// NewChainScheduler creates a chain runner named name. stepRetries bounds
// the extra submissions PolicyRetry makes per failed step; values below 1
// default to 1. The scheduler config is forced to a single run slot.
func NewChainScheduler(name string, stepRetries int, cfg Config) *ChainScheduler {
	if stepRetries < 1 {
		stepRetries = 1
	}
	cfg.MaxConcurrency = 1
	return &ChainScheduler{
		name:        name,
		sched:       New(cfg),
		bus:         cfg.Bus,
		stepRetries: stepRetries,
		specs:       make(map[string]TaskSpec),
	}
}

// Start launches the underlying scheduler core.
func (c *ChainScheduler) Start() error { return c.sched.Start() }

// Stop shuts the underlying scheduler core down.
func (c *ChainScheduler) Stop(ctx context.Context) error { return c.sched.Stop(ctx) }

// AddTask registers a step. Chain steps need stable IDs so later steps can
// reference them, so an explicit ID is required.
func (c *ChainScheduler) AddTask(spec TaskSpec) error {
	if spec.ID == "" {
		return &ValidationError{Reason: "chain tasks require an explicit ID"}
	}
	if spec.Work == nil {
		return &ValidationError{Reason: "work function is required"}
	}
	if _, dup := c.specs[spec.ID]; dup {
		return &ValidationError{Reason: fmt.Sprintf("chain task ID %q already exists", spec.ID)}
	}
	for _, dep := range spec.DependsOn {
		if _, ok := c.specs[dep]; !ok {
			return &ValidationError{Reason: fmt.Sprintf("chain task %q depends on unregistered task %q", spec.ID, dep)}
		}
	}
	c.specs[spec.ID] = spec
	c.order = append(c.order, spec.ID)
	return nil
}

// ExecuteChain runs the given step IDs in order under the failure policy.
// A nil or empty ids slice runs every registered step in registration
// order. The returned ChainResult always covers every requested step; the
// error is non-nil when any step failed or the run was aborted.
func (c *ChainScheduler) ExecuteChain(ctx context.Context, ids []string, policy ChainPolicy) (*ChainResult, error) {
	if len(ids) == 0 {
		ids = c.order
	}
	for _, id := range ids {
		if _, ok := c.specs[id]; !ok {
			return nil, &ValidationError{Reason: fmt.Sprintf("unknown chain task %q", id)}
		}
	}

	// Each run namespaces its submissions so a registered chain can be
	// executed repeatedly; terminal records in the core are immutable and
	// keep their IDs.
	c.runSeq++
	run := c.runSeq

	result := &ChainResult{Chain: c.name, Steps: make([]StepResult, 0, len(ids))}
	passed := make(map[string]bool, len(ids))
	var firstErr error

	for i, id := range ids {
		spec := c.specs[id]

		if result.Aborted {
			c.recordStep(result, i, StepResult{TaskID: id, Name: stepName(spec), Outcome: StepSkipped})
			continue
		}
		if dep, ok := unmetDep(spec, passed); ok {
			c.recordStep(result, i, StepResult{
				TaskID:  id,
				Name:    stepName(spec),
				Outcome: StepSkipped,
				Err:     fmt.Errorf("prerequisite %q did not pass", dep),
			})
			continue
		}

		step := c.runStep(ctx, spec, policy, run)
		if step.Err != nil && ctx.Err() != nil {
			return result, ctx.Err()
		}
		if step.Outcome == StepPassed {
			passed[id] = true
		} else {
			if firstErr == nil {
				firstErr = &ChainError{Step: i, TaskID: id, Err: step.Err}
			}
			// PolicyRetry exhausts its budget inside runStep and then
			// cuts the chain short like PolicyStop.
			if policy != PolicyContinue {
				result.Aborted = true
			}
		}
		c.recordStep(result, i, step)
	}

	c.publishFinished(result)
	if firstErr != nil {
		return result, firstErr
	}
	return result, nil
}

// runStep submits one step to the single-slot core and waits for it. Under
// PolicyRetry a failed step is re-submitted with a fresh attempt ID until
// it passes or the retry budget runs out.
func (c *ChainScheduler) runStep(ctx context.Context, spec TaskSpec, policy ChainPolicy, run int) StepResult {
	step := StepResult{TaskID: spec.ID, Name: stepName(spec)}
	budget := 1
	if policy == PolicyRetry {
		budget += c.stepRetries
	}

	for attempt := 0; attempt < budget; attempt++ {
		submit := spec
		// Ordering and prerequisites are enforced here, step by step; the
		// single-slot core must not second-guess them against stale
		// records of earlier attempts.
		submit.DependsOn = nil
		submit.ID = fmt.Sprintf("%s#run%d", spec.ID, run)
		if attempt > 0 {
			submit.ID = fmt.Sprintf("%s#run%d#retry%d", spec.ID, run, attempt)
		}
		id, err := c.sched.Submit(submit)
		if err != nil {
			step.Outcome = StepFailed
			step.Err = err
			return step
		}
		step.Attempts++

		_, err = c.sched.AwaitResult(ctx, id)
		if err == nil {
			step.Outcome = StepPassed
			step.Err = nil
			return step
		}
		step.Outcome = StepFailed
		step.Err = err
		if ctx.Err() != nil {
			return step
		}
	}
	return step
}

func (c *ChainScheduler) recordStep(result *ChainResult, index int, step StepResult) {
	result.Steps = append(result.Steps, step)
	switch step.Outcome {
	case StepPassed:
		result.Passed++
	case StepFailed:
		result.Failed++
	case StepSkipped:
		result.Skipped++
	}
	if c.bus != nil {
		c.bus.Publish(events.TopicChain, events.ChainStepEvent{
			Chain:     c.name,
			Step:      index,
			ID:        step.TaskID,
			Outcome:   step.Outcome,
			Timestamp: time.Now(),
		})
	}
}

func (c *ChainScheduler) publishFinished(result *ChainResult) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(events.TopicChain, events.ChainFinishedEvent{
		Chain:     c.name,
		Steps:     len(result.Steps),
		Passed:    result.Passed,
		Failed:    result.Failed,
		Skipped:   result.Skipped,
		Aborted:   result.Aborted,
		Timestamp: time.Now(),
	})
}

// unmetDep reports the first dependency of spec that has not passed in
// this run.
func unmetDep(spec TaskSpec, passed map[string]bool) (string, bool) {
	for _, dep := range spec.DependsOn {
		if !passed[dep] {
			return dep, true
		}
	}
	return "", false
}

func stepName(spec TaskSpec) string {
	if spec.Name != "" {
		return spec.Name
	}
	return spec.ID
}
