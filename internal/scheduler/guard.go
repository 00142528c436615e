package scheduler

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// retrySchedule produces the delay before each re-attempt of a single task.
// Delays grow exponentially from the configured base and are not jittered,
// keeping re-entry order deterministic for tasks that fail in lockstep.
type retrySchedule struct {
	policy *backoff.ExponentialBackOff
}

func newRetrySchedule(base time.Duration) *retrySchedule {
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = base
	policy.Multiplier = 2.0
	policy.RandomizationFactor = 0
	policy.MaxInterval = 5 * time.Minute
	policy.MaxElapsedTime = 0 // The retry count bounds attempts, not elapsed time
	policy.Reset()
	return &retrySchedule{policy: policy}
}

// next returns the delay to apply before the upcoming retry.
func (r *retrySchedule) next() time.Duration {
	d := r.policy.NextBackOff()
	if d == backoff.Stop {
		return r.policy.InitialInterval
	}
	return d
}

// attemptOutcome is the result of one guarded execution attempt.
type attemptOutcome struct {
	result    any
	err       error
	timedOut  bool
	cancelled bool
}

// runGuarded executes a task's work item in a race against its deadline and
// the cancellation signal. The work function runs in its own goroutine; if
// the deadline or cancellation wins the race, the goroutine is given up to
// grace to observe ctx and return before its eventual result is discarded.
func runGuarded(ctx context.Context, t *Task, grace time.Duration) attemptOutcome {
	attemptCtx := ctx
	var cancelAttempt context.CancelFunc
	if t.Timeout > 0 {
		attemptCtx, cancelAttempt = context.WithTimeout(ctx, t.Timeout)
		defer cancelAttempt()
	}

	type workReturn struct {
		result any
		err    error
	}
	resultCh := make(chan workReturn, 1)

	go func() {
		res, err := t.work(attemptCtx)
		resultCh <- workReturn{result: res, err: err}
	}()

	select {
	case r := <-resultCh:
		// The work returned on its own. A context error surfaced by the
		// work item is classified the same as losing the race.
		switch {
		case r.err == nil:
			return attemptOutcome{result: r.result}
		case attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil:
			return attemptOutcome{err: r.err, timedOut: true}
		case ctx.Err() != nil:
			return attemptOutcome{err: r.err, cancelled: true}
		default:
			return attemptOutcome{err: r.err}
		}
	case <-attemptCtx.Done():
	}

	timedOut := attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil

	// Grace period: let a cooperative work item notice cancellation and
	// return. Past the grace window the attempt is treated as forcibly
	// aborted and any late result is discarded.
	if grace > 0 {
		graceTimer := time.NewTimer(grace)
		defer graceTimer.Stop()
		select {
		case r := <-resultCh:
			if r.err == nil && timedOut {
				// Finished inside the grace window but past the deadline;
				// the deadline still wins.
				return attemptOutcome{err: attemptCtx.Err(), timedOut: true}
			}
			if r.err == nil {
				return attemptOutcome{err: ctx.Err(), cancelled: true}
			}
			return attemptOutcome{err: r.err, timedOut: timedOut, cancelled: !timedOut}
		case <-graceTimer.C:
		}
	}

	if timedOut {
		return attemptOutcome{err: attemptCtx.Err(), timedOut: true}
	}
	return attemptOutcome{err: ctx.Err(), cancelled: true}
}
