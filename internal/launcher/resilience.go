package launcher

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/akarsh/gamepilot/internal/log"
	"github.com/akarsh/gamepilot/internal/scheduler"
)

// BreakerRegistry manages per-program circuit breakers. A program that
// keeps crashing on launch trips its breaker, so chains fail fast instead
// of hammering a broken install.
type BreakerRegistry struct {
	mu             sync.Mutex
	breakers       map[string]*gobreaker.CircuitBreaker
	consecFailures uint32
}

// NewBreakerRegistry creates a registry. consecFailures sets how many
// consecutive failures trip a program's breaker; values below 1 default
// to 3.
func NewBreakerRegistry(consecFailures int) *BreakerRegistry {
	if consecFailures < 1 {
		consecFailures = 3
	}
	return &BreakerRegistry{
		breakers:       make(map[string]*gobreaker.CircuitBreaker),
		consecFailures: uint32(consecFailures),
	}
}

// Get returns the circuit breaker for the given program name.
// Creates a new one if it doesn't exist.
func (r *BreakerRegistry) Get(program string) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[program]; ok {
		return cb
	}

	threshold := r.consecFailures
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        program,
		MaxRequests: 1,                // One probe launch in half-open state
		Interval:    0,                // Don't clear counts automatically
		Timeout:     30 * time.Second, // Stay open for 30s before probing recovery
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.GetLogger().Warnf("circuit breaker %q: %s -> %s", name, from, to)
		},
		IsSuccessful: func(err error) bool {
			// A deliberate cancellation is not a program failure
			if err == nil {
				return true
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return true
			}
			return false
		},
	})

	r.breakers[program] = cb
	return cb
}

// Work adapts a program invocation into a schedulable work function. When
// breakers is non-nil the launch goes through the program's circuit
// breaker; an open breaker fails the attempt immediately, and the
// scheduler's retry policy spaces out the re-attempts.
func Work(program string, r Runner, args []string, breakers *BreakerRegistry) scheduler.WorkFunc {
	return func(ctx context.Context) (any, error) {
		if breakers == nil {
			result, err := r.Run(ctx, args)
			if err != nil {
				return nil, err
			}
			return result, nil
		}

		out, err := breakers.Get(program).Execute(func() (any, error) {
			return r.Run(ctx, args)
		})
		if err != nil {
			return nil, err
		}
		return out.(Result), nil
	}
}
