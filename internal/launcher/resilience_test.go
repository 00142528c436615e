package launcher

import (
	"context"
	"errors"
	"testing"

	"github.com/sony/gobreaker"
)

// failingRunner always returns an error, simulating a broken install.
type failingRunner struct {
	err   error
	calls int
}

func (f *failingRunner) Run(ctx context.Context, args []string) (Result, error) {
	f.calls++
	return Result{ExitCode: 1}, f.err
}

func (f *failingRunner) Command() string { return "broken" }

// okRunner records its args and succeeds.
type okRunner struct {
	lastArgs []string
}

func (o *okRunner) Run(ctx context.Context, args []string) (Result, error) {
	o.lastArgs = args
	return Result{Stdout: "ok"}, nil
}

func (o *okRunner) Command() string { return "ok" }

// TestBreakerRegistry_SharedPerProgram tests that the same program name
// yields the same breaker.
func TestBreakerRegistry_SharedPerProgram(t *testing.T) {
	reg := NewBreakerRegistry(3)
	if reg.Get("game") != reg.Get("game") {
		t.Error("expected the same breaker for the same program")
	}
	if reg.Get("game") == reg.Get("bot") {
		t.Error("expected distinct breakers for distinct programs")
	}
}

// TestWork_Success tests the scheduler bridge on a healthy program.
func TestWork_Success(t *testing.T) {
	runner := &okRunner{}
	work := Work("ok", runner, []string{"daily"}, NewBreakerRegistry(3))

	out, err := work(context.Background())
	if err != nil {
		t.Fatalf("work: %v", err)
	}
	result, ok := out.(Result)
	if !ok {
		t.Fatalf("work returned %T, want Result", out)
	}
	if result.Stdout != "ok" {
		t.Errorf("stdout = %q, want ok", result.Stdout)
	}
	if len(runner.lastArgs) != 1 || runner.lastArgs[0] != "daily" {
		t.Errorf("runner received args %v, want [daily]", runner.lastArgs)
	}
}

// TestWork_BreakerTrips tests that repeated failures open the breaker and
// later attempts fail fast without launching the program.
func TestWork_BreakerTrips(t *testing.T) {
	runner := &failingRunner{err: errors.New("segfault on startup")}
	reg := NewBreakerRegistry(3)
	work := Work("broken", runner, nil, reg)

	for i := 0; i < 3; i++ {
		if _, err := work(context.Background()); err == nil {
			t.Fatalf("attempt %d: expected error", i+1)
		}
	}

	callsBefore := runner.calls
	_, err := work(context.Background())
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open breaker error, got %v", err)
	}
	if runner.calls != callsBefore {
		t.Error("open breaker should not invoke the runner")
	}
}

// TestWork_CancellationDoesNotTrip tests that deliberate cancellations are
// not counted as program failures.
func TestWork_CancellationDoesNotTrip(t *testing.T) {
	runner := &failingRunner{err: context.Canceled}
	reg := NewBreakerRegistry(2)
	work := Work("flappy", runner, nil, reg)

	for i := 0; i < 5; i++ {
		work(context.Background())
	}

	if reg.Get("flappy").State() != gobreaker.StateClosed {
		t.Errorf("breaker state = %s, want closed after cancellations only", reg.Get("flappy").State())
	}
}

// TestWork_NoRegistry tests the bridge without breaker protection.
func TestWork_NoRegistry(t *testing.T) {
	runner := &okRunner{}
	work := Work("ok", runner, nil, nil)

	out, err := work(context.Background())
	if err != nil {
		t.Fatalf("work: %v", err)
	}
	if _, ok := out.(Result); !ok {
		t.Fatalf("work returned %T, want Result", out)
	}
}
