package launcher

import (
	"context"
	"fmt"
)

// Runner defines the interface that all program adapters must implement.
type Runner interface {
	// Run launches the program with extra args appended to the configured
	// ones and waits for it to exit. A non-zero exit status is returned as
	// an error alongside the captured Result.
	Run(ctx context.Context, args []string) (Result, error)

	// Command returns the configured command, for logging and reporting.
	Command() string
}

// New creates a runner based on the provided configuration.
// This factory switches on cfg.Kind and returns the appropriate adapter.
func New(cfg Config, pm *ProcessManager) (Runner, error) {
	switch cfg.Kind {
	case "exe":
		return NewExeRunner(cfg, pm)
	case "script":
		return NewScriptRunner(cfg, pm)
	default:
		return nil, fmt.Errorf("unknown launcher kind: %s", cfg.Kind)
	}
}
