package launcher

import (
	"context"
	"fmt"
)

// ExeRunner launches a native executable, such as a game client binary.
type ExeRunner struct {
	cfg     Config
	procMgr *ProcessManager
}

// NewExeRunner creates an executable runner. The ProcessManager is
// optional; if nil, subprocesses are not tracked for shutdown cleanup.
func NewExeRunner(cfg Config, procMgr *ProcessManager) (*ExeRunner, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("exe runner requires a command")
	}
	return &ExeRunner{cfg: cfg, procMgr: procMgr}, nil
}

// Run launches the executable and waits for it to exit.
func (r *ExeRunner) Run(ctx context.Context, args []string) (Result, error) {
	full := append(append([]string(nil), r.cfg.Args...), args...)
	cmd := newCommand(ctx, r.cfg, r.cfg.Command, full...)
	return executeCommand(cmd, r.procMgr)
}

// Command returns the configured binary path.
func (r *ExeRunner) Command() string {
	return r.cfg.Command
}
