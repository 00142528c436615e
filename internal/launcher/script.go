package launcher

import (
	"context"
	"fmt"
)

// ScriptRunner launches an automation script through an interpreter.
type ScriptRunner struct {
	cfg     Config
	procMgr *ProcessManager
}

// NewScriptRunner creates a script runner. If cfg.Interpreter is empty it
// defaults to python3, the most common automation interpreter.
func NewScriptRunner(cfg Config, procMgr *ProcessManager) (*ScriptRunner, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("script runner requires a script path")
	}
	if cfg.Interpreter == "" {
		cfg.Interpreter = "python3"
	}
	return &ScriptRunner{cfg: cfg, procMgr: procMgr}, nil
}

// Run invokes the interpreter on the script and waits for it to exit.
func (r *ScriptRunner) Run(ctx context.Context, args []string) (Result, error) {
	full := append([]string{r.cfg.Command}, r.cfg.Args...)
	full = append(full, args...)
	cmd := newCommand(ctx, r.cfg, r.cfg.Interpreter, full...)
	return executeCommand(cmd, r.procMgr)
}

// Command returns the configured script path.
func (r *ScriptRunner) Command() string {
	return r.cfg.Command
}
