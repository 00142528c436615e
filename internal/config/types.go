package config

// ProgramConfig defines an external program the launcher can run.
// Programs are separate from chain steps -- multiple steps can reference
// the same program with different arguments.
type ProgramConfig struct {
	Command     string   `json:"command"`               // Binary or script path
	Args        []string `json:"args,omitempty"`        // Default args appended to every invocation
	Kind        string   `json:"kind"`                  // Launcher kind matching launcher.Config.Kind: "exe" or "script"
	Interpreter string   `json:"interpreter,omitempty"` // Interpreter for script programs (e.g., "python3")
	WorkDir     string   `json:"work_dir,omitempty"`    // Working directory for the process
	Env         []string `json:"env,omitempty"`         // Extra KEY=VALUE environment entries
}

// StepConfig defines one step in an automation chain.
type StepConfig struct {
	ID         string   `json:"id"`
	Program    string   `json:"program"` // Key into Programs map
	Args       []string `json:"args,omitempty"`
	DependsOn  []string `json:"depends_on,omitempty"`
	TimeoutSec int      `json:"timeout_sec,omitempty"`
	MaxRetries int      `json:"max_retries,omitempty"`
	Priority   int      `json:"priority,omitempty"`
}

// ChainConfig defines an ordered automation routine (e.g., launch -> login
// -> daily tasks -> logout).
type ChainConfig struct {
	Policy      string       `json:"policy,omitempty"`       // "continue", "stop", or "retry"
	StepRetries int          `json:"step_retries,omitempty"` // Extra submissions per failed step under "retry"
	Steps       []StepConfig `json:"steps"`
}

// SchedulerConfig tunes the concurrent scheduling core.
type SchedulerConfig struct {
	MaxConcurrency  int     `json:"max_concurrency,omitempty"`
	TickMS          int     `json:"tick_ms,omitempty"`
	CPUCeiling      float64 `json:"cpu_ceiling,omitempty"`    // Percent; 0 disables resource gating
	MemoryCeiling   float64 `json:"memory_ceiling,omitempty"` // Percent; 0 disables resource gating
	RetryBaseMS     int     `json:"retry_base_ms,omitempty"`
	CancelGraceSec  int     `json:"cancel_grace_sec,omitempty"`
	RetentionSize   int     `json:"retention_size,omitempty"`
	CircuitFailures int     `json:"circuit_failures,omitempty"` // Consecutive failures before a program's breaker opens
}

// Config is the top-level configuration.
type Config struct {
	Scheduler   SchedulerConfig          `json:"scheduler"`
	ArchivePath string                   `json:"archive_path,omitempty"` // SQLite run history; empty disables archiving
	Programs    map[string]ProgramConfig `json:"programs"`
	Chains      map[string]ChainConfig   `json:"chains"`
}
