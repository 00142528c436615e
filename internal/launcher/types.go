package launcher

import "time"

// Config defines the configuration for a launchable program.
type Config struct {
	Kind        string   // "exe" or "script"
	Command     string   // Binary path for exe, script path for script
	Args        []string // Default args prepended to every invocation
	Interpreter string   // Interpreter for scripts (e.g., "python3"); defaults per kind
	WorkDir     string   // Working directory; empty uses the current directory
	Env         []string // Extra KEY=VALUE entries appended to the environment
}

// Result captures one finished program invocation.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}
