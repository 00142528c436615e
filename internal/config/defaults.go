package config

// DefaultConfig returns the default configuration with built-in programs
// and a sample chain.
func DefaultConfig() *Config {
	return &Config{
		Scheduler: SchedulerConfig{
			MaxConcurrency:  4,
			TickMS:          100,
			CPUCeiling:      85,
			MemoryCeiling:   90,
			RetryBaseMS:     100,
			CancelGraceSec:  5,
			RetentionSize:   256,
			CircuitFailures: 3,
		},
		ArchivePath: "",
		Programs: map[string]ProgramConfig{
			"game": {
				Command: "game-client",
				Kind:    "exe",
			},
			"automation": {
				Command:     "automation.py",
				Kind:        "script",
				Interpreter: "python3",
			},
		},
		Chains: map[string]ChainConfig{
			"daily": {
				Policy: "stop",
				Steps: []StepConfig{
					{ID: "launch", Program: "game", TimeoutSec: 120},
					{ID: "login", Program: "automation", Args: []string{"login"}, DependsOn: []string{"launch"}, MaxRetries: 2},
					{ID: "daily-tasks", Program: "automation", Args: []string{"daily"}, DependsOn: []string{"login"}, TimeoutSec: 1800},
					{ID: "logout", Program: "automation", Args: []string{"logout"}, DependsOn: []string{"daily-tasks"}},
				},
			},
		},
	}
}
