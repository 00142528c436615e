package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Load reads and merges configuration from global and project paths.
// Order of precedence (highest to lowest): project config, global config, defaults.
// Missing files are not errors; malformed JSON returns an error.
func Load(globalPath, projectPath string) (*Config, error) {
	// Start with defaults
	cfg := DefaultConfig()

	// Merge global config if exists
	if globalPath != "" {
		if err := mergeConfigFile(cfg, globalPath); err != nil {
			return nil, fmt.Errorf("loading global config: %w", err)
		}
	}

	// Merge project config if exists (highest precedence)
	if projectPath != "" {
		if err := mergeConfigFile(cfg, projectPath); err != nil {
			return nil, fmt.Errorf("loading project config: %w", err)
		}
	}

	return cfg, nil
}

// LoadDefault loads configuration from conventional paths.
// Global: ~/.gamepilot/config.json
// Project: .gamepilot/config.json (relative to cwd)
func LoadDefault() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting home directory: %w", err)
	}

	globalPath := filepath.Join(homeDir, ".gamepilot", "config.json")
	projectPath := filepath.Join(".gamepilot", "config.json")

	return Load(globalPath, projectPath)
}

// mergeConfigFile reads a JSON config file and merges it into the base config.
// Missing files are silently skipped. Malformed JSON returns an error.
func mergeConfigFile(base *Config, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil // Missing file is not an error
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var loaded Config
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	mergeScheduler(&base.Scheduler, loaded.Scheduler)
	if loaded.ArchivePath != "" {
		base.ArchivePath = loaded.ArchivePath
	}
	for key, program := range loaded.Programs {
		base.Programs[key] = program
	}
	for key, chain := range loaded.Chains {
		base.Chains[key] = chain
	}

	return nil
}

// mergeScheduler overlays any explicitly set scheduler fields. Zero values
// mean "not set" and keep the base value.
func mergeScheduler(base *SchedulerConfig, loaded SchedulerConfig) {
	if loaded.MaxConcurrency != 0 {
		base.MaxConcurrency = loaded.MaxConcurrency
	}
	if loaded.TickMS != 0 {
		base.TickMS = loaded.TickMS
	}
	if loaded.CPUCeiling != 0 {
		base.CPUCeiling = loaded.CPUCeiling
	}
	if loaded.MemoryCeiling != 0 {
		base.MemoryCeiling = loaded.MemoryCeiling
	}
	if loaded.RetryBaseMS != 0 {
		base.RetryBaseMS = loaded.RetryBaseMS
	}
	if loaded.CancelGraceSec != 0 {
		base.CancelGraceSec = loaded.CancelGraceSec
	}
	if loaded.RetentionSize != 0 {
		base.RetentionSize = loaded.RetentionSize
	}
	if loaded.CircuitFailures != 0 {
		base.CircuitFailures = loaded.CircuitFailures
	}
}
