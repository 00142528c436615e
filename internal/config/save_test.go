package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestSaveCreatesFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")

	cfg := &Config{
		Programs: map[string]ProgramConfig{
			"test": {Command: "test-cmd", Kind: "exe"},
		},
		Chains: map[string]ChainConfig{},
	}

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Fatalf("Config file was not created: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read config file: %v", err)
	}

	var loaded Config
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("Config file contains invalid JSON: %v", err)
	}

	if loaded.Programs["test"].Command != "test-cmd" {
		t.Errorf("Expected program command 'test-cmd', got '%s'", loaded.Programs["test"].Command)
	}
}

func TestSaveCreatesParentDir(t *testing.T) {
	tmpDir := t.TempDir()
	// Nested path that doesn't exist yet
	path := filepath.Join(tmpDir, "nested", "deep", "config.json")

	cfg := &Config{
		Programs: map[string]ProgramConfig{},
		Chains:   map[string]ChainConfig{},
	}

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Fatalf("Config file was not created: %s", path)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")

	cfg := &Config{
		Scheduler: SchedulerConfig{
			MaxConcurrency: 2,
			CPUCeiling:     75,
		},
		ArchivePath: filepath.Join(tmpDir, "runs.db"),
		Programs: map[string]ProgramConfig{
			"game": {Command: "game-client", Kind: "exe"},
			"bot":  {Command: "bot.py", Kind: "script", Interpreter: "python3", Args: []string{"--headless"}},
		},
		Chains: map[string]ChainConfig{
			"daily": {
				Policy: "retry",
				Steps: []StepConfig{
					{ID: "launch", Program: "game", TimeoutSec: 60},
					{ID: "login", Program: "bot", DependsOn: []string{"launch"}},
				},
			},
		},
	}

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Scheduler.MaxConcurrency != 2 {
		t.Errorf("MaxConcurrency mismatch: got %d", loaded.Scheduler.MaxConcurrency)
	}
	if loaded.Programs["bot"].Interpreter != "python3" {
		t.Errorf("Bot interpreter mismatch: got '%s'", loaded.Programs["bot"].Interpreter)
	}
	if len(loaded.Programs["bot"].Args) != 1 || loaded.Programs["bot"].Args[0] != "--headless" {
		t.Errorf("Bot args mismatch: got %v", loaded.Programs["bot"].Args)
	}
	if loaded.Chains["daily"].Policy != "retry" {
		t.Errorf("Chain policy mismatch: got '%s'", loaded.Chains["daily"].Policy)
	}
	if len(loaded.Chains["daily"].Steps) != 2 {
		t.Errorf("Chain steps count mismatch: got %d", len(loaded.Chains["daily"].Steps))
	}
	if loaded.Chains["daily"].Steps[1].DependsOn[0] != "launch" {
		t.Errorf("Step dependency mismatch: got %v", loaded.Chains["daily"].Steps[1].DependsOn)
	}
}

func TestSaveOverwritesExisting(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")

	cfg1 := &Config{
		Programs: map[string]ProgramConfig{
			"test": {Command: "first-value", Kind: "exe"},
		},
		Chains: map[string]ChainConfig{},
	}
	if err := Save(cfg1, path); err != nil {
		t.Fatalf("First save failed: %v", err)
	}

	cfg2 := &Config{
		Programs: map[string]ProgramConfig{
			"test": {Command: "second-value", Kind: "exe"},
		},
		Chains: map[string]ChainConfig{},
	}
	if err := Save(cfg2, path); err != nil {
		t.Fatalf("Second save failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read config file: %v", err)
	}

	var loaded Config
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("Failed to parse config: %v", err)
	}

	if loaded.Programs["test"].Command != "second-value" {
		t.Errorf("Expected 'second-value', got '%s'", loaded.Programs["test"].Command)
	}
}
