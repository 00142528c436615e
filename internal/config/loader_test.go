package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name           string
		globalConfig   *Config
		projectConfig  *Config
		expectPrograms int
		expectChains   int
		checkProgram   string
		expectCommand  string
		expectMaxConc  int
		expectError    bool
	}{
		{
			name:           "No config files - returns defaults",
			globalConfig:   nil,
			projectConfig:  nil,
			expectPrograms: 2,
			expectChains:   1,
			expectMaxConc:  4,
		},
		{
			name: "Global only - adds new program",
			globalConfig: &Config{
				Programs: map[string]ProgramConfig{
					"macro-runner": {
						Command: "macros.py",
						Kind:    "script",
					},
				},
			},
			projectConfig:  nil,
			expectPrograms: 3, // 2 defaults + 1 new
			expectChains:   1,
			checkProgram:   "macro-runner",
			expectCommand:  "macros.py",
			expectMaxConc:  4,
		},
		{
			name:         "Project only - overrides program command",
			globalConfig: nil,
			projectConfig: &Config{
				Programs: map[string]ProgramConfig{
					"game": {
						Command: "/opt/games/client",
						Kind:    "exe",
					},
				},
			},
			expectPrograms: 2, // Same count, but game modified
			expectChains:   1,
			checkProgram:   "game",
			expectCommand:  "/opt/games/client",
			expectMaxConc:  4,
		},
		{
			name: "Both with merge - global adds, project overrides",
			globalConfig: &Config{
				Scheduler: SchedulerConfig{MaxConcurrency: 8},
				Programs: map[string]ProgramConfig{
					"macro-runner": {
						Command: "macros.py",
						Kind:    "script",
					},
				},
			},
			projectConfig: &Config{
				Scheduler: SchedulerConfig{MaxConcurrency: 2},
				Programs: map[string]ProgramConfig{
					"game": {
						Command: "/opt/games/client",
						Kind:    "exe",
					},
				},
			},
			expectPrograms: 3, // 2 defaults + 1 from global, with game overridden
			expectChains:   1,
			checkProgram:   "game",
			expectCommand:  "/opt/games/client",
			expectMaxConc:  2, // Project wins
		},
		{
			name:         "Unset scheduler fields keep defaults",
			globalConfig: nil,
			projectConfig: &Config{
				Scheduler: SchedulerConfig{RetentionSize: 1000},
			},
			expectPrograms: 2,
			expectChains:   1,
			expectMaxConc:  4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()

			globalPath := ""
			if tt.globalConfig != nil {
				globalPath = filepath.Join(tmpDir, "global.json")
				data, err := json.Marshal(tt.globalConfig)
				if err != nil {
					t.Fatalf("marshaling global config: %v", err)
				}
				if err := os.WriteFile(globalPath, data, 0644); err != nil {
					t.Fatalf("writing global config: %v", err)
				}
			}

			projectPath := ""
			if tt.projectConfig != nil {
				projectPath = filepath.Join(tmpDir, "project.json")
				data, err := json.Marshal(tt.projectConfig)
				if err != nil {
					t.Fatalf("marshaling project config: %v", err)
				}
				if err := os.WriteFile(projectPath, data, 0644); err != nil {
					t.Fatalf("writing project config: %v", err)
				}
			}

			cfg, err := Load(globalPath, projectPath)
			if tt.expectError {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if got := len(cfg.Programs); got != tt.expectPrograms {
				t.Errorf("programs count = %d, want %d", got, tt.expectPrograms)
			}
			if got := len(cfg.Chains); got != tt.expectChains {
				t.Errorf("chains count = %d, want %d", got, tt.expectChains)
			}
			if cfg.Scheduler.MaxConcurrency != tt.expectMaxConc {
				t.Errorf("max concurrency = %d, want %d", cfg.Scheduler.MaxConcurrency, tt.expectMaxConc)
			}

			if tt.checkProgram != "" {
				program, exists := cfg.Programs[tt.checkProgram]
				if !exists {
					t.Errorf("expected program %q not found", tt.checkProgram)
					return
				}
				if tt.expectCommand != "" && program.Command != tt.expectCommand {
					t.Errorf("program %q command = %q, want %q", tt.checkProgram, program.Command, tt.expectCommand)
				}
			}
		})
	}
}

func TestLoad_MalformedJSON(t *testing.T) {
	tmpDir := t.TempDir()

	globalPath := filepath.Join(tmpDir, "global.json")
	if err := os.WriteFile(globalPath, []byte("{invalid json"), 0644); err != nil {
		t.Fatalf("writing malformed config: %v", err)
	}

	_, err := Load(globalPath, "")
	if err == nil {
		t.Fatal("expected error for malformed JSON, got nil")
	}
}

func TestLoad_MissingFilesNotError(t *testing.T) {
	cfg, err := Load("/nonexistent/global.json", "/nonexistent/project.json")
	if err != nil {
		t.Fatalf("expected no error for missing files, got: %v", err)
	}

	// Should return defaults
	if len(cfg.Programs) != 2 {
		t.Errorf("programs count = %d, want 2", len(cfg.Programs))
	}
	if len(cfg.Chains) != 1 {
		t.Errorf("chains count = %d, want 1", len(cfg.Chains))
	}
	if cfg.Scheduler.MaxConcurrency != 4 {
		t.Errorf("max concurrency = %d, want 4", cfg.Scheduler.MaxConcurrency)
	}
}
