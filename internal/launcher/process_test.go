package launcher

import (
	"context"
	"strings"
	"testing"
	"time"
)

// TestExecuteCommand_BasicExecution verifies basic command execution.
func TestExecuteCommand_BasicExecution(t *testing.T) {
	cmd := newCommand(context.Background(), Config{}, "echo", "hello")

	result, err := executeCommand(cmd, nil)

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !strings.Contains(result.Stdout, "hello") {
		t.Errorf("Expected stdout to contain 'hello', got: %s", result.Stdout)
	}
	if result.Stderr != "" {
		t.Errorf("Expected empty stderr, got: %s", result.Stderr)
	}
	if result.ExitCode != 0 {
		t.Errorf("Expected exit code 0, got %d", result.ExitCode)
	}
}

// TestExecuteCommand_ConcurrentPipeReading_LargeOutput verifies no deadlock
// when subprocess output exceeds the pipe buffer.
func TestExecuteCommand_ConcurrentPipeReading_LargeOutput(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Generate ~300KB of output, well above the 64KB pipe buffer
	cmd := newCommand(ctx, Config{}, "bash", "-c", "for i in $(seq 1 10000); do echo 'line of filler output for pipe buffer testing'; done")

	start := time.Now()
	result, err := executeCommand(cmd, nil)
	duration := time.Since(start)

	if err != nil {
		t.Fatalf("Expected no error, got: %v (took %v)", err, duration)
	}
	lines := strings.Split(strings.TrimSpace(result.Stdout), "\n")
	if len(lines) < 10000 {
		t.Errorf("Expected at least 10000 lines of output, got %d", len(lines))
	}
	if duration > 5*time.Second {
		t.Errorf("Command took too long (%v), possible deadlock", duration)
	}
}

// TestExecuteCommand_StderrCapture verifies both stdout and stderr are captured.
func TestExecuteCommand_StderrCapture(t *testing.T) {
	cmd := newCommand(context.Background(), Config{}, "bash", "-c", "echo error >&2; echo ok")

	result, err := executeCommand(cmd, nil)

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !strings.Contains(result.Stdout, "ok") {
		t.Errorf("Expected stdout to contain 'ok', got: %s", result.Stdout)
	}
	if !strings.Contains(result.Stderr, "error") {
		t.Errorf("Expected stderr to contain 'error', got: %s", result.Stderr)
	}
}

// TestExecuteCommand_ExitCode verifies non-zero exit statuses surface in the
// result and as an error.
func TestExecuteCommand_ExitCode(t *testing.T) {
	cmd := newCommand(context.Background(), Config{}, "bash", "-c", "exit 3")

	result, err := executeCommand(cmd, nil)

	if err == nil {
		t.Fatal("Expected error for non-zero exit, got nil")
	}
	if result.ExitCode != 3 {
		t.Errorf("Expected exit code 3, got %d", result.ExitCode)
	}
}

// TestExecuteCommand_ContextCancellation verifies subprocess termination on
// context cancel.
func TestExecuteCommand_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	cmd := newCommand(ctx, Config{}, "sleep", "30")

	start := time.Now()
	_, err := executeCommand(cmd, nil)
	duration := time.Since(start)

	if err == nil {
		t.Fatal("Expected error due to context cancellation, got nil")
	}
	if duration > 5*time.Second {
		t.Errorf("Cancellation took %v, expected prompt termination", duration)
	}
}

// TestExecuteCommand_WorkDirAndEnv verifies working directory and extra
// environment entries are applied.
func TestExecuteCommand_WorkDirAndEnv(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := Config{WorkDir: tmpDir, Env: []string{"GAMEPILOT_TEST_VAR=marker"}}
	cmd := newCommand(context.Background(), cfg, "bash", "-c", "pwd; echo $GAMEPILOT_TEST_VAR")

	result, err := executeCommand(cmd, nil)

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !strings.Contains(result.Stdout, tmpDir) {
		t.Errorf("Expected stdout to contain workdir %s, got: %s", tmpDir, result.Stdout)
	}
	if !strings.Contains(result.Stdout, "marker") {
		t.Errorf("Expected stdout to contain env marker, got: %s", result.Stdout)
	}
}

// TestProcessManager_TrackUntrack verifies tracking lifecycle.
func TestProcessManager_TrackUntrack(t *testing.T) {
	pm := NewProcessManager()

	cmd := newCommand(context.Background(), Config{}, "sleep", "5")
	if err := cmd.Start(); err != nil {
		t.Fatalf("Failed to start command: %v", err)
	}

	pm.Track(cmd)
	if pm.Count() != 1 {
		t.Errorf("Expected 1 tracked process, got %d", pm.Count())
	}

	pm.Untrack(cmd)
	if pm.Count() != 0 {
		t.Errorf("Expected 0 tracked processes, got %d", pm.Count())
	}

	killProcessGroup(cmd)
	cmd.Wait()
}

// TestProcessManager_KillAll verifies all tracked subprocesses are
// terminated.
func TestProcessManager_KillAll(t *testing.T) {
	pm := NewProcessManager()

	var waits []chan error
	for i := 0; i < 2; i++ {
		cmd := newCommand(context.Background(), Config{}, "sleep", "30")
		if err := cmd.Start(); err != nil {
			t.Fatalf("Failed to start command: %v", err)
		}
		pm.Track(cmd)
		done := make(chan error, 1)
		go func() { done <- cmd.Wait() }()
		waits = append(waits, done)
	}

	if err := pm.KillAll(); err != nil {
		t.Fatalf("KillAll failed: %v", err)
	}

	for i, done := range waits {
		select {
		case err := <-done:
			if err == nil {
				t.Errorf("process %d exited cleanly, expected kill", i)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("process %d was not killed", i)
		}
	}
}
