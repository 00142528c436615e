package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/akarsh/gamepilot/internal/config"
	"github.com/akarsh/gamepilot/internal/events"
	"github.com/akarsh/gamepilot/internal/launcher"
	"github.com/akarsh/gamepilot/internal/log"
	"github.com/akarsh/gamepilot/internal/persistence"
	"github.com/akarsh/gamepilot/internal/scheduler"
	"github.com/akarsh/gamepilot/internal/tui"
)

func main() {
	chainName := flag.String("chain", "", "run the named chain from the config")
	headless := flag.Bool("headless", false, "run without the TUI and print a plain-text report")
	configPath := flag.String("config", "", "extra config file merged over the defaults")
	flag.Parse()

	// Create signal-aware context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Track every launched subprocess so a shutdown signal can reap them.
	pm := launcher.NewProcessManager()

	runners, err := buildRunners(cfg, pm)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building launchers: %v\n", err)
		os.Exit(1)
	}
	breakers := launcher.NewBreakerRegistry(cfg.Scheduler.CircuitFailures)

	bus := events.NewBus()
	defer bus.Close()

	var store *persistence.SQLiteStore
	if cfg.ArchivePath != "" {
		store, err = persistence.NewSQLiteStore(ctx, cfg.ArchivePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening archive: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()
	}

	schedCfg := scheduler.Config{
		MaxConcurrency: cfg.Scheduler.MaxConcurrency,
		Tick:           time.Duration(cfg.Scheduler.TickMS) * time.Millisecond,
		CPUCeiling:     cfg.Scheduler.CPUCeiling,
		MemoryCeiling:  cfg.Scheduler.MemoryCeiling,
		RetryBaseDelay: time.Duration(cfg.Scheduler.RetryBaseMS) * time.Millisecond,
		CancelGrace:    time.Duration(cfg.Scheduler.CancelGraceSec) * time.Second,
		RetentionSize:  cfg.Scheduler.RetentionSize,
		Bus:            bus,
		Logger:         log.GetLogger(),
	}
	if store != nil {
		schedCfg.Archiver = store
	}

	if *headless {
		if *chainName == "" {
			fmt.Fprintln(os.Stderr, "Error: -headless requires -chain")
			os.Exit(1)
		}
		if err := runChainHeadless(ctx, cfg, schedCfg, runners, breakers, store, *chainName); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	runTUI(ctx, stop, cfg, schedCfg, runners, breakers, store, bus, pm, *chainName)
}

// loadConfig loads the conventional global/project files, or an explicit
// file in their place when one is given. Either way the result is layered
// over the built-in defaults.
func loadConfig(explicit string) (*config.Config, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return nil, err
		}
		return config.Load("", explicit)
	}
	return config.LoadDefault()
}

// buildRunners constructs one launcher per configured program.
func buildRunners(cfg *config.Config, pm *launcher.ProcessManager) (map[string]launcher.Runner, error) {
	runners := make(map[string]launcher.Runner, len(cfg.Programs))
	for name, pc := range cfg.Programs {
		r, err := launcher.New(launcher.Config{
			Kind:        pc.Kind,
			Command:     pc.Command,
			Args:        pc.Args,
			Interpreter: pc.Interpreter,
			WorkDir:     pc.WorkDir,
			Env:         pc.Env,
		}, pm)
		if err != nil {
			return nil, fmt.Errorf("program %q: %w", name, err)
		}
		runners[name] = r
	}
	return runners, nil
}

// buildChain turns a ChainConfig into a ready-to-run ChainScheduler.
func buildChain(name string, chainCfg config.ChainConfig, schedCfg scheduler.Config, runners map[string]launcher.Runner, breakers *launcher.BreakerRegistry) (*scheduler.ChainScheduler, scheduler.ChainPolicy, error) {
	policy, err := parsePolicy(chainCfg.Policy)
	if err != nil {
		return nil, "", err
	}
	cs := scheduler.NewChainScheduler(name, chainCfg.StepRetries, schedCfg)
	for _, step := range chainCfg.Steps {
		runner, ok := runners[step.Program]
		if !ok {
			return nil, "", fmt.Errorf("chain %q step %q: unknown program %q", name, step.ID, step.Program)
		}
		spec := scheduler.TaskSpec{
			ID:         step.ID,
			Name:       step.ID,
			Work:       launcher.Work(step.Program, runner, step.Args, breakers),
			Priority:   scheduler.Priority(step.Priority),
			DependsOn:  step.DependsOn,
			Timeout:    time.Duration(step.TimeoutSec) * time.Second,
			MaxRetries: step.MaxRetries,
		}
		if err := cs.AddTask(spec); err != nil {
			return nil, "", fmt.Errorf("chain %q step %q: %w", name, step.ID, err)
		}
	}
	return cs, policy, nil
}

func parsePolicy(s string) (scheduler.ChainPolicy, error) {
	switch s {
	case "", string(scheduler.PolicyStop):
		return scheduler.PolicyStop, nil
	case string(scheduler.PolicyContinue):
		return scheduler.PolicyContinue, nil
	case string(scheduler.PolicyRetry):
		return scheduler.PolicyRetry, nil
	default:
		return "", fmt.Errorf("unknown chain policy %q", s)
	}
}

// runChainHeadless runs one chain to completion and prints a per-step
// report to stdout. The process exit code reflects the chain verdict.
func runChainHeadless(ctx context.Context, cfg *config.Config, schedCfg scheduler.Config, runners map[string]launcher.Runner, breakers *launcher.BreakerRegistry, store *persistence.SQLiteStore, name string) error {
	chainCfg, ok := cfg.Chains[name]
	if !ok {
		return fmt.Errorf("unknown chain %q", name)
	}

	cs, policy, err := buildChain(name, chainCfg, schedCfg, runners, breakers)
	if err != nil {
		return err
	}
	if err := cs.Start(); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		cs.Stop(stopCtx)
	}()

	result, runErr := cs.ExecuteChain(ctx, nil, policy)
	printChainReport(result)

	if store != nil {
		if _, err := store.SaveChainRun(context.Background(), result); err != nil {
			log.GetLogger().Errorf("archiving chain run: %v", err)
		}
	}
	return runErr
}

func printChainReport(result *scheduler.ChainResult) {
	fmt.Printf("chain %s\n", result.Chain)
	for i, step := range result.Steps {
		icon := "-"
		switch step.Outcome {
		case scheduler.StepPassed:
			icon = "ok"
		case scheduler.StepFailed:
			icon = "FAIL"
		case scheduler.StepSkipped:
			icon = "skip"
		}
		line := fmt.Sprintf("  %2d. [%-4s] %s", i+1, icon, step.Name)
		if step.Attempts > 1 {
			line += fmt.Sprintf(" (attempts: %d)", step.Attempts)
		}
		if step.Err != nil {
			line += fmt.Sprintf(" - %v", step.Err)
		}
		fmt.Println(line)
	}
	verdict := "finished"
	if result.Aborted {
		verdict = "aborted"
	}
	fmt.Printf("%s: %d passed, %d failed, %d skipped\n", verdict, result.Passed, result.Failed, result.Skipped)
}

// runTUI starts the dashboard. When a chain name is given, it runs in the
// background and its events stream into the panes; otherwise the dashboard
// waits for events from an embedding caller.
func runTUI(ctx context.Context, stop context.CancelFunc, cfg *config.Config, schedCfg scheduler.Config, runners map[string]launcher.Runner, breakers *launcher.BreakerRegistry, store *persistence.SQLiteStore, bus *events.Bus, pm *launcher.ProcessManager, chainName string) {
	// The TUI owns the terminal; keep log lines out of it.
	if err := redirectLogs(); err != nil {
		log.SetOutput(io.Discard)
	}

	model := tui.New(bus)
	p := tea.NewProgram(model, tea.WithAltScreen())

	errChan := make(chan error, 1)
	go func() {
		_, err := p.Run()
		errChan <- err
	}()

	if chainName != "" {
		go func() {
			chainCfg, ok := cfg.Chains[chainName]
			if !ok {
				log.GetLogger().Errorf("unknown chain %q", chainName)
				return
			}
			cs, policy, err := buildChain(chainName, chainCfg, schedCfg, runners, breakers)
			if err != nil {
				log.GetLogger().Errorf("building chain %q: %v", chainName, err)
				return
			}
			if err := cs.Start(); err != nil {
				log.GetLogger().Errorf("starting chain %q: %v", chainName, err)
				return
			}
			result, err := cs.ExecuteChain(ctx, nil, policy)
			if err != nil {
				log.GetLogger().Errorf("chain %q: %v", chainName, err)
			}
			if store != nil && result != nil {
				if _, err := store.SaveChainRun(context.Background(), result); err != nil {
					log.GetLogger().Errorf("archiving chain run: %v", err)
				}
			}
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			cs.Stop(stopCtx)
		}()
	}

	select {
	case err := <-errChan:
		// Normal TUI exit (user pressed 'q' or the TUI finished)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		// Signal received. Restore default signal handling so a second
		// Ctrl+C forces an exit.
		stop()

		log.GetLogger().Info("shutdown signal received, cleaning up")

		if err := pm.KillAll(); err != nil {
			log.GetLogger().Errorf("killing subprocesses: %v", err)
		}

		p.Quit()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		select {
		case err := <-errChan:
			if err != nil {
				log.GetLogger().Errorf("TUI exit error: %v", err)
			}
		case <-shutdownCtx.Done():
			log.GetLogger().Error("shutdown timeout exceeded, forcing exit")
		}
	}
}

// redirectLogs sends log output to ~/.gamepilot/gamepilot.log.
func redirectLogs() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	dir := filepath.Join(home, ".gamepilot")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(dir, "gamepilot.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	log.SetOutput(f)
	return nil
}
