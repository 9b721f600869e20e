package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/tunectl/tunectl/pkg/tune/config"
	"github.com/tunectl/tunectl/pkg/tune/execx"
	"github.com/tunectl/tunectl/pkg/tune/logging"
	"github.com/tunectl/tunectl/pkg/tune/output"
	"github.com/tunectl/tunectl/pkg/tune/phase"
	"github.com/tunectl/tunectl/pkg/tune/runctx"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Run the tuning pipeline",
	Long: `Run every configured phase in order, halting at the first failure.

Each phase launches its mutator unit as a subprocess. Every change a unit
makes is journaled to the run's context file before it counts as applied,
so even a half-finished run can be rolled back later.`,
	RunE: runApply,
}

var (
	applyDryRun  bool
	applyTimeout time.Duration
)

func init() {
	applyCmd.Flags().BoolVarP(&applyDryRun, "dry-run", "d", false, "show the pipeline without running it")
	applyCmd.Flags().DurationVarP(&applyTimeout, "timeout", "t", 0, "per-phase timeout override (e.g. 2m)")
	rootCmd.AddCommand(applyCmd)
}

func runApply(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	units := buildUnits(cfg)

	if applyDryRun {
		res := &phase.PipelineResult{Mode: phase.ModeApply, State: phase.StateNotStarted}
		for _, u := range units {
			res.Phases = append(res.Phases, phase.PhaseResult{Unit: u.Name, State: phase.StateNotStarted})
		}
		return render(&output.Report{Pipeline: res})
	}

	if err := cfg.EnsureWorkspace(); err != nil {
		return err
	}

	run, err := runctx.New(runctx.NewID(), cfg.Workspace)
	if err != nil {
		return err
	}
	// Persist up front so the context file exists even if phase one dies.
	if err := run.Persist(); err != nil {
		return err
	}

	logger, err := newLogger(cfg, run.LogFile)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()

	printInfo("Starting run %s", run.RunID)
	logger.Info("apply started", "run_id", run.RunID, "phases", len(units))

	orch := newOrchestrator(cfg, logger, units)
	res, pipeErr := orch.Apply(cmd.Context(), phase.Invocation{
		RunID:         run.RunID,
		WorkspaceRoot: cfg.Workspace,
		LogFile:       run.LogFile,
		ContextFile:   run.ContextFile,
	})

	if err := render(&output.Report{Pipeline: &res}); err != nil {
		return err
	}

	if pipeErr != nil {
		printError("pipeline halted: %v", pipeErr)
		printInfo("Applied changes are journaled; roll back with:\n  tunectl rollback %s", run.ContextFile)
		return pipeErr
	}

	printInfo("Run %s complete. Context: %s", run.RunID, run.ContextFile)
	return nil
}

// buildUnits maps phase configuration into orchestrator units.
func buildUnits(cfg *config.Config) []phase.Unit {
	units := make([]phase.Unit, 0, len(cfg.Phases))
	for _, p := range cfg.Phases {
		timeout := p.Timeout
		if applyTimeout > 0 {
			timeout = applyTimeout
		}
		units = append(units, phase.Unit{
			Name:       p.Name,
			Candidates: p.Command,
			Args:       p.Args,
			Timeout:    timeout,
		})
	}
	return units
}

// newOrchestrator wires the shared runner and logger into the pipeline.
func newOrchestrator(cfg *config.Config, logger *logging.Logger, units []phase.Unit) *phase.Orchestrator {
	runner := execx.NewRunner(logger)
	return phase.New(runner, logger, units, phase.WithDefaultTimeout(cfg.PhaseTimeout))
}
