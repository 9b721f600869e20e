package phase

import (
	"context"
	"fmt"
	"time"

	"github.com/tunectl/tunectl/pkg/tune/execx"
	"github.com/tunectl/tunectl/pkg/tune/logging"
)

// DefaultPhaseTimeout bounds a phase whose unit declares no budget.
const DefaultPhaseTimeout = 10 * time.Minute

// Orchestrator runs a fixed sequence of units. Exactly one unit runs at a
// time; the orchestrator blocks on each phase before starting the next.
type Orchestrator struct {
	runner  *execx.Runner
	log     *logging.Logger
	units   []Unit
	timeout time.Duration
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithDefaultTimeout overrides the default per-phase budget.
func WithDefaultTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// New creates an orchestrator over an ordered list of units.
func New(runner *execx.Runner, logger *logging.Logger, units []Unit, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = logging.Discard()
	}
	o := &Orchestrator{
		runner:  runner,
		log:     logger.Named("phase"),
		units:   units,
		timeout: DefaultPhaseTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Apply runs every unit in order in apply mode, halting the pipeline at
// the first phase that does not succeed. Later phases assume earlier ones
// succeeded, so nothing runs past a failure.
func (o *Orchestrator) Apply(ctx context.Context, inv Invocation) (PipelineResult, error) {
	inv.Mode = ModeApply
	return o.runPipeline(ctx, inv)
}

// Rollback runs every unit in order in rollback mode. The sequence halts
// on any non-zero exit even though unit-internal restoration is
// best-effort: a unit that exits non-zero could not even attempt its part.
func (o *Orchestrator) Rollback(ctx context.Context, inv Invocation) (PipelineResult, error) {
	if inv.TargetContextFile == "" {
		return PipelineResult{Mode: ModeRollback, State: StateFailed},
			fmt.Errorf("%w: no target context file given", ErrTargetMissing)
	}
	inv.Mode = ModeRollback
	return o.runPipeline(ctx, inv)
}

func (o *Orchestrator) runPipeline(ctx context.Context, inv Invocation) (PipelineResult, error) {
	res := PipelineResult{
		Mode:   inv.Mode,
		State:  StateRunning,
		Phases: make([]PhaseResult, len(o.units)),
	}
	for i, u := range o.units {
		res.Phases[i] = PhaseResult{Unit: u.Name, State: StateNotStarted}
	}

	for i, unit := range o.units {
		pr, err := o.runPhase(ctx, unit, inv)
		res.Phases[i] = pr
		if err != nil {
			res.State = pr.State
			o.log.Error("pipeline halted", "mode", inv.Mode, "phase", unit.Name, "state", pr.State)
			return res, fmt.Errorf("phase %s: %w", unit.Name, err)
		}
	}

	res.State = StateSucceeded
	o.log.Info("pipeline finished", "mode", inv.Mode, "phases", len(o.units))
	return res, nil
}

// runPhase resolves, launches, and awaits one unit.
func (o *Orchestrator) runPhase(ctx context.Context, unit Unit, inv Invocation) (PhaseResult, error) {
	pr := PhaseResult{Unit: unit.Name, State: StateRunning}
	o.log.Info("phase started", "phase", unit.Name, "mode", inv.Mode)

	bin, err := execx.Resolve(unit.Candidates...)
	if err != nil {
		pr.State = StateFailed
		pr.ExitCode = -1
		return pr, fmt.Errorf("%w: %v", ErrUnitFailed, err)
	}

	timeout := unit.Timeout
	if timeout <= 0 {
		timeout = o.timeout
	}

	unitLog := o.log.With("phase", unit.Name)
	sink := func(stream execx.Stream, line string) {
		if stream == execx.Stderr {
			unitLog.Warn(line)
			return
		}
		unitLog.Info(line)
	}

	run, err := o.runner.Run(ctx, execx.Command{
		Path:    bin,
		Args:    contractArgs(inv, unit),
		Timeout: timeout,
	}, sink)
	pr.ExitCode = run.ExitCode
	pr.Duration = run.Duration
	if err != nil {
		pr.State = StateFailed
		return pr, fmt.Errorf("%w: %v", ErrUnitFailed, err)
	}

	switch {
	case run.TimedOut:
		pr.State = StateTimedOut
		return pr, fmt.Errorf("%w: after %s", ErrUnitTimeout, pr.Duration.Round(time.Millisecond))
	case run.ExitCode == 0:
		pr.State = StateSucceeded
		o.log.Info("phase succeeded", "phase", unit.Name, "duration", pr.Duration)
		return pr, nil
	case inv.Mode == ModeRollback && run.ExitCode == ExitRollbackTargetMissing:
		pr.State = StateFailed
		return pr, fmt.Errorf("%w: unit %s exited %d", ErrTargetMissing, unit.Name, run.ExitCode)
	default:
		pr.State = StateFailed
		return pr, fmt.Errorf("%w: exit code %d", ErrUnitFailed, run.ExitCode)
	}
}

// contractArgs marshals the invocation contract plus unit flags into an
// argument vector. Path-like arguments go through SafePath so hostile
// locations get their canonical alias.
func contractArgs(inv Invocation, unit Unit) []string {
	args := []string{
		"--mode", string(inv.Mode),
		"--run-id", inv.RunID,
		"--workspace", execx.SafePath(inv.WorkspaceRoot),
		"--log-file", execx.SafePath(inv.LogFile),
		"--context-file", execx.SafePath(inv.ContextFile),
	}
	if inv.TargetContextFile != "" {
		args = append(args, "--target-context-file", execx.SafePath(inv.TargetContextFile))
	}
	return append(args, unit.Args...)
}
