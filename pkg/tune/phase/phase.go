// Package phase sequences mutator units through the Apply and Rollback
// pipelines. Units are external subprocesses honoring a fixed invocation
// contract; the orchestrator owns ordering, abort-on-failure, and the
// mapping from exit codes and timeouts to phase outcomes.
package phase

import (
	"errors"
	"time"
)

// Mode selects the direction a unit runs in.
type Mode string

// Pipeline modes.
const (
	ModeApply    Mode = "apply"
	ModeRollback Mode = "rollback"
)

// State is the lifecycle state of a single phase.
type State string

// Phase states. A phase moves NotStarted -> Running -> one terminal state.
const (
	StateNotStarted State = "not_started"
	StateRunning    State = "running"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
	StateTimedOut   State = "timed_out"
)

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateTimedOut:
		return true
	}
	return false
}

// ExitRollbackTargetMissing is the conventional unit exit code meaning a
// required rollback target could not be loaded.
const ExitRollbackTargetMissing = 2

var (
	// ErrUnitFailed indicates a unit exited non-zero or could not be
	// located. Fatal to the current pipeline.
	ErrUnitFailed = errors.New("mutator unit failed")

	// ErrUnitTimeout indicates a phase exceeded its wall-clock budget and
	// was force-killed. Treated as a unit failure by the pipeline.
	ErrUnitTimeout = errors.New("mutator unit timed out")

	// ErrTargetMissing indicates a rollback was requested without a
	// loadable target context.
	ErrTargetMissing = errors.New("rollback target missing")
)

// Unit describes one phase's external mutator.
type Unit struct {
	// Name identifies the phase in logs and results.
	Name string

	// Candidates is the binary resolution fallback order: a configured
	// absolute path first, then tool names searched on PATH.
	Candidates []string

	// Args are unit-specific flags appended after the contract arguments.
	Args []string

	// Timeout is the phase's wall-clock budget. Zero uses the
	// orchestrator default.
	Timeout time.Duration
}

// Invocation carries the per-run contract arguments passed to every unit.
type Invocation struct {
	Mode          Mode
	RunID         string
	WorkspaceRoot string
	LogFile       string
	ContextFile   string

	// TargetContextFile points a rollback unit at prior state. Required
	// for rollback mode.
	TargetContextFile string
}

// PhaseResult records the outcome of one phase.
type PhaseResult struct {
	Unit     string        `json:"unit" yaml:"unit"`
	State    State         `json:"state" yaml:"state"`
	ExitCode int           `json:"exit_code" yaml:"exit_code"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// PipelineResult aggregates the phase outcomes of one pipeline run.
// Phases never reached keep StateNotStarted.
type PipelineResult struct {
	Mode   Mode          `json:"mode" yaml:"mode"`
	State  State         `json:"state" yaml:"state"`
	Phases []PhaseResult `json:"phases" yaml:"phases"`
}
