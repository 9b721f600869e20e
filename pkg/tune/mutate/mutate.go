// Package mutate implements the journaled key-value mutators. Every
// mutation follows the same contract: read the existing state, apply the
// change, read back the result, and record a change entry before the
// mutation is considered durable. The read-back matters because the
// platform may clamp or transform the written value; the journal records
// effect, not intent.
//
// Errors are returned to the caller rather than swallowed; the phase
// driving the mutator decides whether to continue or abort.
package mutate

import (
	"context"
	"fmt"

	"github.com/tunectl/tunectl/pkg/tune/journal"
	"github.com/tunectl/tunectl/pkg/tune/logging"
	"github.com/tunectl/tunectl/pkg/tune/runctx"
	"github.com/tunectl/tunectl/pkg/tune/state"
)

// StateReadError indicates the "before" snapshot could not be taken, for
// example due to permissions. Callers typically log it and skip the
// mutation rather than applying blind.
type StateReadError struct {
	Key string
	Err error
}

func (e *StateReadError) Error() string {
	return fmt.Sprintf("reading current state of %s: %v", e.Key, e.Err)
}

func (e *StateReadError) Unwrap() error { return e.Err }

// Mutator applies journaled changes to a system through a run context.
type Mutator struct {
	run *runctx.RunContext
	sys *state.System
	log *logging.Logger
}

// New creates a Mutator writing through the given run context.
func New(run *runctx.RunContext, sys *state.System, logger *logging.Logger) *Mutator {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Mutator{run: run, sys: sys, log: logger.Named("mutate")}
}

// SetRegistryDWord writes a numeric registry value, journaling the
// before/after pair. The container key is created if absent.
func (m *Mutator) SetRegistryDWord(ctx context.Context, path, name string, value int64, note string) error {
	return m.setRegistry(ctx, path, name, note, func() error {
		return m.sys.Registry.SetDWord(ctx, path, name, value)
	})
}

// SetRegistryString writes a string registry value, journaling the
// before/after pair.
func (m *Mutator) SetRegistryString(ctx context.Context, path, name, value, note string) error {
	return m.setRegistry(ctx, path, name, note, func() error {
		return m.sys.Registry.SetString(ctx, path, name, value)
	})
}

func (m *Mutator) setRegistry(ctx context.Context, path, name, note string, write func() error) error {
	key := path + `\` + name

	if err := m.sys.Registry.EnsureKey(ctx, path); err != nil {
		return fmt.Errorf("ensuring key %s: %w", path, err)
	}

	before, err := m.sys.Registry.GetValue(ctx, path, name)
	if err != nil {
		return &StateReadError{Key: key, Err: err}
	}

	if err := write(); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}

	after, err := m.sys.Registry.GetValue(ctx, path, name)
	if err != nil {
		return fmt.Errorf("reading back %s: %w", key, err)
	}

	if _, err := m.run.Record(journal.CategoryRegistry, key, before, after, note); err != nil {
		return err
	}
	m.log.Debug("registry value set", "key", key, "before", before.Display(), "after", after.Display())
	return nil
}

// SetService moves a service to the desired startup type and run state.
// Transitions already satisfied are not applied, and a fully satisfied
// request journals nothing: no-ops leave no trace.
func (m *Mutator) SetService(ctx context.Context, name string, startup journal.StartupType, status journal.ServiceStatus, note string) error {
	before, err := m.sys.Services.Query(ctx, name)
	if err != nil {
		return &StateReadError{Key: name, Err: err}
	}

	if before.StartupType == startup && before.Status == status {
		m.log.Debug("service already in desired state", "service", name)
		return nil
	}

	if before.StartupType != startup {
		if err := m.sys.Services.SetStartupType(ctx, name, startup); err != nil {
			return fmt.Errorf("setting startup type of %s: %w", name, err)
		}
	}
	if before.Status != status {
		var err error
		if status == journal.StatusRunning {
			err = m.sys.Services.Start(ctx, name)
		} else {
			err = m.sys.Services.Stop(ctx, name)
		}
		if err != nil {
			return fmt.Errorf("changing run state of %s: %w", name, err)
		}
	}

	after, err := m.sys.Services.Query(ctx, name)
	if err != nil {
		return fmt.Errorf("reading back service %s: %w", name, err)
	}

	if _, err := m.run.Record(journal.CategoryService, name, journal.Service(before), journal.Service(after), note); err != nil {
		return err
	}
	m.log.Debug("service reconfigured",
		"service", name, "before", journal.Service(before).Display(), "after", journal.Service(after).Display())
	return nil
}

// SetActiveScheme activates a power scheme, journaling the previous one
// under the well-known activeScheme key.
func (m *Mutator) SetActiveScheme(ctx context.Context, schemeID, note string) error {
	current, err := m.sys.Power.ActiveScheme(ctx)
	if err != nil {
		return &StateReadError{Key: journal.KeyActiveScheme, Err: err}
	}

	if err := m.sys.Power.SetActiveScheme(ctx, schemeID); err != nil {
		return fmt.Errorf("activating scheme %s: %w", schemeID, err)
	}

	after, err := m.sys.Power.ActiveScheme(ctx)
	if err != nil {
		return fmt.Errorf("reading back active scheme: %w", err)
	}

	if _, err := m.run.Record(journal.CategoryPower, journal.KeyActiveScheme,
		journal.String(current), journal.String(after), note); err != nil {
		return err
	}
	m.log.Debug("power scheme activated", "before", current, "after", after)
	return nil
}
