// Package rollback replays a previously persisted run context, restoring
// each journaled key to its "before" snapshot or deleting keys that did
// not exist before the run.
//
// Restoration is deliberately best-effort, unlike Apply: a key that fails
// to restore is logged and counted, and the remaining keys are still
// attempted. Rollback itself is never journaled; rolling back a rollback
// is unsupported.
package rollback

import (
	"context"
	"fmt"

	"github.com/tunectl/tunectl/pkg/tune/journal"
	"github.com/tunectl/tunectl/pkg/tune/logging"
	"github.com/tunectl/tunectl/pkg/tune/runctx"
	"github.com/tunectl/tunectl/pkg/tune/state"
)

// Quality grades how completely a rollback restored the target journal.
type Quality string

// Rollback outcome grades.
const (
	QualityFull    Quality = "full"
	QualityPartial Quality = "partial"
	QualityNone    Quality = "none"
)

// Result summarizes one rollback pass.
type Result struct {
	RunID    string   `json:"run_id" yaml:"run_id"`
	Restored int      `json:"restored" yaml:"restored"`
	Deleted  int      `json:"deleted" yaml:"deleted"`
	Failed   int      `json:"failed" yaml:"failed"`
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Quality  Quality  `json:"quality" yaml:"quality"`
}

// Engine restores system state from a target run context.
type Engine struct {
	sys *state.System
	log *logging.Logger
}

// NewEngine creates a rollback engine over the given system stores.
func NewEngine(sys *state.System, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Engine{sys: sys, log: logger.Named("rollback")}
}

// Run replays the journal entries of the target matching any of the
// filters, in original insertion order. Nil or empty filters match the
// whole journal. Per-key failures are recorded in the result and do not
// stop the pass.
func (e *Engine) Run(ctx context.Context, target *runctx.RunContext, filters []journal.Filter) Result {
	res := Result{RunID: target.RunID}

	entries := selectEntries(target.Journal(), filters)
	e.log.Info("rollback started", "run_id", target.RunID, "entries", len(entries))

	for _, entry := range entries {
		var err error
		deleted := false
		switch entry.Category {
		case journal.CategoryService:
			err = e.restoreService(ctx, entry, &res)
		case journal.CategoryPower:
			err = e.restorePower(ctx, entry)
		case journal.CategoryRegistry:
			deleted, err = e.restoreRegistry(ctx, entry)
		default:
			// bcdedit and netsh changes are restored by their own units;
			// the in-process engine has no store for them.
			err = fmt.Errorf("category %s is not restorable in-process", entry.Category)
		}

		if err != nil {
			res.Failed++
			w := fmt.Sprintf("restoring %s %s: %v", entry.Category, entry.Key, err)
			res.Warnings = append(res.Warnings, w)
			e.log.Warn("restore failed, continuing", "category", entry.Category, "key", entry.Key, "error", err)
			continue
		}
		if deleted {
			res.Deleted++
		} else {
			res.Restored++
		}
		e.log.Debug("restored", "category", entry.Category, "key", entry.Key, "to", entry.Before.Display())
	}

	res.Quality = grade(res)
	e.log.Info("rollback finished",
		"run_id", target.RunID, "restored", res.Restored, "deleted", res.Deleted,
		"failed", res.Failed, "quality", res.Quality)
	return res
}

// selectEntries returns the union of entries matching the filters, in the
// journal's insertion order, with activeScheme collapsed to its last
// occurrence: only the most recent scheme entry reflects what to restore.
func selectEntries(j *journal.Journal, filters []journal.Filter) []journal.ChangeEntry {
	if len(filters) == 0 {
		filters = []journal.Filter{{}}
	}

	all := j.Entries()
	lastScheme := -1
	for i, e := range all {
		if e.Category == journal.CategoryPower && e.Key == journal.KeyActiveScheme {
			lastScheme = i
		}
	}

	var out []journal.ChangeEntry
	for i, e := range all {
		if e.Category == journal.CategoryPower && e.Key == journal.KeyActiveScheme && i != lastScheme {
			continue
		}
		for _, f := range filters {
			if f.Matches(e) {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

// restoreRegistry writes the before value back, or deletes the value when
// it did not previously exist. Reports whether a deletion happened.
func (e *Engine) restoreRegistry(ctx context.Context, entry journal.ChangeEntry) (bool, error) {
	path, name, err := splitKey(entry.Key)
	if err != nil {
		return false, err
	}

	before := entry.Before
	switch {
	case before.IsAbsent():
		// Deleting an already-absent value is a no-op, not an error.
		return true, e.sys.Registry.DeleteValue(ctx, path, name)
	case before.Kind == journal.KindInt:
		return false, e.sys.Registry.SetDWord(ctx, path, name, before.Int)
	case before.Kind == journal.KindString:
		return false, e.sys.Registry.SetString(ctx, path, name, before.String)
	default:
		return false, fmt.Errorf("snapshot kind %q cannot be written to the registry", before.Kind)
	}
}

// restoreService reapplies the snapshotted startup type and run state.
// A stored startup type outside the known set falls back to manual; the
// divergence is surfaced as a warning instead of silently "fixed".
func (e *Engine) restoreService(ctx context.Context, entry journal.ChangeEntry, res *Result) error {
	before := entry.Before.Service
	if before == nil {
		return fmt.Errorf("service entry has no composite snapshot")
	}

	startup := before.StartupType
	switch startup {
	case journal.StartupAutomatic, journal.StartupManual, journal.StartupDisabled:
	default:
		w := fmt.Sprintf("service %s: stored startup type %q unknown, falling back to manual", entry.Key, startup)
		res.Warnings = append(res.Warnings, w)
		e.log.Warn("unknown stored startup type", "service", entry.Key, "stored", string(startup), "fallback", "manual")
		startup = journal.StartupManual
	}

	if err := e.sys.Services.SetStartupType(ctx, entry.Key, startup); err != nil {
		return err
	}

	if before.Status == journal.StatusRunning {
		return e.sys.Services.Start(ctx, entry.Key)
	}
	return e.sys.Services.Stop(ctx, entry.Key)
}

// restorePower reactivates the scheme recorded before the last change.
func (e *Engine) restorePower(ctx context.Context, entry journal.ChangeEntry) error {
	if entry.Before.Kind != journal.KindString || entry.Before.String == "" {
		return fmt.Errorf("scheme entry has no usable before snapshot")
	}
	return e.sys.Power.SetActiveScheme(ctx, entry.Before.String)
}

// splitKey splits "path\name" on the final separator.
func splitKey(key string) (path, name string, err error) {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == '\\' {
			return key[:i], key[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("key %q has no path separator", key)
}

func grade(res Result) Quality {
	attempted := res.Restored + res.Deleted + res.Failed
	switch {
	case attempted == 0:
		return QualityNone
	case res.Failed == 0:
		return QualityFull
	case res.Restored+res.Deleted == 0:
		return QualityNone
	default:
		return QualityPartial
	}
}
