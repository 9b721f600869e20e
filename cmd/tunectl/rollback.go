package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tunectl/tunectl/pkg/tune/config"
	"github.com/tunectl/tunectl/pkg/tune/execx"
	"github.com/tunectl/tunectl/pkg/tune/journal"
	"github.com/tunectl/tunectl/pkg/tune/logging"
	"github.com/tunectl/tunectl/pkg/tune/output"
	"github.com/tunectl/tunectl/pkg/tune/phase"
	"github.com/tunectl/tunectl/pkg/tune/rollback"
	"github.com/tunectl/tunectl/pkg/tune/runctx"
	"github.com/tunectl/tunectl/pkg/tune/state"
)

var rollbackCmd = &cobra.Command{
	Use:   "rollback <context-file>",
	Short: "Undo a prior tuning run",
	Long: `Undo the changes of a prior run using its persisted context file.

By default the configured rollback units run in order, each restoring its
own categories. With --direct the built-in restoration engine replays the
journal in-process instead, which works even when no units are installed.

Restoration is best-effort per key: a key that fails to restore is logged
and the remaining keys are still attempted.`,
	Args: cobra.ExactArgs(1),
	RunE: runRollback,
}

var (
	rollbackDirect     bool
	rollbackCategories []string
	rollbackKeyPrefix  string
)

func init() {
	rollbackCmd.Flags().BoolVar(&rollbackDirect, "direct", false, "replay the journal in-process instead of running rollback units")
	rollbackCmd.Flags().StringSliceVar(&rollbackCategories, "category", nil, "restrict restoration to these categories (registry, service, powercfg, ...)")
	rollbackCmd.Flags().StringVar(&rollbackKeyPrefix, "key-prefix", "", "restrict restoration to keys with this prefix")
	rootCmd.AddCommand(rollbackCmd)
}

func runRollback(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	targetPath := args[0]
	target, err := loadRollbackTarget(targetPath)
	if err != nil {
		if target == nil {
			return err
		}
		// Checksum mismatch: the journal decoded but may be incomplete.
		// Restoration stays best-effort, so warn and continue.
		printError("%v; continuing with the decoded journal", err)
	}

	if target.Journal().Len() == 0 {
		printInfo("Target %s has an empty journal; nothing to roll back.", target.RunID)
		return nil
	}

	logger, err := newLogger(cfg, target.LogFile)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()

	logger.Info("rollback requested", "target", targetPath, "direct", rollbackDirect)

	if rollbackDirect {
		return runDirectRollback(cmd, cfg, target, logger)
	}

	orch := newOrchestrator(cfg, logger, buildUnits(cfg))
	res, pipeErr := orch.Rollback(cmd.Context(), phase.Invocation{
		RunID:             runctx.NewID(),
		WorkspaceRoot:     cfg.Workspace,
		LogFile:           target.LogFile,
		ContextFile:       target.ContextFile,
		TargetContextFile: targetPath,
	})

	if err := render(&output.Report{Pipeline: &res}); err != nil {
		return err
	}
	return pipeErr
}

// runDirectRollback replays the target journal with the in-process engine
// over the command-backed system stores.
func runDirectRollback(cmd *cobra.Command, cfg *config.Config, target *runctx.RunContext, logger *logging.Logger) error {
	runner := execx.NewRunner(logger)
	sys, err := commandSystem(runner, cfg)
	if err != nil {
		return err
	}

	engine := rollback.NewEngine(sys, logger)
	res := engine.Run(cmd.Context(), target, rollbackFilters())

	if err := render(&output.Report{Rollback: &res}); err != nil {
		return err
	}
	if res.Quality == rollback.QualityNone {
		return fmt.Errorf("rollback of %s restored nothing", target.RunID)
	}
	return nil
}

// loadRollbackTarget reads the target context. A target that cannot be
// decoded at all, whether missing or corrupt, counts as a missing target
// so the process exits with the dedicated code. A checksum mismatch still
// returns the decoded context alongside the error.
func loadRollbackTarget(path string) (*runctx.RunContext, error) {
	target, err := runctx.Load(path)
	if target == nil && err != nil {
		return nil, fmt.Errorf("%w: %v", phase.ErrTargetMissing, err)
	}
	return target, err
}

// rollbackFilters translates the CLI flags into journal filters.
func rollbackFilters() []journal.Filter {
	if len(rollbackCategories) == 0 && rollbackKeyPrefix == "" {
		return nil
	}
	if len(rollbackCategories) == 0 {
		return []journal.Filter{{KeyPrefix: rollbackKeyPrefix}}
	}
	filters := make([]journal.Filter, 0, len(rollbackCategories))
	for _, c := range rollbackCategories {
		filters = append(filters, journal.Filter{
			Category:  journal.Category(c),
			KeyPrefix: rollbackKeyPrefix,
		})
	}
	return filters
}

// commandSystem builds the command-backed stores from configured tool
// paths.
func commandSystem(runner *execx.Runner, cfg *config.Config) (*state.System, error) {
	reg, err := state.NewCmdRegistry(runner, cfg.Tools.Registry)
	if err != nil {
		return nil, err
	}
	svc, err := state.NewCmdServices(runner, cfg.Tools.Services)
	if err != nil {
		return nil, err
	}
	pow, err := state.NewCmdPower(runner, cfg.Tools.Power)
	if err != nil {
		return nil, err
	}
	return &state.System{Registry: reg, Services: svc, Power: pow}, nil
}
