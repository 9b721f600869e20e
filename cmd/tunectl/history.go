package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tunectl/tunectl/pkg/tune/config"
	"github.com/tunectl/tunectl/pkg/tune/output"
	"github.com/tunectl/tunectl/pkg/tune/runctx"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List prior tuning runs",
	Long: `List the tuning runs recorded in the workspace.

Every run persists a context file with its full change journal. The
listing shows the run ID, when it started, and how many changes it
journaled. Use 'history show' to inspect a single run's journal.`,
	RunE: runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the change journal of a run",
	Long:  `Display every journaled change of a run, oldest first.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyLimit int

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", config.DefaultHistoryLimit, "maximum number of runs to show")

	historyCmd.AddCommand(historyShowCmd)
	rootCmd.AddCommand(historyCmd)
}

// runHistory lists recent runs.
func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	runs, err := runctx.List(cfg.Workspace, historyLimit)
	if err != nil {
		return fmt.Errorf("listing runs: %w", err)
	}

	if len(runs) == 0 {
		printInfo("No runs found in %s.", cfg.Workspace)
		printInfo("Run 'tunectl apply' to start a tuning run.")
		return nil
	}

	return render(&output.Report{Runs: runs})
}

// runHistoryShow prints the journal of a single run.
func runHistoryShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	target, err := findRun(cfg.Workspace, args[0])
	if err != nil {
		return err
	}

	rc, err := runctx.Load(target)
	if err != nil {
		if rc == nil {
			return fmt.Errorf("loading run: %w", err)
		}
		printError("%v", err)
	}

	entries := rc.Journal().Entries()
	printInfo("Run %s started %s, %d change(s)", rc.RunID, rc.StartedAt.Format("2006-01-02 15:04:05"), len(entries))
	if len(entries) == 0 {
		return nil
	}

	fmt.Printf("\n%-20s  %-10s  %-45s  %s\n", "TIME", "CATEGORY", "KEY", "BEFORE -> AFTER")
	fmt.Println(strings.Repeat("-", 100))
	for _, e := range entries {
		fmt.Printf("%-20s  %-10s  %-45s  %s -> %s\n",
			e.Timestamp.Format("2006-01-02 15:04:05"),
			e.Category,
			truncateKey(e.Key, 45),
			e.Before.Display(),
			e.After.Display(),
		)
	}
	return nil
}

// findRun resolves a run ID to its context file within the workspace.
func findRun(workspace, runID string) (string, error) {
	runs, err := runctx.List(workspace, 0)
	if err != nil {
		return "", fmt.Errorf("listing runs: %w", err)
	}
	for _, r := range runs {
		if r.RunID == runID {
			return r.ContextFile, nil
		}
	}
	return "", fmt.Errorf("run %q not found in %s", runID, workspace)
}

// truncateKey shortens long registry paths for the fixed-width listing.
func truncateKey(key string, max int) string {
	if len(key) <= max {
		return key
	}
	return "..." + key[len(key)-(max-3):]
}
