package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tunectl/tunectl/pkg/tune/config"
	"github.com/tunectl/tunectl/pkg/tune/journal"
	"github.com/tunectl/tunectl/pkg/tune/phase"
	"github.com/tunectl/tunectl/pkg/tune/runctx"
)

func TestBuildUnits(t *testing.T) {
	cfg := &config.Config{
		Phases: []config.PhaseConfig{
			{Name: "power", Command: []string{"/opt/tunectl-power", "tunectl-power"}, Timeout: 2 * time.Minute},
			{Name: "registry", Command: []string{"tunectl-registry"}, Args: []string{"--aggressive"}},
		},
	}

	t.Run("maps phases in order", func(t *testing.T) {
		applyTimeout = 0
		units := buildUnits(cfg)
		require.Len(t, units, 2)
		assert.Equal(t, "power", units[0].Name)
		assert.Equal(t, []string{"/opt/tunectl-power", "tunectl-power"}, units[0].Candidates)
		assert.Equal(t, 2*time.Minute, units[0].Timeout)
		assert.Equal(t, []string{"--aggressive"}, units[1].Args)
		assert.Zero(t, units[1].Timeout)
	})

	t.Run("flag overrides per-phase timeouts", func(t *testing.T) {
		applyTimeout = 30 * time.Second
		defer func() { applyTimeout = 0 }()
		units := buildUnits(cfg)
		assert.Equal(t, 30*time.Second, units[0].Timeout)
		assert.Equal(t, 30*time.Second, units[1].Timeout)
	})
}

func TestRollbackFilters(t *testing.T) {
	reset := func() {
		rollbackCategories = nil
		rollbackKeyPrefix = ""
	}

	t.Run("no flags means no filters", func(t *testing.T) {
		reset()
		assert.Nil(t, rollbackFilters())
	})

	t.Run("prefix only", func(t *testing.T) {
		reset()
		rollbackKeyPrefix = `HKLM\SYSTEM`
		filters := rollbackFilters()
		require.Len(t, filters, 1)
		assert.Equal(t, journal.Category(""), filters[0].Category)
		assert.Equal(t, `HKLM\SYSTEM`, filters[0].KeyPrefix)
	})

	t.Run("one filter per category", func(t *testing.T) {
		reset()
		rollbackCategories = []string{"registry", "service"}
		rollbackKeyPrefix = "Tcp"
		filters := rollbackFilters()
		require.Len(t, filters, 2)
		assert.Equal(t, journal.CategoryRegistry, filters[0].Category)
		assert.Equal(t, journal.CategoryService, filters[1].Category)
		assert.Equal(t, "Tcp", filters[1].KeyPrefix)
	})
}

func TestFindRun(t *testing.T) {
	workspace := t.TempDir()

	run, err := runctx.New("run-001", workspace)
	require.NoError(t, err)
	require.NoError(t, run.Persist())

	t.Run("known run", func(t *testing.T) {
		path, err := findRun(workspace, "run-001")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(workspace, "run-001", runctx.ContextFileName), path)
	})

	t.Run("unknown run", func(t *testing.T) {
		_, err := findRun(workspace, "run-999")
		assert.ErrorContains(t, err, "run-999")
	})
}

func TestLoadRollbackTarget(t *testing.T) {
	t.Parallel()

	t.Run("missing file maps to missing target", func(t *testing.T) {
		t.Parallel()
		_, err := loadRollbackTarget(filepath.Join(t.TempDir(), "gone.json"))
		require.ErrorIs(t, err, phase.ErrTargetMissing)
	})

	t.Run("corrupt file maps to missing target", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "ctx.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

		target, err := loadRollbackTarget(path)
		require.ErrorIs(t, err, phase.ErrTargetMissing)
		assert.Nil(t, target)
	})

	t.Run("valid file loads", func(t *testing.T) {
		t.Parallel()
		workspace := t.TempDir()
		run, err := runctx.New("run-ok", workspace)
		require.NoError(t, err)
		require.NoError(t, run.Persist())

		target, err := loadRollbackTarget(run.ContextFile)
		require.NoError(t, err)
		assert.Equal(t, "run-ok", target.RunID)
	})
}

func TestTruncateKey(t *testing.T) {
	assert.Equal(t, "short", truncateKey("short", 10))
	long := `HKLM\SYSTEM\CurrentControlSet\Services\Tcpip\Parameters`
	got := truncateKey(long, 20)
	assert.Len(t, got, 20)
	assert.Equal(t, "...", got[:3])
	assert.Equal(t, long[len(long)-17:], got[3:])
}
