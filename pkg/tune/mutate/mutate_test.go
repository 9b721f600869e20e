package mutate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tunectl/tunectl/pkg/tune/journal"
	"github.com/tunectl/tunectl/pkg/tune/runctx"
	"github.com/tunectl/tunectl/pkg/tune/state"
)

func newTestMutator(t *testing.T) (*Mutator, *runctx.RunContext, *state.MemRegistry, *state.MemServices, *state.MemPower) {
	t.Helper()
	run, err := runctx.New("run-test", t.TempDir())
	require.NoError(t, err)

	sys, reg, svc, pow := state.NewMemSystem()
	return New(run, sys, nil), run, reg, svc, pow
}

func TestSetRegistryDWord_JournalsBeforeAndAfter(t *testing.T) {
	t.Parallel()

	m, run, reg, _, _ := newTestMutator(t)
	ctx := context.Background()

	require.NoError(t, m.SetRegistryDWord(ctx, `HKLM\Sys\Net`, "TcpAckFrequency", 1, "disable delayed ack"))

	// The container key is created on demand.
	assert.True(t, reg.HasKey(`HKLM\Sys\Net`))

	entries := run.Journal().Entries()
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, journal.CategoryRegistry, e.Category)
	assert.Equal(t, `HKLM\Sys\Net\TcpAckFrequency`, e.Key)
	assert.True(t, e.Before.IsAbsent(), "value did not previously exist")
	assert.True(t, e.After.Equal(journal.Int(1)))
	assert.Equal(t, "disable delayed ack", e.Note)
}

func TestSetRegistryDWord_OverwriteKeepsOldValueAsBefore(t *testing.T) {
	t.Parallel()

	m, run, _, _, _ := newTestMutator(t)
	ctx := context.Background()

	require.NoError(t, m.SetRegistryDWord(ctx, `HKLM\Sys`, "Index", 10, ""))
	require.NoError(t, m.SetRegistryDWord(ctx, `HKLM\Sys`, "Index", 20, ""))

	entries := run.Journal().Entries()
	require.Len(t, entries, 2)
	assert.True(t, entries[1].Before.Equal(journal.Int(10)))
	assert.True(t, entries[1].After.Equal(journal.Int(20)))
}

func TestSetRegistryString(t *testing.T) {
	t.Parallel()

	m, run, _, _, _ := newTestMutator(t)
	ctx := context.Background()

	require.NoError(t, m.SetRegistryString(ctx, `HKLM\Sys`, "Dns", "1.1.1.1", ""))

	entries := run.Journal().Entries()
	require.Len(t, entries, 1)
	assert.True(t, entries[0].After.Equal(journal.String("1.1.1.1")))
}

func TestSetRegistry_ReadFailureSkipsWrite(t *testing.T) {
	t.Parallel()

	m, run, reg, _, _ := newTestMutator(t)
	ctx := context.Background()
	reg.Faults[`HKLM\Sys\Locked`] = state.ErrAccessDenied

	err := m.SetRegistryDWord(ctx, `HKLM\Sys`, "Locked", 1, "")
	var readErr *StateReadError
	require.ErrorAs(t, err, &readErr)
	require.ErrorIs(t, err, state.ErrAccessDenied)

	// Nothing reached the journal, so nothing can be rolled back wrong.
	assert.Equal(t, 0, run.Journal().Len())
}

func TestSetService_JournalsTransition(t *testing.T) {
	t.Parallel()

	m, run, _, svc, _ := newTestMutator(t)
	ctx := context.Background()
	seedService(svc, "SysMain", journal.StatusRunning, journal.StartupAutomatic)

	require.NoError(t, m.SetService(ctx, "SysMain", journal.StartupDisabled, journal.StatusStopped, "disable prefetch"))

	entries := run.Journal().Entries()
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].Before.Service)
	assert.Equal(t, journal.StartupAutomatic, entries[0].Before.Service.StartupType)
	assert.Equal(t, journal.StatusRunning, entries[0].Before.Service.Status)
	require.NotNil(t, entries[0].After.Service)
	assert.Equal(t, journal.StartupDisabled, entries[0].After.Service.StartupType)
	assert.Equal(t, journal.StatusStopped, entries[0].After.Service.Status)
}

func TestSetService_NoOpIsNotJournaled(t *testing.T) {
	t.Parallel()

	m, run, _, svc, _ := newTestMutator(t)
	ctx := context.Background()
	seedService(svc, "Spooler", journal.StatusRunning, journal.StartupAutomatic)

	require.NoError(t, m.SetService(ctx, "Spooler", journal.StartupDisabled, journal.StatusStopped, ""))
	require.NoError(t, m.SetService(ctx, "Spooler", journal.StartupDisabled, journal.StatusStopped, ""))

	// The second call satisfied nothing, so exactly one entry exists.
	assert.Equal(t, 1, run.Journal().Len())
}

func TestSetService_PartialTransition(t *testing.T) {
	t.Parallel()

	m, run, _, svc, _ := newTestMutator(t)
	ctx := context.Background()
	// Already stopped; only the startup type differs.
	seedService(svc, "DiagTrack", journal.StatusStopped, journal.StartupAutomatic)

	require.NoError(t, m.SetService(ctx, "DiagTrack", journal.StartupDisabled, journal.StatusStopped, ""))

	entries := run.Journal().Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, journal.StartupDisabled, entries[0].After.Service.StartupType)
	assert.Equal(t, journal.StatusStopped, entries[0].After.Service.Status)
}

func TestSetService_QueryFailure(t *testing.T) {
	t.Parallel()

	m, run, _, svc, _ := newTestMutator(t)
	ctx := context.Background()
	svc.Faults["Ghost"] = errors.New("rpc unavailable")

	err := m.SetService(ctx, "Ghost", journal.StartupDisabled, journal.StatusStopped, "")
	var readErr *StateReadError
	require.ErrorAs(t, err, &readErr)
	assert.Equal(t, 0, run.Journal().Len())
}

func TestSetActiveScheme(t *testing.T) {
	t.Parallel()

	m, run, _, _, pow := newTestMutator(t)
	ctx := context.Background()

	require.NoError(t, m.SetActiveScheme(ctx, "high-performance", "latency plan"))

	got, err := pow.ActiveScheme(ctx)
	require.NoError(t, err)
	assert.Equal(t, "high-performance", got)

	entries := run.Journal().Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, journal.CategoryPower, entries[0].Category)
	assert.Equal(t, journal.KeyActiveScheme, entries[0].Key)
	assert.True(t, entries[0].Before.Equal(journal.String("balanced")))
	assert.True(t, entries[0].After.Equal(journal.String("high-performance")))
}

func TestMutations_PersistImmediately(t *testing.T) {
	t.Parallel()

	m, run, _, _, _ := newTestMutator(t)
	ctx := context.Background()

	require.NoError(t, m.SetRegistryDWord(ctx, `HKLM\Sys`, "A", 1, ""))

	loaded, err := runctx.Load(run.ContextFile)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Journal().Len())
}

func seedService(svc *state.MemServices, name string, status journal.ServiceStatus, startup journal.StartupType) {
	svc.Seed(name, journal.ServiceState{Status: status, StartupType: startup})
}
