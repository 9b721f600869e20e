package state

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tunectl/tunectl/pkg/tune/journal"
)

func TestMemRegistry_ValueLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	reg := NewMemRegistry()

	// Writes into a missing key fail.
	err := reg.SetDWord(ctx, `HKLM\Sys\Net`, "TcpAckFrequency", 1)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, reg.EnsureKey(ctx, `HKLM\Sys\Net`))
	require.NoError(t, reg.SetDWord(ctx, `HKLM\Sys\Net`, "TcpAckFrequency", 1))

	got, err := reg.GetValue(ctx, `HKLM\Sys\Net`, "TcpAckFrequency")
	require.NoError(t, err)
	assert.True(t, got.Equal(journal.Int(1)))

	require.NoError(t, reg.SetString(ctx, `HKLM\Sys\Net`, "TcpAckFrequency", "off"))
	got, err = reg.GetValue(ctx, `HKLM\Sys\Net`, "TcpAckFrequency")
	require.NoError(t, err)
	assert.True(t, got.Equal(journal.String("off")))

	require.NoError(t, reg.DeleteValue(ctx, `HKLM\Sys\Net`, "TcpAckFrequency"))
	got, err = reg.GetValue(ctx, `HKLM\Sys\Net`, "TcpAckFrequency")
	require.NoError(t, err)
	assert.True(t, got.IsAbsent())

	// Deleting again is still fine.
	require.NoError(t, reg.DeleteValue(ctx, `HKLM\Sys\Net`, "TcpAckFrequency"))
}

func TestMemRegistry_Faults(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	reg := NewMemRegistry()
	require.NoError(t, reg.EnsureKey(ctx, `HKLM\Sys`))
	reg.Faults[`HKLM\Sys\Locked`] = ErrAccessDenied

	_, err := reg.GetValue(ctx, `HKLM\Sys`, "Locked")
	require.ErrorIs(t, err, ErrAccessDenied)

	err = reg.SetDWord(ctx, `HKLM\Sys`, "Locked", 1)
	require.ErrorIs(t, err, ErrAccessDenied)
}

func TestMemServices_Transitions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := NewMemServices(map[string]journal.ServiceState{
		"SysMain": {Status: journal.StatusRunning, StartupType: journal.StartupAutomatic},
	})

	got, err := svc.Query(ctx, "SysMain")
	require.NoError(t, err)
	assert.Equal(t, journal.StatusRunning, got.Status)

	require.NoError(t, svc.SetStartupType(ctx, "SysMain", journal.StartupDisabled))
	require.NoError(t, svc.Stop(ctx, "SysMain"))

	got, err = svc.Query(ctx, "SysMain")
	require.NoError(t, err)
	assert.Equal(t, journal.StartupDisabled, got.StartupType)
	assert.Equal(t, journal.StatusStopped, got.Status)

	_, err = svc.Query(ctx, "NoSuchService")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemPower(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	pow := NewMemPower("balanced")

	got, err := pow.ActiveScheme(ctx)
	require.NoError(t, err)
	assert.Equal(t, "balanced", got)

	require.NoError(t, pow.SetActiveScheme(ctx, "high-performance"))
	got, err = pow.ActiveScheme(ctx)
	require.NoError(t, err)
	assert.Equal(t, "high-performance", got)

	pow.Fault = errors.New("power interface unavailable")
	_, err = pow.ActiveScheme(ctx)
	require.Error(t, err)
}

func TestParseStatus(t *testing.T) {
	t.Parallel()

	running := []string{
		"SERVICE_NAME: SysMain",
		"        TYPE               : 20  WIN32_SHARE_PROCESS",
		"        STATE              : 4  RUNNING",
	}
	assert.Equal(t, journal.StatusRunning, parseStatus(running))

	stopped := []string{"        STATE              : 1  STOPPED"}
	assert.Equal(t, journal.StatusStopped, parseStatus(stopped))

	assert.Equal(t, journal.StatusStopped, parseStatus(nil))
}

func TestParseStartupType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		line string
		want journal.StartupType
	}{
		{"        START_TYPE         : 2   AUTO_START", journal.StartupAutomatic},
		{"        START_TYPE         : 3   DEMAND_START", journal.StartupManual},
		{"        START_TYPE         : 4   DISABLED", journal.StartupDisabled},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseStartupType([]string{tt.line}), "line %q", tt.line)
	}
	assert.Equal(t, journal.StartupManual, parseStartupType(nil))
}

func TestValueLineParsing(t *testing.T) {
	t.Parallel()

	m := valueLine.FindStringSubmatch("    TcpAckFrequency    REG_DWORD    0x1")
	require.NotNil(t, m)
	assert.Equal(t, "TcpAckFrequency", m[1])
	assert.Equal(t, "REG_DWORD", m[2])
	assert.Equal(t, "0x1", m[3])

	m = valueLine.FindStringSubmatch("    NetworkThrottlingIndex    REG_SZ    ffffffff")
	require.NotNil(t, m)
	assert.Equal(t, "REG_SZ", m[2])
}

func TestSchemeGUIDParsing(t *testing.T) {
	t.Parallel()

	line := "Power Scheme GUID: 8c5e7fda-e8bf-4a96-9a85-a6e23a8c635c  (High performance)"
	assert.Equal(t, "8c5e7fda-e8bf-4a96-9a85-a6e23a8c635c", schemeGUID.FindString(line))
	assert.Empty(t, schemeGUID.FindString("no guid here"))
}
