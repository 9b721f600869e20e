package journal

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournal_Record_AppendsInOrder(t *testing.T) {
	t.Parallel()

	j := New()
	j.Record(CategoryRegistry, `HKLM\System\A`, Absent(), Int(1), "first")
	j.Record(CategoryService, "Spooler", Service(ServiceState{Status: StatusRunning, StartupType: StartupAutomatic}), Service(ServiceState{Status: StatusStopped, StartupType: StartupDisabled}), "second")
	j.Record(CategoryRegistry, `HKLM\System\B`, Int(5), Int(10), "third")

	entries := j.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, `HKLM\System\A`, entries[0].Key)
	assert.Equal(t, "Spooler", entries[1].Key)
	assert.Equal(t, `HKLM\System\B`, entries[2].Key)
	assert.False(t, entries[0].Timestamp.IsZero())
}

func TestJournal_Len_Monotonic(t *testing.T) {
	t.Parallel()

	j := New()
	prev := j.Len()
	for i := 0; i < 10; i++ {
		j.Record(CategoryRegistry, "k", Absent(), Int(int64(i)), "")
		require.Greater(t, j.Len(), prev)
		prev = j.Len()
	}
}

func TestJournal_Query_EmptyFilterReturnsAll(t *testing.T) {
	t.Parallel()

	j := New()
	j.Record(CategoryRegistry, "a", Absent(), Int(1), "")
	j.Record(CategoryPower, KeyActiveScheme, String("balanced"), String("high-perf"), "")
	j.Record(CategoryService, "Audio", Absent(), Service(ServiceState{Status: StatusStopped, StartupType: StartupDisabled}), "")

	got := j.Query(Filter{})
	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].Key)
	assert.Equal(t, KeyActiveScheme, got[1].Key)
	assert.Equal(t, "Audio", got[2].Key)
}

func TestJournal_Query_ByCategoryAndPrefix(t *testing.T) {
	t.Parallel()

	j := New()
	j.Record(CategoryRegistry, `HKLM\System\Net\TcpAckFrequency`, Absent(), Int(1), "")
	j.Record(CategoryRegistry, `HKLM\System\Mem\LargeSystemCache`, Int(0), Int(1), "")
	j.Record(CategoryService, `SysMain`, Absent(), Service(ServiceState{}), "")

	got := j.Query(Filter{Category: CategoryRegistry, KeyPrefix: `HKLM\System\Net`})
	require.Len(t, got, 1)
	assert.Equal(t, `HKLM\System\Net\TcpAckFrequency`, got[0].Key)

	got = j.Query(Filter{Category: CategoryService})
	require.Len(t, got, 1)
	assert.Equal(t, "SysMain", got[0].Key)
}

func TestJournal_LastPerKey(t *testing.T) {
	t.Parallel()

	j := New()
	j.Record(CategoryPower, KeyActiveScheme, String("balanced"), String("high-perf"), "")
	j.Record(CategoryPower, KeyActiveScheme, String("high-perf"), String("ultimate"), "")
	j.Record(CategoryRegistry, "x", Absent(), Int(1), "")

	got := j.LastPerKey(Filter{Category: CategoryPower, KeyPrefix: KeyActiveScheme})
	require.Len(t, got, 1)
	assert.Equal(t, String("high-perf"), got[0].Before)
	assert.Equal(t, String("ultimate"), got[0].After)
}

func TestFromEntries_CopiesInput(t *testing.T) {
	t.Parallel()

	src := []ChangeEntry{{Category: CategoryRegistry, Key: "a", Before: Absent(), After: Int(1)}}
	j := FromEntries(src)
	src[0].Key = "mutated"

	require.Len(t, j.Entries(), 1)
	assert.Equal(t, "a", j.Entries()[0].Key)
}

func TestSnapshot_Equal(t *testing.T) {
	t.Parallel()

	assert.True(t, Absent().Equal(Snapshot{}))
	assert.True(t, Int(7).Equal(Int(7)))
	assert.False(t, Int(7).Equal(Int(8)))
	assert.False(t, Int(7).Equal(String("7")))
	assert.True(t, Service(ServiceState{Status: StatusRunning, StartupType: StartupManual}).
		Equal(Service(ServiceState{Status: StatusRunning, StartupType: StartupManual})))
	assert.False(t, Service(ServiceState{Status: StatusRunning}).
		Equal(Service(ServiceState{Status: StatusStopped})))
}

func TestSnapshot_JSONRoundTrip(t *testing.T) {
	t.Parallel()

	snaps := []Snapshot{
		Absent(),
		Int(42),
		String("8.8.8.8"),
		Service(ServiceState{Status: StatusStopped, StartupType: StartupDisabled}),
	}
	for _, s := range snaps {
		data, err := json.Marshal(s)
		require.NoError(t, err)

		var back Snapshot
		require.NoError(t, json.Unmarshal(data, &back))
		assert.True(t, s.Equal(back), "round trip changed %s", s.Display())
	}
}

func TestSnapshot_UnmarshalRejectsUnknownKind(t *testing.T) {
	t.Parallel()

	var s Snapshot
	err := json.Unmarshal([]byte(`{"kind":"blob"}`), &s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown snapshot kind")
}

func TestSnapshot_UnmarshalRejectsServiceWithoutPayload(t *testing.T) {
	t.Parallel()

	var s Snapshot
	err := json.Unmarshal([]byte(`{"kind":"service"}`), &s)
	require.Error(t, err)
}
