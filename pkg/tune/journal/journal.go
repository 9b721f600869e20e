package journal

import "time"

// Journal is the in-memory append-only change log for a single run.
// It has exactly one writer for the lifetime of a run; persistence is the
// responsibility of the owning run context.
type Journal struct {
	entries []ChangeEntry
}

// New returns an empty journal.
func New() *Journal {
	return &Journal{}
}

// FromEntries reconstructs a journal from previously persisted entries.
// The slice is copied; the caller's backing array is not retained.
func FromEntries(entries []ChangeEntry) *Journal {
	j := &Journal{entries: make([]ChangeEntry, len(entries))}
	copy(j.entries, entries)
	return j
}

// Record appends a change entry and returns it. Entries are timestamped at
// append time and are immutable afterwards.
func (j *Journal) Record(category Category, key string, before, after Snapshot, note string) ChangeEntry {
	e := ChangeEntry{
		Timestamp: time.Now().UTC(),
		Category:  category,
		Key:       key,
		Before:    before,
		After:     after,
		Note:      note,
	}
	j.entries = append(j.entries, e)
	return e
}

// Len returns the number of recorded entries.
func (j *Journal) Len() int {
	return len(j.entries)
}

// Entries returns a copy of all entries in insertion order.
func (j *Journal) Entries() []ChangeEntry {
	out := make([]ChangeEntry, len(j.entries))
	copy(out, j.entries)
	return out
}

// Query returns the ordered subsequence of entries matching the filter.
func (j *Journal) Query(f Filter) []ChangeEntry {
	var out []ChangeEntry
	for _, e := range j.entries {
		if f.Matches(e) {
			out = append(out, e)
		}
	}
	return out
}

// LastPerKey returns, for each key matching the filter, only the most
// recently recorded entry, in the insertion order of those final entries.
// Callers use this when only the current state matters, such as restoring
// the active power scheme.
func (j *Journal) LastPerKey(f Filter) []ChangeEntry {
	last := make(map[string]int)
	for i, e := range j.entries {
		if f.Matches(e) {
			last[keyOf(e)] = i
		}
	}
	var out []ChangeEntry
	for i, e := range j.entries {
		if idx, ok := last[keyOf(e)]; ok && idx == i {
			out = append(out, e)
		}
	}
	return out
}

func keyOf(e ChangeEntry) string {
	return string(e.Category) + "\x00" + e.Key
}
