// Package journal provides the append-only change journal for tuning runs.
// Every configuration mutation performed during a run is recorded as a
// ChangeEntry with before and after snapshots, so a later invocation can
// replay the journal in reverse semantics and restore the prior state.
package journal

import (
	"strings"
	"time"
)

// Category identifies the kind of system state a change entry touches.
type Category string

const (
	// CategoryRegistry covers registry value writes.
	CategoryRegistry Category = "registry"
	// CategoryService covers service startup-type and run-state changes.
	CategoryService Category = "service"
	// CategoryPower covers power scheme changes.
	CategoryPower Category = "powercfg"
	// CategoryBoot covers boot configuration changes.
	CategoryBoot Category = "bcdedit"
	// CategoryNetwork covers network stack tuning changes.
	CategoryNetwork Category = "netsh"
)

// KeyActiveScheme is the journal key used for the active power scheme.
// Rollback restores only the last entry recorded under this key.
const KeyActiveScheme = "activeScheme"

// ServiceStatus is the run state of a service.
type ServiceStatus string

// Service run states.
const (
	StatusRunning ServiceStatus = "running"
	StatusStopped ServiceStatus = "stopped"
)

// StartupType is the startup configuration of a service.
type StartupType string

// Service startup types.
const (
	StartupAutomatic StartupType = "automatic"
	StartupManual    StartupType = "manual"
	StartupDisabled  StartupType = "disabled"
)

// ServiceState is the composite snapshot payload for service entries.
type ServiceState struct {
	Status      ServiceStatus `json:"status" yaml:"status"`
	StartupType StartupType   `json:"startup_type" yaml:"startup_type"`
}

// ChangeEntry records a single mutation. Entries are append-only and are
// never modified after being recorded; corrections are new entries.
type ChangeEntry struct {
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Category  Category  `json:"category" yaml:"category"`
	Key       string    `json:"key" yaml:"key"`
	Before    Snapshot  `json:"before" yaml:"before"`
	After     Snapshot  `json:"after" yaml:"after"`
	Note      string    `json:"note,omitempty" yaml:"note,omitempty"`
}

// Filter selects a subset of journal entries by category and key prefix.
// A zero-value field matches everything.
type Filter struct {
	Category  Category `json:"category" yaml:"category"`
	KeyPrefix string   `json:"key_prefix" yaml:"key_prefix"`
}

// Matches reports whether the entry satisfies the filter.
func (f Filter) Matches(e ChangeEntry) bool {
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if f.KeyPrefix != "" && !strings.HasPrefix(e.Key, f.KeyPrefix) {
		return false
	}
	return true
}
