// Package config provides configuration management for tunectl.
package config

import "time"

// Default configuration values for tunectl.
const (
	// DefaultLogLevel is the logging level when none is configured.
	DefaultLogLevel = "info"

	// DefaultPhaseTimeout is the per-phase wall-clock budget.
	DefaultPhaseTimeout = 10 * time.Minute

	// DefaultHistoryLimit is how many prior runs the history command
	// shows without an explicit limit.
	DefaultHistoryLimit = 20
)

// DefaultPhases is the fixed tuning pipeline in execution order. Each
// phase names a mutator unit binary; resolution falls back along the
// candidate list.
var DefaultPhases = []PhaseConfig{
	{Name: "backup", Command: []string{"tunectl-backup"}},
	{Name: "power", Command: []string{"tunectl-power"}},
	{Name: "network", Command: []string{"tunectl-network"}},
	{Name: "registry", Command: []string{"tunectl-registry"}},
	{Name: "services", Command: []string{"tunectl-services"}},
	{Name: "boot", Command: []string{"tunectl-boot"}},
}
