// Package state defines narrow interfaces over the pieces of system state
// that tuning runs mutate: registry-style key/value settings, service
// configuration, and the active power scheme. Command-backed
// implementations drive the native utilities; an in-memory implementation
// backs tests and dry runs.
package state

import (
	"context"
	"errors"

	"github.com/tunectl/tunectl/pkg/tune/journal"
)

var (
	// ErrNotFound is returned when a key, value, or service does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAccessDenied is returned when the platform refuses the operation.
	ErrAccessDenied = errors.New("access denied")
)

// Registry is a hierarchical key/value settings store.
type Registry interface {
	// EnsureKey creates the container key if it does not exist.
	EnsureKey(ctx context.Context, path string) error

	// GetValue reads a value. A missing value yields an Absent snapshot
	// and a nil error; missing keys or permission failures yield an error.
	GetValue(ctx context.Context, path, name string) (journal.Snapshot, error)

	// SetDWord writes a 32-bit numeric value.
	SetDWord(ctx context.Context, path, name string, value int64) error

	// SetString writes a string value.
	SetString(ctx context.Context, path, name, value string) error

	// DeleteValue removes a value. Deleting an absent value is a no-op.
	DeleteValue(ctx context.Context, path, name string) error
}

// Services controls service startup configuration and run state.
type Services interface {
	// Query returns the current status and startup type of a service.
	Query(ctx context.Context, name string) (journal.ServiceState, error)

	// SetStartupType changes how the service starts at boot.
	SetStartupType(ctx context.Context, name string, t journal.StartupType) error

	// Start starts the service. Starting a running service is a no-op.
	Start(ctx context.Context, name string) error

	// Stop stops the service. Stopping a stopped service is a no-op.
	Stop(ctx context.Context, name string) error
}

// Power controls the active power scheme.
type Power interface {
	// ActiveScheme returns the identifier of the active scheme.
	ActiveScheme(ctx context.Context) (string, error)

	// SetActiveScheme activates the scheme with the given identifier.
	SetActiveScheme(ctx context.Context, id string) error
}

// System bundles the three stores a run mutates.
type System struct {
	Registry Registry
	Services Services
	Power    Power
}
