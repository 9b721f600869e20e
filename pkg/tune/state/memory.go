package state

import (
	"context"
	"fmt"
	"sync"

	"github.com/tunectl/tunectl/pkg/tune/journal"
)

// MemRegistry is an in-memory Registry for tests and dry runs.
// Faults maps "path\name" to an error returned by any operation touching
// that value, which lets tests simulate permission failures per key.
type MemRegistry struct {
	mu     sync.Mutex
	keys   map[string]bool
	values map[string]journal.Snapshot
	Faults map[string]error
}

// NewMemRegistry returns an empty in-memory registry.
func NewMemRegistry() *MemRegistry {
	return &MemRegistry{
		keys:   make(map[string]bool),
		values: make(map[string]journal.Snapshot),
		Faults: make(map[string]error),
	}
}

func valueID(path, name string) string {
	return path + `\` + name
}

func (m *MemRegistry) fault(path, name string) error {
	return m.Faults[valueID(path, name)]
}

// EnsureKey creates the container key if absent.
func (m *MemRegistry) EnsureKey(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[path] = true
	return nil
}

// HasKey reports whether the container key exists.
func (m *MemRegistry) HasKey(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keys[path]
}

// GetValue reads a value, returning Absent for missing values.
func (m *MemRegistry) GetValue(_ context.Context, path, name string) (journal.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault(path, name); err != nil {
		return journal.Absent(), err
	}
	if v, ok := m.values[valueID(path, name)]; ok {
		return v, nil
	}
	return journal.Absent(), nil
}

// SetDWord writes a numeric value.
func (m *MemRegistry) SetDWord(_ context.Context, path, name string, value int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault(path, name); err != nil {
		return err
	}
	if !m.keys[path] {
		return fmt.Errorf("%w: key %s", ErrNotFound, path)
	}
	m.values[valueID(path, name)] = journal.Int(value)
	return nil
}

// SetString writes a string value.
func (m *MemRegistry) SetString(_ context.Context, path, name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault(path, name); err != nil {
		return err
	}
	if !m.keys[path] {
		return fmt.Errorf("%w: key %s", ErrNotFound, path)
	}
	m.values[valueID(path, name)] = journal.String(value)
	return nil
}

// DeleteValue removes a value; deleting an absent value succeeds.
func (m *MemRegistry) DeleteValue(_ context.Context, path, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault(path, name); err != nil {
		return err
	}
	delete(m.values, valueID(path, name))
	return nil
}

// MemServices is an in-memory Services implementation. Unknown services
// yield ErrNotFound, matching the command-backed behavior.
type MemServices struct {
	mu     sync.Mutex
	states map[string]journal.ServiceState
	Faults map[string]error
}

// NewMemServices returns an in-memory service table seeded with the given
// states.
func NewMemServices(seed map[string]journal.ServiceState) *MemServices {
	states := make(map[string]journal.ServiceState, len(seed))
	for k, v := range seed {
		states[k] = v
	}
	return &MemServices{states: states, Faults: make(map[string]error)}
}

// Seed inserts or replaces a service entry.
func (m *MemServices) Seed(name string, s journal.ServiceState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[name] = s
}

// Query returns the current state of the service.
func (m *MemServices) Query(_ context.Context, name string) (journal.ServiceState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.Faults[name]; err != nil {
		return journal.ServiceState{}, err
	}
	s, ok := m.states[name]
	if !ok {
		return journal.ServiceState{}, fmt.Errorf("%w: service %s", ErrNotFound, name)
	}
	return s, nil
}

// SetStartupType changes the startup type.
func (m *MemServices) SetStartupType(_ context.Context, name string, t journal.StartupType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.Faults[name]; err != nil {
		return err
	}
	s, ok := m.states[name]
	if !ok {
		return fmt.Errorf("%w: service %s", ErrNotFound, name)
	}
	s.StartupType = t
	m.states[name] = s
	return nil
}

// Start sets the service running.
func (m *MemServices) Start(_ context.Context, name string) error {
	return m.setStatus(name, journal.StatusRunning)
}

// Stop stops the service.
func (m *MemServices) Stop(_ context.Context, name string) error {
	return m.setStatus(name, journal.StatusStopped)
}

func (m *MemServices) setStatus(name string, status journal.ServiceStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.Faults[name]; err != nil {
		return err
	}
	s, ok := m.states[name]
	if !ok {
		return fmt.Errorf("%w: service %s", ErrNotFound, name)
	}
	s.Status = status
	m.states[name] = s
	return nil
}

// MemPower is an in-memory Power implementation.
type MemPower struct {
	mu     sync.Mutex
	active string
	Fault  error
}

// NewMemPower returns a power store with the given active scheme.
func NewMemPower(active string) *MemPower {
	return &MemPower{active: active}
}

// ActiveScheme returns the active scheme identifier.
func (m *MemPower) ActiveScheme(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fault != nil {
		return "", m.Fault
	}
	return m.active, nil
}

// SetActiveScheme activates the scheme.
func (m *MemPower) SetActiveScheme(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fault != nil {
		return m.Fault
	}
	m.active = id
	return nil
}

// NewMemSystem bundles fresh in-memory stores.
func NewMemSystem() (*System, *MemRegistry, *MemServices, *MemPower) {
	reg := NewMemRegistry()
	svc := NewMemServices(nil)
	pow := NewMemPower("balanced")
	return &System{Registry: reg, Services: svc, Power: pow}, reg, svc, pow
}
