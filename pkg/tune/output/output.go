// Package output provides formatters for displaying run history and
// pipeline results in various output formats (table, plain, json, yaml).
//
// The package uses a registry pattern so the CLI can select a formatter
// by flag at runtime.
package output

import (
	"bytes"
	"fmt"
	"sort"
	"sync"

	"github.com/tunectl/tunectl/pkg/tune/phase"
	"github.com/tunectl/tunectl/pkg/tune/rollback"
	"github.com/tunectl/tunectl/pkg/tune/runctx"
)

// Report is the complete data available for formatting. Only the fields
// relevant to the invoking command are set.
type Report struct {
	// Runs lists persisted run contexts, newest first.
	Runs []runctx.Summary `json:"runs,omitempty" yaml:"runs,omitempty"`

	// Pipeline holds the result of an apply or rollback pipeline.
	Pipeline *phase.PipelineResult `json:"pipeline,omitempty" yaml:"pipeline,omitempty"`

	// Rollback holds the restoration summary of a rollback run.
	Rollback *rollback.Result `json:"rollback,omitempty" yaml:"rollback,omitempty"`
}

// Formatter is the interface all output formatters implement.
type Formatter interface {
	// Format writes the formatted report to the buffer.
	Format(w *bytes.Buffer, r *Report) error
}

// FormatterFactory creates a new Formatter instance.
type FormatterFactory func() Formatter

// Registry manages formatter registration and lookup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]FormatterFactory
}

// NewRegistry creates an empty formatter registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]FormatterFactory)}
}

// Register adds a formatter factory, replacing any existing one with the
// same name.
func (r *Registry) Register(name string, factory FormatterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns a new formatter instance by name.
func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown formatter: %s", name)
	}
	return factory(), nil
}

// Available returns the sorted names of registered formatters.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the global formatter registry.
var DefaultRegistry = NewRegistry()

// Register adds a formatter factory to the default registry.
func Register(name string, factory FormatterFactory) {
	DefaultRegistry.Register(name, factory)
}

// Get returns a formatter from the default registry.
func Get(name string) (Formatter, error) {
	return DefaultRegistry.Get(name)
}

// Available returns all formatter names from the default registry.
func Available() []string {
	return DefaultRegistry.Available()
}
