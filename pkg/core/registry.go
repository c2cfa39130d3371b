package core

import (
	"fmt"
	"reflect"
	"sync"
)

// Global registry holding the conventional descriptor for every module.
var globalRegistry = newDefaultRegistry()

type Registry struct {
	descriptors map[Module]ModuleDescriptor
	mu          sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		descriptors: make(map[Module]ModuleDescriptor),
	}
}

func newDefaultRegistry() *Registry {
	r := NewRegistry()
	for _, m := range AllModules {
		r.descriptors[m] = DefaultDescriptor(m)
	}
	return r
}

// GetGlobalRegistry returns a copy of the global registry that callers can
// customize without affecting other users.
func GetGlobalRegistry() *Registry {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	registry := NewRegistry()
	for key, d := range globalRegistry.descriptors {
		registry.descriptors[key] = d
	}
	return registry
}

func (r *Registry) Register(d ModuleDescriptor) error {
	if !d.Key.Valid() {
		return fmt.Errorf("cannot register descriptor for unknown module %q", d.Key)
	}
	if len(d.ListPaths) == 0 {
		return fmt.Errorf("module %s needs at least one list path", d.Key)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.descriptors[d.Key] = d
	return nil
}

// Get returns the descriptor for m.
func (r *Registry) Get(m Module) (ModuleDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.descriptors[m]
	return d, ok
}

// Descriptors returns the registered descriptors in module priority order.
func (r *Registry) Descriptors() []ModuleDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ModuleDescriptor, 0, len(r.descriptors))
	for _, m := range AllModules {
		if d, ok := r.descriptors[m]; ok {
			out = append(out, d)
		}
	}
	return out
}

// Modules returns the registered module keys in priority order.
func (r *Registry) Modules() []Module {
	descriptors := r.Descriptors()
	modules := make([]Module, len(descriptors))
	for i, d := range descriptors {
		modules[i] = d.Key
	}
	return modules
}

// Equal reports whether r and other hold the same descriptors.
func (r *Registry) Equal(other *Registry) bool {
	if r == nil || other == nil {
		return r == other
	}
	return reflect.DeepEqual(r.Descriptors(), other.Descriptors())
}
