// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package driver

import (
	"fmt"
	"sort"
	"sync"
)

// Factory creates a compositor session.
type Factory func(opts Options) (Compositor, error)

// RegistryEntry is a registered driver.
type RegistryEntry struct {
	// Name is the unique identifier for this driver.
	Name string

	// Priority determines selection order (higher = preferred).
	// Standard priorities:
	//   - 100: hardware runtimes
	//   - 10: simulators
	Priority int

	// Factory creates compositor sessions.
	Factory Factory

	// Available reports if the runtime is present on this system.
	Available func() bool
}

// globalRegistry is the default registry.
var globalRegistry = &Registry{}

// Registry manages registered drivers.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*RegistryEntry
}

// NewRegistry creates a new empty registry.
// Most code should use the global registry via Register and Open.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*RegistryEntry),
	}
}

// Register adds a driver to the global registry.
//
// If available is nil, the driver is assumed always available.
// Registering a name that already exists replaces the previous entry.
func Register(name string, priority int, factory Factory, available func() bool) {
	globalRegistry.Register(name, priority, factory, available)
}

// Unregister removes a driver from the global registry.
func Unregister(name string) {
	globalRegistry.Unregister(name)
}

// List returns all registered driver names sorted by priority (highest first).
func List() []string {
	return globalRegistry.List()
}

// Available returns names of all available drivers sorted by priority.
func Available() []string {
	return globalRegistry.Available()
}

// Open creates a session on the best available driver.
func Open(opts Options) (Compositor, error) {
	return globalRegistry.Open(opts)
}

// OpenByName creates a session on a specific driver.
func OpenByName(name string, opts Options) (Compositor, error) {
	return globalRegistry.OpenByName(name, opts)
}

// Register adds a driver to this registry.
func (r *Registry) Register(name string, priority int, factory Factory, available func() bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.entries == nil {
		r.entries = make(map[string]*RegistryEntry)
	}
	if available == nil {
		available = func() bool { return true }
	}
	r.entries[name] = &RegistryEntry{
		Name:      name,
		Priority:  priority,
		Factory:   factory,
		Available: available,
	}
}

// Unregister removes a driver from this registry.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.entries, name)
}

// List returns all registered driver names sorted by priority.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.sortedNames(false)
}

// Available returns names of all available drivers sorted by priority.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.sortedNames(true)
}

// Get returns a copy of the entry for name.
func (r *Registry) Get(name string) (*RegistryEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	entryCopy := *entry
	return &entryCopy, true
}

// Open tries each available driver in priority order and returns the first
// session that opens.
func (r *Registry) Open(opts Options) (Compositor, error) {
	r.mu.RLock()
	available := r.sortedNames(true)
	r.mu.RUnlock()

	if len(available) == 0 {
		return nil, ErrNoDriverAvailable
	}

	var lastErr error
	for _, name := range available {
		c, err := r.OpenByName(name, opts)
		if err == nil {
			return c, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: %w", ErrNoDriverAvailable, lastErr)
}

// OpenByName creates a session on a specific driver.
func (r *Registry) OpenByName(name string, opts Options) (Compositor, error) {
	r.mu.RLock()
	entry, ok := r.entries[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDriverNotFound, name)
	}
	if !entry.Available() {
		return nil, fmt.Errorf("driver: %s unavailable: %w", name, ErrNoDriverAvailable)
	}
	return entry.Factory(opts)
}

// sortedNames returns driver names sorted by priority (highest first), ties
// by name. Must be called with lock held.
func (r *Registry) sortedNames(onlyAvailable bool) []string {
	if len(r.entries) == 0 {
		return nil
	}

	entries := make([]*RegistryEntry, 0, len(r.entries))
	for _, e := range r.entries {
		if onlyAvailable && !e.Available() {
			continue
		}
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Priority != entries[j].Priority {
			return entries[i].Priority > entries[j].Priority
		}
		return entries[i].Name < entries[j].Name
	})

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names
}
