// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package backend

import (
	"errors"
	"sort"
	"sync"
)

// Backend name constants.
const (
	// NameSoftware is the CPU image backend.
	NameSoftware = "software"
	// NameHAL is the gogpu/wgpu HAL backend.
	NameHAL = "hal"
)

// ErrBackendNotAvailable is returned when no registered backend could be
// created.
var ErrBackendNotAvailable = errors.New("backend: not available")

// Factory creates a backend instance.
type Factory func() (Backend, error)

type entry struct {
	name     string
	priority int
	factory  Factory
}

// registry holds registered backends.
var (
	registryMu sync.RWMutex
	backends   = make(map[string]entry)
)

// Register registers a backend factory under name. Higher priority wins in
// Default. This is typically called from init() functions in backend
// packages. Registering an existing name replaces it.
func Register(name string, priority int, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	backends[name] = entry{name: name, priority: priority, factory: factory}
}

// Unregister removes a backend from the registry.
// This is useful for testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(backends, name)
}

// Available returns registered backend names, highest priority first.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return sortedNames()
}

func sortedNames() []string {
	list := make([]entry, 0, len(backends))
	for _, e := range backends {
		list = append(list, e)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].priority != list[j].priority {
			return list[i].priority > list[j].priority
		}
		return list[i].name < list[j].name
	})
	names := make([]string, len(list))
	for i, e := range list {
		names[i] = e.name
	}
	return names
}

// Get creates the backend registered under name.
func Get(name string) (Backend, error) {
	registryMu.RLock()
	e, ok := backends[name]
	registryMu.RUnlock()
	if !ok {
		return nil, ErrBackendNotAvailable
	}
	return e.factory()
}

// Default creates the highest-priority backend whose factory succeeds.
func Default() (Backend, error) {
	registryMu.RLock()
	names := sortedNames()
	registryMu.RUnlock()

	lastErr := ErrBackendNotAvailable
	for _, name := range names {
		b, err := Get(name)
		if err == nil && b != nil {
			return b, nil
		}
		if err != nil {
			lastErr = err
		}
	}
	return nil, lastErr
}
