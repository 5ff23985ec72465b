// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package registry

import (
	"sort"
	"sync"

	"github.com/holomush/optplug/internal/plugin"
)

// Compile-time interface check.
var _ plugin.InstalledRegistry = (*Memory)(nil)

// Memory is an in-memory installed registry. Embedding hosts feed it
// their live plugin state; tests use it as a fixture.
type Memory struct {
	mu      sync.RWMutex
	plugins map[string]*plugin.InstalledPlugin
}

// NewMemory creates a registry holding the given plugins.
func NewMemory(plugins ...*plugin.InstalledPlugin) *Memory {
	m := &Memory{plugins: make(map[string]*plugin.InstalledPlugin, len(plugins))}
	for _, p := range plugins {
		m.plugins[p.ShortName] = p
	}
	return m
}

// Put inserts or replaces a plugin.
func (m *Memory) Put(p *plugin.InstalledPlugin) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plugins[p.ShortName] = p
}

// Get returns the installed plugin with the given short name, or nil.
func (m *Memory) Get(name string) *plugin.InstalledPlugin {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.plugins[name]
}

// All returns every installed plugin, sorted by name.
func (m *Memory) All() []*plugin.InstalledPlugin {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.plugins))
	for name := range m.plugins {
		names = append(names, name)
	}
	sort.Strings(names)

	result := make([]*plugin.InstalledPlugin, 0, len(names))
	for _, name := range names {
		result = append(result, m.plugins[name])
	}
	return result
}
