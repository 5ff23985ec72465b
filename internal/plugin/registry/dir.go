// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package registry provides InstalledRegistry implementations.
package registry

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/samber/oops"

	"github.com/holomush/optplug/internal/plugin"
)

// Compile-time interface check.
var _ plugin.InstalledRegistry = (*Dir)(nil)

// Dir reads the host's plugin directory as the installed registry:
// every archive file is an installed plugin, enabled unless a
// .disabled marker sits beside it, pinned when a .pinned marker does.
// Nothing is reported active: a directory cannot know what a running
// host has loaded, so hosts that hot-load must supply their own
// registry.
type Dir struct {
	path    string
	wrapper plugin.Wrapper

	mu      sync.RWMutex
	plugins map[string]*plugin.InstalledPlugin
}

// LoadDir scans the plugin directory once and returns the resulting
// registry. Unreadable archives are logged and skipped.
func LoadDir(ctx context.Context, path string) (*Dir, error) {
	d := &Dir{
		path:    path,
		wrapper: plugin.NewArchiveWrapper(),
		plugins: make(map[string]*plugin.InstalledPlugin),
	}
	if err := d.Reload(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

// Reload rescans the plugin directory, replacing the registry's view.
func (d *Dir) Reload(ctx context.Context) error {
	plugins := make(map[string]*plugin.InstalledPlugin)

	entries, err := os.ReadDir(d.path)
	if err != nil {
		if os.IsNotExist(err) {
			d.swap(plugins)
			return nil
		}
		return oops.In("registry").With("dir", d.path).Wrap(err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			continue
		}
		if !strings.HasSuffix(name, plugin.Ext) && !strings.HasSuffix(name, plugin.LegacyExt) {
			continue
		}
		archivePath := filepath.Join(d.path, name)
		c, err := d.wrapper.Wrap(ctx, archivePath)
		if err != nil {
			slog.Warn("skipping unreadable installed plugin",
				"path", archivePath,
				"error", err)
			continue
		}
		plugins[c.ShortName] = &plugin.InstalledPlugin{
			ShortName:       c.ShortName,
			Version:         c.Version,
			Enabled:         !markerExists(archivePath + plugin.DisabledSuffix),
			Pinned:          markerExists(archivePath + plugin.PinnedSuffix),
			Depends:         c.Depends,
			OptionalDepends: c.OptionalDepends,
		}
	}

	d.swap(plugins)
	return nil
}

func (d *Dir) swap(plugins map[string]*plugin.InstalledPlugin) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.plugins = plugins
}

// Get returns the installed plugin with the given short name, or nil.
func (d *Dir) Get(name string) *plugin.InstalledPlugin {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.plugins[name]
}

// All returns every installed plugin, sorted by name.
func (d *Dir) All() []*plugin.InstalledPlugin {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, 0, len(d.plugins))
	for name := range d.plugins {
		names = append(names, name)
	}
	sort.Strings(names)

	result := make([]*plugin.InstalledPlugin, 0, len(names))
	for _, name := range names {
		result = append(result, d.plugins[name])
	}
	return result
}

func markerExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
