// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import "github.com/Masterminds/semver/v3"

// InstalledPlugin is the host's view of a plugin that already exists in
// the plugin directory, whether or not it is running.
type InstalledPlugin struct {
	ShortName       string
	Version         *semver.Version
	Active          bool
	Enabled         bool
	Pinned          bool
	Depends         []Dependency
	OptionalDepends []Dependency
}

// Live reports whether the plugin counts for conflict and version
// reconciliation purposes: either running now or set to run after the
// next restart.
func (p *InstalledPlugin) Live() bool {
	return p != nil && (p.Active || p.Enabled)
}

// InstalledRegistry looks up plugins already known to the host. The
// resolver only ever reads from it.
type InstalledRegistry interface {
	// Get returns the installed plugin with the given short name, or
	// nil when none exists.
	Get(name string) *InstalledPlugin

	// All returns every installed plugin.
	All() []*InstalledPlugin
}
