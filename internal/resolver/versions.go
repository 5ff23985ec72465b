// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package resolver

import (
	"log/slog"

	"github.com/Masterminds/semver/v3"

	"github.com/holomush/optplug/internal/plugin"
)

// finalVersions predicts the version map after this pass completes:
// every installed live plugin, overlaid with each surviving candidate
// that carries a strictly newer version. At most one version per name;
// newest wins.
func finalVersions(survivors []*plugin.Candidate, installed plugin.InstalledRegistry) map[string]*semver.Version {
	final := make(map[string]*semver.Version)
	for _, p := range installed.All() {
		if p.Live() {
			final[p.ShortName] = p.Version
		}
	}
	for _, c := range survivors {
		if existing, ok := final[c.ShortName]; !ok || c.Version.GreaterThan(existing) {
			final[c.ShortName] = c.Version
		}
	}
	return final
}

// enableable reports whether a candidate's dependencies are satisfied
// by the predicted final version map. Every required dependency must be
// present at or above its minimum; an optional dependency constrains
// only if present. Failing the check is not a rejection: the candidate
// is still materialized, just flagged disabled.
func enableable(c *plugin.Candidate, final map[string]*semver.Version) bool {
	ok := true
	for _, dep := range c.Depends {
		v, present := final[dep.Name]
		if !present || !dep.Satisfies(v) {
			ok = false
			slog.Debug("candidate missing required dependency",
				"plugin", c.ShortName,
				"dependency", dep.Name,
				"min_version", dep.MinVersion)
		}
	}
	for _, dep := range c.OptionalDepends {
		v, present := final[dep.Name]
		if present && !dep.Satisfies(v) {
			ok = false
			slog.Debug("candidate has incompatible optional dependency",
				"plugin", c.ShortName,
				"dependency", dep.Name,
				"min_version", dep.MinVersion,
				"final_version", v)
		}
	}
	return ok
}
