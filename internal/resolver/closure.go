// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package resolver

import (
	"log/slog"
	"sort"

	"github.com/holomush/optplug/internal/plugin"
)

// Decided pairs a candidate with its aggregated filter decision.
type Decided struct {
	Candidate *plugin.Candidate
	Decision  plugin.Decision
}

// closure computes the included candidate set: filter-driven seeds
// expanded to a fixed point over dependency edges. Candidates whose
// installed counterpart already dominates by version are dropped before
// any decision is consulted; an Exclude decision vetoes the rest.
//
// The expansion is a worklist over short names, so the result does not
// depend on iteration order: required dependencies of an included
// candidate are force-included whatever their own decision was, and an
// optional dependency is promoted only when an installed live
// counterpart is strictly older than the declared minimum. Each step
// only flips candidates from out to in, so termination is guaranteed.
func closure(decided []Decided, installed plugin.InstalledRegistry) []*plugin.Candidate {
	working := make(map[string]*plugin.Candidate)
	included := make(map[string]bool)
	var worklist []string

	for _, d := range decided {
		c := d.Candidate
		if existing := installed.Get(c.ShortName); existing.Live() && !c.NewerThan(existing.Version) {
			slog.Debug("excluding candidate, installed version dominates",
				"plugin", c.ShortName,
				"candidate_version", c.Version,
				"installed_version", existing.Version)
			continue
		}
		if d.Decision == plugin.Exclude {
			slog.Debug("excluding candidate, vetoed by filters",
				"plugin", c.ShortName,
				"version", c.Version)
			continue
		}
		working[c.ShortName] = c
		if d.Decision == plugin.Include {
			included[c.ShortName] = true
			worklist = append(worklist, c.ShortName)
		}
	}

	for len(worklist) > 0 {
		name := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		c := working[name]

		for _, dep := range c.Depends {
			// A required dependency present in the working set is
			// needed regardless of its own decision.
			if promote(dep.Name, working, included) {
				worklist = append(worklist, dep.Name)
			}
		}
		for _, dep := range c.OptionalDepends {
			// An optional dependency matters only when something
			// already installed and live needs the upgrade.
			existing := installed.Get(dep.Name)
			if !existing.Live() || dep.Satisfies(existing.Version) {
				continue
			}
			if promote(dep.Name, working, included) {
				worklist = append(worklist, dep.Name)
			}
		}
	}

	names := make([]string, 0, len(included))
	for name := range included {
		names = append(names, name)
	}
	sort.Strings(names)

	result := make([]*plugin.Candidate, 0, len(names))
	for _, name := range names {
		result = append(result, working[name])
	}
	return result
}

// promote flips a candidate to included if it exists in the working set
// and is not already in. Reports whether a flip happened.
func promote(name string, working map[string]*plugin.Candidate, included map[string]bool) bool {
	if _, ok := working[name]; !ok {
		return false
	}
	if included[name] {
		return false
	}
	included[name] = true
	return true
}
