// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package resolver

import (
	"fmt"
	"sort"
	"strings"

	"github.com/holomush/optplug/internal/plugin"
)

// CycleError reports a dependency cycle among freshly materialized
// candidates. Hot loading is impossible this pass; the files stay on
// disk for pickup at the next full restart.
type CycleError struct {
	Members []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle among plugins: %s", strings.Join(e.Members, ", "))
}

// loadOrder computes a valid topological order over the freshly
// materialized set: every plugin loads after the dependencies it has
// inside that same set. Dependencies already satisfied by installed
// plugins are not edges. The graph is an index-free adjacency map
// keyed by short name, so the planner needs no live host objects.
//
// Ties are broken by name for determinism, though any valid order
// would do.
func loadOrder(fresh []*plugin.Candidate) ([]*plugin.Candidate, error) {
	byName := make(map[string]*plugin.Candidate, len(fresh))
	for _, c := range fresh {
		byName[c.ShortName] = c
	}

	// dependents[a] lists plugins that must load after a; inDegree is
	// the number of in-set dependencies still unloaded.
	dependents := make(map[string][]string, len(fresh))
	inDegree := make(map[string]int, len(fresh))
	for _, c := range fresh {
		inDegree[c.ShortName] += 0
		for _, dep := range edges(c) {
			if _, inSet := byName[dep.Name]; !inSet {
				continue
			}
			if dep.Name == c.ShortName {
				continue
			}
			dependents[dep.Name] = append(dependents[dep.Name], c.ShortName)
			inDegree[c.ShortName]++
		}
	}

	var ready []string
	for name, deg := range inDegree {
		if deg == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	order := make([]*plugin.Candidate, 0, len(fresh))
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		order = append(order, byName[name])

		next := dependents[name]
		sort.Strings(next)
		for _, dependent := range next {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}

	if len(order) < len(fresh) {
		var members []string
		for name, deg := range inDegree {
			if deg > 0 {
				members = append(members, name)
			}
		}
		sort.Strings(members)
		return nil, &CycleError{Members: members}
	}

	return order, nil
}

// edges returns a candidate's dependency references; required and
// optional references count equally for load ordering.
func edges(c *plugin.Candidate) []plugin.Dependency {
	if len(c.OptionalDepends) == 0 {
		return c.Depends
	}
	all := make([]plugin.Dependency, 0, len(c.Depends)+len(c.OptionalDepends))
	all = append(all, c.Depends...)
	all = append(all, c.OptionalDepends...)
	return all
}
