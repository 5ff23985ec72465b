// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package filters provides the candidate filters that ship with
// optplug.
package filters

import (
	"context"

	"github.com/gobwas/glob"
	"github.com/samber/oops"

	"github.com/holomush/optplug/internal/plugin"
)

// Compile-time interface check.
var _ plugin.Filter = (*Glob)(nil)

// Glob votes on candidates by matching their short names against glob
// patterns. An exclude match vetoes, an include match opts the
// candidate in, and a candidate matching neither gets no opinion.
type Glob struct {
	include []glob.Glob
	exclude []glob.Glob
}

// NewGlob compiles the include and exclude patterns into a filter.
func NewGlob(include, exclude []string) (*Glob, error) {
	compile := func(patterns []string) ([]glob.Glob, error) {
		globs := make([]glob.Glob, 0, len(patterns))
		for _, p := range patterns {
			g, err := glob.Compile(p)
			if err != nil {
				return nil, oops.In("filters").With("pattern", p).Hint("invalid glob pattern").Wrap(err)
			}
			globs = append(globs, g)
		}
		return globs, nil
	}

	include2, err := compile(include)
	if err != nil {
		return nil, err
	}
	exclude2, err := compile(exclude)
	if err != nil {
		return nil, err
	}
	return &Glob{include: include2, exclude: exclude2}, nil
}

// Name identifies the filter in logs.
func (g *Glob) Name() string {
	return "glob"
}

// Decide matches the candidate's short name against the patterns.
// Exclude patterns are checked first so an overlap stays a veto.
func (g *Glob) Decide(_ context.Context, c *plugin.Candidate, _ string) (plugin.Decision, error) {
	for _, pat := range g.exclude {
		if pat.Match(c.ShortName) {
			return plugin.Exclude, nil
		}
	}
	for _, pat := range g.include {
		if pat.Match(c.ShortName) {
			return plugin.Include, nil
		}
	}
	return plugin.NoOpinion, nil
}
