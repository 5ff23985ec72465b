// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import (
	"context"
	"fmt"
	"log/slog"
)

// Filter votes on whether a candidate should be activated. The archive
// path is passed alongside the candidate because some filters need to
// inspect archive contents.
type Filter interface {
	// Name identifies the filter in logs.
	Name() string

	// Decide returns the filter's verdict for the candidate.
	Decide(ctx context.Context, c *Candidate, archivePath string) (Decision, error)
}

// Filters is an ordered collection of registered filters.
type Filters struct {
	filters []Filter
}

// NewFilters creates a filter collection.
func NewFilters(filters ...Filter) *Filters {
	return &Filters{filters: filters}
}

// Register appends a filter.
func (f *Filters) Register(flt Filter) {
	f.filters = append(f.filters, flt)
}

// Decide folds every filter's vote for one candidate. Exclude is
// absorbing, so evaluation stops at the first veto. A filter that
// returns an error or panics is logged and counted as NoOpinion. With
// no filters registered the result is NoOpinion.
func (f *Filters) Decide(ctx context.Context, c *Candidate, archivePath string) Decision {
	result := NoOpinion
	for _, flt := range f.filters {
		d, err := safeDecide(ctx, flt, c, archivePath)
		if err != nil {
			slog.Warn("plugin filter failed, treating as no opinion",
				"filter", flt.Name(),
				"plugin", c.ShortName,
				"error", err)
			continue
		}
		result = result.Merge(d)
		if result == Exclude {
			return Exclude
		}
	}
	return result
}

// safeDecide invokes a filter, converting a panic into an error.
func safeDecide(ctx context.Context, flt Filter, c *Candidate, archivePath string) (d Decision, err error) {
	defer recoverToError("filter", flt.Name(), &err)
	return flt.Decide(ctx, c, archivePath)
}

// recoverToError rewrites a panic in a collaborator into an ordinary
// error. Used with defer; kind and name identify the collaborator.
func recoverToError(kind, name string, err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%s %s panicked: %v", kind, name, r)
	}
}
