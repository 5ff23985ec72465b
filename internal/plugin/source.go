// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import (
	"context"
	"log/slog"
	"net/url"
)

// Source supplies locations of candidate plugin archives. Implementations
// live outside the resolver; any fault in one source is contained to
// that source.
type Source interface {
	// Name identifies the source in logs.
	Name() string

	// List returns the archive locations this source currently offers.
	List(ctx context.Context) ([]*url.URL, error)
}

// Sources is an ordered collection of registered sources.
type Sources struct {
	sources []Source
}

// NewSources creates a source collection.
func NewSources(sources ...Source) *Sources {
	return &Sources{sources: sources}
}

// Register appends a source.
func (s *Sources) Register(src Source) {
	s.sources = append(s.sources, src)
}

// ListAll returns the de-duplicated locations from every registered
// source, preserving discovery order. A source that returns an error,
// panics, or yields nil entries contributes only its valid locations;
// the fault is logged and the remaining sources still run.
func (s *Sources) ListAll(ctx context.Context) []*url.URL {
	seen := make(map[string]struct{})
	var result []*url.URL
	for _, src := range s.sources {
		locations, err := safeList(ctx, src)
		if err != nil {
			slog.Warn("plugin source failed, skipping",
				"source", src.Name(),
				"error", err)
			continue
		}
		for _, loc := range locations {
			if loc == nil {
				slog.Warn("plugin source returned a nil location",
					"source", src.Name())
				continue
			}
			key := loc.String()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			result = append(result, loc)
		}
	}
	return result
}

// safeList invokes a source, converting a panic into an error so one
// broken implementation cannot take down the pass.
func safeList(ctx context.Context, src Source) (locations []*url.URL, err error) {
	defer recoverToError("source", src.Name(), &err)
	return src.List(ctx)
}
