// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package sources

import (
	"context"
	"net/url"

	"github.com/samber/oops"

	"github.com/holomush/optplug/internal/plugin"
)

// Compile-time interface check.
var _ plugin.Source = (*Static)(nil)

// Static offers a fixed list of archive locations, typically taken from
// configuration.
type Static struct {
	locations []*url.URL
}

// NewStatic creates a static source from raw location strings. Each
// string must parse as an absolute URL.
func NewStatic(raw []string) (*Static, error) {
	locations := make([]*url.URL, 0, len(raw))
	for _, s := range raw {
		u, err := url.Parse(s)
		if err != nil {
			return nil, oops.In("sources").With("location", s).Hint("not a valid URL").Wrap(err)
		}
		if u.Scheme == "" {
			return nil, oops.In("sources").With("location", s).Errorf("location must carry a scheme (file, http, https)")
		}
		locations = append(locations, u)
	}
	return &Static{locations: locations}, nil
}

// Name identifies the source in logs.
func (s *Static) Name() string {
	return "static"
}

// List returns the configured locations.
func (s *Static) List(_ context.Context) ([]*url.URL, error) {
	return s.locations, nil
}
