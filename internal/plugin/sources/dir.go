// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package sources provides the plugin sources that ship with optplug.
package sources

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/oops"

	"github.com/holomush/optplug/internal/plugin"
)

// Compile-time interface check.
var _ plugin.Source = (*Dir)(nil)

// Dir offers every plugin archive found in a local directory.
type Dir struct {
	path string
}

// NewDir creates a directory source.
func NewDir(path string) *Dir {
	return &Dir{path: path}
}

// Name identifies the source in logs.
func (d *Dir) Name() string {
	return "dir:" + d.path
}

// List returns file URLs for the archives in the directory. A missing
// directory is not an error: the source simply offers nothing.
func (d *Dir) List(_ context.Context) ([]*url.URL, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, oops.In("sources").With("dir", d.path).Wrap(err)
	}

	var locations []*url.URL
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, plugin.Ext) && !strings.HasSuffix(name, plugin.LegacyExt) {
			continue
		}
		abs, err := filepath.Abs(filepath.Join(d.path, name))
		if err != nil {
			return nil, oops.In("sources").With("dir", d.path).With("file", name).Wrap(err)
		}
		locations = append(locations, &url.URL{Scheme: "file", Path: abs})
	}
	return locations, nil
}
