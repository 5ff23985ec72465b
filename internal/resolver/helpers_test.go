// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package resolver

import (
	"archive/zip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/require"

	"github.com/holomush/optplug/internal/plugin"
)

// cand builds a minimal candidate for pipeline tests.
func cand(name, version string) *plugin.Candidate {
	return &plugin.Candidate{
		ShortName: name,
		Version:   semver.MustParse(version),
	}
}

// dep builds a dependency reference.
func dep(name, minVersion string) plugin.Dependency {
	return plugin.Dependency{Name: name, MinVersion: semver.MustParse(minVersion)}
}

// installed builds an enabled installed plugin.
func installed(name, version string) *plugin.InstalledPlugin {
	return &plugin.InstalledPlugin{
		ShortName: name,
		Version:   semver.MustParse(version),
		Enabled:   true,
	}
}

// names projects candidates to their short names, preserving order.
func names(cs []*plugin.Candidate) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.ShortName)
	}
	return out
}

// writeArchiveFixture creates a plugin archive under dir with the given
// manifest body, returning its path.
func writeArchiveFixture(t *testing.T, dir, shortName, manifest string) string {
	t.Helper()

	path := filepath.Join(dir, plugin.ArchiveFileName(shortName))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, f.Close()) }()

	zw := zip.NewWriter(f)
	w, err := zw.Create(plugin.ManifestFileName)
	require.NoError(t, err)
	_, err = w.Write([]byte(manifest))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	return path
}

// simpleManifest renders a manifest with just a name and version.
func simpleManifest(name, version string) string {
	return fmt.Sprintf("name: %s\nversion: %s\n", name, version)
}

// stampModTime pins an archive's modification time so change detection
// in tests is deterministic.
func stampModTime(t *testing.T, path string, unixSec int64) {
	t.Helper()
	ts := time.Unix(unixSec, 0)
	require.NoError(t, os.Chtimes(path, ts, ts))
}

// fakeLoader records hot load calls and optionally fails on specific
// plugin names.
type fakeLoader struct {
	mu     sync.Mutex
	loaded []string
	fail   map[string]error
}

func (l *fakeLoader) HotLoad(_ context.Context, c *plugin.Candidate, _ string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err, ok := l.fail[c.ShortName]; ok {
		return err
	}
	l.loaded = append(l.loaded, c.ShortName)
	return nil
}

func (l *fakeLoader) order() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.loaded...)
}
