// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package registry

import (
	"archive/zip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/optplug/internal/plugin"
)

// writeArchive drops a minimal plugin archive into dir.
func writeArchive(t *testing.T, dir, name, version string) string {
	t.Helper()
	path := filepath.Join(dir, name+plugin.Ext)
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create(plugin.ManifestFileName)
	require.NoError(t, err)
	_, err = fmt.Fprintf(w, "name: %s\nversion: %s\n", name, version)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func touchMarker(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, nil, 0o600))
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeArchive(t, dir, "mailer", "1.2.3")
	reporting := writeArchive(t, dir, "reporting", "2.0.0")
	touchMarker(t, reporting+plugin.DisabledSuffix)
	pinned := writeArchive(t, dir, "ledger", "0.5.0")
	touchMarker(t, pinned+plugin.PinnedSuffix)

	reg, err := LoadDir(context.Background(), dir)
	require.NoError(t, err)

	mailer := reg.Get("mailer")
	require.NotNil(t, mailer)
	assert.Equal(t, "1.2.3", mailer.Version.String())
	assert.True(t, mailer.Enabled)
	assert.False(t, mailer.Pinned)

	disabled := reg.Get("reporting")
	require.NotNil(t, disabled)
	assert.False(t, disabled.Enabled)

	frozen := reg.Get("ledger")
	require.NotNil(t, frozen)
	assert.True(t, frozen.Pinned)

	all := reg.All()
	require.Len(t, all, 3)
	assert.Equal(t, "ledger", all[0].ShortName)
	assert.Equal(t, "mailer", all[1].ShortName)
	assert.Equal(t, "reporting", all[2].ShortName)
}

func TestLoadDir_MissingDirectory(t *testing.T) {
	reg, err := LoadDir(context.Background(), filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, reg.All())
}

func TestLoadDir_SkipsUnreadableArchive(t *testing.T) {
	dir := t.TempDir()
	writeArchive(t, dir, "mailer", "1.0.0")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken"+plugin.Ext), []byte("not a zip"), 0o600))

	reg, err := LoadDir(context.Background(), dir)
	require.NoError(t, err)
	assert.Len(t, reg.All(), 1)
	assert.Nil(t, reg.Get("broken"))
}

func TestDir_Reload(t *testing.T) {
	dir := t.TempDir()
	writeArchive(t, dir, "mailer", "1.0.0")

	reg, err := LoadDir(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, reg.All(), 1)

	writeArchive(t, dir, "reporting", "2.0.0")
	require.NoError(t, reg.Reload(context.Background()))

	assert.Len(t, reg.All(), 2)
	assert.NotNil(t, reg.Get("reporting"))
}

func TestMemory(t *testing.T) {
	a := &plugin.InstalledPlugin{ShortName: "b-side", Version: semver.MustParse("1.0.0")}
	b := &plugin.InstalledPlugin{ShortName: "a-side", Version: semver.MustParse("2.0.0")}

	m := NewMemory(a, b)

	assert.Same(t, a, m.Get("b-side"))
	assert.Nil(t, m.Get("missing"))

	all := m.All()
	require.Len(t, all, 2)
	assert.Equal(t, "a-side", all[0].ShortName)
	assert.Equal(t, "b-side", all[1].ShortName)

	replacement := &plugin.InstalledPlugin{ShortName: "b-side", Version: semver.MustParse("3.0.0")}
	m.Put(replacement)
	assert.Same(t, replacement, m.Get("b-side"))
}
