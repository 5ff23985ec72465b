// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package resolver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/optplug/internal/plugin"
)

// stagedCandidate writes a staged archive fixture and returns a
// candidate pointing at it.
func stagedCandidate(t *testing.T, stagingDir, name, version string, modTime int64) *plugin.Candidate {
	t.Helper()
	path := writeArchiveFixture(t, stagingDir, name, simpleManifest(name, version))
	if modTime != 0 {
		stampModTime(t, path, modTime)
	}
	c := cand(name, version)
	c.ArchivePath = path
	c.ModTime = modTime
	return c
}

func TestMaterialize_WritesNewArchive(t *testing.T) {
	staging, pluginDir := t.TempDir(), t.TempDir()
	c := stagedCandidate(t, staging, "mailer", "1.0.0", 1700000000)

	res := materialize([]*plugin.Candidate{c}, map[string]bool{"mailer": true}, pluginDir)

	require.Len(t, res.fresh, 1)
	assert.False(t, res.pinConflict)

	dest := filepath.Join(pluginDir, "mailer"+plugin.Ext)
	assert.FileExists(t, dest)
	assert.Equal(t, dest, c.ArchivePath, "candidate should point at the materialized copy")

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.EqualValues(t, 1700000000, info.ModTime().Unix(), "declared mod time should be stamped")

	assert.NoFileExists(t, dest+plugin.DisabledSuffix)
}

func TestMaterialize_UnchangedFileSkipped(t *testing.T) {
	staging, pluginDir := t.TempDir(), t.TempDir()
	c := stagedCandidate(t, staging, "mailer", "1.0.0", 1700000000)

	first := materialize([]*plugin.Candidate{c}, map[string]bool{"mailer": true}, pluginDir)
	require.Len(t, first.fresh, 1)

	// Same candidate again: mod times match, nothing is rewritten.
	c2 := stagedCandidate(t, staging, "mailer", "1.0.0", 1700000000)
	second := materialize([]*plugin.Candidate{c2}, map[string]bool{"mailer": true}, pluginDir)
	assert.Empty(t, second.fresh)
	assert.False(t, second.pinConflict)
}

func TestMaterialize_ChangedFileRewritten(t *testing.T) {
	staging, pluginDir := t.TempDir(), t.TempDir()
	c := stagedCandidate(t, staging, "mailer", "1.0.0", 1700000000)
	materialize([]*plugin.Candidate{c}, map[string]bool{"mailer": true}, pluginDir)

	// New archive content with a different declared mod time.
	c2 := stagedCandidate(t, staging, "mailer", "1.1.0", 1700009999)
	res := materialize([]*plugin.Candidate{c2}, map[string]bool{"mailer": true}, pluginDir)

	require.Len(t, res.fresh, 1)
	info, err := os.Stat(filepath.Join(pluginDir, "mailer"+plugin.Ext))
	require.NoError(t, err)
	assert.EqualValues(t, 1700009999, info.ModTime().Unix())
}

func TestMaterialize_PinnedFileNotOverwritten(t *testing.T) {
	staging, pluginDir := t.TempDir(), t.TempDir()
	c := stagedCandidate(t, staging, "mailer", "1.0.0", 1700000000)
	materialize([]*plugin.Candidate{c}, map[string]bool{"mailer": true}, pluginDir)

	primary := filepath.Join(pluginDir, "mailer"+plugin.Ext)
	require.NoError(t, os.WriteFile(primary+plugin.PinnedSuffix, nil, 0o600))

	before, err := os.ReadFile(primary)
	require.NoError(t, err)

	c2 := stagedCandidate(t, staging, "mailer", "2.0.0", 1700009999)
	res := materialize([]*plugin.Candidate{c2}, map[string]bool{"mailer": true}, pluginDir)

	assert.Empty(t, res.fresh)
	assert.True(t, res.pinConflict, "pinned file diverging from candidate should flag a conflict")

	after, err := os.ReadFile(primary)
	require.NoError(t, err)
	assert.Equal(t, before, after, "pinned file must stay untouched")
}

func TestMaterialize_PinnedUnchangedNoConflict(t *testing.T) {
	staging, pluginDir := t.TempDir(), t.TempDir()
	c := stagedCandidate(t, staging, "mailer", "1.0.0", 1700000000)
	materialize([]*plugin.Candidate{c}, map[string]bool{"mailer": true}, pluginDir)

	primary := filepath.Join(pluginDir, "mailer"+plugin.Ext)
	require.NoError(t, os.WriteFile(primary+plugin.PinnedSuffix, nil, 0o600))

	c2 := stagedCandidate(t, staging, "mailer", "1.0.0", 1700000000)
	res := materialize([]*plugin.Candidate{c2}, map[string]bool{"mailer": true}, pluginDir)

	assert.Empty(t, res.fresh)
	assert.False(t, res.pinConflict)
}

func TestMaterialize_DisableMarkerReconciled(t *testing.T) {
	staging, pluginDir := t.TempDir(), t.TempDir()
	c := stagedCandidate(t, staging, "mailer", "1.0.0", 1700000000)
	marker := filepath.Join(pluginDir, "mailer"+plugin.Ext+plugin.DisabledSuffix)

	// Not enableable: marker is created.
	materialize([]*plugin.Candidate{c}, map[string]bool{"mailer": false}, pluginDir)
	assert.FileExists(t, marker)

	// Enableable on a later pass: marker is removed.
	c2 := stagedCandidate(t, staging, "mailer", "1.0.0", 1700000000)
	materialize([]*plugin.Candidate{c2}, map[string]bool{"mailer": true}, pluginDir)
	assert.NoFileExists(t, marker)
}

func TestMaterialize_LegacyExtensionNormalized(t *testing.T) {
	staging, pluginDir := t.TempDir(), t.TempDir()

	// An old-format install: legacy archive plus legacy-named markers.
	legacy := filepath.Join(pluginDir, "mailer"+plugin.LegacyExt)
	require.NoError(t, os.WriteFile(legacy, []byte("old"), 0o600))
	require.NoError(t, os.WriteFile(legacy+plugin.PinnedSuffix, nil, 0o600))
	stampModTime(t, legacy, 1700000000)

	c := stagedCandidate(t, staging, "mailer", "1.0.0", 1700000000)
	res := materialize([]*plugin.Candidate{c}, map[string]bool{"mailer": true}, pluginDir)

	current := filepath.Join(pluginDir, "mailer"+plugin.Ext)
	assert.NoFileExists(t, legacy)
	assert.FileExists(t, current)
	assert.FileExists(t, current+plugin.PinnedSuffix)
	assert.NoFileExists(t, legacy+plugin.PinnedSuffix)

	// The normalized file has the same mod time as the candidate, so it
	// counts as current, not fresh.
	assert.Empty(t, res.fresh)
	assert.False(t, res.pinConflict)
}

func TestMaterialize_LegacyNotOverwritingCurrent(t *testing.T) {
	staging, pluginDir := t.TempDir(), t.TempDir()

	current := filepath.Join(pluginDir, "mailer"+plugin.Ext)
	legacy := filepath.Join(pluginDir, "mailer"+plugin.LegacyExt)
	require.NoError(t, os.WriteFile(current, []byte("new"), 0o600))
	require.NoError(t, os.WriteFile(legacy, []byte("old"), 0o600))
	stampModTime(t, current, 1700000000)

	c := stagedCandidate(t, staging, "mailer", "1.0.0", 1700000000)
	materialize([]*plugin.Candidate{c}, map[string]bool{"mailer": true}, pluginDir)

	data, err := os.ReadFile(current)
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), data, "existing current file must not be clobbered by a legacy rename")
	assert.FileExists(t, legacy, "legacy file stays when the destination exists")
}
