// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

// Archive file extensions. LegacyExt archives are normalized to Ext
// when the resolver materializes candidates.
const (
	Ext       = ".hpk"
	LegacyExt = ".hpz"
)

// Marker suffixes appended to an archive file name. Both markers are
// zero-byte sibling files.
const (
	// PinnedSuffix freezes the archive: auto-update logic never
	// overwrites a pinned file.
	PinnedSuffix = ".pinned"
	// DisabledSuffix keeps the archive on disk but stops the host from
	// loading it.
	DisabledSuffix = ".disabled"
)

// ArchiveFileName returns a plugin's canonical file name.
func ArchiveFileName(shortName string) string {
	return shortName + Ext
}
