// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// DynamicLoad describes whether a plugin supports being activated into
// a running host.
type DynamicLoad int

// DynamicLoad values. Maybe is the zero value: an archive that does not
// declare anything is assumed loadable until the host says otherwise.
const (
	DynamicLoadMaybe DynamicLoad = iota
	DynamicLoadYes
	DynamicLoadNo
)

// String returns the declared value as it appears in manifests.
func (d DynamicLoad) String() string {
	switch d {
	case DynamicLoadYes:
		return "yes"
	case DynamicLoadNo:
		return "no"
	case DynamicLoadMaybe:
		return "maybe"
	default:
		return "unknown"
	}
}

// Dependency is a reference to another plugin by short name with a
// minimum acceptable version.
type Dependency struct {
	Name       string
	MinVersion *semver.Version
}

// String renders the dependency in manifest form.
func (d Dependency) String() string {
	return fmt.Sprintf("%s@%s", d.Name, d.MinVersion)
}

// Satisfies reports whether the given version meets the minimum.
func (d Dependency) Satisfies(v *semver.Version) bool {
	return v != nil && !v.LessThan(d.MinVersion)
}

// Candidate is a not-yet-activated plugin discovered during the current
// resolution pass, built from a staged archive by a Wrapper.
type Candidate struct {
	ShortName       string
	Version         *semver.Version
	Depends         []Dependency
	OptionalDepends []Dependency
	DynamicLoad     DynamicLoad

	// ArchivePath is the staged archive the candidate was wrapped from.
	ArchivePath string
	// ModTime is the archive's declared modification time in Unix
	// seconds, zero when the source declared none. It doubles as the
	// change-detection key for materialized files.
	ModTime int64
	// Executable is the binary entry inside the archive, empty for
	// archives that carry no runnable payload.
	Executable string
}

// NewerThan reports whether the candidate's version is strictly newer.
func (c *Candidate) NewerThan(v *semver.Version) bool {
	return v == nil || c.Version.GreaterThan(v)
}
