// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package plugin provides the plugin data model and the extension
// points (sources, filters, host services) used by the resolver.
package plugin

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

// Manifest represents the plugin.yaml file at the root of an archive.
type Manifest struct {
	Name            string   `yaml:"name" json:"name"`
	Version         string   `yaml:"version" json:"version"`
	Depends         []string `yaml:"depends,omitempty" json:"depends,omitempty"`
	OptionalDepends []string `yaml:"optional-depends,omitempty" json:"optional-depends,omitempty"`
	DynamicLoad     string   `yaml:"dynamic-load,omitempty" json:"dynamic-load,omitempty"`
	Executable      string   `yaml:"executable,omitempty" json:"executable,omitempty"`
}

// maxNameLength is the maximum allowed length for plugin short names.
const maxNameLength = 64

// namePattern validates short names: must start with a lowercase letter,
// followed by lowercase letters, digits, or hyphens.
// Cannot end with a hyphen. Single character names are allowed.
var namePattern = regexp.MustCompile(`^[a-z]([a-z0-9-]*[a-z0-9])?$`)

// ParseManifest parses and validates a plugin.yaml file.
func ParseManifest(data []byte) (*Manifest, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("manifest data is empty")
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return &m, nil
}

// Validate checks manifest constraints.
func (m *Manifest) Validate() error {
	if m.Name == "" || !namePattern.MatchString(m.Name) {
		return fmt.Errorf("name %q must start with a-z, contain only a-z, 0-9, hyphens, and not end with a hyphen", m.Name)
	}
	if len(m.Name) > maxNameLength {
		return fmt.Errorf("name must be %d characters or less, got %d", maxNameLength, len(m.Name))
	}

	if m.Version == "" {
		return fmt.Errorf("version is required")
	}
	if _, err := semver.NewVersion(m.Version); err != nil {
		return fmt.Errorf("version %q is not a valid semantic version: %w", m.Version, err)
	}

	for _, d := range m.Depends {
		if _, err := parseDependency(d); err != nil {
			return fmt.Errorf("depends entry %q: %w", d, err)
		}
	}
	for _, d := range m.OptionalDepends {
		if _, err := parseDependency(d); err != nil {
			return fmt.Errorf("optional-depends entry %q: %w", d, err)
		}
	}

	switch m.DynamicLoad {
	case "", "yes", "no", "maybe":
	default:
		return fmt.Errorf("dynamic-load must be 'yes', 'no' or 'maybe', got %q", m.DynamicLoad)
	}

	return nil
}

// Candidate converts a validated manifest into a Candidate. The archive
// path and modification time belong to the staged file, not the
// manifest, so the caller supplies them.
func (m *Manifest) Candidate(archivePath string, modTime int64) (*Candidate, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	version := semver.MustParse(m.Version)

	depends, err := parseDependencies(m.Depends)
	if err != nil {
		return nil, err
	}
	optional, err := parseDependencies(m.OptionalDepends)
	if err != nil {
		return nil, err
	}

	var dl DynamicLoad
	switch m.DynamicLoad {
	case "yes":
		dl = DynamicLoadYes
	case "no":
		dl = DynamicLoadNo
	default:
		dl = DynamicLoadMaybe
	}

	return &Candidate{
		ShortName:       m.Name,
		Version:         version,
		Depends:         depends,
		OptionalDepends: optional,
		DynamicLoad:     dl,
		ArchivePath:     archivePath,
		ModTime:         modTime,
		Executable:      m.Executable,
	}, nil
}

// parseDependency parses a "name@minVersion" manifest entry.
func parseDependency(s string) (Dependency, error) {
	name, ver, ok := strings.Cut(s, "@")
	if !ok {
		return Dependency{}, fmt.Errorf("expected name@minVersion")
	}
	if !namePattern.MatchString(name) {
		return Dependency{}, fmt.Errorf("invalid dependency name %q", name)
	}
	v, err := semver.NewVersion(ver)
	if err != nil {
		return Dependency{}, fmt.Errorf("invalid minimum version %q: %w", ver, err)
	}
	return Dependency{Name: name, MinVersion: v}, nil
}

func parseDependencies(entries []string) ([]Dependency, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	deps := make([]Dependency, 0, len(entries))
	for _, e := range entries {
		d, err := parseDependency(e)
		if err != nil {
			return nil, fmt.Errorf("dependency %q: %w", e, err)
		}
		deps = append(deps, d)
	}
	return deps, nil
}
