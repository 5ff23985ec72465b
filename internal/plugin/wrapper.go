// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import (
	"archive/zip"
	"context"
	"io"
	"os"

	"github.com/samber/oops"
)

// ManifestFileName is the manifest's path inside an archive.
const ManifestFileName = "plugin.yaml"

// maxManifestSize caps the manifest read so a corrupt archive cannot
// make the resolver allocate unbounded memory.
const maxManifestSize = 1 << 20

// Compile-time interface check.
var _ Wrapper = (*ArchiveWrapper)(nil)

// ArchiveWrapper is the default Wrapper: it opens the archive zip,
// schema-validates the embedded plugin.yaml, and parses it into a
// Candidate.
type ArchiveWrapper struct{}

// NewArchiveWrapper creates the default archive wrapper.
func NewArchiveWrapper() *ArchiveWrapper {
	return &ArchiveWrapper{}
}

// Wrap builds a Candidate from the archive at the given path.
func (w *ArchiveWrapper) Wrap(_ context.Context, archivePath string) (*Candidate, error) {
	errb := oops.In("wrapper").With("archive", archivePath)

	info, err := os.Stat(archivePath)
	if err != nil {
		return nil, errb.Code("WRAP_STAT_FAILED").Wrap(err)
	}

	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, errb.Code("WRAP_OPEN_FAILED").Hint("archive is not a readable zip").Wrap(err)
	}
	defer zr.Close() //nolint:errcheck // read-only

	data, err := readManifest(&zr.Reader)
	if err != nil {
		return nil, errb.Code("WRAP_MANIFEST_FAILED").Wrap(err)
	}

	if err := ValidateSchema(data); err != nil {
		return nil, errb.Code("WRAP_SCHEMA_INVALID").Wrap(err)
	}

	m, err := ParseManifest(data)
	if err != nil {
		return nil, errb.Code("WRAP_MANIFEST_INVALID").Wrap(err)
	}

	c, err := m.Candidate(archivePath, info.ModTime().Unix())
	if err != nil {
		return nil, errb.Code("WRAP_MANIFEST_INVALID").Wrap(err)
	}
	return c, nil
}

// readManifest extracts the plugin.yaml entry from the archive.
func readManifest(zr *zip.Reader) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != ManifestFileName {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, oops.With("entry", f.Name).Wrap(err)
		}
		defer rc.Close() //nolint:errcheck // read-only

		data, err := io.ReadAll(io.LimitReader(rc, maxManifestSize+1))
		if err != nil {
			return nil, oops.With("entry", f.Name).Wrap(err)
		}
		if len(data) > maxManifestSize {
			return nil, oops.With("entry", f.Name).Errorf("manifest exceeds %d bytes", maxManifestSize)
		}
		return data, nil
	}
	return nil, oops.Errorf("archive has no %s", ManifestFileName)
}
