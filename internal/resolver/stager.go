// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package resolver

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/opencontainers/go-digest"
	"github.com/samber/oops"

	"github.com/holomush/optplug/internal/plugin"
)

// StagedArchive is one source location resolved to a local file in the
// staging directory.
type StagedArchive struct {
	Location *url.URL
	Path     string
	Digest   digest.Digest
	Length   int64
	// ModTime is the modification time the source declared, in Unix
	// seconds. Zero when the source declared none.
	ModTime int64
}

// stagedMeta is what the stager remembers about a location between
// passes. An entry never proves freshness on its own: the file it
// points at is re-verified (existence, length, digest) on every hit.
type stagedMeta struct {
	shortName string
	digest    digest.Digest
	length    int64
}

// Stager maintains the staging directory: one local archive per
// discovered source location, refetched only when the cached copy no
// longer matches by length and content digest.
//
// The cache lives for the owning Resolver's lifetime and tolerates
// concurrent readers; entries are invalidated lazily on mismatch.
type Stager struct {
	dir    string
	client *http.Client

	mu    sync.Mutex
	cache map[string]*stagedMeta
}

// StagerOption configures a Stager.
type StagerOption func(*Stager)

// WithHTTPClient sets the client used for http and https locations.
func WithHTTPClient(c *http.Client) StagerOption {
	return func(s *Stager) {
		s.client = c
	}
}

// NewStager creates a stager rooted at dir.
func NewStager(dir string, opts ...StagerOption) *Stager {
	s := &Stager{
		dir:    dir,
		client: http.DefaultClient,
		cache:  make(map[string]*stagedMeta),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stage resolves one location to a local archive, fetching only when
// the cached copy is stale. Each location gets exactly one fetch
// attempt per pass; the caller decides what a failure means.
func (s *Stager) Stage(ctx context.Context, loc *url.URL) (*StagedArchive, error) {
	key := loc.String()
	errb := oops.In("stager").With("location", key)

	if staged := s.cacheHit(loc); staged != nil {
		return staged, nil
	}

	body, length, modTime, err := s.open(ctx, loc)
	if err != nil {
		return nil, errb.Code("STAGE_OPEN_FAILED").Wrap(err)
	}
	defer body.Close() //nolint:errcheck // read-only

	name := stagingName(loc)
	if s.nameClaimed(name, key) {
		// Another location already stages under this base name.
		// Suffix with a digest of the location so duplicates from
		// distinct sources never overwrite each other before one of
		// them is committed as the winner.
		name += "-" + digest.Canonical.FromString(key).Encoded()[:12]
	}
	dest := filepath.Join(s.dir, name+plugin.Ext)

	// Fetch into a temp file, computing the content digest as the
	// bytes stream past. Matching length and mod time on an existing
	// file is not enough to skip the copy: stale metadata must not
	// mask a real content change, so equality is always confirmed by
	// digest before the existing file is kept.
	tmp, err := os.CreateTemp(s.dir, name+".fetch-*")
	if err != nil {
		return nil, errb.Code("STAGE_TEMP_FAILED").Wrap(err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) //nolint:errcheck // best effort cleanup

	digester := digest.Canonical.Digester()
	written, err := io.Copy(io.MultiWriter(tmp, digester.Hash()), body)
	closeErr := tmp.Close()
	if err != nil {
		return nil, errb.Code("STAGE_FETCH_FAILED").Wrap(err)
	}
	if closeErr != nil {
		return nil, errb.Code("STAGE_FETCH_FAILED").Wrap(closeErr)
	}
	dgst := digester.Digest()

	if reusable(dest, length, modTime, written, dgst) {
		slog.Debug("staged archive unchanged, keeping existing file",
			"location", key,
			"path", dest)
	} else {
		if err := replaceFile(tmpPath, dest); err != nil {
			return nil, errb.Code("STAGE_WRITE_FAILED").Wrap(err)
		}
	}
	if modTime != 0 {
		if err := chtimes(dest, modTime); err != nil {
			slog.Debug("could not set modification time on staged archive",
				"path", dest,
				"error", err)
		}
	}

	staged := &StagedArchive{
		Location: loc,
		Path:     dest,
		Digest:   dgst,
		Length:   written,
		ModTime:  modTime,
	}

	s.mu.Lock()
	s.cache[key] = &stagedMeta{shortName: name, digest: dgst, length: written}
	s.mu.Unlock()

	return staged, nil
}

// Commit records the wrapped short name for a staged archive and, when
// the staged file name differs, renames it to the canonical
// <shortName>.hpk form. A same-digest file of the target name is kept
// as-is. Returns the final archive path.
func (s *Stager) Commit(staged *StagedArchive, shortName string) (string, error) {
	key := staged.Location.String()
	errb := oops.In("stager").With("location", key).With("plugin", shortName)

	dest := filepath.Join(s.dir, plugin.ArchiveFileName(shortName))
	if dest != staged.Path {
		existing, err := fileDigest(dest)
		switch {
		case err == nil && existing == staged.Digest:
			// Same content already present under the canonical name.
			if err := os.Remove(staged.Path); err != nil {
				slog.Debug("could not remove redundant staged file",
					"path", staged.Path,
					"error", err)
			}
		default:
			if err := replaceFile(staged.Path, dest); err != nil {
				return "", errb.Code("STAGE_RENAME_FAILED").Wrap(err)
			}
		}
		if staged.ModTime != 0 {
			if err := chtimes(dest, staged.ModTime); err != nil {
				slog.Debug("could not set modification time on staged archive",
					"path", dest,
					"error", err)
			}
		}
		staged.Path = dest
	}

	s.mu.Lock()
	if meta, ok := s.cache[key]; ok {
		meta.shortName = shortName
	}
	s.mu.Unlock()

	return dest, nil
}

// nameClaimed reports whether a different location already stages
// under the given base name.
func (s *Stager) nameClaimed(name, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, meta := range s.cache {
		if k != key && meta.shortName == name {
			return true
		}
	}
	return false
}

// cacheHit returns the staged archive for a location whose cached copy
// is still valid: file present, length matching, digest matching a
// full recomputation.
func (s *Stager) cacheHit(loc *url.URL) *StagedArchive {
	key := loc.String()
	s.mu.Lock()
	meta, ok := s.cache[key]
	s.mu.Unlock()
	if !ok {
		return nil
	}

	p := filepath.Join(s.dir, plugin.ArchiveFileName(meta.shortName))
	info, err := os.Stat(p)
	if err != nil || info.IsDir() || info.Size() != meta.length {
		return nil
	}
	dgst, err := fileDigest(p)
	if err != nil || dgst != meta.digest {
		return nil
	}

	return &StagedArchive{
		Location: loc,
		Path:     p,
		Digest:   dgst,
		Length:   meta.length,
		ModTime:  info.ModTime().Unix(),
	}
}

// open fetches a location, returning the byte stream together with the
// declared length and modification time (either may be unknown).
func (s *Stager) open(ctx context.Context, loc *url.URL) (io.ReadCloser, int64, int64, error) {
	switch loc.Scheme {
	case "file", "":
		f, err := os.Open(loc.Path)
		if err != nil {
			return nil, 0, 0, err
		}
		info, err := f.Stat()
		if err != nil {
			f.Close() //nolint:errcheck // open for read only
			return nil, 0, 0, err
		}
		return f, info.Size(), info.ModTime().Unix(), nil
	case "http", "https":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, loc.String(), nil)
		if err != nil {
			return nil, 0, 0, err
		}
		resp, err := s.client.Do(req)
		if err != nil {
			return nil, 0, 0, err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close() //nolint:errcheck // discarding response
			return nil, 0, 0, fmt.Errorf("unexpected status %s", resp.Status)
		}
		var modTime int64
		if t, err := http.ParseTime(resp.Header.Get("Last-Modified")); err == nil {
			modTime = t.Unix()
		}
		return resp.Body, resp.ContentLength, modTime, nil
	default:
		return nil, 0, 0, fmt.Errorf("unsupported location scheme %q", loc.Scheme)
	}
}

// stagingName derives the staged file's base name from a location:
// the path's base name stripped of its extension, or a digest of the
// whole location string when the path yields nothing usable. The
// digest fallback guarantees distinct locations stage to distinct
// files.
func stagingName(loc *url.URL) string {
	base := path.Base(loc.Path)
	base = strings.TrimSuffix(base, path.Ext(base))
	if base == "" || base == "." || base == "/" {
		return digest.Canonical.FromString(loc.String()).Encoded()
	}
	return base
}

// reusable reports whether the existing file at dest already carries
// the fetched content, judged by declared metadata and confirmed by
// digest.
func reusable(dest string, declaredLen, declaredMod, fetchedLen int64, fetched digest.Digest) bool {
	info, err := os.Stat(dest)
	if err != nil || info.IsDir() {
		return false
	}
	if info.Size() != fetchedLen {
		return false
	}
	if declaredLen >= 0 && info.Size() != declaredLen {
		return false
	}
	if declaredMod != 0 && info.ModTime().Unix() != declaredMod {
		return false
	}
	existing, err := fileDigest(dest)
	return err == nil && existing == fetched
}

// fileDigest computes the canonical content digest of a file.
func fileDigest(p string) (digest.Digest, error) {
	f, err := os.Open(p) //nolint:gosec // paths are confined to the staging and plugin dirs
	if err != nil {
		return "", err
	}
	defer f.Close() //nolint:errcheck // read-only
	return digest.Canonical.FromReader(f)
}

// replaceFile moves src over dest, falling back to remove-then-rename
// for filesystems where rename does not overwrite.
func replaceFile(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
		return err
	}
	return os.Rename(src, dest)
}

// chtimes sets a file's modification time from Unix seconds.
func chtimes(p string, unixSec int64) error {
	t := time.Unix(unixSec, 0)
	return os.Chtimes(p, t, t)
}
