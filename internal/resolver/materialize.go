// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package resolver

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/holomush/optplug/internal/plugin"
)

// materializeResult is the outcome of writing one pass's survivors into
// the plugin directory.
type materializeResult struct {
	// fresh lists the candidates whose primary file was (re)written
	// this pass, with ArchivePath pointing at the plugin dir copy.
	// Only these are eligible for hot loading.
	fresh []*plugin.Candidate
	// pinConflict is set when a pin marker froze a file that no longer
	// matches its surviving candidate; the new version sits staged and
	// a restart (after unpinning) is needed to complete activation.
	pinConflict bool
}

// materialize writes each surviving candidate into the plugin
// directory: legacy extensions normalized first, the primary file
// rewritten when absent or stale and not pinned, and the disable
// marker reconciled against the enablement check. Pin markers are
// never created or removed here. Individual file failures are logged
// and skipped; the pass continues.
func materialize(survivors []*plugin.Candidate, enabled map[string]bool, pluginDir string) materializeResult {
	var res materializeResult
	for _, c := range survivors {
		primary := filepath.Join(pluginDir, plugin.ArchiveFileName(c.ShortName))
		pinMarker := primary + plugin.PinnedSuffix
		disableMarker := primary + plugin.DisabledSuffix

		normalizeLegacy(pluginDir, c.ShortName)

		pinned := fileExists(pinMarker)
		switch {
		case !fileExists(primary):
			if writeArchive(c, primary) {
				res.fresh = append(res.fresh, c)
			}
		case modTimeDiffers(primary, c.ModTime):
			if pinned {
				// The pinned file stays untouched; the newer archive
				// remains staged for pickup after an unpin + restart.
				slog.Info("pinned plugin differs from its candidate, restart required after unpinning",
					"plugin", c.ShortName,
					"version", c.Version)
				res.pinConflict = true
				continue
			}
			if writeArchive(c, primary) {
				res.fresh = append(res.fresh, c)
			}
		}

		if enabled[c.ShortName] {
			removeMarker(disableMarker, c.ShortName)
		} else {
			ensureMarker(disableMarker, c.ShortName)
		}
	}
	return res
}

// normalizeLegacy renames a legacy-extension archive and its marker
// siblings to the current extension. Renames only happen when the
// destination is absent; failures are logged and non-fatal.
func normalizeLegacy(pluginDir, shortName string) {
	legacy := filepath.Join(pluginDir, shortName+plugin.LegacyExt)
	current := filepath.Join(pluginDir, shortName+plugin.Ext)
	for _, suffix := range []string{"", plugin.PinnedSuffix, plugin.DisabledSuffix} {
		src, dest := legacy+suffix, current+suffix
		if !fileExists(src) || fileExists(dest) {
			continue
		}
		if err := os.Rename(src, dest); err != nil {
			slog.Warn("could not normalize legacy archive file",
				"plugin", shortName,
				"from", src,
				"to", dest,
				"error", err)
		}
	}
}

// writeArchive copies the candidate's staged archive to dest and stamps
// it with the candidate's declared modification time. The stamp is
// reused as a change-detection key on later passes and across
// restarts, so it must track the staged file, not the copy time.
// Reports whether the write succeeded.
func writeArchive(c *plugin.Candidate, dest string) bool {
	if err := copyFile(c.ArchivePath, dest); err != nil {
		slog.Warn("could not write plugin archive",
			"plugin", c.ShortName,
			"path", dest,
			"error", err)
		return false
	}
	if c.ModTime != 0 {
		if err := chtimes(dest, c.ModTime); err != nil {
			slog.Warn("could not set modification time on plugin archive",
				"plugin", c.ShortName,
				"path", dest,
				"error", err)
		}
	}
	c.ArchivePath = dest
	return true
}

// ensureMarker creates a zero-byte marker if absent.
func ensureMarker(path, shortName string) {
	if fileExists(path) {
		return
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o600) //nolint:gosec // marker path derived from validated short name
	if err != nil {
		slog.Warn("could not create marker file",
			"plugin", shortName,
			"path", path,
			"error", err)
		return
	}
	if err := f.Close(); err != nil {
		slog.Warn("could not close marker file",
			"plugin", shortName,
			"path", path,
			"error", err)
	}
}

// removeMarker deletes a marker if present.
func removeMarker(path, shortName string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		slog.Warn("could not remove marker file",
			"plugin", shortName,
			"path", path,
			"error", err)
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// modTimeDiffers reports whether the file's modification time disagrees
// with the candidate's declared time. An undeclared time never forces a
// rewrite.
func modTimeDiffers(path string, declared int64) bool {
	if declared == 0 {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		return true
	}
	return info.ModTime().Unix() != declared
}

// copyFile copies src to dest, truncating any existing file.
func copyFile(src, dest string) error {
	in, err := os.Open(src) //nolint:gosec // paths are confined to the staging and plugin dirs
	if err != nil {
		return err
	}
	defer in.Close() //nolint:errcheck // read-only

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) //nolint:gosec // see above
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close() //nolint:errcheck // write already failed
		return err
	}
	return out.Close()
}
