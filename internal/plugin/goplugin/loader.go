// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package goplugin provides a HotLoader that activates plugin
// executables as HashiCorp go-plugin subprocesses.
package goplugin

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	hashiplug "github.com/hashicorp/go-plugin"

	"github.com/holomush/optplug/internal/plugin"
	"github.com/holomush/optplug/pkg/sdk"
)

// maxExecutableSize caps extraction so a corrupt archive cannot fill
// the disk.
const maxExecutableSize = 256 << 20

// Sentinel errors for programmatic error checking.
var (
	// ErrLoaderClosed is returned when loading after Close.
	ErrLoaderClosed = errors.New("loader is closed")
	// ErrAlreadyLoaded is returned when a plugin of the same name is
	// already running.
	ErrAlreadyLoaded = errors.New("plugin already loaded")
)

// Compile-time interface check.
var _ plugin.HotLoader = (*Loader)(nil)

// PluginClient wraps the go-plugin client for testability.
type PluginClient interface {
	// Client returns the RPC client protocol.
	Client() (hashiplug.ClientProtocol, error)
	// Kill terminates the plugin process.
	Kill()
}

// ClientFactory creates plugin clients.
type ClientFactory interface {
	// NewClient creates a client for the given executable path.
	NewClient(execPath string) PluginClient
}

// DefaultClientFactory creates real go-plugin clients.
type DefaultClientFactory struct{}

// NewClient creates a real go-plugin client.
func (f *DefaultClientFactory) NewClient(execPath string) PluginClient {
	return hashiplug.NewClient(&hashiplug.ClientConfig{
		HandshakeConfig: sdk.Handshake,
		Plugins:         sdk.PluginMap,
		Cmd:             exec.Command(execPath), // #nosec G204 -- execPath extracted from an archive whose manifest was validated during wrapping
	})
}

// Loader hot-loads plugin executables as go-plugin subprocesses: the
// declared executable is extracted from the archive into a run
// directory, started, identity-checked against the manifest, and
// activated.
type Loader struct {
	runDir        string
	clientFactory ClientFactory

	mu     sync.Mutex
	loaded map[string]PluginClient
	closed bool
}

// New creates a loader extracting executables under runDir.
func New(runDir string) *Loader {
	return &Loader{
		runDir:        runDir,
		clientFactory: &DefaultClientFactory{},
		loaded:        make(map[string]PluginClient),
	}
}

// NewWithFactory creates a loader with a custom client factory (for
// testing). Panics if factory is nil.
func NewWithFactory(runDir string, factory ClientFactory) *Loader {
	if factory == nil {
		panic("goplugin: factory cannot be nil")
	}
	l := New(runDir)
	l.clientFactory = factory
	return l
}

// HotLoad activates one candidate. An archive without a runnable
// payload cannot be activated into the running host and defers to a
// restart.
func (l *Loader) HotLoad(_ context.Context, c *plugin.Candidate, archivePath string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrLoaderClosed
	}
	if _, ok := l.loaded[c.ShortName]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyLoaded, c.ShortName)
	}
	if c.Executable == "" {
		return fmt.Errorf("plugin %s declares no executable: %w", c.ShortName, plugin.ErrRestartRequired)
	}

	execPath, err := l.extractExecutable(c, archivePath)
	if err != nil {
		return fmt.Errorf("extract executable for plugin %s: %w", c.ShortName, err)
	}

	client := l.clientFactory.NewClient(execPath)

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return fmt.Errorf("failed to connect to plugin %s: %w", c.ShortName, err)
	}

	raw, err := rpcClient.Dispense(sdk.ExtensionPluginName)
	if err != nil {
		client.Kill()
		return fmt.Errorf("failed to dispense plugin %s: %w", c.ShortName, err)
	}

	ext, ok := raw.(sdk.Extension)
	if !ok {
		client.Kill()
		return fmt.Errorf("plugin %s does not implement Extension", c.ShortName)
	}

	info, err := ext.Describe()
	if err != nil {
		client.Kill()
		return fmt.Errorf("plugin %s describe failed: %w", c.ShortName, err)
	}
	if info.Name != c.ShortName {
		client.Kill()
		return fmt.Errorf("plugin identity mismatch: archive says %s, process says %s", c.ShortName, info.Name)
	}

	if err := ext.Activate(); err != nil {
		client.Kill()
		return fmt.Errorf("plugin %s activation failed: %w", c.ShortName, err)
	}

	l.loaded[c.ShortName] = client

	slog.Info("activated plugin process",
		"plugin", c.ShortName,
		"version", info.Version)

	return nil
}

// extractExecutable writes the declared executable out of the archive
// into the run directory and marks it executable.
func (l *Loader) extractExecutable(c *plugin.Candidate, archivePath string) (string, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return "", err
	}
	defer zr.Close() //nolint:errcheck // read-only

	var entry *zip.File
	for _, f := range zr.File {
		if f.Name == c.Executable {
			entry = f
			break
		}
	}
	if entry == nil {
		return "", fmt.Errorf("archive has no entry %q", c.Executable)
	}

	destDir := filepath.Join(l.runDir, c.ShortName)
	if err := os.MkdirAll(destDir, 0o750); err != nil {
		return "", err
	}
	dest := filepath.Join(destDir, filepath.Base(c.Executable))

	rc, err := entry.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close() //nolint:errcheck // read-only

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o700) //nolint:gosec // must be executable
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, io.LimitReader(rc, maxExecutableSize)); err != nil {
		out.Close() //nolint:errcheck // write already failed
		return "", err
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	return dest, nil
}

// Loaded returns names of all running plugins.
func (l *Loader) Loaded() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	names := make([]string, 0, len(l.loaded))
	for name := range l.loaded {
		names = append(names, name)
	}
	return names
}

// Close kills every running plugin process.
func (l *Loader) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, client := range l.loaded {
		client.Kill()
	}
	l.closed = true
	clear(l.loaded)
}
