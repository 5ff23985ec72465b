// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import (
	"context"
	"errors"
)

// ErrRestartRequired is returned by a HotLoader when the host cannot
// activate the plugin without a full restart.
var ErrRestartRequired = errors.New("restart required to activate plugin")

// Wrapper turns a staged archive into a Candidate. Implemented by the
// host; the default implementation reads the plugin.yaml manifest out
// of the archive zip.
type Wrapper interface {
	// Wrap builds a Candidate from the archive at the given path.
	Wrap(ctx context.Context, archivePath string) (*Candidate, error)
}

// HotLoader activates a freshly materialized plugin into the running
// host. Calls are strictly serialized by the resolver because a later
// plugin's activation may depend on an earlier one already being
// active.
type HotLoader interface {
	// HotLoad activates the candidate's materialized archive. Returns
	// ErrRestartRequired (possibly wrapped) when the host refuses to
	// load it dynamically.
	HotLoad(ctx context.Context, c *Candidate, archivePath string) error
}
