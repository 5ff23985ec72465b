// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package resolver implements the plugin activation resolver: staging,
// filter-driven inclusion, dependency closure, version reconciliation,
// materialization, and best-effort hot loading.
package resolver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/optplug/internal/plugin"
	"github.com/holomush/optplug/pkg/errutil"
)

// Resolver owns one resolution pipeline: the staging cache, the
// collaborator registries, and the host services. Construct one per
// host process; the staging cache persists for the resolver's lifetime.
type Resolver struct {
	stagingDir string
	pluginDir  string

	sources   *plugin.Sources
	filters   *plugin.Filters
	wrapper   plugin.Wrapper
	installed plugin.InstalledRegistry
	loader    plugin.HotLoader

	stager     *Stager
	stagerOpts []StagerOption

	// mu serializes passes. The design assumes one pass in flight at a
	// time; the lock makes an overlapping trigger wait instead of
	// corrupting shared state.
	mu sync.Mutex
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithSources sets the source registry.
func WithSources(s *plugin.Sources) Option {
	return func(r *Resolver) { r.sources = s }
}

// WithFilters sets the filter registry.
func WithFilters(f *plugin.Filters) Option {
	return func(r *Resolver) { r.filters = f }
}

// WithWrapper replaces the default archive wrapper.
func WithWrapper(w plugin.Wrapper) Option {
	return func(r *Resolver) { r.wrapper = w }
}

// WithInstalledRegistry sets the host's installed-plugin registry.
func WithInstalledRegistry(reg plugin.InstalledRegistry) Option {
	return func(r *Resolver) { r.installed = reg }
}

// WithHotLoader sets the host's hot loader. Without one, any pass that
// materializes new plugins reports restart-required.
func WithHotLoader(l plugin.HotLoader) Option {
	return func(r *Resolver) { r.loader = l }
}

// WithResolverHTTPClient sets the HTTP client used for staging remote
// archives.
func WithResolverHTTPClient(c *http.Client) Option {
	return func(r *Resolver) { r.stagerOpts = append(r.stagerOpts, WithHTTPClient(c)) }
}

// New creates a resolver staging into stagingDir and materializing into
// pluginDir.
func New(stagingDir, pluginDir string, opts ...Option) *Resolver {
	r := &Resolver{
		stagingDir: stagingDir,
		pluginDir:  pluginDir,
		sources:    plugin.NewSources(),
		filters:    plugin.NewFilters(),
		wrapper:    plugin.NewArchiveWrapper(),
		installed:  emptyRegistry{},
	}
	for _, opt := range opts {
		opt(r)
	}
	r.stager = NewStager(stagingDir, r.stagerOpts...)
	return r
}

// Refresh runs one synchronous resolution pass end to end and reports
// whether a full restart is required to complete activation. False
// means nothing changed or every new plugin was hot-loaded.
//
// Per-resource and per-candidate failures are logged and skipped; only
// an unusable staging or plugin directory is fatal.
func (r *Resolver) Refresh(ctx context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	started := time.Now()
	log := slog.With("pass", newPassID().String())
	log.Debug("starting resolution pass")

	for _, dir := range []string{r.stagingDir, r.pluginDir} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			recordPass(OutcomeError, started)
			return false, oops.In("resolver").Code("REFRESH_DIR_FAILED").With("dir", dir).Wrap(err)
		}
	}

	decided := r.collect(ctx, log)

	survivors := closure(decided, r.installed)
	recordCandidates(StageIncluded, len(survivors))
	if len(survivors) == 0 {
		log.Debug("no optional plugins to activate")
		recordPass(OutcomeClean, started)
		return false, nil
	}

	final := finalVersions(survivors, r.installed)
	enabled := make(map[string]bool, len(survivors))
	for _, c := range survivors {
		enabled[c.ShortName] = enableable(c, final)
	}

	res := materialize(survivors, enabled, r.pluginDir)
	recordCandidates(StageMaterialized, len(res.fresh))

	// Hot loading is all-or-nothing for a pass: one fresh plugin with
	// an unpinned live counterpart, or one declaring no dynamic load
	// support, defers everything to a restart. Only freshly written
	// files count; plugins already current on disk impose nothing.
	cannotDynamicLoad := res.pinConflict
	for _, c := range res.fresh {
		existing := r.installed.Get(c.ShortName)
		switch {
		case existing.Live() && !existing.Pinned:
			log.Info("cannot hot-load this pass, plugin is already installed",
				"plugin", c.ShortName)
			cannotDynamicLoad = true
		case c.DynamicLoad == plugin.DynamicLoadNo:
			log.Info("cannot hot-load this pass, plugin does not support dynamic load",
				"plugin", c.ShortName)
			cannotDynamicLoad = true
		}
	}

	if cannotDynamicLoad {
		recordPass(OutcomeRestartRequired, started)
		return true, nil
	}
	if len(res.fresh) == 0 {
		log.Debug("no new plugin files written")
		recordPass(OutcomeClean, started)
		return false, nil
	}

	// A fresh file carrying a disable marker is never hot-loaded; its
	// activation waits for a restart once the marker clears.
	loadable := make([]*plugin.Candidate, 0, len(res.fresh))
	deferred := false
	for _, c := range res.fresh {
		if !enabled[c.ShortName] {
			log.Info("fresh plugin is disabled, deferring activation",
				"plugin", c.ShortName)
			deferred = true
			continue
		}
		loadable = append(loadable, c)
	}

	order, err := loadOrder(loadable)
	if err != nil {
		var cycle *CycleError
		if errors.As(err, &cycle) {
			log.Warn("dependency cycle detected, deferring to restart",
				"plugins", cycle.Members)
			recordPass(OutcomeRestartRequired, started)
			return true, nil
		}
		recordPass(OutcomeError, started)
		return false, err
	}

	if r.loader == nil {
		log.Info("no hot loader configured, restart required",
			"fresh", len(order))
		recordPass(OutcomeRestartRequired, started)
		return true, nil
	}

	// Strictly serialized: a later plugin's activation may depend on
	// an earlier one being active. The first failure halts the walk;
	// plugins already loaded stay loaded.
	for _, c := range order {
		if err := r.loader.HotLoad(ctx, c, c.ArchivePath); err != nil {
			errutil.LogError(slog.Default(), "hot load failed, restart required", err)
			recordPass(OutcomeRestartRequired, started)
			return true, nil
		}
		log.Info("hot-loaded plugin",
			"plugin", c.ShortName,
			"version", c.Version)
		recordCandidates(StageHotLoaded, 1)
	}

	if deferred {
		recordPass(OutcomeRestartRequired, started)
		return true, nil
	}
	recordPass(OutcomeClean, started)
	return false, nil
}

// collect stages every discovered location, wraps each staged archive
// into a candidate, and records the aggregate filter decision.
// Candidates dominated by an installed live counterpart of equal or
// newer version never reach the filters. When two sources supply the
// same short name, the highest version wins; equal versions keep the
// lexically smallest location so the outcome is independent of
// discovery order. Committing to the canonical archive name waits
// until the winner per name is known, so a losing duplicate never
// overwrites the winner's bytes.
func (r *Resolver) collect(ctx context.Context, log *slog.Logger) []Decided {
	type collected struct {
		candidate *plugin.Candidate
		staged    *StagedArchive
		location  string
	}
	byName := make(map[string]collected)

	locations := r.sources.ListAll(ctx)
	for _, loc := range locations {
		staged, err := r.stager.Stage(ctx, loc)
		if err != nil {
			errutil.LogWarn(slog.Default(), "could not stage archive, skipping", err)
			continue
		}
		recordCandidates(StageStaged, 1)

		c, err := r.wrapper.Wrap(ctx, staged.Path)
		if err != nil {
			errutil.LogWarn(slog.Default(), "could not wrap archive, skipping", err)
			continue
		}
		c.ArchivePath = staged.Path
		recordCandidates(StageWrapped, 1)

		if existing := r.installed.Get(c.ShortName); existing.Live() && !c.NewerThan(existing.Version) {
			log.Debug("installed version dominates, skipping candidate",
				"plugin", c.ShortName,
				"candidate_version", c.Version,
				"installed_version", existing.Version)
			continue
		}

		if prev, ok := byName[c.ShortName]; ok {
			keep := c.Version.GreaterThan(prev.candidate.Version) ||
				(c.Version.Equal(prev.candidate.Version) && loc.String() < prev.location)
			if !keep {
				log.Debug("duplicate candidate, keeping existing",
					"plugin", c.ShortName,
					"kept_version", prev.candidate.Version,
					"dropped_version", c.Version)
				continue
			}
			log.Debug("duplicate candidate, replacing with newer",
				"plugin", c.ShortName,
				"kept_version", c.Version,
				"dropped_version", prev.candidate.Version)
		}

		byName[c.ShortName] = collected{candidate: c, staged: staged, location: loc.String()}
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	decided := make([]Decided, 0, len(names))
	for _, name := range names {
		col := byName[name]
		c := col.candidate
		if _, err := r.stager.Commit(col.staged, c.ShortName); err != nil {
			errutil.LogWarn(slog.Default(), "could not commit staged archive, skipping", err)
			continue
		}
		c.ArchivePath = col.staged.Path
		decision := r.filters.Decide(ctx, c, c.ArchivePath)
		decided = append(decided, Decided{Candidate: c, Decision: decision})
	}
	return decided
}

// emptyRegistry is the default registry for hosts with no installed
// plugins.
type emptyRegistry struct{}

func (emptyRegistry) Get(string) *plugin.InstalledPlugin { return nil }
func (emptyRegistry) All() []*plugin.InstalledPlugin     { return nil }
