// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"fmt"

	"github.com/holomush/optplug/internal/config"
	"github.com/holomush/optplug/internal/plugin"
	"github.com/holomush/optplug/internal/plugin/filters"
	"github.com/holomush/optplug/internal/plugin/goplugin"
	"github.com/holomush/optplug/internal/plugin/registry"
	"github.com/holomush/optplug/internal/plugin/sources"
	"github.com/holomush/optplug/internal/resolver"
	"github.com/holomush/optplug/internal/xdg"
)

// buildResolver assembles a resolver from configuration. The returned
// cleanup releases filter and loader resources and must be called once
// the resolver is no longer needed.
func buildResolver(ctx context.Context, cfg *config.Config) (*resolver.Resolver, *registry.Dir, func(), error) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	srcs := plugin.NewSources()
	for _, dir := range cfg.Sources.Dirs {
		srcs.Register(sources.NewDir(dir))
	}
	if len(cfg.Sources.URLs) > 0 {
		static, err := sources.NewStatic(cfg.Sources.URLs)
		if err != nil {
			cleanup()
			return nil, nil, nil, fmt.Errorf("invalid source URL: %w", err)
		}
		srcs.Register(static)
	}

	flts := plugin.NewFilters()
	if len(cfg.Filters.Include) > 0 || len(cfg.Filters.Exclude) > 0 {
		glob, err := filters.NewGlob(cfg.Filters.Include, cfg.Filters.Exclude)
		if err != nil {
			cleanup()
			return nil, nil, nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
		flts.Register(glob)
	}
	for _, script := range cfg.Filters.Scripts {
		lua, err := filters.NewLua(script)
		if err != nil {
			cleanup()
			return nil, nil, nil, fmt.Errorf("invalid filter script %s: %w", script, err)
		}
		cleanups = append(cleanups, lua.Close)
		flts.Register(lua)
	}

	installed, err := registry.LoadDir(ctx, cfg.PluginDir)
	if err != nil {
		cleanup()
		return nil, nil, nil, fmt.Errorf("failed to read plugin directory: %w", err)
	}

	loader := goplugin.New(xdg.RunDir())
	cleanups = append(cleanups, loader.Close)

	res := resolver.New(cfg.StagingDir, cfg.PluginDir,
		resolver.WithSources(srcs),
		resolver.WithFilters(flts),
		resolver.WithInstalledRegistry(installed),
		resolver.WithHotLoader(loader),
	)
	return res, installed, cleanup, nil
}
