// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/holomush/optplug/internal/config"
	"github.com/holomush/optplug/internal/logging"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the optplug CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "optplug",
		Short: "optplug - optional plugin activation resolver",
		Long: `optplug resolves which optional plugins a host should run: it stages
archives from configured sources, filters them, closes over dependencies,
reconciles versions, and materializes the winners into the plugin directory.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	// Add subcommands
	cmd.AddCommand(NewRefreshCmd())
	cmd.AddCommand(NewWatchCmd())

	return cmd
}

// addConfigFlags registers flags mirroring the configuration keys so
// they can override file values. Flag names use the config key paths.
func addConfigFlags(flags *pflag.FlagSet) {
	def := config.Default()

	flags.String("staging_dir", def.StagingDir, "staging directory for fetched archives")
	flags.String("plugin_dir", def.PluginDir, "live plugin directory")
	flags.StringSlice("sources.dirs", nil, "local directories scanned for archives")
	flags.StringSlice("sources.urls", nil, "explicit archive URLs")
	flags.StringSlice("filters.include", nil, "glob patterns for plugins to include")
	flags.StringSlice("filters.exclude", nil, "glob patterns for plugins to exclude")
	flags.StringSlice("filters.scripts", nil, "Lua filter scripts")
	flags.String("logging.format", def.Logging.Format, "log format (json or text)")
	flags.String("logging.level", def.Logging.Level, "log level (debug, info, warn, error)")
	flags.Duration("watch.interval", def.Watch.Interval, "interval between refresh passes")
	flags.String("metrics.addr", def.Metrics.Addr, "metrics/health HTTP address (empty = disabled)")
}

// loadConfig resolves the effective configuration for a command and
// installs the default logger it describes.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	setupLogging(cfg)
	return cfg, nil
}

func setupLogging(cfg *config.Config) {
	logging.SetDefault("optplug", version, cfg.Logging.Format, cfg.Logging.Level)
	slog.Debug("configuration loaded",
		"staging_dir", cfg.StagingDir,
		"plugin_dir", cfg.PluginDir,
		"source_dirs", len(cfg.Sources.Dirs),
		"source_urls", len(cfg.Sources.URLs),
	)
}
