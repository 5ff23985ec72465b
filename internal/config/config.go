// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads optplug configuration from YAML files and
// command-line flags. Flags take precedence over the file, which takes
// precedence over built-in defaults.
package config

import (
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/optplug/internal/xdg"
)

// Config holds the full optplug configuration.
type Config struct {
	// StagingDir is where fetched archives are cached between passes.
	StagingDir string `koanf:"staging_dir"`
	// PluginDir is the live plugin directory the resolver materializes into.
	PluginDir string `koanf:"plugin_dir"`

	Sources SourcesConfig `koanf:"sources"`
	Filters FiltersConfig `koanf:"filters"`
	Logging LoggingConfig `koanf:"logging"`
	Watch   WatchConfig   `koanf:"watch"`
	Metrics MetricsConfig `koanf:"metrics"`
}

// SourcesConfig declares where candidate archives come from.
type SourcesConfig struct {
	// Dirs are local directories scanned for archives.
	Dirs []string `koanf:"dirs"`
	// URLs are explicit archive locations (file://, http://, https://).
	URLs []string `koanf:"urls"`
}

// FiltersConfig declares which candidates are admitted.
type FiltersConfig struct {
	// Include and Exclude are glob patterns matched against plugin names.
	Include []string `koanf:"include"`
	Exclude []string `koanf:"exclude"`
	// Scripts are Lua filter scripts, each defining a decide(name, version) function.
	Scripts []string `koanf:"scripts"`
}

// LoggingConfig controls slog output.
type LoggingConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// WatchConfig controls the watch command's polling loop.
type WatchConfig struct {
	Interval time.Duration `koanf:"interval"`
}

// MetricsConfig controls the observability HTTP server.
type MetricsConfig struct {
	// Addr is the listen address. Empty disables the server.
	Addr string `koanf:"addr"`
}

// Default returns a Config populated with built-in defaults.
// Directory defaults follow the XDG base directory spec.
func Default() *Config {
	return &Config{
		StagingDir: xdg.StagingDir(),
		PluginDir:  xdg.PluginDir(),
		Logging: LoggingConfig{
			Format: "json",
			Level:  "info",
		},
		Watch: WatchConfig{
			Interval: 5 * time.Minute,
		},
		Metrics: MetricsConfig{
			Addr: "",
		},
	}
}

// Load builds a Config from defaults, an optional YAML file, and an
// optional flag set, in increasing order of precedence. path may be
// empty; flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	cfg := Default()

	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("config_load_failed").
				With("path", path).
				Wrapf(err, "loading config file")
		}
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, oops.Code("config_load_failed").
				Wrapf(err, "loading flags")
		}
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, oops.Code("config_load_failed").
			Wrapf(err, "unmarshaling config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.StagingDir == "" {
		return oops.Code("config_invalid").Errorf("staging_dir is required")
	}
	if c.PluginDir == "" {
		return oops.Code("config_invalid").Errorf("plugin_dir is required")
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return oops.Code("config_invalid").
			With("format", c.Logging.Format).
			Errorf("logging.format must be 'json' or 'text'")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return oops.Code("config_invalid").
			With("level", c.Logging.Level).
			Errorf("logging.level must be one of debug, info, warn, error")
	}
	if c.Watch.Interval <= 0 {
		return oops.Code("config_invalid").
			With("interval", c.Watch.Interval.String()).
			Errorf("watch.interval must be positive")
	}
	return nil
}
