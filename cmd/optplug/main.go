// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package main is the entry point for the optplug resolver CLI.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/holomush/optplug/internal/plugin"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Exit codes. A refresh that completes but needs a host restart to take
// effect is distinguishable from a hard failure.
const (
	exitOK              = 0
	exitError           = 1
	exitRestartRequired = 3
)

func formatVersion(version, commit, date string) string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)
}

func run() int {
	cmd := NewRootCmd()
	cmd.Version = formatVersion(version, commit, date)

	if err := cmd.Execute(); err != nil {
		if errors.Is(err, plugin.ErrRestartRequired) {
			return exitRestartRequired
		}
		return exitError
	}
	return exitOK
}

func main() {
	os.Exit(run())
}
