// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/holomush/optplug/internal/plugin"
)

// NewRefreshCmd creates the refresh subcommand.
func NewRefreshCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Run a single resolution pass",
		Long: `Run one resolution pass: stage archives from every source, filter and
close over dependencies, and materialize the winners into the plugin
directory. Exits 3 when a host restart is needed to apply the changes.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRefresh(cmd)
		},
	}

	addConfigFlags(cmd.Flags())
	return cmd
}

func runRefresh(cmd *cobra.Command) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	res, _, cleanup, err := buildResolver(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	restart, err := res.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}
	if restart {
		slog.Warn("refresh complete, restart required to apply changes")
		return fmt.Errorf("refresh complete: %w", plugin.ErrRestartRequired)
	}

	cmd.Println("refresh complete, all changes applied")
	return nil
}
