// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/holomush/optplug/internal/observability"
	"github.com/holomush/optplug/internal/resolver"
)

// NewWatchCmd creates the watch subcommand.
func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run resolution passes on an interval",
		Long: `Run resolution passes on a fixed interval until interrupted. Passes
that need a host restart are reported through the readiness probe and
logs; the loop keeps running so newly published archives are still
picked up.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd)
		},
	}

	addConfigFlags(cmd.Flags())
	return cmd
}

func runWatch(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	res, installed, cleanup, err := buildResolver(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	// Readiness degrades while materialized changes wait on a restart.
	var restartPending atomic.Bool

	var obsServer *observability.Server
	if cfg.Metrics.Addr != "" {
		obsServer = observability.NewServer(cfg.Metrics.Addr,
			func() bool { return !restartPending.Load() },
			func(reg prometheus.Registerer) { resolver.RegisterMetrics(reg) },
		)
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return fmt.Errorf("failed to start observability server: %w", err)
		}
		// Monitor observability server errors - cancel context on error
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		slog.Info("observability server started", "addr", obsServer.Addr())
	}

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	ticker := time.NewTicker(cfg.Watch.Interval)
	defer ticker.Stop()

	cmd.Println("watch started")
	slog.Info("watch loop started", "interval", cfg.Watch.Interval.String())

	pass := func() {
		if err := installed.Reload(ctx); err != nil {
			slog.Error("failed to reload installed registry", "error", err)
			return
		}
		restart, err := res.Refresh(ctx)
		if err != nil {
			slog.Error("refresh pass failed", "error", err)
			return
		}
		restartPending.Store(restart)
		if restart {
			slog.Warn("refresh complete, restart required to apply changes")
		}
	}

	pass()

loop:
	for {
		select {
		case <-ticker.C:
			pass()
		case sig := <-sigChan:
			slog.Info("received shutdown signal", "signal", sig)
			break loop
		case <-ctx.Done():
			slog.Info("context cancelled, shutting down")
			break loop
		}
	}

	// Graceful shutdown
	slog.Info("shutting down...")

	if obsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := obsServer.Stop(shutdownCtx); err != nil {
			slog.Warn("error stopping observability server", "error", err)
		}
	}

	slog.Info("shutdown complete")
	return nil
}

// monitorServerErrors watches a server error channel and cancels the
// main context when the server fails.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errChan <-chan error, name string) {
	select {
	case err, ok := <-errChan:
		if ok && err != nil {
			slog.Error("server failed", "server", name, "error", err)
			cancel()
		}
	case <-ctx.Done():
	}
}
