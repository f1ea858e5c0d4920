// Copyright 2025 The rdiag Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rdiagd/rdiag/internal/config"
	"github.com/rdiagd/rdiag/internal/coordinator"
	"github.com/rdiagd/rdiag/internal/hostadapter"
	"github.com/rdiagd/rdiag/internal/rdiaglog"
	"github.com/rdiagd/rdiag/internal/registry"
	"github.com/rdiagd/rdiag/internal/rpc"
	"github.com/rdiagd/rdiag/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the coordinator and serve the get_diagnostics MCP tool over stdio",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := rdiaglog.New(cfg.Logging.Format, cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = rdiaglog.WithLogger(ctx, logger)

	root := cfg.Project.Root
	if root == "" {
		root = "."
	}
	host := hostadapter.NewPackagesHost(root, "./...")
	analyzers := registry.Lookup(cfg.Project.AnalyzerPreset)

	coord := coordinator.New(host, telemetry.NoopTracker{})
	projects := rpc.NewProjectSource(host, analyzers)
	handler := rpc.NewHandler(coord, projects)

	rdiaglog.Info(ctx, "rdiagd starting",
		zap.String("transport", cfg.Server.Transport),
		zap.String("project_root", root),
		zap.String("analyzer_preset", cfg.Project.AnalyzerPreset),
		zap.Int("analyzer_count", len(analyzers)),
	)

	if err := rpc.Serve(ctx, handler); err != nil && !errors.Is(err, context.Canceled) {
		rdiaglog.Error(ctx, "rdiagd exited with error", err)
		return err
	}
	return nil
}
