// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/kinship/cmd/kinship/config"
	"github.com/AleutianAI/kinship/pkg/logging"
	"github.com/AleutianAI/kinship/services/kinship/telemetry"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// --- Global Command Variables ---
var (
	configPath string
	logLevel   string
	logJSON    bool

	// crawl
	crawlOrder   string
	crawlWorkers int
	crawlRepeat  int
	crawlJSON    bool
	storeURL     string

	// serve
	serveAddr        string
	serveGenerations int
	serveSeed        int64
	serveLatency     time.Duration

	// set up by PersistentPreRunE, released by PersistentPostRunE
	appLogger         *logging.Logger
	telemetryShutdown func(context.Context) error

	rootCmd = &cobra.Command{
		Use:   "kinship",
		Short: "Concurrent family-tree crawler",
		Long: `kinship assembles every person and family reachable from a root
family by following spouses' parent links through a remote record store.`,
		SilenceUsage:       true,
		PersistentPreRunE:  setup,
		PersistentPostRunE: teardown,
	}

	crawlCmd = &cobra.Command{
		Use:   "crawl FAMILY_ID",
		Short: "Crawl the ancestry of a family depth-first, breadth-first, or both",
		Args:  cobra.ExactArgs(1),
		RunE:  runCrawlCommand, // Defined in cmd_crawl.go
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve a generated record store over HTTP",
		Args:  cobra.NoArgs,
		RunE:  runServeCommand, // Defined in cmd_serve.go
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the kinship version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "kinship", version)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.kinship/kinship.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "log as JSON")

	crawlCmd.Flags().StringVar(&crawlOrder, "order", "", "traversal order: dfs, bfs or both")
	crawlCmd.Flags().IntVar(&crawlWorkers, "workers", 0, "worker pool size (default max(4, NumCPU*8))")
	crawlCmd.Flags().IntVar(&crawlRepeat, "repeat", 1, "run each order this many times and report min/avg/max")
	crawlCmd.Flags().BoolVar(&crawlJSON, "json", false, "print results as JSON")
	crawlCmd.Flags().StringVar(&storeURL, "store", "", "record store base URL")

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address")
	serveCmd.Flags().IntVar(&serveGenerations, "generations", 0, "generations of ancestry to generate")
	serveCmd.Flags().Int64Var(&serveSeed, "seed", 0, "generator seed")
	serveCmd.Flags().DurationVar(&serveLatency, "latency", 0, "artificial latency per record request")

	rootCmd.AddCommand(crawlCmd, serveCmd, versionCmd)
}

// setup loads the config, applies flag overrides and starts logging and
// telemetry for every subcommand.
func setup(cmd *cobra.Command, args []string) error {
	if err := config.Load(configPath); err != nil {
		return err
	}
	applyFlagOverrides(cmd, &config.Global)
	if err := config.Global.Validate(); err != nil {
		return err
	}

	level, err := logging.ParseLevel(config.Global.Logging.Level)
	if err != nil {
		return err
	}
	appLogger, err = logging.New(logging.Config{
		Level:   level,
		LogDir:  config.Global.Logging.Dir,
		Service: cmd.Name(),
		JSON:    config.Global.Logging.JSON,
		Quiet:   config.Global.Logging.Quiet,
	})
	if err != nil {
		return err
	}
	slog.SetDefault(appLogger.Slog())

	tcfg := config.Global.Telemetry
	tcfg.ServiceVersion = version
	telemetryShutdown, err = telemetry.Init(cmd.Context(), tcfg)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	return nil
}

func teardown(cmd *cobra.Command, args []string) error {
	if telemetryShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetryShutdown(ctx); err != nil {
			slog.Warn("telemetry shutdown", slog.String("error", err.Error()))
		}
	}
	if appLogger != nil {
		return appLogger.Close()
	}
	return nil
}

// applyFlagOverrides copies explicitly set flags over file values.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.KinshipConfig) {
	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}
	if changed("log-level") {
		cfg.Logging.Level = logLevel
	}
	if changed("log-json") {
		cfg.Logging.JSON = logJSON
	}
	if changed("order") {
		cfg.Crawl.Order = crawlOrder
	}
	if changed("workers") {
		cfg.Crawl.Workers = crawlWorkers
	}
	if changed("store") {
		cfg.Store.BaseURL = storeURL
	}
	if changed("addr") {
		cfg.Serve.Addr = serveAddr
	}
	if changed("generations") {
		cfg.Serve.Generations = serveGenerations
	}
	if changed("seed") {
		cfg.Serve.Seed = serveSeed
	}
	if changed("latency") {
		cfg.Serve.Latency = serveLatency
	}
}
