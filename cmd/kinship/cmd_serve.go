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
	"io"
	"log/slog"

	"github.com/AleutianAI/kinship/cmd/kinship/config"
	"github.com/AleutianAI/kinship/services/kinship/recordstore"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func runServeCommand(cmd *cobra.Command, args []string) error {
	srv, ds, err := newRecordStore(config.Global.Serve, slog.Default())
	if err != nil {
		return err
	}
	printServeBanner(cmd.OutOrStdout(), config.Global.Serve, ds)
	return srv.Run(cmd.Context(), config.Global.Serve.Addr)
}

// newRecordStore generates the dataset and wraps it in a server.
func newRecordStore(cfg config.ServeConfig, logger *slog.Logger) (*recordstore.Server, *recordstore.Dataset, error) {
	ds, err := recordstore.Generate(cfg.Generations, cfg.Seed)
	if err != nil {
		return nil, nil, err
	}
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	srv, err := recordstore.NewServer(ds,
		recordstore.WithLatency(cfg.Latency),
		recordstore.WithLogger(logger),
	)
	if err != nil {
		return nil, nil, err
	}
	return srv, ds, nil
}

func printServeBanner(w io.Writer, cfg config.ServeConfig, ds *recordstore.Dataset) {
	fmt.Fprintf(w, "Record store on http://%s\n", cfg.Addr)
	fmt.Fprintf(w, "  %d families, %d people, %s latency\n", ds.FamilyCount(), ds.PersonCount(), cfg.Latency)
	fmt.Fprintf(w, "  Root family: %d\n", ds.Root)
	fmt.Fprintf(w, "  Try: kinship crawl %d --store http://%s\n", ds.Root, cfg.Addr)
}
