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
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/AleutianAI/kinship/cmd/kinship/config"
	"github.com/AleutianAI/kinship/pkg/ux"
	"github.com/AleutianAI/kinship/pkg/validation"
	"github.com/AleutianAI/kinship/services/kinship/benchmark"
	"github.com/AleutianAI/kinship/services/kinship/crawl"
	"github.com/AleutianAI/kinship/services/kinship/fetch"
	"github.com/AleutianAI/kinship/services/kinship/frontier"
	"github.com/AleutianAI/kinship/services/kinship/tree"
	"github.com/spf13/cobra"
)

// orderReport aggregates every run of one traversal order.
type orderReport struct {
	Order     string        `json:"order"`
	Runs      []crawl.Stats `json:"runs"`
	Truncated bool          `json:"truncated"`
	Min       time.Duration `json:"min_ns"`
	Avg       time.Duration `json:"avg_ns"`
	Max       time.Duration `json:"max_ns"`

	last *tree.Tree
}

// crawlReport is the output of `kinship crawl`.
type crawlReport struct {
	Root    uint64         `json:"root"`
	Store   string         `json:"store"`
	Workers int            `json:"workers"`
	Orders  []*orderReport `json:"orders"`

	// EntitiesMatch is set when more than one order ran.
	EntitiesMatch *bool `json:"entities_match,omitempty"`
}

func runCrawlCommand(cmd *cobra.Command, args []string) error {
	root, err := validation.ParseID(args[0])
	if err != nil {
		return fmt.Errorf("family id: %w", err)
	}
	if crawlRepeat < 1 {
		return fmt.Errorf("--repeat must be at least 1, got %d", crawlRepeat)
	}
	orders, err := parseOrders(config.Global.Crawl.Order)
	if err != nil {
		return err
	}

	logger := slog.Default()
	client, err := fetch.NewClient(config.Global.FetchClientConfig(), fetch.WithLogger(logger))
	if err != nil {
		return err
	}
	opts := append(config.Global.EngineOptions(), crawl.WithLogger(logger))
	engine := crawl.NewEngine(client, opts...)

	spin := ux.NewSpinner(cmd.ErrOrStderr(), fmt.Sprintf("Crawling family %d", root))
	if !crawlJSON {
		spin.Start()
	}
	report, err := executeCrawl(cmd.Context(), engine, root, orders, crawlRepeat)
	spin.Stop()
	if err != nil {
		return err
	}
	report.Store = client.BaseURL()

	if config.Global.Benchmark.Enabled() {
		if err := recordTimings(cmd.Context(), config.Global.Benchmark, report, logger); err != nil {
			logger.Warn("crawl timings not recorded", slog.String("error", err.Error()))
		}
	}

	if crawlJSON {
		return writeCrawlJSON(cmd.OutOrStdout(), report)
	}
	writeCrawlText(ux.NewPrinter(cmd.OutOrStdout()), report)
	return nil
}

// recordTimings writes every run of report to InfluxDB. The token falls back
// to INFLUXDB_TOKEN.
func recordTimings(ctx context.Context, cfg benchmark.Config, report *crawlReport, logger *slog.Logger) error {
	if cfg.Token == "" {
		cfg.Token = os.Getenv("INFLUXDB_TOKEN")
	}
	rec, err := benchmark.NewInfluxRecorder(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rec.Close()
	return rec.Record(ctx, time.Now(), report.runs()...)
}

// runs flattens the stats of every order.
func (r *crawlReport) runs() []crawl.Stats {
	var out []crawl.Stats
	for _, or := range r.Orders {
		out = append(out, or.Runs...)
	}
	return out
}

// parseOrders expands "both" to depth-first then breadth-first.
func parseOrders(s string) ([]frontier.Order, error) {
	if s == "both" {
		return []frontier.Order{frontier.LIFO, frontier.FIFO}, nil
	}
	o, err := frontier.ParseOrder(s)
	if err != nil {
		return nil, err
	}
	return []frontier.Order{o}, nil
}

// executeCrawl runs each order repeat times from root.
//
// # Outputs
//
//   - *crawlReport: Per-order statistics. EntitiesMatch compares the last
//     tree of every order when more than one order ran.
//   - error: crawl.ErrInvalidRoot for a zero root, or ctx.Err() if ctx was
//     cancelled between runs.
func executeCrawl(ctx context.Context, engine *crawl.Engine, root uint64, orders []frontier.Order, repeat int) (*crawlReport, error) {
	report := &crawlReport{Root: root, Workers: engine.Workers()}

	for _, order := range orders {
		or := &orderReport{Order: order.String()}
		for i := 0; i < repeat; i++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			res, err := engine.Crawl(ctx, root, order)
			if err != nil {
				return nil, err
			}
			or.Runs = append(or.Runs, res.Stats)
			or.Truncated = or.Truncated || res.Truncated
			or.last = res.Tree
		}
		or.summarize()
		report.Orders = append(report.Orders, or)
	}

	if len(report.Orders) > 1 {
		match := true
		for _, or := range report.Orders[1:] {
			match = match && tree.SameEntities(report.Orders[0].last, or.last)
		}
		report.EntitiesMatch = &match
	}
	return report, nil
}

func (r *orderReport) summarize() {
	var total time.Duration
	for i, s := range r.Runs {
		if i == 0 || s.Duration < r.Min {
			r.Min = s.Duration
		}
		r.Max = max(r.Max, s.Duration)
		total += s.Duration
	}
	if len(r.Runs) > 0 {
		r.Avg = total / time.Duration(len(r.Runs))
	}
}

func writeCrawlJSON(w io.Writer, report *crawlReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// fieldWidth aligns the labels of the text report.
const fieldWidth = 20

func writeCrawlText(p *ux.Printer, report *crawlReport) {
	p.Title("Root family %d via %s (%d workers)", report.Root, report.Store, report.Workers)
	for _, or := range report.Orders {
		last := or.Runs[len(or.Runs)-1]
		p.Blank()
		p.Title("%s", or.Order)
		p.Field("Number of people", fieldWidth, "%d", last.People)
		p.Field("Number of families", fieldWidth, "%d", last.Families)
		p.Field("Fetches", fieldWidth, "%d family, %d person (%d absent)",
			last.FamilyFetches, last.PersonFetches, last.Absent)
		if len(or.Runs) == 1 {
			p.Field("Elapsed", fieldWidth, "%s", last.Duration.Round(time.Millisecond))
		} else {
			p.Field(fmt.Sprintf("Elapsed (%d runs)", len(or.Runs)), fieldWidth, "min %s  avg %s  max %s",
				or.Min.Round(time.Millisecond), or.Avg.Round(time.Millisecond), or.Max.Round(time.Millisecond))
		}
		if or.Truncated {
			p.Warning("%d transport failures, tree is incomplete", last.TransportFailures)
		}
	}
	if report.EntitiesMatch != nil {
		p.Blank()
		if *report.EntitiesMatch {
			p.Success("All orders produced the same people and families")
		} else {
			p.Error("Orders produced different people or families")
		}
	}
}
