// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package crawl

import (
	"context"
	"strconv"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("kinship.crawl")
	meter  = otel.Meter("kinship.crawl")
)

var (
	crawlDuration     metric.Float64Histogram
	crawlTotal        metric.Int64Counter
	familiesExpanded  metric.Int64Counter
	personsResolved   metric.Int64Counter
	fetchFailures     metric.Int64Counter
	frontierDiscovery metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the instruments. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		crawlDuration, err = meter.Float64Histogram(
			"kinship_crawl_duration_seconds",
			metric.WithDescription("Duration of complete crawls"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		crawlTotal, err = meter.Int64Counter(
			"kinship_crawl_total",
			metric.WithDescription("Completed crawls by order and truncation"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		familiesExpanded, err = meter.Int64Counter(
			"kinship_crawl_families_expanded_total",
			metric.WithDescription("Families taken from the frontier and expanded"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		personsResolved, err = meter.Int64Counter(
			"kinship_crawl_persons_resolved_total",
			metric.WithDescription("Family members resolved, by source (tree, fetch or shared)"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		fetchFailures, err = meter.Int64Counter(
			"kinship_crawl_fetch_failures_total",
			metric.WithDescription("Record fetches that yielded no record, by kind and reason"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		frontierDiscovery, err = meter.Int64Counter(
			"kinship_crawl_discovered_families_total",
			metric.WithDescription("Parent families newly pushed onto the frontier"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordCrawlMetrics(ctx context.Context, s Stats) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("order", s.Order),
		attribute.Bool("truncated", s.TransportFailures > 0),
	)
	crawlDuration.Record(ctx, s.Duration.Seconds(), attrs)
	crawlTotal.Add(ctx, 1, attrs)
}

func recordExpansion(ctx context.Context, order string) {
	if err := initMetrics(); err != nil {
		return
	}
	familiesExpanded.Add(ctx, 1, metric.WithAttributes(attribute.String("order", order)))
}

func recordPersonResolved(ctx context.Context, source string) {
	if err := initMetrics(); err != nil {
		return
	}
	personsResolved.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

func recordFetchFailure(ctx context.Context, kind, reason string) {
	if err := initMetrics(); err != nil {
		return
	}
	fetchFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("reason", reason),
	))
}

func recordDiscovery(ctx context.Context, n int) {
	if n == 0 {
		return
	}
	if err := initMetrics(); err != nil {
		return
	}
	frontierDiscovery.Add(ctx, int64(n))
}

func startCrawlSpan(ctx context.Context, runID string, root uint64, order string, workers int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "crawl.Crawl",
		trace.WithAttributes(
			attribute.String("crawl.run_id", runID),
			attribute.String("crawl.root", strconv.FormatUint(root, 10)),
			attribute.String("crawl.order", order),
			attribute.Int("crawl.workers", workers),
		),
	)
}

func startExpandSpan(ctx context.Context, familyID uint64) (context.Context, trace.Span) {
	return tracer.Start(ctx, "crawl.expand",
		trace.WithAttributes(attribute.String("family.id", strconv.FormatUint(familyID, 10))),
	)
}

func setCrawlSpanResult(span trace.Span, s Stats) {
	span.SetAttributes(
		attribute.Int("crawl.families", s.Families),
		attribute.Int("crawl.people", s.People),
		attribute.Int64("crawl.transport_failures", s.TransportFailures),
		attribute.Bool("crawl.truncated", s.TransportFailures > 0),
	)
}
