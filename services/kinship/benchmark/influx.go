// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package benchmark records crawl timings to InfluxDB so repeated runs can be
// compared across orders, worker counts and store latencies.
package benchmark

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/AleutianAI/kinship/services/kinship/crawl"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement is the InfluxDB measurement name for crawl runs.
const Measurement = "kinship_crawl"

// ErrIncompleteConfig is returned when a URL is set without org or bucket.
var ErrIncompleteConfig = errors.New("influx url, org and bucket are required")

// PointWriter is the subset of api.WriteAPIBlocking used by Recorder.
type PointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// Config locates the InfluxDB bucket.
type Config struct {
	URL    string `yaml:"influx_url,omitempty"`
	Token  string `yaml:"influx_token,omitempty"`
	Org    string `yaml:"influx_org,omitempty"`
	Bucket string `yaml:"influx_bucket,omitempty"`
}

// Enabled reports whether a URL is configured.
func (c Config) Enabled() bool {
	return c.URL != ""
}

// Recorder writes one point per crawl run.
//
// Thread Safety: Safe for concurrent use if the PointWriter is.
type Recorder struct {
	writer PointWriter
	logger *slog.Logger
	close  func()
}

// NewRecorder wraps an existing writer.
func NewRecorder(w PointWriter, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{writer: w, logger: logger, close: func() {}}
}

// NewInfluxRecorder connects to InfluxDB and checks its health.
//
// # Outputs
//
//   - *Recorder: Writes with the blocking write API. Call Close when done.
//   - error: ErrIncompleteConfig, or a health check failure.
func NewInfluxRecorder(ctx context.Context, cfg Config, logger *slog.Logger) (*Recorder, error) {
	if cfg.URL == "" || cfg.Org == "" || cfg.Bucket == "" {
		return nil, ErrIncompleteConfig
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	health, err := client.Health(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("influx health: %w", err)
	}
	if health == nil || health.Status != "pass" {
		client.Close()
		return nil, errors.New("influx health: not passing")
	}

	r := NewRecorder(client.WriteAPIBlocking(cfg.Org, cfg.Bucket), logger)
	r.close = client.Close
	return r, nil
}

// Record writes every run in stats as a point timestamped at now.
func (r *Recorder) Record(ctx context.Context, now time.Time, stats ...crawl.Stats) error {
	if len(stats) == 0 {
		return nil
	}
	points := make([]*write.Point, 0, len(stats))
	for _, s := range stats {
		points = append(points, Point(s, now))
	}
	if err := r.writer.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("write %d crawl points: %w", len(points), err)
	}
	r.logger.Debug("crawl timings recorded", slog.Int("points", len(points)))
	return nil
}

// Close releases the InfluxDB client.
func (r *Recorder) Close() {
	r.close()
}

// Point converts one run to an InfluxDB point.
func Point(s crawl.Stats, at time.Time) *write.Point {
	return influxdb2.NewPoint(
		Measurement,
		map[string]string{
			"order":   s.Order,
			"root":    strconv.FormatUint(s.Root, 10),
			"workers": strconv.Itoa(s.Workers),
		},
		map[string]interface{}{
			"run_id":             s.RunID,
			"families":           s.Families,
			"people":             s.People,
			"expansions":         s.Expansions,
			"family_fetches":     s.FamilyFetches,
			"person_fetches":     s.PersonFetches,
			"persons_reused":     s.PersonsReused,
			"absent":             s.Absent,
			"transport_failures": s.TransportFailures,
			"prefetches":         s.Prefetches,
			"duration_ms":        float64(s.Duration) / float64(time.Millisecond),
		},
		at,
	)
}
