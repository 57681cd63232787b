// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"fmt"
	"time"

	"github.com/AleutianAI/kinship/services/kinship/benchmark"
	"github.com/AleutianAI/kinship/services/kinship/crawl"
	"github.com/AleutianAI/kinship/services/kinship/fetch"
	"github.com/AleutianAI/kinship/services/kinship/telemetry"
	"github.com/go-playground/validator/v10"
)

// configValidate checks struct tags on KinshipConfig.
var configValidate = validator.New()

type KinshipConfig struct {
	// Store: where the record store lives
	Store StoreConfig `yaml:"store"`

	// Fetch: outbound request limits
	Fetch FetchConfig `yaml:"fetch"`

	// Crawl: traversal engine settings
	Crawl CrawlConfig `yaml:"crawl"`

	// Logging: console and file logging
	Logging LoggingConfig `yaml:"logging"`

	// Telemetry: OpenTelemetry exporters
	Telemetry telemetry.Config `yaml:"telemetry"`

	// Serve: the local record store started by `kinship serve`
	Serve ServeConfig `yaml:"serve"`

	// Benchmark: optional InfluxDB bucket for crawl timings
	Benchmark benchmark.Config `yaml:"benchmark"`
}

type StoreConfig struct {
	BaseURL string `yaml:"base_url" validate:"required,url"` // e.g. http://127.0.0.1:8123
}

type FetchConfig struct {
	MaxInFlight       int64         `yaml:"max_in_flight" validate:"min=1"`
	RequestsPerSecond float64       `yaml:"requests_per_second" validate:"gte=0"` // 0 = unlimited
	Burst             int           `yaml:"burst" validate:"gte=0"`
	Timeout           time.Duration `yaml:"timeout" validate:"gt=0"`
	MaxConnsPerHost   int           `yaml:"max_conns_per_host" validate:"gte=0"`
	IdleConnTimeout   time.Duration `yaml:"idle_conn_timeout" validate:"gte=0"`
	EnableHTTP2       bool          `yaml:"enable_http2"`
}

type CrawlConfig struct {
	Workers        int    `yaml:"workers" validate:"gte=0"` // 0 = max(4, NumCPU*8)
	Order          string `yaml:"order" validate:"oneof=dfs bfs both"`
	RetireResolved bool   `yaml:"retire_resolved"`
}

type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Dir   string `yaml:"dir,omitempty"`
	JSON  bool   `yaml:"json"`
	Quiet bool   `yaml:"quiet"`
}

type ServeConfig struct {
	Addr        string        `yaml:"addr" validate:"required,hostname_port"`
	Generations int           `yaml:"generations" validate:"min=1,max=14"`
	Seed        int64         `yaml:"seed"`
	Latency     time.Duration `yaml:"latency" validate:"gte=0"`
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() KinshipConfig {
	f := fetch.DefaultConfig()
	return KinshipConfig{
		Store: StoreConfig{BaseURL: f.BaseURL},
		Fetch: FetchConfig{
			MaxInFlight:     f.MaxInFlight,
			Timeout:         f.Timeout,
			MaxConnsPerHost: f.MaxConnsPerHost,
			IdleConnTimeout: f.IdleConnTimeout,
		},
		Crawl: CrawlConfig{
			Workers: 0,
			Order:   "both",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Telemetry: telemetry.DefaultConfig(),
		Serve: ServeConfig{
			Addr:        "127.0.0.1:8123",
			Generations: 10,
			Seed:        1,
			Latency:     5 * time.Millisecond,
		},
	}
}

// Validate checks every field against its tag constraints.
func (c KinshipConfig) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// FetchClientConfig converts the store and fetch sections to a fetch.Config.
func (c KinshipConfig) FetchClientConfig() fetch.Config {
	return fetch.Config{
		BaseURL:           c.Store.BaseURL,
		MaxInFlight:       c.Fetch.MaxInFlight,
		RequestsPerSecond: c.Fetch.RequestsPerSecond,
		Burst:             c.Fetch.Burst,
		Timeout:           c.Fetch.Timeout,
		MaxConnsPerHost:   c.Fetch.MaxConnsPerHost,
		IdleConnTimeout:   c.Fetch.IdleConnTimeout,
		EnableHTTP2:       c.Fetch.EnableHTTP2,
	}
}

// EngineOptions converts the crawl section to crawl options.
func (c KinshipConfig) EngineOptions() []crawl.Option {
	opts := []crawl.Option{crawl.WithRetireResolved(c.Crawl.RetireResolved)}
	if c.Crawl.Workers > 0 {
		opts = append(opts, crawl.WithWorkers(c.Crawl.Workers))
	}
	return opts
}
