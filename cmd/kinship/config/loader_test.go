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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRead_CreatesDefault verifies first-run creation in a nested directory.
func TestRead_CreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deep", ".kinship", "kinship.yaml")

	cfg, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	_, err = os.Stat(path)
	assert.NoError(t, err, "config file was not created")
}

func TestRead_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kinship.yaml")
	data := []byte(`
store:
  base_url: http://records.local:9000
crawl:
  workers: 12
  order: bfs
fetch:
  max_in_flight: 8
  timeout: 30s
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, "http://records.local:9000", cfg.Store.BaseURL)
	assert.Equal(t, 12, cfg.Crawl.Workers)
	assert.Equal(t, "bfs", cfg.Crawl.Order)
	assert.Equal(t, int64(8), cfg.Fetch.MaxInFlight)
	assert.Equal(t, 30*time.Second, cfg.Fetch.Timeout)

	def := DefaultConfig()
	assert.Equal(t, def.Serve, cfg.Serve)
	assert.Equal(t, def.Logging, cfg.Logging)
	assert.Equal(t, def.Fetch.MaxConnsPerHost, cfg.Fetch.MaxConnsPerHost)
}

func TestRead_InvalidValues(t *testing.T) {
	tests := map[string]string{
		"order":    "crawl:\n  order: sideways\n",
		"url":      "store:\n  base_url: not a url\n",
		"inflight": "fetch:\n  max_in_flight: 0\n",
		"level":    "logging:\n  level: loud\n",
		"exporter": "telemetry:\n  trace_exporter: jaeger\n",
		"gens":     "serve:\n  generations: 40\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "kinship.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			_, err := Read(path)
			assert.Error(t, err)
		})
	}
}

func TestRead_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kinship.yaml")
	require.NoError(t, os.WriteFile(path, []byte("crawl: [unterminated"), 0o644))
	_, err := Read(path)
	assert.Error(t, err)
}

func TestDefaultConfig_Valid(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}

func TestFetchClientConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Fetch.RequestsPerSecond = 100
	cfg.Fetch.EnableHTTP2 = true

	fc := cfg.FetchClientConfig()
	assert.Equal(t, cfg.Store.BaseURL, fc.BaseURL)
	assert.Equal(t, 100.0, fc.RequestsPerSecond)
	assert.True(t, fc.EnableHTTP2)
	assert.Equal(t, cfg.Fetch.Timeout, fc.Timeout)
}

func TestEngineOptions(t *testing.T) {
	cfg := DefaultConfig()
	assert.Len(t, cfg.EngineOptions(), 1)

	cfg.Crawl.Workers = 3
	assert.Len(t, cfg.EngineOptions(), 2)
}
