// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry wires OpenTelemetry tracing and metrics for the crawler
// and the record store.
//
// Library packages (fetch, crawl, recordstore) only use the global otel
// Tracer and Meter. Until Init is called those are no-ops, so tests and
// embedders pay nothing for instrumentation they did not ask for.
//
// # Backends
//
// Traces go to an OTLP gRPC collector (default localhost:4317) or stdout.
// Metrics go to the default Prometheus registry, exposed by MetricsHandler,
// or stdout. Either side can be disabled with "none".
//
// # Environment Variables
//
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint (default: localhost:4317)
//   - OTEL_TRACES_EXPORTER: otlp, stdout, or none (default: none)
//   - OTEL_METRICS_EXPORTER: prometheus, stdout, or none (default: prometheus)
//   - KINSHIP_ENV: environment name (default: development)
//
// # Logging
//
// LoggerWithTrace adds trace_id and span_id to an slog logger so crawl logs
// can be joined with their spans.
package telemetry
