// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package fetch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for requestsTotal.
const (
	outcomeOK        = "ok"
	outcomeNotFound  = "not_found"
	outcomeMalformed = "malformed"
	outcomeTransport = "transport"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kinship_fetch_requests_total",
		Help: "Record store requests by kind (person, family) and outcome",
	}, []string{"kind", "outcome"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kinship_fetch_request_duration_seconds",
		Help:    "Record store request duration, excluding permit and limiter waits",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"kind"})

	permitWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kinship_fetch_permit_wait_seconds",
		Help:    "Time spent waiting for an outbound request permit",
		Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
	})

	inFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kinship_fetch_in_flight",
		Help: "Record store requests currently holding a permit",
	})
)
