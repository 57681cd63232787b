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
	"sync/atomic"
	"time"
)

// Stats summarizes one crawl.
type Stats struct {
	RunID   string `json:"run_id"`
	Root    uint64 `json:"root"`
	Order   string `json:"order"`
	Workers int    `json:"workers"`

	// Families and People are the final tree sizes.
	Families int `json:"families"`
	People   int `json:"people"`

	// Expansions counts frontier items processed. Equals the number of
	// distinct family ids pushed, including absent ones.
	Expansions int64 `json:"expansions"`

	// FamilyFetches and PersonFetches count underlying fetcher calls.
	FamilyFetches int64 `json:"family_fetches"`
	PersonFetches int64 `json:"person_fetches"`

	// PersonsReused counts members already present in the tree when their
	// family was expanded.
	PersonsReused int64 `json:"persons_reused"`

	// Absent counts fetches answered "no such record" (not found or malformed).
	Absent int64 `json:"absent"`

	// TransportFailures counts fetches that failed before a definitive answer.
	// Non-zero means the tree may be missing reachable records.
	TransportFailures int64 `json:"transport_failures"`

	// Discovered counts parent families pushed onto the frontier, excluding
	// the root.
	Discovered int64 `json:"discovered"`

	// Prefetches counts parent-family fetches started in the background
	// before the family was taken from the frontier.
	Prefetches int64 `json:"prefetches"`

	Duration time.Duration `json:"duration_ns"`
}

// counters is the mutable side of Stats shared by the workers of one run.
type counters struct {
	expansions        atomic.Int64
	familyFetches     atomic.Int64
	personFetches     atomic.Int64
	personsReused     atomic.Int64
	absent            atomic.Int64
	transportFailures atomic.Int64
	discovered        atomic.Int64
	prefetches        atomic.Int64
}

func (c *counters) fill(s *Stats) {
	s.Expansions = c.expansions.Load()
	s.FamilyFetches = c.familyFetches.Load()
	s.PersonFetches = c.personFetches.Load()
	s.PersonsReused = c.personsReused.Load()
	s.Absent = c.absent.Load()
	s.TransportFailures = c.transportFailures.Load()
	s.Discovered = c.discovered.Load()
	s.Prefetches = c.prefetches.Load()
}
