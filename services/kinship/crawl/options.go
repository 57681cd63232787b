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
	"log/slog"
	"runtime"
)

// minWorkers is the floor of DefaultWorkers on small machines.
const minWorkers = 4

// DefaultWorkers returns max(4, NumCPU*8).
//
// Workers spend nearly all their time waiting on the network, so the pool is
// a multiple of the core count. The outbound request cap lives in the
// fetcher and is independent of this number.
func DefaultWorkers() int {
	return max(minWorkers, runtime.NumCPU()*8)
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers sets the worker pool size. Values below 1 are ignored.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithRetireResolved drops a person from the request cache once it is in
// the tree, bounding cache memory on very large crawls.
//
// Off by default. With retirement on, a worker that checked the tree just
// before another worker inserted and retired the same person can fetch that
// person a second time. The tree still holds one value per id.
func WithRetireResolved(retire bool) Option {
	return func(e *Engine) { e.retire = retire }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}
