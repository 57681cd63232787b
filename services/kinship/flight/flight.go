// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package flight provides a keyed single-flight cache for remote fetches.
//
// # Description
//
// Cache guarantees at most one underlying call per key across all callers,
// concurrent or not, until the key is explicitly retired. Concurrent callers
// for an in-flight key share the singleflight result; callers arriving after
// resolution read the stored terminal result. Errors are terminal too: a
// failed key is never retried automatically. A panic in fn is recovered and
// stored as an ErrPanicked result, so it is terminal like any other error.
//
// # Retirement
//
// Forget retires a resolved key to bound memory on long crawls. Keys that are
// still in flight are not in the resolved map yet, so Forget cannot retire
// them. After Forget the next Do for the key calls fn again.
//
// # Thread Safety
//
// Cache is safe for concurrent use.
package flight

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"
)

var (
	lookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kinship_flight_lookups_total",
		Help: "Single-flight cache lookups by cache name and result (hit, shared, miss)",
	}, []string{"cache", "result"})

	resolvedEntries = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "kinship_flight_resolved_entries",
		Help: "Resolved entries currently held per cache",
	}, []string{"cache"})
)

// ErrPanicked wraps the value of a panic raised by a FetchFunc.
var ErrPanicked = errors.New("fetch panicked")

// FetchFunc performs the underlying call for one key.
type FetchFunc[V any] func(ctx context.Context) (V, error)

type result[V any] struct {
	val V
	err error
}

// Cache de-duplicates calls per key and keeps their terminal results.
type Cache[K comparable, V any] struct {
	name  string
	group singleflight.Group

	mu       sync.RWMutex
	resolved map[K]result[V]

	calls atomic.Int64
}

// New creates an empty Cache. name labels its metrics (e.g. "family").
func New[K comparable, V any](name string) *Cache[K, V] {
	return &Cache[K, V]{
		name:     name,
		resolved: make(map[K]result[V]),
	}
}

// Do returns the result for key, calling fn only if no call for key has
// happened since the key was last retired.
//
// # Inputs
//
//   - ctx: Passed to fn. The first caller's context drives the shared call.
//   - key: Cache key.
//   - fn: The underlying fetch.
//
// # Outputs
//
//   - V, error: The shared result. Every caller for the same key sees the
//     same value and error.
func (c *Cache[K, V]) Do(ctx context.Context, key K, fn FetchFunc[V]) (V, error) {
	if r, ok := c.lookup(key); ok {
		lookupsTotal.WithLabelValues(c.name, "hit").Inc()
		return r.val, r.err
	}

	v, _, shared := c.group.Do(flightKey(key), func() (interface{}, error) {
		// A caller that missed the map just before a previous flight for
		// the same key finished lands here after singleflight forgot it.
		if r, ok := c.lookup(key); ok {
			return r, nil
		}
		c.calls.Add(1)
		val, err := call(ctx, fn)
		r := result[V]{val: val, err: err}
		c.mu.Lock()
		c.resolved[key] = r
		n := len(c.resolved)
		c.mu.Unlock()
		resolvedEntries.WithLabelValues(c.name).Set(float64(n))
		return r, nil
	})
	if shared {
		lookupsTotal.WithLabelValues(c.name, "shared").Inc()
	} else {
		lookupsTotal.WithLabelValues(c.name, "miss").Inc()
	}

	r := v.(result[V])
	return r.val, r.err
}

// Resolved reports whether key holds a terminal result.
func (c *Cache[K, V]) Resolved(key K) bool {
	_, ok := c.lookup(key)
	return ok
}

// Forget retires a resolved key. It is a no-op for unknown or in-flight keys.
func (c *Cache[K, V]) Forget(key K) {
	c.mu.Lock()
	delete(c.resolved, key)
	n := len(c.resolved)
	c.mu.Unlock()
	resolvedEntries.WithLabelValues(c.name).Set(float64(n))
}

// Len returns the number of resolved entries held.
func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.resolved)
}

// Calls returns how many times an underlying fn has been invoked.
func (c *Cache[K, V]) Calls() int64 {
	return c.calls.Load()
}

// Name returns the metrics label of the cache.
func (c *Cache[K, V]) Name() string {
	return c.name
}

func (c *Cache[K, V]) lookup(key K) (result[V], bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.resolved[key]
	return r, ok
}

// call runs fn, turning a panic into an ErrPanicked error.
func call[V any](ctx context.Context, fn FetchFunc[V]) (val V, err error) {
	defer func() {
		if p := recover(); p != nil {
			var zero V
			val, err = zero, fmt.Errorf("%w: %v", ErrPanicked, p)
		}
	}()
	return fn(ctx)
}

func flightKey[K comparable](key K) string {
	return fmt.Sprint(key)
}
