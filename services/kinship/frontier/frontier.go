// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package frontier provides the work source of a crawl: the ids still to be
// expanded, plus the bookkeeping that tells workers when no work is left
// anywhere.
//
// # Termination
//
// Termination rests on the pending counter, never on "queue is empty". The
// counter is incremented once per accepted Push and decremented once per
// Done. An empty queue with pending > 0 means some worker is still expanding
// an item and may push more work, so idle workers keep waiting. The worker
// whose Done brings pending to zero closes the frontier and wakes every
// waiter; each then observes "closed, no item" and exits.
//
// # Order
//
// LIFO pops the most recently pushed id first (depth-first discovery order);
// FIFO pops in push order (breadth-first). Order only affects when work is
// discovered, never which work is done.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Push performs mark-visited,
// append, increment and signal under one mutex so the sequence is atomic
// with respect to other workers' termination checks.
package frontier

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

// Order selects the traversal discipline.
type Order int

const (
	// LIFO pops the newest id first (depth-first).
	LIFO Order = iota

	// FIFO pops the oldest id first (breadth-first).
	FIFO
)

// String returns "dfs" or "bfs".
func (o Order) String() string {
	switch o {
	case LIFO:
		return "dfs"
	case FIFO:
		return "bfs"
	default:
		return fmt.Sprintf("order(%d)", int(o))
	}
}

// ParseOrder accepts "dfs"/"depth"/"lifo" and "bfs"/"breadth"/"fifo".
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dfs", "depth", "depth-first", "lifo":
		return LIFO, nil
	case "bfs", "breadth", "breadth-first", "fifo":
		return FIFO, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownOrder, s)
	}
}

// Frontier is a concurrent set of ids awaiting expansion.
type Frontier struct {
	order Order

	mu      sync.Mutex
	cond    *sync.Cond
	items   []uint64
	head    int // first live index for FIFO
	visited map[uint64]struct{}
	closed  bool

	pending atomic.Int64
}

// New creates an empty Frontier with the given order.
func New(order Order) *Frontier {
	f := &Frontier{
		order:   order,
		visited: make(map[uint64]struct{}),
	}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Order returns the discipline the frontier was created with.
func (f *Frontier) Order() Order {
	return f.order
}

// Push schedules id for expansion.
//
// Returns false without side effects if id is zero, was pushed before, or
// the frontier is already closed. Otherwise marks id visited, appends it,
// increments pending and wakes one waiting worker.
func (f *Frontier) Push(id uint64) bool {
	if id == 0 {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	if _, seen := f.visited[id]; seen {
		return false
	}
	f.visited[id] = struct{}{}
	f.items = append(f.items, id)
	f.pending.Add(1)
	f.cond.Signal()
	return true
}

// TryTake removes and returns the next id without blocking.
func (f *Frontier) TryTake() (uint64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.popLocked()
}

// Take removes and returns the next id, waiting until one is available.
//
// Returns false only once the frontier is closed and empty; the caller
// should exit its loop.
func (f *Frontier) Take() (uint64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for {
		if id, ok := f.popLocked(); ok {
			return id, true
		}
		if f.closed {
			return 0, false
		}
		f.cond.Wait()
	}
}

// Done records that one taken id has been fully expanded, including any
// pushes it caused.
//
// Returns true for the unique caller that brought pending to zero; that
// call closes the frontier and wakes every waiting worker.
func (f *Frontier) Done() bool {
	n := f.pending.Add(-1)
	if n < 0 {
		panic("frontier: Done called more times than Push")
	}
	if n != 0 {
		return false
	}
	f.mu.Lock()
	f.closed = true
	f.cond.Broadcast()
	f.mu.Unlock()
	return true
}

// Pending returns the number of pushed ids not yet marked Done.
func (f *Frontier) Pending() int64 {
	return f.pending.Load()
}

// Len returns the number of ids waiting to be taken.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items) - f.head
}

// Visited reports whether id was ever accepted by Push.
func (f *Frontier) Visited(id uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.visited[id]
	return ok
}

// VisitedCount returns the number of distinct ids ever accepted by Push.
func (f *Frontier) VisitedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.visited)
}

// Closed reports whether the frontier has shut down.
func (f *Frontier) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// popLocked removes the next id. Caller holds f.mu.
func (f *Frontier) popLocked() (uint64, bool) {
	if len(f.items)-f.head == 0 {
		return 0, false
	}
	var id uint64
	if f.order == FIFO {
		id = f.items[f.head]
		f.head++
		if f.head == len(f.items) {
			f.items = f.items[:0]
			f.head = 0
		} else if f.head > 1024 && f.head*2 > len(f.items) {
			n := copy(f.items, f.items[f.head:])
			f.items = f.items[:n]
			f.head = 0
		}
	} else {
		last := len(f.items) - 1
		id = f.items[last]
		f.items = f.items[:last]
	}
	return id, true
}
