// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package crawl assembles the ancestry of a root family with a fixed pool of
// workers.
//
// # Description
//
// Each worker takes one family id from the frontier, fetches the family and
// all its members, records them in the tree, and pushes the parent families
// of the husband and wife. Children are recorded but their parent links are
// not followed: a child's parent family is the family being expanded.
//
// # Prefetch
//
// As soon as a spouse with a parent family is resolved, that family's fetch
// starts in the background. The worker that later expands it joins the same
// single-flight call, so each family is still fetched once while idle fetch
// permits are put to use before the family reaches the head of the frontier.
//
// # Termination
//
// Only the frontier's pending counter ends a crawl. The worker whose Done
// brings it to zero closes the frontier and every blocked worker wakes and
// exits. Crawl returns after all workers and prefetches have exited, so no
// write to the returned tree happens after return.
//
// # Failures
//
// A fetch that yields no record contributes no new work. Transport failures
// are counted separately and reported through Result.Truncated; they are not
// retried. Cancelling ctx makes outstanding and future fetches fail fast,
// which drains the frontier quickly.
//
// # Thread Safety
//
// Engine is safe for concurrent use. Every Crawl builds its own tree,
// frontier, and request caches.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/AleutianAI/kinship/services/kinship/fetch"
	"github.com/AleutianAI/kinship/services/kinship/flight"
	"github.com/AleutianAI/kinship/services/kinship/frontier"
	"github.com/AleutianAI/kinship/services/kinship/model"
	"github.com/AleutianAI/kinship/services/kinship/telemetry"
	"github.com/AleutianAI/kinship/services/kinship/tree"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// Fetcher retrieves records. It must be safe for unbounded concurrent use and
// bound its own outbound concurrency. *fetch.Client implements it.
//
// Errors are classified with fetch.IsAbsent and fetch.IsTransport; any other
// error is treated as a transport failure.
type Fetcher interface {
	FetchPerson(ctx context.Context, id uint64) (*model.Person, error)
	FetchFamily(ctx context.Context, id uint64) (*model.Family, error)
}

// Result is the outcome of one crawl.
type Result struct {
	Tree  *tree.Tree
	Stats Stats

	// Truncated is true if any fetch failed on transport, in which case
	// records reachable only through the failed ids are missing.
	Truncated bool
}

// Engine runs crawls against one Fetcher.
type Engine struct {
	fetcher Fetcher
	workers int
	retire  bool
	logger  *slog.Logger
}

// NewEngine creates an Engine. It panics if fetcher is nil.
func NewEngine(fetcher Fetcher, opts ...Option) *Engine {
	if fetcher == nil {
		panic("crawl: nil Fetcher")
	}
	e := &Engine{
		fetcher: fetcher,
		workers: DefaultWorkers(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Workers returns the pool size used by each crawl.
func (e *Engine) Workers() int {
	return e.workers
}

// RunDepthFirst crawls from root popping the most recently discovered family
// first. ok is false iff root is zero, in which case the tree is empty.
func (e *Engine) RunDepthFirst(ctx context.Context, root uint64) (*tree.Tree, bool) {
	return e.runOrder(ctx, root, frontier.LIFO)
}

// RunBreadthFirst crawls from root in discovery order. ok is false iff root
// is zero, in which case the tree is empty.
func (e *Engine) RunBreadthFirst(ctx context.Context, root uint64) (*tree.Tree, bool) {
	return e.runOrder(ctx, root, frontier.FIFO)
}

func (e *Engine) runOrder(ctx context.Context, root uint64, order frontier.Order) (*tree.Tree, bool) {
	res, err := e.Crawl(ctx, root, order)
	if err != nil {
		return tree.New(), false
	}
	return res.Tree, true
}

// Crawl assembles every family and person reachable from root.
//
// # Inputs
//
//   - ctx: Carried into every fetch. Cancellation fails pending fetches; it
//     does not abandon workers.
//   - root: Root family id. Must be non-zero.
//   - order: LIFO for depth-first, FIFO for breadth-first discovery. Both
//     produce the same records.
//
// # Outputs
//
//   - *Result: The tree and run statistics. Never nil when err is nil.
//   - error: ErrInvalidRoot if root is zero.
func (e *Engine) Crawl(ctx context.Context, root uint64, order frontier.Order) (*Result, error) {
	if root == 0 {
		return nil, ErrInvalidRoot
	}

	runID := newRunID()
	ctx, span := startCrawlSpan(ctx, runID, root, order.String(), e.workers)
	defer span.End()

	r := &run{
		fetcher:  e.fetcher,
		retire:   e.retire,
		order:    order.String(),
		logger:   telemetry.LoggerWithRun(ctx, e.logger, runID),
		tree:     tree.New(),
		frontier: frontier.New(order),
		families: flight.New[uint64, *model.Family](fetch.KindFamily),
		people:   flight.New[uint64, *model.Person](fetch.KindPerson),
	}

	r.logger.Info("crawl started",
		slog.Uint64("root", root),
		slog.String("order", r.order),
		slog.Int("workers", e.workers),
	)

	start := time.Now()
	r.frontier.Push(root)

	var wg sync.WaitGroup
	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.work(ctx)
		}()
	}
	wg.Wait()
	// Every prefetch is started by an expansion, so none can be added now.
	r.prefetches.Wait()

	stats := Stats{
		RunID:    runID,
		Root:     root,
		Order:    r.order,
		Workers:  e.workers,
		Families: r.tree.FamilyCount(),
		People:   r.tree.PersonCount(),
		Duration: time.Since(start),
	}
	r.counters.fill(&stats)

	setCrawlSpanResult(span, stats)
	telemetry.SetSpanOK(span)
	recordCrawlMetrics(ctx, stats)

	logAttrs := []any{
		slog.Int("families", stats.Families),
		slog.Int("people", stats.People),
		slog.Int64("expansions", stats.Expansions),
		slog.Int64("absent", stats.Absent),
		slog.Duration("duration", stats.Duration),
	}
	if stats.TransportFailures > 0 {
		r.logger.Warn("crawl finished with transport failures",
			append(logAttrs, slog.Int64("transport_failures", stats.TransportFailures))...)
	} else {
		r.logger.Info("crawl finished", logAttrs...)
	}

	return &Result{
		Tree:      r.tree,
		Stats:     stats,
		Truncated: stats.TransportFailures > 0,
	}, nil
}

// run is the state of one crawl, shared by its workers.
type run struct {
	fetcher Fetcher
	retire  bool
	order   string
	logger  *slog.Logger

	tree     *tree.Tree
	frontier *frontier.Frontier
	families *flight.Cache[uint64, *model.Family]
	people   *flight.Cache[uint64, *model.Person]

	prefetches sync.WaitGroup
	counters   counters
}

// work is one worker's loop.
func (r *run) work(ctx context.Context) {
	for {
		id, ok := r.frontier.Take()
		if !ok {
			return
		}
		r.expandSafely(ctx, id)
		if r.frontier.Done() {
			r.logger.Debug("frontier drained", slog.Int("visited", r.frontier.VisitedCount()))
		}
	}
}

// expandSafely runs expand and converts a panic into a failed expansion, so
// the pending counter is still decremented.
func (r *run) expandSafely(ctx context.Context, familyID uint64) {
	defer r.recoverFetch(fetch.KindFamily, familyID)
	r.expand(ctx, familyID)
}

// recoverFetch must be deferred directly. It counts a panic as a transport
// failure for id.
func (r *run) recoverFetch(kind string, id uint64) {
	if p := recover(); p != nil {
		r.counters.transportFailures.Add(1)
		r.logger.Error("fetch panicked",
			slog.String("kind", kind),
			slog.Uint64("id", id),
			slog.String("panic", fmt.Sprint(p)),
		)
	}
}

// expand fetches one family and its members and pushes newly discovered
// parent families.
func (r *run) expand(ctx context.Context, familyID uint64) {
	ctx, span := startExpandSpan(ctx, familyID)
	defer span.End()
	r.counters.expansions.Add(1)
	recordExpansion(ctx, r.order)

	fam, err := r.fetchFamily(ctx, familyID)
	if err != nil || fam == nil {
		telemetry.AddSpanEvent(span, "family_absent")
		return
	}
	r.tree.AddFamily(fam)

	members := fam.Members()
	resolved := make(map[uint64]*model.Person, len(members))
	var mu sync.Mutex
	// The group is only a join point: failures are recorded per person and
	// every goroutine returns nil.
	var g errgroup.Group
	for _, id := range members {
		g.Go(func() error {
			defer r.recoverFetch(fetch.KindPerson, id)
			p := r.resolvePerson(ctx, id)
			if p == nil {
				return nil
			}
			mu.Lock()
			resolved[id] = p
			mu.Unlock()
			if fam.IsSpouse(id) && p.HasParents() {
				r.prefetchFamily(ctx, p.ParentID)
			}
			return nil
		})
	}
	_ = g.Wait()

	pushed := 0
	for _, spouseID := range []uint64{fam.HusbandID, fam.WifeID} {
		p := resolved[spouseID]
		if !p.HasParents() {
			continue
		}
		if r.frontier.Push(p.ParentID) {
			pushed++
		}
	}
	r.counters.discovered.Add(int64(pushed))
	recordDiscovery(ctx, pushed)

	span.SetAttributes(
		attribute.Int("family.members", len(members)),
		attribute.Int("family.resolved", len(resolved)),
		attribute.Int("family.discovered", pushed),
	)
	r.logger.Debug("family expanded",
		slog.Uint64("family_id", familyID),
		slog.Int("members", len(members)),
		slog.Int("discovered", pushed),
	)
}

// resolvePerson returns the stored person for id, fetching it once if the
// tree does not hold it yet. Returns nil if the person is absent.
func (r *run) resolvePerson(ctx context.Context, id uint64) *model.Person {
	if p, ok := r.tree.GetPerson(id); ok {
		r.counters.personsReused.Add(1)
		recordPersonResolved(ctx, "tree")
		return p
	}

	p, err := r.fetchPerson(ctx, id)
	if err != nil || p == nil {
		return nil
	}

	r.tree.AddPerson(p)
	if r.retire {
		r.people.Forget(id)
	}
	if stored, ok := r.tree.GetPerson(id); ok {
		return stored
	}
	return p
}

// fetchPerson resolves id through the people cache. The call re-checks the
// tree first: with retirement on, another worker may have stored and retired
// id after this caller's own tree check.
func (r *run) fetchPerson(ctx context.Context, id uint64) (*model.Person, error) {
	source := "shared"
	p, err := r.people.Do(ctx, id, func(ctx context.Context) (*model.Person, error) {
		if stored, ok := r.tree.GetPerson(id); ok {
			r.counters.personsReused.Add(1)
			source = "tree"
			return stored, nil
		}
		source = "fetch"
		r.counters.personFetches.Add(1)
		p, err := guardFetch(fetch.KindPerson, id, func() (*model.Person, error) {
			return r.fetcher.FetchPerson(ctx, id)
		})
		r.noteFailure(ctx, fetch.KindPerson, err)
		return p, err
	})
	if err == nil && p != nil {
		recordPersonResolved(ctx, source)
	}
	return p, err
}

// fetchFamily resolves id through the family cache.
func (r *run) fetchFamily(ctx context.Context, id uint64) (*model.Family, error) {
	return r.families.Do(ctx, id, func(ctx context.Context) (*model.Family, error) {
		r.counters.familyFetches.Add(1)
		f, err := guardFetch(fetch.KindFamily, id, func() (*model.Family, error) {
			return r.fetcher.FetchFamily(ctx, id)
		})
		r.noteFailure(ctx, fetch.KindFamily, err)
		return f, err
	})
}

// prefetchFamily starts fetching id in the background unless its result is
// already known. Crawl waits for every prefetch before returning.
func (r *run) prefetchFamily(ctx context.Context, id uint64) {
	if r.families.Resolved(id) {
		return
	}
	r.counters.prefetches.Add(1)
	r.prefetches.Add(1)
	go func() {
		defer r.prefetches.Done()
		_, _ = r.fetchFamily(ctx, id)
	}()
}

// guardFetch turns a panicking fetch into an error, so it is counted as a
// transport failure inside the single-flight call.
func guardFetch[V any](kind string, id uint64, fn func() (V, error)) (val V, err error) {
	defer func() {
		if p := recover(); p != nil {
			var zero V
			val, err = zero, fmt.Errorf("%w: %s %d: %v", flight.ErrPanicked, kind, id, p)
		}
	}()
	return fn()
}

// noteFailure counts a failed fetch once, inside the single-flight call.
func (r *run) noteFailure(ctx context.Context, kind string, err error) {
	if err == nil {
		return
	}
	if fetch.IsAbsent(err) {
		r.counters.absent.Add(1)
		recordFetchFailure(ctx, kind, "absent")
		return
	}
	r.counters.transportFailures.Add(1)
	recordFetchFailure(ctx, kind, "transport")
	if errors.Is(err, flight.ErrPanicked) {
		r.logger.Error("fetch panicked", slog.String("kind", kind), slog.String("error", err.Error()))
	}
}

func newRunID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
