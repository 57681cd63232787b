// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package frontier

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(f *Frontier) []uint64 {
	var out []uint64
	for {
		id, ok := f.TryTake()
		if !ok {
			return out
		}
		out = append(out, id)
	}
}

func TestFrontier_LIFOOrder(t *testing.T) {
	f := New(LIFO)
	for _, id := range []uint64{1, 2, 3} {
		require.True(t, f.Push(id))
	}
	assert.Equal(t, []uint64{3, 2, 1}, drain(f))
}

func TestFrontier_FIFOOrder(t *testing.T) {
	f := New(FIFO)
	for _, id := range []uint64{1, 2, 3} {
		require.True(t, f.Push(id))
	}
	assert.Equal(t, []uint64{1, 2, 3}, drain(f))

	// Interleaved push/take keeps push order.
	f.Push(4)
	f.Push(5)
	id, _ := f.TryTake()
	assert.Equal(t, uint64(4), id)
	f.Push(6)
	assert.Equal(t, []uint64{5, 6}, drain(f))
}

func TestFrontier_FIFOCompaction(t *testing.T) {
	f := New(FIFO)
	const n = 5000
	for i := uint64(1); i <= n; i++ {
		f.Push(i)
	}
	for i := uint64(1); i <= n/2+10; i++ {
		id, ok := f.TryTake()
		require.True(t, ok)
		require.Equal(t, i, id)
	}
	f.Push(n + 1)
	rest := drain(f)
	require.Len(t, rest, n-(n/2+10)+1)
	assert.Equal(t, uint64(n/2+11), rest[0])
	assert.Equal(t, uint64(n+1), rest[len(rest)-1])
}

func TestFrontier_PushRejectsZeroAndDuplicates(t *testing.T) {
	f := New(LIFO)
	assert.False(t, f.Push(0))
	assert.True(t, f.Push(7))
	assert.False(t, f.Push(7))

	// Visited survives the pop: re-pushing after expansion is still rejected.
	_, ok := f.TryTake()
	require.True(t, ok)
	assert.False(t, f.Push(7))

	assert.True(t, f.Visited(7))
	assert.False(t, f.Visited(8))
	assert.Equal(t, 1, f.VisitedCount())
	assert.Equal(t, int64(1), f.Pending())
}

func TestFrontier_ConcurrentDuplicatePushes(t *testing.T) {
	f := New(FIFO)
	var accepted atomic.Int64
	var wg sync.WaitGroup
	for w := 0; w < 16; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := uint64(1); id <= 100; id++ {
				if f.Push(id) {
					accepted.Add(1)
				}
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(100), accepted.Load())
	assert.Equal(t, int64(100), f.Pending())
	assert.Equal(t, 100, f.Len())
}

func TestFrontier_TakeWaitsForPush(t *testing.T) {
	f := New(LIFO)
	f.Push(1)
	first, ok := f.Take()
	require.True(t, ok)
	require.Equal(t, uint64(1), first)

	got := make(chan uint64, 1)
	go func() {
		id, ok := f.Take()
		if ok {
			got <- id
		}
		close(got)
	}()

	select {
	case <-got:
		t.Fatal("Take returned while pending > 0 and queue empty")
	case <-time.After(50 * time.Millisecond):
	}

	f.Push(2)
	assert.Equal(t, uint64(2), <-got)
}

func TestFrontier_DoneToZeroClosesAndWakesAll(t *testing.T) {
	f := New(FIFO)
	f.Push(1)
	_, ok := f.Take()
	require.True(t, ok)

	const waiters = 8
	exited := make(chan struct{}, waiters)
	for i := 0; i < waiters; i++ {
		go func() {
			_, ok := f.Take()
			assert.False(t, ok)
			exited <- struct{}{}
		}()
	}

	time.Sleep(20 * time.Millisecond)
	assert.True(t, f.Done(), "the call reaching zero must report it")
	assert.True(t, f.Closed())

	for i := 0; i < waiters; i++ {
		select {
		case <-exited:
		case <-time.After(time.Second):
			t.Fatalf("waiter %d never woke after shutdown", i)
		}
	}
	assert.False(t, f.Push(2), "closed frontier rejects pushes")
}

func TestFrontier_DoneNotZero(t *testing.T) {
	f := New(LIFO)
	f.Push(1)
	f.Push(2)
	assert.False(t, f.Done())
	assert.False(t, f.Closed())
	assert.True(t, f.Done())
}

func TestFrontier_DonePanicsWhenOvercalled(t *testing.T) {
	f := New(LIFO)
	f.Push(1)
	f.Done()
	assert.Panics(t, func() { f.Done() })
}

// TestFrontier_WorkersTerminate simulates a pool expanding a binary ancestry
// where every id n pushes 2n and 2n+1 up to a bound, with many overlapping
// duplicate pushes. Exactly one worker must observe the zero transition and
// every id must be expanded exactly once.
func TestFrontier_WorkersTerminate(t *testing.T) {
	for _, order := range []Order{LIFO, FIFO} {
		t.Run(order.String(), func(t *testing.T) {
			const limit = 4096
			f := New(order)
			f.Push(1)

			var expanded sync.Map
			var closers atomic.Int64
			var wg sync.WaitGroup
			for w := 0; w < 16; w++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for {
						id, ok := f.Take()
						if !ok {
							return
						}
						if _, dup := expanded.LoadOrStore(id, true); dup {
							t.Errorf("id %d expanded twice", id)
						}
						for _, child := range []uint64{2 * id, 2*id + 1, id + 1} {
							if child < limit {
								f.Push(child)
							}
						}
						if f.Done() {
							closers.Add(1)
						}
					}
				}()
			}

			done := make(chan struct{})
			go func() {
				wg.Wait()
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(10 * time.Second):
				t.Fatal("workers did not terminate")
			}

			count := 0
			expanded.Range(func(_, _ any) bool { count++; return true })
			assert.Equal(t, limit-1, count)
			assert.Equal(t, int64(1), closers.Load())
			assert.Equal(t, int64(0), f.Pending())
		})
	}
}

func TestParseOrder(t *testing.T) {
	tests := []struct {
		in   string
		want Order
	}{
		{"dfs", LIFO},
		{"Depth", LIFO},
		{"lifo", LIFO},
		{"bfs", FIFO},
		{" breadth-first ", FIFO},
		{"FIFO", FIFO},
	}
	for _, tt := range tests {
		got, err := ParseOrder(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseOrder("random")
	assert.ErrorIs(t, err, ErrUnknownOrder)
	assert.Equal(t, "dfs", LIFO.String())
	assert.Equal(t, "bfs", FIFO.String())
}
