// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package flight

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCache_ExactlyOnceConcurrent fires N concurrent callers at one key while
// the underlying call is blocked, then checks one call and one shared result.
func TestCache_ExactlyOnceConcurrent(t *testing.T) {
	c := New[uint64, string]("test")
	release := make(chan struct{})
	var invoked atomic.Int64

	fn := func(ctx context.Context) (string, error) {
		invoked.Add(1)
		<-release
		return "record-42", nil
	}

	const callers = 64
	results := make([]string, callers)
	var started, wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		started.Add(1)
		go func(i int) {
			defer wg.Done()
			started.Done()
			v, err := c.Do(context.Background(), 42, fn)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	started.Wait()
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int64(1), invoked.Load())
	assert.Equal(t, int64(1), c.Calls())
	for i, v := range results {
		assert.Equal(t, "record-42", v, "caller %d", i)
	}
}

func TestCache_ResolvedResultIsReused(t *testing.T) {
	c := New[uint64, int]("test")
	var invoked int
	fn := func(ctx context.Context) (int, error) {
		invoked++
		return invoked, nil
	}

	v1, err := c.Do(context.Background(), 1, fn)
	require.NoError(t, err)
	v2, err := c.Do(context.Background(), 1, fn)
	require.NoError(t, err)

	assert.Equal(t, 1, v1)
	assert.Equal(t, 1, v2)
	assert.Equal(t, 1, invoked)
	assert.True(t, c.Resolved(1))
	assert.Equal(t, 1, c.Len())
}

func TestCache_ErrorsAreTerminal(t *testing.T) {
	c := New[uint64, *struct{}]("test")
	errAbsent := errors.New("absent")
	var invoked int
	fn := func(ctx context.Context) (*struct{}, error) {
		invoked++
		return nil, errAbsent
	}

	for i := 0; i < 3; i++ {
		v, err := c.Do(context.Background(), 9, fn)
		assert.Nil(t, v)
		assert.ErrorIs(t, err, errAbsent)
	}
	assert.Equal(t, 1, invoked, "failed fetches must not be retried")
}

func TestCache_PanicIsTerminalError(t *testing.T) {
	c := New[uint64, string]("test")
	var invoked int
	fn := func(ctx context.Context) (string, error) {
		invoked++
		panic("decoder exploded")
	}

	for i := 0; i < 3; i++ {
		var v string
		var err error
		require.NotPanics(t, func() { v, err = c.Do(context.Background(), 5, fn) })
		assert.Empty(t, v)
		assert.ErrorIs(t, err, ErrPanicked)
		assert.Contains(t, err.Error(), "decoder exploded")
	}
	assert.Equal(t, 1, invoked, "a panicking fetch must not be retried")
	assert.True(t, c.Resolved(5))
}

func TestCache_ForgetRetiresResolved(t *testing.T) {
	c := New[uint64, int]("test")
	var invoked int
	fn := func(ctx context.Context) (int, error) {
		invoked++
		return invoked, nil
	}

	_, _ = c.Do(context.Background(), 5, fn)
	c.Forget(5)
	assert.False(t, c.Resolved(5))
	assert.Equal(t, 0, c.Len())

	v, err := c.Do(context.Background(), 5, fn)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.Equal(t, int64(2), c.Calls())
}

func TestCache_ForgetInFlightIsNoop(t *testing.T) {
	c := New[uint64, int]("test")
	release := make(chan struct{})
	entered := make(chan struct{})
	done := make(chan int)

	go func() {
		v, _ := c.Do(context.Background(), 3, func(ctx context.Context) (int, error) {
			close(entered)
			<-release
			return 33, nil
		})
		done <- v
	}()

	<-entered
	c.Forget(3)
	close(release)
	assert.Equal(t, 33, <-done)
	assert.True(t, c.Resolved(3), "result of an in-flight key survives an early Forget")
}

func TestCache_DistinctKeysDoNotShare(t *testing.T) {
	c := New[uint64, uint64]("test")
	var wg sync.WaitGroup
	for id := uint64(1); id <= 20; id++ {
		for r := 0; r < 5; r++ {
			wg.Add(1)
			go func(id uint64) {
				defer wg.Done()
				v, err := c.Do(context.Background(), id, func(ctx context.Context) (uint64, error) {
					return id * 100, nil
				})
				assert.NoError(t, err)
				assert.Equal(t, id*100, v)
			}(id)
		}
	}
	wg.Wait()
	assert.Equal(t, int64(20), c.Calls())
	assert.Equal(t, "test", c.Name())
}
