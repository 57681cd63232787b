// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tree

import (
	"fmt"
	"sync"
	"testing"

	"github.com/AleutianAI/kinship/services/kinship/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTree_AddPerson(t *testing.T) {
	tr := New()

	assert.True(t, tr.AddPerson(&model.Person{ID: 1, Name: "first"}))
	assert.False(t, tr.AddPerson(&model.Person{ID: 1, Name: "second"}), "duplicate insert must be a no-op")
	assert.False(t, tr.AddPerson(nil))
	assert.False(t, tr.AddPerson(&model.Person{ID: 0}))

	p, ok := tr.GetPerson(1)
	require.True(t, ok)
	assert.Equal(t, "first", p.Name, "first insert wins")
	assert.True(t, tr.PersonExists(1))
	assert.False(t, tr.PersonExists(2))
	assert.Equal(t, 1, tr.PersonCount())
}

func TestTree_AddFamily(t *testing.T) {
	tr := New()

	assert.True(t, tr.AddFamily(&model.Family{ID: 7, HusbandID: 1}))
	assert.False(t, tr.AddFamily(&model.Family{ID: 7, HusbandID: 2}))
	assert.False(t, tr.AddFamily(&model.Family{}))

	f, ok := tr.GetFamily(7)
	require.True(t, ok)
	assert.Equal(t, uint64(1), f.HusbandID)
	assert.True(t, tr.FamilyExists(7))
	assert.False(t, tr.FamilyExists(8))
	assert.Equal(t, 1, tr.FamilyCount())
}

// TestTree_ConcurrentInsertIsIdempotent races many writers on the same ids
// and checks exactly one insert wins per id and the value never changes.
func TestTree_ConcurrentInsertIsIdempotent(t *testing.T) {
	tr := New()
	const writers = 32
	const ids = 50

	var wg sync.WaitGroup
	wins := make([]int, ids+1)
	var winsMu sync.Mutex

	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for id := uint64(1); id <= ids; id++ {
				if tr.AddPerson(&model.Person{ID: id, Name: fmt.Sprintf("writer-%d", w)}) {
					winsMu.Lock()
					wins[id]++
					winsMu.Unlock()
				}
				tr.AddFamily(&model.Family{ID: id})
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, ids, tr.PersonCount())
	assert.Equal(t, ids, tr.FamilyCount())
	for id := uint64(1); id <= ids; id++ {
		assert.Equal(t, 1, wins[id], "id %d must have exactly one winning insert", id)
		first, _ := tr.GetPerson(id)
		tr.AddPerson(&model.Person{ID: id, Name: "late"})
		again, _ := tr.GetPerson(id)
		assert.Same(t, first, again)
	}
}

func TestTree_IDsSorted(t *testing.T) {
	tr := New()
	for _, id := range []uint64{5, 3, 9, 1} {
		tr.AddPerson(&model.Person{ID: id})
		tr.AddFamily(&model.Family{ID: id * 10})
	}
	assert.Equal(t, []uint64{1, 3, 5, 9}, tr.PersonIDs())
	assert.Equal(t, []uint64{10, 30, 50, 90}, tr.FamilyIDs())
}

func TestTree_Snapshot(t *testing.T) {
	tr := New()
	tr.AddFamily(&model.Family{ID: 2, Children: []uint64{4}})
	tr.AddFamily(&model.Family{ID: 1})
	tr.AddPerson(&model.Person{ID: 4})
	tr.AddPerson(&model.Person{ID: 3})

	s := tr.Snapshot()
	require.Len(t, s.People, 2)
	require.Len(t, s.Families, 2)
	assert.Equal(t, uint64(3), s.People[0].ID)
	assert.Equal(t, uint64(1), s.Families[0].ID)

	s.Families[1].Children[0] = 99
	f, _ := tr.GetFamily(2)
	assert.Equal(t, uint64(4), f.Children[0], "snapshot must not alias stored children")
}

func TestSameEntities(t *testing.T) {
	a, b := New(), New()
	assert.True(t, SameEntities(a, b))

	a.AddPerson(&model.Person{ID: 1})
	assert.False(t, SameEntities(a, b))

	b.AddPerson(&model.Person{ID: 1, Name: "other payload"})
	assert.True(t, SameEntities(a, b))

	assert.False(t, SameEntities(a, nil))
	assert.True(t, SameEntities(nil, nil))
}
