// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tree holds the family graph assembled by a crawl.
//
// # Ownership Model
//
// The tree stores pointers to records but does NOT copy them. Records MUST
// NOT be mutated after being added.
//
// # Thread Safety
//
// Tree is safe for concurrent use. A single RWMutex guards both maps; every
// critical section is O(1) except the snapshot helpers, which copy under a
// read lock. Callers never hold the lock across a network fetch.
//
// # Insert Semantics
//
// The first insert for an id wins. Later inserts for the same id are no-ops
// and never replace the stored value, so concurrent discoveries of the same
// record converge on one value.
package tree

import (
	"slices"
	"sync"

	"github.com/AleutianAI/kinship/services/kinship/model"
)

// Tree maps person and family ids to their records.
type Tree struct {
	mu       sync.RWMutex
	people   map[uint64]*model.Person
	families map[uint64]*model.Family
}

// New creates an empty Tree.
func New() *Tree {
	return &Tree{
		people:   make(map[uint64]*model.Person),
		families: make(map[uint64]*model.Family),
	}
}

// AddPerson inserts p if no person with the same id is stored.
//
// Returns true if p was inserted. Nil records and zero ids are rejected.
func (t *Tree) AddPerson(p *model.Person) bool {
	if p == nil || p.ID == 0 {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.people[p.ID]; ok {
		return false
	}
	t.people[p.ID] = p
	return true
}

// AddFamily inserts f if no family with the same id is stored.
//
// Returns true if f was inserted. Nil records and zero ids are rejected.
func (t *Tree) AddFamily(f *model.Family) bool {
	if f == nil || f.ID == 0 {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.families[f.ID]; ok {
		return false
	}
	t.families[f.ID] = f
	return true
}

// GetPerson returns the stored person for id.
func (t *Tree) GetPerson(id uint64) (*model.Person, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.people[id]
	return p, ok
}

// GetFamily returns the stored family for id.
func (t *Tree) GetFamily(id uint64) (*model.Family, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	f, ok := t.families[id]
	return f, ok
}

// PersonExists reports whether a person with id is stored.
func (t *Tree) PersonExists(id uint64) bool {
	_, ok := t.GetPerson(id)
	return ok
}

// FamilyExists reports whether a family with id is stored.
func (t *Tree) FamilyExists(id uint64) bool {
	_, ok := t.GetFamily(id)
	return ok
}

// PersonCount returns the number of stored people.
func (t *Tree) PersonCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.people)
}

// FamilyCount returns the number of stored families.
func (t *Tree) FamilyCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.families)
}

// PersonIDs returns the stored person ids in ascending order.
func (t *Tree) PersonIDs() []uint64 {
	t.mu.RLock()
	ids := make([]uint64, 0, len(t.people))
	for id := range t.people {
		ids = append(ids, id)
	}
	t.mu.RUnlock()
	slices.Sort(ids)
	return ids
}

// FamilyIDs returns the stored family ids in ascending order.
func (t *Tree) FamilyIDs() []uint64 {
	t.mu.RLock()
	ids := make([]uint64, 0, len(t.families))
	for id := range t.families {
		ids = append(ids, id)
	}
	t.mu.RUnlock()
	slices.Sort(ids)
	return ids
}
