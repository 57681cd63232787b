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
	"cmp"
	"slices"

	"github.com/AleutianAI/kinship/services/kinship/model"
)

// Snapshot is a point-in-time, JSON-ready copy of a Tree.
//
// People and Families are sorted by id so two snapshots of trees holding the
// same records compare equal regardless of insertion order.
type Snapshot struct {
	People   []model.Person `json:"people"`
	Families []model.Family `json:"families"`
}

// Snapshot copies the stored records.
//
// Thread Safety: Safe for concurrent use; the copy is taken under a read lock.
func (t *Tree) Snapshot() Snapshot {
	t.mu.RLock()
	s := Snapshot{
		People:   make([]model.Person, 0, len(t.people)),
		Families: make([]model.Family, 0, len(t.families)),
	}
	for _, p := range t.people {
		s.People = append(s.People, *p)
	}
	for _, f := range t.families {
		fc := *f
		fc.Children = slices.Clone(f.Children)
		s.Families = append(s.Families, fc)
	}
	t.mu.RUnlock()

	slices.SortFunc(s.People, func(a, b model.Person) int { return cmp.Compare(a.ID, b.ID) })
	slices.SortFunc(s.Families, func(a, b model.Family) int { return cmp.Compare(a.ID, b.ID) })
	return s
}

// SameEntities reports whether a and b hold exactly the same person and
// family ids.
func SameEntities(a, b *Tree) bool {
	if a == nil || b == nil {
		return a == b
	}
	return slices.Equal(a.PersonIDs(), b.PersonIDs()) && slices.Equal(a.FamilyIDs(), b.FamilyIDs())
}
