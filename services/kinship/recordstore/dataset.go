// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package recordstore

import (
	"fmt"
	"math/rand"
	"slices"

	"github.com/AleutianAI/kinship/services/kinship/model"
)

// MaxGenerations bounds Generate. A complete pedigree doubles per generation.
const MaxGenerations = 14

// Dataset is an immutable set of records served by a Server.
type Dataset struct {
	Root     uint64
	people   map[uint64]*model.Person
	families map[uint64]*model.Family
}

// NewDataset builds a Dataset from explicit records. Records with a zero id
// are skipped; the first record for an id wins.
func NewDataset(root uint64, people []model.Person, families []model.Family) *Dataset {
	ds := &Dataset{
		Root:     root,
		people:   make(map[uint64]*model.Person, len(people)),
		families: make(map[uint64]*model.Family, len(families)),
	}
	for i := range people {
		p := people[i]
		if _, dup := ds.people[p.ID]; p.ID == 0 || dup {
			continue
		}
		ds.people[p.ID] = &p
	}
	for i := range families {
		f := families[i]
		if _, dup := ds.families[f.ID]; f.ID == 0 || dup {
			continue
		}
		f.Children = slices.Clone(f.Children)
		ds.families[f.ID] = &f
	}
	return ds
}

// Person returns the person with id.
func (d *Dataset) Person(id uint64) (*model.Person, bool) {
	p, ok := d.people[id]
	return p, ok
}

// Family returns the family with id.
func (d *Dataset) Family(id uint64) (*model.Family, bool) {
	f, ok := d.families[id]
	return f, ok
}

// PersonCount returns the number of people.
func (d *Dataset) PersonCount() int { return len(d.people) }

// FamilyCount returns the number of families.
func (d *Dataset) FamilyCount() int { return len(d.families) }

var givenNames = []string{
	"Stella", "Ada", "Eliza", "Martha", "Hannah", "Clara", "Rose", "Edith",
	"John", "William", "Thomas", "Henry", "Samuel", "Joseph", "Walter", "Amos",
}

// generator produces unique random ids and plausible attributes.
type generator struct {
	rng  *rand.Rand
	used map[uint64]struct{}
}

func (g *generator) id() uint64 {
	for {
		id := 1_000_000_000 + uint64(g.rng.Int63n(9_000_000_000))
		if _, dup := g.used[id]; !dup {
			g.used[id] = struct{}{}
			return id
		}
	}
}

func (g *generator) birth(year int) string {
	return fmt.Sprintf("%d-%d-%d", 1+g.rng.Intn(28), 1+g.rng.Intn(12), year)
}

func (g *generator) name() string {
	return givenNames[g.rng.Intn(len(givenNames))]
}

// Generate builds a deterministic pedigree of the given depth.
//
// # Description
//
// Generation 0 is the root family. Every spouse of a family in generation g
// is a child of a family in generation g+1, up to generations-1, whose
// spouses have no parents. Each family has between one and four extra
// children. The same seed always yields the same ids and attributes.
//
// # Outputs
//
//   - *Dataset: 2^generations - 1 families and every spouse and child.
//   - error: ErrInvalidGenerations outside [1, MaxGenerations].
func Generate(generations int, seed int64) (*Dataset, error) {
	if generations < 1 || generations > MaxGenerations {
		return nil, fmt.Errorf("%w: %d", ErrInvalidGenerations, generations)
	}
	g := &generator{rng: rand.New(rand.NewSource(seed)), used: make(map[uint64]struct{})}
	ds := &Dataset{
		people:   make(map[uint64]*model.Person),
		families: make(map[uint64]*model.Family),
	}

	const baseYear = 1990
	type slot struct {
		familyID uint64
		childID  uint64 // spouse one generation down, listed as a child
	}

	// Walk generation by generation. Each family of generation gen is
	// created with the child it was discovered from.
	ds.Root = g.id()
	level := []slot{{familyID: ds.Root}}
	for gen := 0; gen < generations; gen++ {
		var next []slot
		year := baseYear - 28*gen
		for _, s := range level {
			husband, wife := g.id(), g.id()
			var hp, wp uint64
			if gen < generations-1 {
				hp, wp = g.id(), g.id()
				next = append(next,
					slot{familyID: hp, childID: husband},
					slot{familyID: wp, childID: wife},
				)
			}
			ds.people[husband] = &model.Person{ID: husband, Name: g.name(), Birth: g.birth(year - 2), ParentID: hp, FamilyID: s.familyID}
			ds.people[wife] = &model.Person{ID: wife, Name: g.name(), Birth: g.birth(year), ParentID: wp, FamilyID: s.familyID}

			var children []uint64
			if s.childID != 0 {
				children = append(children, s.childID)
			}
			for n := 1 + g.rng.Intn(4); n > 0; n-- {
				c := g.id()
				ds.people[c] = &model.Person{ID: c, Name: g.name(), Birth: g.birth(year + 22 + g.rng.Intn(15)), ParentID: s.familyID}
				children = append(children, c)
			}
			g.rng.Shuffle(len(children), func(i, j int) { children[i], children[j] = children[j], children[i] })

			ds.families[s.familyID] = &model.Family{ID: s.familyID, HusbandID: husband, WifeID: wife, Children: children}
		}
		level = next
	}
	return ds, nil
}
