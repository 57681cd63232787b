// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package model defines the person and family records served by the
// remote record store.
//
// Records are immutable once decoded. Every consumer (tree, crawl) stores
// and shares pointers to them without copying.
package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrMissingID is returned when a decoded record carries a zero id.
	ErrMissingID = errors.New("record has no id")

	// ErrEmptyPayload is returned when the payload is empty or "{}".
	ErrEmptyPayload = errors.New("empty record payload")
)

// Person is one individual in the record store.
type Person struct {
	// ID identifies the person. Never zero for a valid record.
	ID uint64 `json:"id"`

	// Name is the person's given name.
	Name string `json:"name"`

	// Birth is the birth date as served (e.g. "9-3-1846").
	Birth string `json:"birth"`

	// ParentID is the family in which this person is a child.
	// Zero means the person has no known parents.
	ParentID uint64 `json:"parent_id"`

	// FamilyID is the family in which this person is a spouse.
	FamilyID uint64 `json:"family_id"`
}

// HasParents reports whether the person links to a parent family.
func (p *Person) HasParents() bool {
	return p != nil && p.ParentID != 0
}

// Family is one household: two optional spouses and their children.
type Family struct {
	ID        uint64   `json:"id"`
	HusbandID uint64   `json:"husband_id"`
	WifeID    uint64   `json:"wife_id"`
	Children  []uint64 `json:"children"`
}

// IsSpouse reports whether personID is the husband or wife of the family.
func (f *Family) IsSpouse(personID uint64) bool {
	if f == nil || personID == 0 {
		return false
	}
	return f.HusbandID == personID || f.WifeID == personID
}

// Members returns the person ids of the family: husband, wife, then children.
//
// Zero ids are skipped and each id appears at most once, so the result can be
// used directly as a fetch list.
func (f *Family) Members() []uint64 {
	if f == nil {
		return nil
	}
	ids := make([]uint64, 0, 2+len(f.Children))
	seen := make(map[uint64]struct{}, 2+len(f.Children))
	add := func(id uint64) {
		if id == 0 {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	add(f.HusbandID)
	add(f.WifeID)
	for _, c := range f.Children {
		add(c)
	}
	return ids
}

// DecodePerson parses a person payload.
func DecodePerson(data []byte) (*Person, error) {
	if isEmpty(data) {
		return nil, ErrEmptyPayload
	}
	var p Person
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode person: %w", err)
	}
	if p.ID == 0 {
		return nil, fmt.Errorf("decode person: %w", ErrMissingID)
	}
	return &p, nil
}

// DecodeFamily parses a family payload.
func DecodeFamily(data []byte) (*Family, error) {
	if isEmpty(data) {
		return nil, ErrEmptyPayload
	}
	var f Family
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode family: %w", err)
	}
	if f.ID == 0 {
		return nil, fmt.Errorf("decode family: %w", ErrMissingID)
	}
	return &f, nil
}

func isEmpty(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("{}")) || bytes.Equal(trimmed, []byte("null"))
}
