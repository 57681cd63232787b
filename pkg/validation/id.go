// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation checks user-provided record ids before they reach a URL
// path or a crawl.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// idPattern matches a decimal record id: 1-20 digits, no sign.
var idPattern = regexp.MustCompile(`^[0-9]{1,20}$`)

var (
	// ErrEmptyID is returned for blank input.
	ErrEmptyID = errors.New("record id cannot be empty")

	// ErrInvalidID is returned for anything that is not a decimal uint64.
	ErrInvalidID = errors.New("invalid record id")

	// ErrZeroID is returned by ParseNonZeroID for 0, the "no record" id.
	ErrZeroID = errors.New("record id 0 means no record")
)

// ParseID parses a decimal record id. Surrounding whitespace is ignored.
//
// Example:
//
//	id, err := validation.ParseID(c.Param("id"))
//	if err != nil {
//	    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
//	    return
//	}
func ParseID(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrEmptyID
	}
	if !idPattern.MatchString(s) {
		return 0, fmt.Errorf("%w: %q (must be 1-20 decimal digits)", ErrInvalidID, s)
	}
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q out of range", ErrInvalidID, s)
	}
	return id, nil
}

// ParseNonZeroID is ParseID rejecting 0.
func ParseNonZeroID(s string) (uint64, error) {
	id, err := ParseID(s)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, ErrZeroID
	}
	return id, nil
}
