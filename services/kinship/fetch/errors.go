// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package fetch

import "errors"

// Sentinel errors for record fetches.
//
// ErrNotFound and ErrMalformed mean the record is absent for traversal
// purposes. ErrTransport means the store could not be reached or answered
// with a non-404 failure status; the record may exist.
var (
	// ErrNotFound is returned when the store reports no such record.
	ErrNotFound = errors.New("record not found")

	// ErrMalformed is returned when the store answers 2xx with a payload
	// that does not decode into a valid record.
	ErrMalformed = errors.New("malformed record payload")

	// ErrTransport is returned for connection errors, timeouts, limiter or
	// permit failures, and unexpected HTTP statuses.
	ErrTransport = errors.New("record store transport failure")

	// ErrNoBaseURL is returned by NewClient when Config.BaseURL is empty.
	ErrNoBaseURL = errors.New("record store base URL is required")
)

// IsAbsent reports whether err means the record does not exist.
func IsAbsent(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrMalformed)
}

// IsTransport reports whether err is a transport failure.
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}
