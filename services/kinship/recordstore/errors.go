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

import "errors"

var (
	// ErrInvalidGenerations is returned by Generate for an out-of-range depth.
	ErrInvalidGenerations = errors.New("generations out of range")

	// ErrNilDataset is returned by NewServer without a dataset.
	ErrNilDataset = errors.New("dataset must not be nil")
)
