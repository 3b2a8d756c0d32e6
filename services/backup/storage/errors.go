// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package storage

import (
	"errors"
	"fmt"
)

// Sentinel errors for backend operations.
var (
	// ErrNotFound is returned by Get when no document exists under the
	// requested id.
	ErrNotFound = errors.New("document not found")

	// ErrClosed is returned when operating on a closed backend.
	ErrClosed = errors.New("backend is closed")
)

// WriteError reports a failed persist of one table.
//
// Import collects these per table and returns them in the result
// instead of aborting, so a partially successful import still reports
// which categories succeeded.
type WriteError struct {
	// Table is the table that failed to persist.
	Table Table

	// Err is the underlying backend error.
	Err error
}

// Error implements the error interface.
func (e *WriteError) Error() string {
	return fmt.Sprintf("write table %s: %v", e.Table, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *WriteError) Unwrap() error {
	return e.Err
}
