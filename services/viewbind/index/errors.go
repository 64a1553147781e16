// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package index

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidSymbol indicates a symbol failed validation.
	ErrInvalidSymbol = errors.New("invalid symbol")

	// ErrDuplicateSymbol indicates a symbol with the same ID already exists.
	ErrDuplicateSymbol = errors.New("duplicate symbol ID")

	// ErrMaxSymbolsExceeded indicates the index is at capacity.
	ErrMaxSymbolsExceeded = errors.New("maximum symbol count exceeded")
)

// BatchError collects every problem found while validating a batch.
type BatchError struct {
	Errors []error
}

// Error implements error.
func (e *BatchError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%d symbol errors: %s", len(e.Errors), strings.Join(msgs, "; "))
}

// Unwrap lets errors.Is see the individual errors.
func (e *BatchError) Unwrap() []error {
	return e.Errors
}
