// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pfs

package pfs

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for PFS operations. Use errors.Is in callers.
var (
	// ErrInvalidFormat means the archive has a bad magic, a truncated header or a malformed index.
	ErrInvalidFormat = errors.New("invalid PFS archive")
	// ErrInvalidEncoding means an entry path is not valid UTF-8.
	ErrInvalidEncoding = errors.New("entry path is not valid UTF-8")
	// ErrUnsupportedVersion means the pack version has no defined layout for the requested operation.
	ErrUnsupportedVersion = errors.New("unsupported pack version")
	// ErrIO means an underlying read, write or seek failed.
	ErrIO = errors.New("i/o failure")
	// ErrSizeMismatch means an input stream length differs from its declared size.
	ErrSizeMismatch = errors.New("input size does not match declared size")
	// ErrNilReader means the reader is nil.
	ErrNilReader = errors.New("reader is nil")
	// ErrNilWriter means the writer is nil.
	ErrNilWriter = errors.New("writer is nil")
	// ErrClosed means the reader or resource is already closed.
	ErrClosed = errors.New("reader or resource already closed")
	// ErrEntryNotFound means the entry is not found.
	ErrEntryNotFound = errors.New("entry not found")
	// ErrSizeOverflow means a size or offset does not fit the 32-bit PFS fields.
	ErrSizeOverflow = errors.New("size exceeds uint32 PFS limit")
	// ErrInvalidEntryPath means one of input entry paths is empty or invalid after normalization.
	ErrInvalidEntryPath = errors.New("invalid entry path")
	// ErrDuplicateEntryPath means two inputs resolve to the same path (case-insensitive).
	ErrDuplicateEntryPath = errors.New("duplicate entry path")
	// ErrInvalidExtractPath means archive entry path is invalid for extraction destination.
	ErrInvalidExtractPath = errors.New("invalid extract path")
	// ErrInvalidRules means one or more path selection rules are invalid.
	ErrInvalidRules = errors.New("invalid path rules")
)

// EntryError is a failure of one archive entry during extraction.
type EntryError struct {
	Err  error
	Path string
}

// Error implements error.
func (e *EntryError) Error() string {
	return fmt.Sprintf("entry %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *EntryError) Unwrap() error {
	return e.Err
}

// ExtractError aggregates per-entry extraction failures.
// Entries not listed in Failures were extracted successfully.
type ExtractError struct {
	Failures []*EntryError
}

// Error implements error.
func (e *ExtractError) Error() string {
	if len(e.Failures) == 1 {
		return "extract: " + e.Failures[0].Error()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "extract: %d entries failed", len(e.Failures))
	for _, f := range e.Failures {
		b.WriteString("; ")
		b.WriteString(f.Error())
	}

	return b.String()
}

// Unwrap exposes every entry failure to errors.Is and errors.As.
func (e *ExtractError) Unwrap() []error {
	out := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		out[i] = f
	}

	return out
}

// ioError wraps a low-level failure with ErrIO and operation context.
func ioError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrIO, op, err)
}
