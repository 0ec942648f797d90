// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pfs

package pfs

import (
	"fmt"
	"io"
)

// nopCloser wraps a reader and provides a no-op close.
type nopCloser struct {
	io.Reader
}

// Close closes nopCloser (no-op).
func (nopCloser) Close() error {
	return nil
}

// exactReader fails with io.ErrUnexpectedEOF when the source ends before n bytes.
type exactReader struct {
	r io.Reader
	n int64
}

// Read reads from the source and turns an early EOF into a short-read error.
func (e *exactReader) Read(p []byte) (int, error) {
	if e.n <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > e.n {
		p = p[:e.n]
	}

	n, err := e.r.Read(p)
	e.n -= int64(n)
	if err == io.EOF && e.n > 0 {
		return n, io.ErrUnexpectedEOF
	}
	if err == io.EOF || e.n == 0 {
		return n, nil
	}

	return n, err
}

// findEntryByName resolves one entry by normalized path.
func (r *Reader) findEntryByName(name string) *EntryInfo {
	lookupName := NormalizePath(name)
	for i := range r.entries {
		if NormalizePath(r.entries[i].Path) == lookupName {
			return &r.entries[i]
		}
	}

	return nil
}

// openEntryByInfo opens the plaintext payload stream for resolved entry metadata.
// Reads are positioned, so streams of different entries may be read concurrently.
func (r *Reader) openEntryByInfo(info *EntryInfo, name string) (io.ReadCloser, error) {
	if info == nil {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, name)
	}
	if !info.HasPayload() {
		return nil, fmt.Errorf("%w: %s has no payload", ErrEntryNotFound, name)
	}

	var src io.Reader = &exactReader{
		r: io.NewSectionReader(r.ra, int64(info.Offset), int64(info.Size)),
		n: int64(info.Size),
	}
	if r.key != nil {
		src = &xorReader{r: src, key: r.key}
	}

	return nopCloser{Reader: src}, nil
}

// OpenEntry opens named entry for reading.
// Returned stream yields deobfuscated content for v8 archives.
func (r *Reader) OpenEntry(name string) (io.ReadCloser, error) {
	if r == nil || r.ra == nil {
		return nil, ErrNilReader
	}
	if r.isClosed() {
		return nil, ErrClosed
	}

	return r.openEntryByInfo(r.findEntryByName(name), name)
}

// OpenEntryInfo opens entry stream by already resolved metadata.
func (r *Reader) OpenEntryInfo(info EntryInfo) (io.ReadCloser, error) {
	if r == nil || r.ra == nil {
		return nil, ErrNilReader
	}
	if r.isClosed() {
		return nil, ErrClosed
	}

	name := info.Path
	if name == "" {
		name = "<unknown>"
	}

	return r.openEntryByInfo(&info, name)
}

// ReadEntry reads the full plaintext content of the named entry.
// A payload cut short by a truncated archive fails with ErrIO.
func (r *Reader) ReadEntry(name string) ([]byte, error) {
	rc, err := r.OpenEntry(name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, ioError("read entry "+name, err)
	}

	return data, nil
}
