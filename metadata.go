// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pfs

package pfs

import (
	"bufio"
	"io"
	"os"
)

// ReadHeaderFile opens a PFS and returns only its header without parsing the index.
func ReadHeaderFile(path string) (Header, error) {
	f, _, err := openFileWithSize(path)
	if err != nil {
		return Header{}, err
	}
	defer func() { _ = f.Close() }()

	return ReadHeader(bufio.NewReader(f))
}

// ListEntries opens a PFS and returns entry metadata without payload reads or key derivation.
func ListEntries(path string) (Header, []EntryInfo, error) {
	f, size, err := openFileWithSize(path)
	if err != nil {
		return Header{}, nil, err
	}
	defer func() { _ = f.Close() }()

	return ListEntriesFromReaderAt(f, size)
}

// ListEntriesFromReaderAt parses header and entry metadata from a random-access source.
func ListEntriesFromReaderAt(ra io.ReaderAt, size int64) (Header, []EntryInfo, error) {
	if ra == nil {
		return Header{}, nil, ErrNilReader
	}

	br := bufio.NewReaderSize(io.NewSectionReader(ra, 0, size), readerIndexBufferSize)
	h, err := ReadHeader(br)
	if err != nil {
		return Header{}, nil, err
	}

	entries, err := ReadIndex(br, h)
	if err != nil {
		return Header{}, nil, err
	}

	return h, entries, nil
}

// openFileWithSize opens a file and returns a handle plus current size.
func openFileWithSize(path string) (*os.File, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, ioError("open PFS", err)
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, ioError("stat", err)
	}

	return f, fi.Size(), nil
}
