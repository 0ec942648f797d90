// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pfs

package pfs

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"unicode/utf8"
)

const (
	// readerIndexBufferSize is a sequential read buffer for index parsing.
	readerIndexBufferSize = 64 * 1024
)

var (
	// indexReaderPool reuses buffered readers for sequential index parsing.
	indexReaderPool = sync.Pool{
		New: func() any {
			return bufio.NewReaderSize(bytes.NewReader(nil), readerIndexBufferSize)
		},
	}
)

// Reader provides read-only access to a parsed PFS archive.
// Payload reads go through io.ReaderAt and are safe for concurrent use.
type Reader struct {
	// ra is the underlying random-access reader used for payload reads.
	ra io.ReaderAt
	// file is set when Reader owns an *os.File opened via Open.
	file *os.File
	// entries stores parsed immutable entry metadata.
	entries []EntryInfo
	// key is the v8 payload XOR key; nil for plain archives.
	key []byte
	// header stores the parsed archive header.
	header Header
	// size is total source size in bytes.
	size int64
	// mu guards closed state and close operation.
	mu sync.Mutex
	// closed reports whether Close was already called.
	closed bool
}

// Open opens PFS file by path and parses header and index.
func Open(path string) (*Reader, error) {
	f, size, err := openFileWithSize(path)
	if err != nil {
		return nil, err
	}

	r, err := NewReader(f, size)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	r.file = f
	return r, nil
}

// NewReader parses PFS from existing ReaderAt and known size.
func NewReader(ra io.ReaderAt, size int64) (*Reader, error) {
	if ra == nil {
		return nil, ErrNilReader
	}

	r := &Reader{ra: ra, size: size}
	if err := r.parse(); err != nil {
		return nil, err
	}

	return r, nil
}

// Header returns the parsed archive header.
func (r *Reader) Header() Header {
	return r.header
}

// Version returns the archive pack version.
func (r *Reader) Version() Version {
	return r.header.Version
}

// Size returns the total archive size in bytes.
func (r *Reader) Size() int64 {
	return r.size
}

// Entries returns a copy of parsed entries in index order.
func (r *Reader) Entries() []EntryInfo {
	if r == nil {
		return nil
	}

	entries := make([]EntryInfo, len(r.entries))
	copy(entries, r.entries)
	return entries
}

// Key returns a copy of the payload XOR key, or nil when payloads are plain.
func (r *Reader) Key() []byte {
	if r == nil || r.key == nil {
		return nil
	}

	return bytes.Clone(r.key)
}

// Close closes the underlying file if reader owns one.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}

	r.closed = true
	if r.file != nil {
		return r.file.Close()
	}

	return nil
}

// isClosed reports closed state under lock.
func (r *Reader) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.closed
}

// parse reads header and index sequentially, then derives the payload key.
func (r *Reader) parse() error {
	sr := io.NewSectionReader(r.ra, 0, r.size)
	br := indexReaderPool.Get().(*bufio.Reader) //nolint:forcetypeassert // pool contains only *bufio.Reader
	br.Reset(sr)
	defer func() {
		br.Reset(bytes.NewReader(nil))
		indexReaderPool.Put(br)
	}()

	header, err := ReadHeader(br)
	if err != nil {
		return err
	}

	entries, err := ReadIndex(br, header)
	if err != nil {
		return err
	}

	key, err := DeriveKey(r.ra, header)
	if err != nil {
		return err
	}

	r.header = header
	r.entries = entries
	r.key = key
	return nil
}

// ReadHeader reads the archive header from the start of r.
// Reading is sequential; the legacy "2" layout consumes 4 extra bytes.
func ReadHeader(r io.Reader) (Header, error) {
	var h Header
	if r == nil {
		return h, ErrNilReader
	}

	var prefix [indexStart]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return h, parseError("read header", err)
	}

	copy(h.Magic[:], prefix[0:2])
	if h.Magic != Magic {
		return h, fmt.Errorf("%w: bad magic %q", ErrInvalidFormat, prefix[0:2])
	}

	h.Version = Version(prefix[2])
	h.IndexSize = decodeUint32LE(prefix[3:7])

	if h.Version == VersionLegacy {
		if _, err := io.CopyN(io.Discard, r, 4); err != nil {
			return h, parseError("read legacy header", err)
		}
	}

	count, err := readUint32LE(r)
	if err != nil {
		return h, parseError("read file count", err)
	}

	h.FileCount = count
	return h, nil
}

// ReadIndex reads h.FileCount index records that follow the header in r.
// Stored backslash paths are returned in slash form.
func ReadIndex(r io.Reader, h Header) ([]EntryInfo, error) {
	if r == nil {
		return nil, ErrNilReader
	}

	entries := make([]EntryInfo, 0, estimateEntryCapacity(h))
	reserved := h.Version.reservedRecordSize()
	var pathBuf []byte

	for i := uint32(0); i < h.FileCount; i++ {
		pathLen, err := readUint32LE(r)
		if err != nil {
			return nil, parseError(fmt.Sprintf("read entry %d path length", i), err)
		}
		if pathLen > MaxPathLen || pathLen > h.IndexSize {
			return nil, fmt.Errorf("%w: entry %d path length %d", ErrInvalidFormat, i, pathLen)
		}

		if cap(pathBuf) < int(pathLen) {
			pathBuf = make([]byte, pathLen)
		}
		pathBuf = pathBuf[:pathLen]
		if _, err := io.ReadFull(r, pathBuf); err != nil {
			return nil, parseError(fmt.Sprintf("read entry %d path", i), err)
		}
		if !utf8.Valid(pathBuf) {
			return nil, fmt.Errorf("%w: entry %d path %q", ErrInvalidEncoding, i, pathBuf)
		}

		if _, err := io.CopyN(io.Discard, r, reserved); err != nil {
			return nil, parseError(fmt.Sprintf("read entry %d reserved", i), err)
		}

		offset, err := readUint32LE(r)
		if err != nil {
			return nil, parseError(fmt.Sprintf("read entry %d offset", i), err)
		}

		size, err := readUint32LE(r)
		if err != nil {
			return nil, parseError(fmt.Sprintf("read entry %d size", i), err)
		}

		entries = append(entries, EntryInfo{
			Path:   FromWirePath(string(pathBuf)),
			Offset: offset,
			Size:   size,
		})
	}

	return entries, nil
}

// estimateEntryCapacity bounds initial entry capacity by what the index can hold.
func estimateEntryCapacity(h Header) int {
	const minRecord = recordFixedSize

	limit := uint64(h.IndexSize)/minRecord + 1
	if uint64(h.FileCount) < limit {
		return int(h.FileCount)
	}

	return int(limit)
}

// parseError maps truncation to ErrInvalidFormat and other failures to ErrIO.
func parseError(op string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %s: truncated", ErrInvalidFormat, op)
	}

	return ioError(op, err)
}
