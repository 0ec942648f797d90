// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pfs

package pfs

import (
	"fmt"
	"io"
	"math"
)

// maxPFSData is the addressable archive size with 32-bit offsets.
const maxPFSData = 1 << 32

// indexLayout is the fully computed index of one archive before emission.
type indexLayout struct {
	// entries hold final offsets, sizes and offset table values in archive order.
	entries []EntryInfo
	// indexSize is the value stored in header.
	indexSize uint32
	// tablePos is the offset table start relative to index region.
	tablePos uint32
	// dataSize is the total payload length.
	dataSize int64
}

// planIndex computes index size, offset table values and payload offsets.
// Inputs must already carry normalized slash paths.
func planIndex(inputs []Input) (*indexLayout, error) {
	entries := make([]EntryInfo, len(inputs))

	// leading word is the header file count, which belongs to the index region
	indexSize := uint64(4)
	for i := range inputs {
		indexSize += 4 + uint64(len(inputs[i].Path))
		if indexSize > math.MaxUint32 {
			return nil, fmt.Errorf("%w: index too large at %s", ErrSizeOverflow, inputs[i].Path)
		}

		entries[i].Path = inputs[i].Path
		entries[i].IndexPos = uint32(indexSize)
		indexSize += recordFixedSize - 4
	}

	tablePos := indexSize
	indexSize += uint64(len(inputs))*tableEntrySize + tableFixedSize
	if indexSize > math.MaxUint32 || tablePos > math.MaxUint32 {
		return nil, fmt.Errorf("%w: index size %d", ErrSizeOverflow, indexSize)
	}

	dataStart := uint64(indexStart) + indexSize
	current := dataStart
	for i := range inputs {
		size := inputs[i].Size
		if size < 0 || size > math.MaxUint32 {
			return nil, fmt.Errorf("%w: entry %s size %d is out of uint32 range", ErrSizeOverflow, inputs[i].Path, size)
		}
		if current > math.MaxUint32 || current+uint64(size) > maxPFSData {
			return nil, fmt.Errorf("%w: entry %s would exceed 4 GiB", ErrSizeOverflow, inputs[i].Path)
		}

		entries[i].Offset = uint32(current)
		entries[i].Size = uint32(size)
		current += uint64(size)
	}

	return &indexLayout{
		entries:   entries,
		indexSize: uint32(indexSize),
		tablePos:  uint32(tablePos),
		dataSize:  int64(current - dataStart),
	}, nil
}

// fieldWriter writes little-endian index fields and keeps the first error.
type fieldWriter struct {
	w   io.Writer
	err error
	buf [8]byte
}

// u32 writes one little-endian word.
func (fw *fieldWriter) u32(v uint32) {
	if fw.err != nil {
		return
	}

	putUint32LE(fw.buf[:4], v)
	_, fw.err = fw.w.Write(fw.buf[:4])
}

// zeros writes n reserved zero bytes, n <= 8.
func (fw *fieldWriter) zeros(n int) {
	if fw.err != nil {
		return
	}

	clear(fw.buf[:n])
	_, fw.err = fw.w.Write(fw.buf[:n])
}

// str writes raw string bytes.
func (fw *fieldWriter) str(s string) {
	if fw.err != nil {
		return
	}

	_, fw.err = io.WriteString(fw.w, s)
}

// writeIndexRegion emits the index region: file count, records and offset table.
// These are exactly the bytes covered by IndexSize and hashed for the v8 key.
func writeIndexRegion(w io.Writer, layout *indexLayout) error {
	fw := &fieldWriter{w: w}
	count := uint32(len(layout.entries)) //nolint:gosec // bounded by planIndex

	fw.u32(count)
	for i := range layout.entries {
		e := &layout.entries[i]
		fw.u32(uint32(len(e.Path))) //nolint:gosec // bounded by planIndex
		fw.str(ToWirePath(e.Path))
		fw.zeros(4)
		fw.u32(e.Offset)
		fw.u32(e.Size)
	}

	fw.u32(count + 1)
	for i := range layout.entries {
		fw.u32(layout.entries[i].IndexPos)
		fw.zeros(4)
	}

	fw.zeros(8)
	fw.u32(layout.tablePos)

	return fw.err
}

// writeHeaderPrefix emits magic, version digit and index size.
func writeHeaderPrefix(w io.Writer, version Version, indexSize uint32) error {
	var prefix [indexStart]byte
	copy(prefix[0:2], Magic[:])
	prefix[2] = byte(version)
	putUint32LE(prefix[3:7], indexSize)

	_, err := w.Write(prefix[:])
	return err
}
