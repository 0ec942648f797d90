// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pfs

package pfs

import (
	"encoding/binary"
	"hash"
	"io"
)

// putUint32LE encodes v into the first 4 bytes of b.
func putUint32LE(b []byte, v uint32) {
	binary.LittleEndian.PutUint32(b, v)
}

// decodeUint32LE decodes the first 4 bytes of b.
func decodeUint32LE(b []byte) uint32 {
	return binary.LittleEndian.Uint32(b)
}

// readUint32LE reads exactly one little-endian uint32 from r.
func readUint32LE(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}

	return decodeUint32LE(buf[:]), nil
}

// XORCrypt XORs data in place with key repeated from position zero.
// An empty key leaves data unchanged. Applying it twice restores data.
func XORCrypt(data []byte, key []byte) {
	xorAt(data, key, 0)
}

// xorAt XORs data in place as if it started at position pos of the key stream.
// It returns the key position after data.
func xorAt(data []byte, key []byte, pos int) int {
	if len(key) == 0 {
		return pos
	}

	for i := range data {
		data[i] ^= key[pos]
		pos++
		if pos == len(key) {
			pos = 0
		}
	}

	return pos
}

// xorWriter ciphers a payload stream chunk by chunk before passing it on.
type xorWriter struct {
	w   io.Writer
	key []byte
	buf []byte
	pos int
}

// newXORWriter returns a cipher writer using buf as scratch space.
func newXORWriter(w io.Writer, key []byte, buf []byte) *xorWriter {
	return &xorWriter{w: w, key: key, buf: buf}
}

// Write ciphers p into the scratch buffer and writes it; p is not modified.
func (x *xorWriter) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		n := copy(x.buf, p)
		chunk := x.buf[:n]
		x.pos = xorAt(chunk, x.key, x.pos)

		nw, err := x.w.Write(chunk)
		written += nw
		if err != nil {
			return written, err
		}
		if nw != n {
			return written, io.ErrShortWrite
		}

		p = p[n:]
	}

	return written, nil
}

// reset restarts the key stream for the next payload.
func (x *xorWriter) reset() {
	x.pos = 0
}

// xorReader deciphers a payload stream as it is read.
type xorReader struct {
	r   io.Reader
	key []byte
	pos int
}

// Read reads from the source and XORs the bytes in place.
func (x *xorReader) Read(p []byte) (int, error) {
	n, err := x.r.Read(p)
	if n > 0 {
		x.pos = xorAt(p[:n], x.key, x.pos)
	}

	return n, err
}

// hashingWriter feeds every written byte to a running digest.
type hashingWriter struct {
	w io.Writer
	h hash.Hash
}

// Write writes p to the destination and then to the digest.
func (hw *hashingWriter) Write(p []byte) (int, error) {
	n, err := hw.w.Write(p)
	if n > 0 {
		_, _ = hw.h.Write(p[:n])
	}

	return n, err
}
