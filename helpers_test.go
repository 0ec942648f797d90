// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pfs

package pfs

import (
	"bytes"
	"context"
	"crypto/sha1" //nolint:gosec // fixtures mirror the v8 key derivation
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"
)

// testFile is one named payload for pack fixtures.
type testFile struct {
	path string
	data []byte
}

// rawEntry is one index record of a hand-built archive.
type rawEntry struct {
	// path is stored as is, separators included.
	path string
	data []byte
	// noPayload writes offset zero and size zero.
	noPayload bool
}

// bytesInput returns an Input backed by an in-memory payload.
func bytesInput(path string, data []byte) Input {
	return Input{
		Path: path,
		Size: int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// filesToInputs converts fixture files to pack inputs.
func filesToInputs(files []testFile) []Input {
	inputs := make([]Input, 0, len(files))
	for _, f := range files {
		inputs = append(inputs, bytesInput(f.path, f.data))
	}

	return inputs
}

// packBytes packs files in memory and returns archive bytes and result.
func packBytes(t testing.TB, version Version, files []testFile) ([]byte, *PackResult) {
	t.Helper()

	var buf bytes.Buffer
	res, err := Pack(context.Background(), &buf, filesToInputs(files), PackOptions{Version: version})
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}

	return buf.Bytes(), res
}

// writeTestArchive writes archive bytes to a temp file and returns its path.
func writeTestArchive(t testing.TB, data []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.pfs")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write archive: %v", err)
	}

	return path
}

// openBytes parses an in-memory archive.
func openBytes(t testing.TB, data []byte) *Reader {
	t.Helper()

	r, err := NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}

	return r
}

// twoFiles is the small fixture with hand-computed layout values.
func twoFiles() []testFile {
	return []testFile{
		{path: "a.txt", data: []byte("0123456789")},
		{path: "b.txt", data: []byte("abcdefghijklmnopqrst")},
	}
}

// buildRawArchive assembles an archive byte by byte, independent of the writer.
// Payloads of version "8" are XORed with the SHA1 of the index region.
func buildRawArchive(t testing.TB, version byte, entries []rawEntry) []byte {
	t.Helper()

	le := binary.LittleEndian
	reserved := 4
	if version == '2' {
		reserved = 12
	}

	var index bytes.Buffer
	if version == '2' {
		index.Write(make([]byte, 4))
	}
	_ = binary.Write(&index, le, uint32(len(entries)))

	type fixup struct{ at, size int }
	fixups := make([]fixup, 0, len(entries))
	for _, e := range entries {
		_ = binary.Write(&index, le, uint32(len(e.path)))
		index.WriteString(e.path)
		index.Write(make([]byte, reserved))
		fixups = append(fixups, fixup{at: index.Len(), size: len(e.data)})
		index.Write(make([]byte, 8))
	}

	tablePos := index.Len()
	_ = binary.Write(&index, le, uint32(len(entries)+1))
	index.Write(make([]byte, len(entries)*8+8))
	_ = binary.Write(&index, le, uint32(tablePos))

	raw := index.Bytes()
	for i := range entries {
		le.PutUint32(raw[tablePos+4+i*8:], uint32(fixups[i].at-reserved))
	}

	dataStart := 7 + len(raw)
	offset := dataStart
	for i, e := range entries {
		if e.noPayload {
			continue
		}

		le.PutUint32(raw[fixups[i].at:], uint32(offset))
		le.PutUint32(raw[fixups[i].at+4:], uint32(fixups[i].size))
		offset += fixups[i].size
	}

	out := make([]byte, 0, offset)
	out = append(out, 'p', 'f', version)
	out = le.AppendUint32(out, uint32(len(raw)))
	out = append(out, raw...)

	var key []byte
	if version == '8' {
		sum := sha1.Sum(out[7:]) //nolint:gosec // fixtures mirror the v8 key derivation
		key = sum[:]
	}

	for _, e := range entries {
		if e.noPayload {
			continue
		}

		payload := bytes.Clone(e.data)
		for i := range payload {
			if key != nil {
				payload[i] ^= key[i%len(key)]
			}
		}
		out = append(out, payload...)
	}

	return out
}
