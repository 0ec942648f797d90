// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pfs

package pfs

import (
	"crypto/sha1" //nolint:gosec // PFS v8 key derivation requires SHA1.
	"fmt"
	"io"
)

// DeriveKey returns the payload XOR key of a v8 archive: the SHA1 digest of
// h.IndexSize bytes starting right after the index size field.
// It returns nil for versions with plain payloads.
//
// The format carries no checksum, so a damaged index yields a wrong key and
// garbage payloads rather than an error.
func DeriveKey(ra io.ReaderAt, h Header) ([]byte, error) {
	if !h.Version.Encrypted() {
		return nil, nil
	}
	if ra == nil {
		return nil, ErrNilReader
	}

	return hashRegionSHA1(ra, indexStart, int64(h.IndexSize))
}

// hashRegionSHA1 calculates SHA1 over exactly n bytes at offset off.
func hashRegionSHA1(ra io.ReaderAt, off int64, n int64) ([]byte, error) {
	h := sha1.New() //nolint:gosec // PFS v8 key derivation requires SHA1.
	copied, err := io.Copy(h, io.NewSectionReader(ra, off, n))
	if err != nil {
		return nil, ioError("hash index", err)
	}
	if copied != n {
		return nil, ioError(fmt.Sprintf("hash index: got %d of %d bytes", copied, n), io.ErrUnexpectedEOF)
	}

	return h.Sum(nil), nil
}
