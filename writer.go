// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pfs

package pfs

import (
	"bufio"
	"context"
	"crypto/sha1" //nolint:gosec // PFS v8 key derivation requires SHA1.
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var (
	// defaultPackWriterPool reuses default-sized bufio writers between Pack calls.
	defaultPackWriterPool = sync.Pool{
		New: func() any {
			return bufio.NewWriterSize(io.Discard, DefaultWriteBuffer)
		},
	}
	// defaultPackCopyBufferPool reuses payload copy buffers between Pack calls.
	defaultPackCopyBufferPool = sync.Pool{
		New: func() any {
			return new([packCopyBufferSize]byte)
		},
	}
)

const (
	// packCopyBufferSize is per-pack temporary buffer used by streaming payload copy.
	packCopyBufferSize = 64 * 1024
)

// Pack writes a PFS archive to out from the given inputs.
// Entries are written in input order. The whole index is computed before
// the first byte is written, so every Input.Size must be exact.
func Pack(ctx context.Context, out io.Writer, inputs []Input, opts PackOptions) (*PackResult, error) {
	startedAt := time.Now()

	if out == nil {
		return nil, ErrNilWriter
	}

	if ctx == nil {
		ctx = context.Background()
	}

	opts.applyDefaults()
	if !opts.Version.Writable() {
		return nil, fmt.Errorf("%w: cannot write version %s", ErrUnsupportedVersion, opts.Version)
	}

	prepared, err := preparePackInputs(inputs, opts.CaseSensitivePaths)
	if err != nil {
		return nil, err
	}

	layout, err := planIndex(prepared)
	if err != nil {
		return nil, err
	}

	w, releaseWriter := acquirePackWriter(out, opts.WriterBufferSize)
	defer releaseWriter()

	if err := writeHeaderPrefix(w, opts.Version, layout.indexSize); err != nil {
		return nil, ioError("write header", err)
	}

	var key []byte
	if opts.Version.Encrypted() {
		h := sha1.New() //nolint:gosec // PFS v8 key derivation requires SHA1.
		if err := writeIndexRegion(&hashingWriter{w: w, h: h}, layout); err != nil {
			return nil, ioError("write index", err)
		}

		key = h.Sum(nil)
	} else if err := writeIndexRegion(w, layout); err != nil {
		return nil, ioError("write index", err)
	}

	copyBuf, releaseCopyBuffer := acquirePackCopyBuffer()
	defer releaseCopyBuffer()

	var (
		dst    io.Writer = w
		cipher *xorWriter
	)
	if key != nil {
		cipherBuf, releaseCipherBuffer := acquirePackCopyBuffer()
		defer releaseCipherBuffer()

		cipher = newXORWriter(w, key, cipherBuf)
		dst = cipher
	}

	for i := range prepared {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if cipher != nil {
			cipher.reset()
		}

		if err := writeInputPayload(dst, prepared[i], copyBuf); err != nil {
			return nil, err
		}

		if opts.OnEntryDone != nil {
			e := layout.entries[i]
			opts.OnEntryDone(PackEntryProgress{
				Path:   e.Path,
				Offset: e.Offset,
				Size:   e.Size,
			})
		}
	}

	if err := w.Flush(); err != nil {
		return nil, ioError("flush payloads", err)
	}

	return &PackResult{
		Version:        opts.Version,
		Key:            key,
		Entries:        layout.entries,
		WrittenEntries: len(layout.entries),
		IndexSize:      layout.indexSize,
		TablePos:       layout.tablePos,
		DataSize:       layout.dataSize,
		Duration:       time.Since(startedAt),
	}, nil
}

// PackFile writes a PFS archive to outPath.
// The archive is written to a temporary file next to outPath and renamed
// into place on success; on failure outPath is left untouched.
func PackFile(ctx context.Context, outPath string, inputs []Input, opts PackOptions) (*PackResult, error) {
	opts.applyDefaults()
	if !opts.Version.Writable() {
		return nil, fmt.Errorf("%w: cannot write version %s", ErrUnsupportedVersion, opts.Version)
	}

	dir, base := filepath.Split(outPath)
	if dir == "" {
		dir = "."
	}

	f, err := os.CreateTemp(dir, "."+base+".*.tmp")
	if err != nil {
		return nil, ioError("create temp PFS file", err)
	}

	tmpPath := f.Name()
	committed := false
	defer func() {
		if f != nil {
			_ = f.Close()
		}
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	res, err := Pack(ctx, f, inputs, opts)
	if err != nil {
		return nil, err
	}

	if err := f.Sync(); err != nil {
		return nil, ioError("sync PFS file", err)
	}

	if err := f.Close(); err != nil {
		return nil, ioError("close PFS file", err)
	}
	f = nil

	if err := os.Rename(tmpPath, outPath); err != nil {
		return nil, ioError("rename PFS file", err)
	}
	committed = true

	return res, nil
}

// acquirePackWriter returns a buffered writer and release callback for Pack.
func acquirePackWriter(out io.Writer, size int) (*bufio.Writer, func()) {
	if size == DefaultWriteBuffer {
		w := defaultPackWriterPool.Get().(*bufio.Writer) //nolint:forcetypeassert // pool contains only *bufio.Writer
		w.Reset(out)

		return w, func() {
			w.Reset(io.Discard)
			defaultPackWriterPool.Put(w)
		}
	}

	return bufio.NewWriterSize(out, size), func() {}
}

// acquirePackCopyBuffer returns reusable payload copy buffer and release callback.
func acquirePackCopyBuffer() ([]byte, func()) {
	arr := defaultPackCopyBufferPool.Get().(*[packCopyBufferSize]byte) //nolint:forcetypeassert // pool contains only fixed-size buffers
	buf := arr[:]

	return buf, func() {
		defaultPackCopyBufferPool.Put(arr)
	}
}

// preparePackInputs normalizes input paths and validates them, keeping input order.
func preparePackInputs(inputs []Input, caseSensitive bool) ([]Input, error) {
	prepared := make([]Input, len(inputs))
	copy(prepared, inputs)

	for i := range prepared {
		normalizedPath, err := normalizeInputPath(prepared[i].Path)
		if err != nil {
			return nil, err
		}

		prepared[i].Path = normalizedPath
	}

	if err := validateUniqueEntryPaths(prepared, caseSensitive); err != nil {
		return nil, err
	}

	return prepared, nil
}

// openInputReader opens source stream for one input.
func openInputReader(in Input) (io.ReadCloser, error) {
	if in.Open == nil {
		return nil, fmt.Errorf("input %s: Open is nil", in.Path)
	}

	rc, err := in.Open()
	if err != nil {
		return nil, ioError("open input "+in.Path, err)
	}

	return rc, nil
}

// writeInputPayload streams exactly in.Size bytes of one input into dst.
func writeInputPayload(dst io.Writer, in Input, copyBuf []byte) error {
	rc, err := openInputReader(in)
	if err != nil {
		return err
	}

	written, copyErr := copyPayloadBounded(dst, rc, in.Size, copyBuf)
	closeErr := rc.Close()

	if copyErr != nil {
		if errors.Is(copyErr, ErrSizeMismatch) {
			return fmt.Errorf("%w: entry %s is longer than %d bytes", ErrSizeMismatch, in.Path, in.Size)
		}

		return ioError("stream input "+in.Path, copyErr)
	}
	if written != in.Size {
		return fmt.Errorf("%w: entry %s has %d bytes, want %d", ErrSizeMismatch, in.Path, written, in.Size)
	}
	if closeErr != nil {
		return ioError("close input "+in.Path, closeErr)
	}

	return nil
}

// copyPayloadBounded streams payload from src to dst and enforces strict size limit.
// Sources shorter or longer than the declared size fail here, so the planned
// offsets always match the bytes written.
func copyPayloadBounded(dst io.Writer, src io.Reader, limit int64, buf []byte) (int64, error) {
	if dst == nil {
		return 0, ErrNilWriter
	}
	if src == nil {
		return 0, ErrNilReader
	}
	if limit < 0 {
		return 0, ErrSizeOverflow
	}
	if len(buf) == 0 {
		buf = make([]byte, 32*1024)
	}

	var written int64
	emptyReads := 0
	for written < limit {
		chunkSize := len(buf)
		remaining := limit - written
		if int64(chunkSize) > remaining {
			chunkSize = int(remaining)
		}

		n, readErr := src.Read(buf[:chunkSize])
		if n > 0 {
			emptyReads = 0
			nw, writeErr := dst.Write(buf[:n])
			written += int64(nw)

			if writeErr != nil {
				return written, writeErr
			}
			if nw != n {
				return written, io.ErrShortWrite
			}
		}
		if n == 0 && readErr == nil {
			emptyReads++
			if emptyReads > 100 {
				return written, io.ErrNoProgress
			}

			continue
		}

		if readErr != nil {
			if readErr == io.EOF {
				break
			}

			return written, readErr
		}
	}

	// If we consumed exactly the limit, probe one extra byte to ensure source is not longer.
	if written == limit {
		var probe [1]byte
		n, err := src.Read(probe[:])
		if n > 0 {
			return written, ErrSizeMismatch
		}
		if err != nil && err != io.EOF {
			return written, err
		}
	}

	return written, nil
}

// validateUniqueEntryPaths ensures there are no duplicate logical entry paths.
func validateUniqueEntryPaths(inputs []Input, caseSensitive bool) error {
	seen := make(map[string]string, len(inputs))
	for _, in := range inputs {
		key := entryPathKey(in.Path, caseSensitive)
		if existing, ok := seen[key]; ok {
			return fmt.Errorf("%w: %q conflicts with %q", ErrDuplicateEntryPath, in.Path, existing)
		}

		seen[key] = in.Path
	}

	return nil
}
