// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pfs

package pfs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// sinkCopyBufferSize defines per-write buffer size for file copy during extraction.
const sinkCopyBufferSize = 64 * 1024

var (
	// sinkCopyBufferPool reuses copy buffers between concurrent sink writes.
	sinkCopyBufferPool = sync.Pool{
		New: func() any {
			return new([sinkCopyBufferSize]byte)
		},
	}
)

// Sink receives extracted entries. WriteEntry may be called concurrently
// from several workers for different paths.
type Sink interface {
	// WriteEntry consumes size bytes of plaintext for the slash-separated path.
	WriteEntry(path string, r io.Reader, size int64) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(path string, r io.Reader, size int64) error

// WriteEntry calls f.
func (f SinkFunc) WriteEntry(path string, r io.Reader, size int64) error {
	return f(path, r, size)
}

// DirSink writes entries as files under a root directory.
type DirSink struct {
	root string
	mode ExtractFileMode
}

// NewDirSink creates the root directory if needed and returns a sink writing into it.
func NewDirSink(root string, mode ExtractFileMode) (*DirSink, error) {
	if mode == "" {
		mode = ExtractFileModeAuto
	}

	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return nil, ioError("resolve output dir", err)
	}

	if err := os.MkdirAll(rootAbs, 0o750); err != nil {
		return nil, ioError("create output dir", err)
	}

	return &DirSink{root: rootAbs, mode: mode}, nil
}

// Root returns the absolute output directory.
func (s *DirSink) Root() string {
	return s.root
}

// WriteEntry writes one entry file, creating parent directories as needed.
// A partially written file is removed when the copy fails.
func (s *DirSink) WriteEntry(entryPath string, r io.Reader, size int64) error {
	normalizedPath, err := normalizeExtractEntryPath(entryPath)
	if err != nil {
		return fmt.Errorf("%w: %q", err, entryPath)
	}

	outPath := filepath.Join(s.root, filepath.FromSlash(normalizedPath))
	if dir := filepath.Dir(outPath); dir != s.root {
		// MkdirAll treats existing directories as success, so racing workers are fine.
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return ioError("create output directory "+dir, err)
		}
	}

	file, err := openExtractFile(outPath, s.mode)
	if err != nil {
		return ioError("open "+outPath, err)
	}

	arr := sinkCopyBufferPool.Get().(*[sinkCopyBufferSize]byte) //nolint:forcetypeassert // pool contains only fixed-size buffers
	written, copyErr := io.CopyBuffer(file, io.LimitReader(r, size), arr[:])
	sinkCopyBufferPool.Put(arr)

	if copyErr == nil && written != size {
		copyErr = io.ErrUnexpectedEOF
	}

	closeErr := file.Close()
	if copyErr != nil {
		_ = os.Remove(outPath)
		return ioError("write "+outPath, copyErr)
	}
	if closeErr != nil {
		return ioError("close "+outPath, closeErr)
	}

	return nil
}

// openExtractFile opens output path according to selected extract file mode.
func openExtractFile(path string, mode ExtractFileMode) (*os.File, error) {
	switch mode {
	case ExtractFileModeAuto:
		file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if err == nil {
			return file, nil
		}

		if !errors.Is(err, os.ErrExist) {
			return nil, err
		}

		return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	case ExtractFileModeTruncate:
		return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	case ExtractFileModeCreateOnly:
		return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	default:
		return nil, fmt.Errorf("unknown extract file mode %q", mode)
	}
}

// normalizeExtractEntryPath normalizes entry path and rejects absolute/traversal inputs.
func normalizeExtractEntryPath(entryPath string) (string, error) {
	raw := entryPath
	if raw == "" {
		return "", ErrInvalidExtractPath
	}
	if strings.ContainsRune(raw, 0) {
		return "", ErrInvalidExtractPath
	}

	raw = FromWirePath(raw)
	if strings.HasPrefix(raw, "/") || hasWindowsDrivePrefix(raw) {
		return "", ErrInvalidExtractPath
	}

	parts := strings.Split(raw, "/")
	cleanParts := make([]string, 0, len(parts))
	for _, part := range parts {
		switch part {
		case "", ".":
			continue
		case "..":
			return "", ErrInvalidExtractPath
		default:
			cleanParts = append(cleanParts, part)
		}
	}
	if len(cleanParts) == 0 {
		return "", ErrInvalidExtractPath
	}

	return strings.Join(cleanParts, "/"), nil
}

// hasWindowsDrivePrefix reports whether path starts with a drive prefix like C:.
func hasWindowsDrivePrefix(path string) bool {
	if len(path) < 2 {
		return false
	}

	return isASCIIAlpha(path[0]) && path[1] == ':'
}

// isASCIIAlpha reports whether byte is ASCII latin letter.
func isASCIIAlpha(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
