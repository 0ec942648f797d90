// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pfs

package pfs

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/woozymasta/pathrules"
)

// Internal binary layout and format limits.
const (
	headerSize       = 11 // magic(2) + version(1) + index size(4) + file count(4)
	legacyHeaderSize = 15 // version "2" inserts one reserved word before file count
	indexStart       = 7  // index region starts at the header file count word
	keySize          = 20 // SHA1 digest size used as XOR key
	recordFixedSize  = 16 // path length + reserved + offset + size
	tableFixedSize   = 16 // file count + 1, two reserved words, table pos
	tableEntrySize   = 8  // index pos + reserved
)

// MaxPathLen bounds entry path length in bytes, for both reader and writer.
const MaxPathLen = 4096

// Default packer tuning values.
const (
	DefaultWriteBuffer = 1024 * 1024
	minWriteBuffer     = 4096
)

// Magic is the 2-byte PFS archive tag ("pf").
var Magic = [2]byte{0x70, 0x66}

// Version is the PFS pack version stored as one ASCII digit.
type Version byte

// Known pack versions.
const (
	// VersionLegacy is the old layout with wider reserved fields. Read-only.
	VersionLegacy Version = '2'
	// Version6 stores payloads as plain bytes.
	Version6 Version = '6'
	// Version8 XOR-obfuscates payloads with the SHA1 of the index region.
	Version8 Version = '8'
)

// ParseVersion parses a version from its digit form ("6", "8" or "2").
func ParseVersion(raw string) (Version, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) != 1 {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedVersion, raw)
	}

	v := Version(raw[0])
	switch v {
	case VersionLegacy, Version6, Version8:
		return v, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedVersion, raw)
	}
}

// String returns the digit form of the version.
func (v Version) String() string {
	if v >= 0x20 && v < 0x7f {
		return string(rune(v))
	}

	return fmt.Sprintf("0x%02x", byte(v))
}

// Encrypted reports whether payloads of this version are XOR-obfuscated.
func (v Version) Encrypted() bool {
	return v == Version8
}

// Writable reports whether the writer has a layout for this version.
func (v Version) Writable() bool {
	return v == Version6 || v == Version8
}

// reservedRecordSize returns the width of the reserved field in one index record.
func (v Version) reservedRecordSize() int64 {
	if v == VersionLegacy {
		return 12
	}

	return 4
}

// Header is the parsed PFS archive header.
type Header struct {
	// Magic is the archive tag, always "pf" for parsed headers.
	Magic [2]byte `json:"-" yaml:"-"`
	// Version is the pack version digit.
	Version Version `json:"version" yaml:"version"`
	// IndexSize is the index region length in bytes, counted from offset 7.
	IndexSize uint32 `json:"index_size" yaml:"index_size"`
	// FileCount is the number of index records.
	FileCount uint32 `json:"file_count" yaml:"file_count"`
}

// Size returns the on-disk header length for the header version.
func (h Header) Size() int64 {
	if h.Version == VersionLegacy {
		return legacyHeaderSize
	}

	return headerSize
}

// DataStart returns the absolute offset of the first payload byte.
func (h Header) DataStart() int64 {
	return indexStart + int64(h.IndexSize)
}

// EntryInfo describes a single PFS index entry.
type EntryInfo struct {
	// Path is the slash-separated entry path.
	Path string `json:"path" yaml:"path"`
	// Offset is the absolute payload offset; zero marks an entry without payload.
	Offset uint32 `json:"offset" yaml:"offset"`
	// Size is the payload size in bytes.
	Size uint32 `json:"size" yaml:"size"`
	// IndexPos is the offset table value of a written entry; zero for parsed entries.
	IndexPos uint32 `json:"index_pos,omitempty" yaml:"index_pos,omitempty"`
}

// HasPayload reports whether the entry points at payload bytes.
func (e *EntryInfo) HasPayload() bool {
	return e.Offset != 0
}

// Input describes one source stream to be packed into a PFS entry.
type Input struct {
	// Open returns raw source stream for this entry.
	Open func() (io.ReadCloser, error) `json:"-" yaml:"-"`
	// Path is destination path inside PFS.
	Path string `json:"path" yaml:"path"`
	// Size is the payload size in bytes; the stream must yield exactly this many bytes.
	Size int64 `json:"size" yaml:"size"`
}

// PackEntryProgress contains one completed entry write event from pack flow.
type PackEntryProgress struct {
	// Path is entry path written to archive.
	Path string `json:"path" yaml:"path"`
	// Offset is payload offset in resulting archive.
	Offset uint32 `json:"offset" yaml:"offset"`
	// Size is payload size in bytes.
	Size uint32 `json:"size" yaml:"size"`
}

// PackOptions configures pack behavior.
type PackOptions struct {
	// OnEntryDone is called after one entry is fully written to archive payload.
	OnEntryDone func(entry PackEntryProgress) `json:"-" yaml:"-"`
	// Version selects the layout; zero means Version6.
	Version Version `json:"version,omitempty" yaml:"version,omitempty"`
	// WriterBufferSize is buffered writer size in bytes.
	WriterBufferSize int `json:"writer_buffer_size,omitempty" yaml:"writer_buffer_size,omitempty"`
	// CaseSensitivePaths allows entry paths that differ only by letter case.
	// By default such paths are rejected since the engine resolves names case-insensitively.
	CaseSensitivePaths bool `json:"case_sensitive_paths,omitempty" yaml:"case_sensitive_paths,omitempty"`
}

// PackResult contains pack output statistics.
type PackResult struct {
	// Key is the XOR key used for payloads; nil for plain archives.
	Key []byte `json:"key,omitempty" yaml:"key,omitempty"`
	// Entries are written entries in archive order.
	Entries []EntryInfo `json:"entries,omitempty" yaml:"entries,omitempty"`
	// WrittenEntries is number of entries written to archive.
	WrittenEntries int `json:"written_entries" yaml:"written_entries"`
	// IndexSize is the index size stored in header.
	IndexSize uint32 `json:"index_size" yaml:"index_size"`
	// TablePos is the offset table position stored at index end.
	TablePos uint32 `json:"table_pos" yaml:"table_pos"`
	// DataSize is total payload bytes written.
	DataSize int64 `json:"data_size" yaml:"data_size"`
	// Duration is end-to-end pack core duration.
	Duration time.Duration `json:"duration,omitempty" yaml:"duration,omitempty"`
	// Version is the written pack version.
	Version Version `json:"version" yaml:"version"`
}

// WalkOptions configures directory enumeration for pack inputs.
type WalkOptions struct {
	// Rules select files by slash-separated relative path; empty means all files.
	// With an unset default action, include rules act as an allow-list.
	Rules []pathrules.Rule `json:"rules,omitempty" yaml:"rules,omitempty"`
	// MatcherOptions control rule matching.
	MatcherOptions pathrules.MatcherOptions `json:"matcher_options,omitzero" yaml:"matcher_options,omitzero"`
}

// ExtractOptions configures Extract behavior.
type ExtractOptions struct {
	// OnEntryDone is called after one entry is fully written to the sink.
	// It may be called concurrently from several workers.
	OnEntryDone func(entry EntryInfo, written int64) `json:"-" yaml:"-"`
	// FileMode controls output file creation policy for directory extraction.
	FileMode ExtractFileMode `json:"file_mode,omitempty" yaml:"file_mode,omitempty"`
	// EntryPathPrefix limits extraction to entries under this path.
	EntryPathPrefix string `json:"entry_path_prefix,omitempty" yaml:"entry_path_prefix,omitempty"`
	// Entries limits extraction to selected metadata list; nil means all parsed entries.
	Entries []EntryInfo `json:"-" yaml:"-"`
	// Rules select entries by path; empty means all entries.
	// With an unset default action, include rules act as an allow-list.
	Rules []pathrules.Rule `json:"rules,omitempty" yaml:"rules,omitempty"`
	// MatcherOptions control rule matching.
	MatcherOptions pathrules.MatcherOptions `json:"matcher_options,omitzero" yaml:"matcher_options,omitzero"`
	// MaxWorkers is number of extraction workers (zero means GOMAXPROCS).
	MaxWorkers int `json:"max_workers,omitempty" yaml:"max_workers,omitempty"`
}

// ExtractFileMode controls output file open behavior during extraction.
type ExtractFileMode string

// Output file creation policies for extraction.
const (
	// ExtractFileModeAuto first tries create-only, then falls back to truncate for existing files.
	ExtractFileModeAuto ExtractFileMode = "auto"
	// ExtractFileModeTruncate opens existing files with truncate and creates missing files.
	ExtractFileModeTruncate ExtractFileMode = "truncate"
	// ExtractFileModeCreateOnly creates files only when absent and fails on existing files.
	ExtractFileModeCreateOnly ExtractFileMode = "create_only"
)

// applyDefaults fills zero-valued pack options with defaults.
func (opts *PackOptions) applyDefaults() {
	if opts.Version == 0 {
		opts.Version = Version6
	}

	if opts.WriterBufferSize < minWriteBuffer {
		opts.WriterBufferSize = DefaultWriteBuffer
	}
}

// applyDefaults fills zero-valued walk options with defaults.
func (opts *WalkOptions) applyDefaults() {
	opts.MatcherOptions = defaultMatcherOptions(opts.Rules, opts.MatcherOptions)
}

// applyDefaults fills zero-valued extract options with defaults.
func (opts *ExtractOptions) applyDefaults() {
	if opts.FileMode == "" {
		opts.FileMode = ExtractFileModeAuto
	}

	opts.MatcherOptions = defaultMatcherOptions(opts.Rules, opts.MatcherOptions)
}
