// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pfs

package pfs

import (
	"fmt"
	"path"
	"strings"
	"unicode/utf8"
)

// NormalizePath converts an archive/internal path to normalized slash-separated form.
// It accepts both "/" and "\", removes leading "./" and "/", and cleans "." segments.
// Whitespace is part of the name and is kept.
func NormalizePath(raw string) string {
	raw = FromWirePath(raw)
	raw = strings.TrimPrefix(raw, "./")
	raw = strings.TrimPrefix(raw, "/")
	raw = path.Clean("/" + raw)
	raw = strings.TrimPrefix(raw, "/")
	if raw == "." {
		return ""
	}

	return strings.TrimSuffix(raw, "/")
}

// ToWirePath converts a slash-separated path to the backslash form stored in archives.
func ToWirePath(p string) string {
	return strings.ReplaceAll(p, "/", `\`)
}

// FromWirePath converts an archive backslash path to slash-separated form.
func FromWirePath(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}

// normalizePathForMatching normalizes user-typed rule patterns for matcher use.
func normalizePathForMatching(p string) string {
	p = strings.TrimSpace(p)
	p = FromWirePath(p)
	p = strings.TrimPrefix(p, "./")
	return p
}

// normalizeUserPath normalizes a user-typed archive path such as a prefix filter.
func normalizeUserPath(raw string) string {
	return NormalizePath(strings.TrimSpace(raw))
}

// normalizeInputPath validates an input path and returns its canonical slash form.
func normalizeInputPath(raw string) (string, error) {
	if !utf8.ValidString(raw) {
		return "", fmt.Errorf("%w: %q", ErrInvalidEncoding, raw)
	}

	normalized := NormalizePath(raw)
	if normalized == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidEntryPath, raw)
	}
	if len(normalized) > MaxPathLen {
		return "", fmt.Errorf("%w: path length %d exceeds %d", ErrInvalidEntryPath, len(normalized), MaxPathLen)
	}

	return normalized, nil
}

// entryPathKey returns the lookup key used for duplicate and edit matching.
func entryPathKey(p string, caseSensitive bool) string {
	if caseSensitive {
		return p
	}

	return strings.ToLower(p)
}
