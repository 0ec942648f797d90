// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pfs

package pfs

import "strings"

// filterPayloadEntries drops sentinel entries that have no payload (offset zero).
func filterPayloadEntries(entries []EntryInfo) []EntryInfo {
	out := make([]EntryInfo, 0, len(entries))
	for _, entry := range entries {
		if !entry.HasPayload() {
			continue
		}

		out = append(out, entry)
	}

	return out
}

// filterEntriesByPrefix keeps entries under prefix (or exact match if it points to a file).
func filterEntriesByPrefix(entries []EntryInfo, prefix string) []EntryInfo {
	prefix = normalizeUserPath(prefix)
	if prefix == "" {
		return entries
	}

	normalizedPrefix := prefix + "/"
	out := make([]EntryInfo, 0, len(entries))
	for _, entry := range entries {
		entryPath := NormalizePath(entry.Path)
		if entryPath == prefix || strings.HasPrefix(entryPath, normalizedPrefix) {
			out = append(out, entry)
		}
	}

	return out
}

// filterEntriesByMatcher keeps entries selected by compiled path rules.
func filterEntriesByMatcher(entries []EntryInfo, matcher *pathMatcher) []EntryInfo {
	if matcher == nil {
		return entries
	}

	out := make([]EntryInfo, 0, len(entries))
	for _, entry := range entries {
		if matcher.Match(entry.Path, false) {
			out = append(out, entry)
		}
	}

	return out
}

// selectExtractEntries applies sentinel, prefix and rule filters in that order.
func selectExtractEntries(entries []EntryInfo, opts ExtractOptions) ([]EntryInfo, error) {
	matcher, err := newPathMatcher(opts.Rules, opts.MatcherOptions)
	if err != nil {
		return nil, err
	}

	selected := filterPayloadEntries(entries)
	selected = filterEntriesByPrefix(selected, opts.EntryPathPrefix)
	return filterEntriesByMatcher(selected, matcher), nil
}
