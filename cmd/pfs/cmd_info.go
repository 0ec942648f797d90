// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pfs

package main

import (
	"encoding/hex"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/woozymasta/pfs"
	"github.com/zeebo/blake3"
)

// InfoCmd prints archive header and optionally the entry table.
type InfoCmd struct {
	Path      string `arg:"" help:"Path to the PFS archive." type:"existingfile"`
	Verbose   bool   `short:"v" help:"List every entry with offset and size."`
	Checksums bool   `help:"Print BLAKE3 digest of every decoded entry (implies --verbose)."`
}

// Run executes the info command.
func (c *InfoCmd) Run(rt *env) error {
	if !c.Verbose && !c.Checksums {
		h, err := pfs.ReadHeaderFile(c.Path)
		if err != nil {
			return err
		}

		printHeader(rt.out, h)
		return nil
	}

	r, err := pfs.Open(c.Path)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	printHeader(rt.out, r.Header())
	rt.out.Printf("archive_size: %s\n", humanize.IBytes(uint64(r.Size()))) //nolint:gosec // file size is non-negative
	if key := r.Key(); key != nil {
		rt.out.Printf("xor_key: %s\n", hex.EncodeToString(key))
	}

	var total uint64
	for _, e := range r.Entries() {
		total += uint64(e.Size)
		if !c.Checksums || !e.HasPayload() {
			rt.out.Printf("%10d %10s  %s\n", e.Offset, humanize.IBytes(uint64(e.Size)), e.Path)
			continue
		}

		sum, err := entryChecksum(r, e)
		if err != nil {
			return err
		}
		rt.out.Printf("%10d %10s  %s  %s\n", e.Offset, humanize.IBytes(uint64(e.Size)), sum, e.Path)
	}

	rt.log.Debug("listed entries", "path", c.Path, "entries", len(r.Entries()), "payload_bytes", total)
	rt.out.Printf("total: %s in %s entries\n", humanize.IBytes(total), humanize.Comma(int64(len(r.Entries()))))

	return nil
}

// printHeader writes header fields one per line.
func printHeader(out *console, h pfs.Header) {
	out.Printf("magic: %s\n", h.Magic[:])
	out.Printf("pack_version: %s\n", h.Version)
	out.Printf("index_size: %d\n", h.IndexSize)
	out.Printf("file_count: %d\n", h.FileCount)
}

// entryChecksum streams one decoded entry through BLAKE3.
func entryChecksum(r *pfs.Reader, e pfs.EntryInfo) (string, error) {
	rc, err := r.OpenEntryInfo(e)
	if err != nil {
		return "", err
	}
	defer func() { _ = rc.Close() }()

	h := blake3.New()
	if _, err := io.Copy(h, rc); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
