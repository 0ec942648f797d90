// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pfs

package main

import (
	"errors"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/woozymasta/pfs"
)

// UnpackCmd extracts archive entries to a directory.
type UnpackCmd struct {
	Path      string   `arg:"" help:"Path to the PFS archive." type:"existingfile"`
	OutputDir string   `arg:"" optional:"" help:"Output directory (default: archive path without extension)." type:"path"`
	Workers   int      `short:"j" default:"0" env:"PFS_WORKERS" help:"Parallel extraction workers (0 uses all CPUs)."`
	Include   []string `short:"i" help:"Only extract entries matching these patterns."`
	Exclude   []string `short:"x" help:"Skip entries matching these patterns."`
	Prefix    string   `help:"Only extract entries under this archive directory."`
	FileMode  string   `name:"file-mode" default:"auto" enum:"auto,truncate,create_only" help:"Existing file policy (${enum})."`
}

// Run executes the unpack command.
func (c *UnpackCmd) Run(rt *env) error {
	outDir := c.OutputDir
	if outDir == "" {
		outDir = defaultOutputDir(c.Path)
	}

	r, err := pfs.Open(c.Path)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	rt.log.Info("unpacking",
		"archive", c.Path,
		"output", outDir,
		"version", r.Version().String(),
		"entries", len(r.Entries()),
	)

	var (
		done    atomic.Int64
		written atomic.Int64
	)
	started := time.Now()

	err = r.Extract(rt.ctx, outDir, pfs.ExtractOptions{
		MaxWorkers:      c.Workers,
		FileMode:        pfs.ExtractFileMode(c.FileMode),
		EntryPathPrefix: c.Prefix,
		// excludes come last so they win over includes
		Rules: append(pfs.IncludeRules(c.Include...), pfs.ExcludeRules(c.Exclude...)...),
		OnEntryDone: func(entry pfs.EntryInfo, n int64) {
			done.Add(1)
			written.Add(n)
			rt.out.Printf("processing: %s\n", filepath.Join(outDir, filepath.FromSlash(entry.Path)))
		},
	})

	var extractErr *pfs.ExtractError
	if errors.As(err, &extractErr) {
		for _, f := range extractErr.Failures {
			rt.log.Error("entry failed", "path", f.Path, "error", f.Err)
		}
	}
	if err != nil {
		return err
	}

	rt.log.Info("unpacked",
		"entries", done.Load(),
		"size", humanize.IBytes(uint64(written.Load())), //nolint:gosec // byte counts are non-negative
		"duration", time.Since(started).Round(time.Millisecond),
	)

	return nil
}

// defaultOutputDir derives the output directory from the archive path by
// dropping its extension. Paths without an extension get a "_unpacked" suffix.
func defaultOutputDir(archivePath string) string {
	ext := filepath.Ext(archivePath)
	if ext == "" || ext == archivePath || strings.HasSuffix(archivePath, string(filepath.Separator)+ext) {
		return archivePath + "_unpacked"
	}

	return strings.TrimSuffix(archivePath, ext)
}
