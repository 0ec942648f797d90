// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pfs

package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/woozymasta/pfs"
)

// PackCmd packs a directory tree into a new archive.
type PackCmd struct {
	InputDir   string   `arg:"" help:"Directory to pack." type:"existingdir"`
	OutputPath string   `arg:"" help:"Archive path to write." type:"path"`
	Version    int      `short:"V" default:"6" help:"Pack version to write (6 or 8)."`
	Exclude    []string `short:"x" help:"Skip files matching these patterns."`

	CaseSensitive bool `name:"case-sensitive" help:"Allow entry paths that differ only by letter case."`
}

// Run executes the pack command.
func (c *PackCmd) Run(rt *env) error {
	version, err := pfs.ParseVersion(strconv.Itoa(c.Version))
	if err != nil {
		return err
	}
	if !version.Writable() {
		return fmt.Errorf("%w: cannot write version %s", pfs.ErrUnsupportedVersion, version)
	}

	inputs, err := pfs.DirInputs(c.InputDir, pfs.WalkOptions{
		Rules: pfs.ExcludeRules(c.Exclude...),
	})
	if err != nil {
		return err
	}

	rt.log.Info("packing",
		"input", c.InputDir,
		"output", c.OutputPath,
		"version", version.String(),
		"files", len(inputs),
	)

	res, err := pfs.PackFile(rt.ctx, c.OutputPath, inputs, pfs.PackOptions{
		Version:            version,
		CaseSensitivePaths: c.CaseSensitive,
		OnEntryDone: func(entry pfs.PackEntryProgress) {
			rt.out.Printf("packing: %s\n", entry.Path)
		},
	})
	if err != nil {
		return err
	}

	rt.log.Info("packed",
		"entries", res.WrittenEntries,
		"index_size", res.IndexSize,
		"data_size", humanize.IBytes(uint64(res.DataSize)), //nolint:gosec // byte counts are non-negative
		"duration", res.Duration.Round(time.Millisecond),
	)

	return nil
}
