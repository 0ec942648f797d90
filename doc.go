// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pfs

/*
Package pfs reads, extracts, packs and edits PFS archives, the flat
resource containers of the Artemis visual novel engine.

An archive is a small header ("pf" magic, one version digit, index size and
file count), an index of entry records with an offset table, and raw
payloads. Version "6" stores payloads as is. Version "8" XORs every payload
with the SHA1 digest of the index region, restarting the key for each entry.
Version "2" is the legacy layout and is read-only.

All reads are positioned through io.ReaderAt, so payloads are streamed and
one Reader serves concurrent workers without loading the archive.

# Reading

Open an archive and read entries:

	r, err := pfs.Open("data.pfs")
	if err != nil {
	    return err
	}
	defer r.Close()
	for _, e := range r.Entries() {
	    data, err := r.ReadEntry(e.Path)
	    if err != nil {
	        return err
	    }
	    _ = data
	}

For metadata-only scans, skip key derivation:

	h, entries, err := pfs.ListEntries("data.pfs")
	if err != nil {
	    return err
	}
	_, _ = h, entries

# Extracting

Extract entries with parallel workers. Entries with offset zero carry no
payload and are skipped. A failing entry does not stop the others; every
failure is reported in one *ExtractError:

	err := r.Extract(ctx, "out/", pfs.ExtractOptions{
	    MaxWorkers: 4,
	    Rules:      pfs.ExcludeRules("*.ogg"),
	})
	var extractErr *pfs.ExtractError
	if errors.As(err, &extractErr) {
	    for _, f := range extractErr.Failures {
	        log.Printf("%s: %v", f.Path, f.Err)
	    }
	}

Use ExtractTo with a custom Sink to stream entries somewhere other than the
file system.

# Packing

Pack caller-provided streams. Sizes must be known up front because the whole
index is written before the first payload:

	inputs, err := pfs.DirInputs("game/", pfs.WalkOptions{
	    Rules: pfs.ExcludeRules("*.psd", ".git/**"),
	})
	if err != nil {
	    return err
	}
	res, err := pfs.PackFile(ctx, "data.pfs", inputs, pfs.PackOptions{
	    Version: pfs.Version8,
	    OnEntryDone: func(entry pfs.PackEntryProgress) {
	        // progress callback per written entry
	    },
	})
	_ = res.Key

# Editing

Editor stages add, replace and delete operations and rewrites the archive
in one commit, keeping a backup until the new file is in place:

	editor, err := pfs.OpenEditor("data.pfs", pfs.EditOptions{BackupKeep: 1})
	if err != nil {
	    return err
	}
	if err := editor.DeleteDir("movie"); err != nil {
	    return err
	}
	if _, err := editor.Commit(ctx); err != nil {
	    return err
	}
*/
package pfs
