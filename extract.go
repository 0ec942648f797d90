// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pfs

package pfs

import (
	"context"
	"runtime"
	"sort"
	"sync"
)

// Extract writes selected entries of the archive under dstDir.
// See ExtractTo for failure semantics.
func (r *Reader) Extract(ctx context.Context, dstDir string, opts ExtractOptions) error {
	if r == nil || r.ra == nil {
		return ErrNilReader
	}
	if r.isClosed() {
		return ErrClosed
	}

	sink, err := NewDirSink(dstDir, opts.FileMode)
	if err != nil {
		return err
	}

	return r.ExtractTo(ctx, sink, opts)
}

// ExtractTo streams selected entries to sink using MaxWorkers parallel workers.
// Entries with offset zero are skipped. A failing entry does not stop the
// others; all failures are returned together as *ExtractError.
// Completion order is unspecified.
func (r *Reader) ExtractTo(ctx context.Context, sink Sink, opts ExtractOptions) error {
	if r == nil || r.ra == nil {
		return ErrNilReader
	}
	if sink == nil {
		return ErrNilWriter
	}
	if r.isClosed() {
		return ErrClosed
	}

	if ctx == nil {
		ctx = context.Background()
	}

	opts.applyDefaults()

	workers := opts.MaxWorkers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers < 1 {
		workers = 1
	}

	entries := r.entries
	if opts.Entries != nil {
		entries = opts.Entries
	}

	selected, err := selectExtractEntries(entries, opts)
	if err != nil {
		return err
	}

	if len(selected) == 0 {
		return nil
	}

	if workers > len(selected) {
		workers = len(selected)
	}

	taskCh := make(chan EntryInfo)
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		failures []*EntryError
	)

	for w := 0; w < workers; w++ {
		wg.Go(func() {
			for entry := range taskCh {
				if err := r.extractEntry(sink, entry, opts.OnEntryDone); err != nil {
					mu.Lock()
					failures = append(failures, &EntryError{Path: entry.Path, Err: err})
					mu.Unlock()
				}
			}
		})
	}

	var ctxErr error
feed:
	for _, entry := range selected {
		if err := ctx.Err(); err != nil {
			ctxErr = err
			break
		}

		select {
		case <-ctx.Done():
			ctxErr = ctx.Err()
			break feed
		case taskCh <- entry:
		}
	}

	close(taskCh)
	wg.Wait()

	if ctxErr != nil {
		return ctxErr
	}

	if len(failures) == 0 {
		return nil
	}

	sort.Slice(failures, func(i, j int) bool {
		return failures[i].Path < failures[j].Path
	})

	return &ExtractError{Failures: failures}
}

// extractEntry opens one payload stream and hands it to the sink.
func (r *Reader) extractEntry(sink Sink, entry EntryInfo, onEntryDone func(entry EntryInfo, written int64)) error {
	rc, err := r.openEntryByInfo(&entry, entry.Path)
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	if err := sink.WriteEntry(entry.Path, rc, int64(entry.Size)); err != nil {
		return err
	}

	if onEntryDone != nil {
		onEntryDone(entry, int64(entry.Size))
	}

	return nil
}
