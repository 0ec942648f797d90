// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pfs

package pfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// EditOptions configures Editor commit behavior.
type EditOptions struct {
	// PackOptions control the rewritten archive. A zero Version keeps the
	// source version when it is writable and falls back to Version6 otherwise.
	PackOptions PackOptions `json:"pack_options,omitzero" yaml:"pack_options,omitzero"`
	// BackupKeep is the number of ".bak" generations kept after commit; zero keeps none.
	BackupKeep int `json:"backup_keep,omitempty" yaml:"backup_keep,omitempty"`
}

// Editor accumulates archive edit operations and applies them on Commit.
type Editor struct {
	path string
	ops  []editOperation
	opts EditOptions
}

// editOperation stores one staged editor operation.
type editOperation struct {
	inputs []Input
	paths  []string
	kind   editOperationKind
}

// editOperationKind identifies staged edit action type.
type editOperationKind uint8

const (
	// editOperationAdd appends new entries and fails on existing path.
	editOperationAdd editOperationKind = iota + 1
	// editOperationReplace rewrites payload of existing entries in place.
	editOperationReplace
	// editOperationDelete removes exact paths.
	editOperationDelete
	// editOperationDeleteDir removes entries by directory prefix.
	editOperationDeleteDir
)

// editEntry is one entry of the rewrite plan, backed by either the source
// archive or a caller input.
type editEntry struct {
	source *EntryInfo
	input  *Input
	path   string
}

// OpenEditor creates a staged editor for the archive at path.
// Nothing is read until Commit.
func OpenEditor(path string, opts EditOptions) (*Editor, error) {
	trimmedPath := strings.TrimSpace(path)
	if trimmedPath == "" {
		return nil, ErrInvalidEntryPath
	}

	if opts.BackupKeep < 0 {
		opts.BackupKeep = 0
	}

	return &Editor{
		path: trimmedPath,
		opts: opts,
		ops:  make([]editOperation, 0, 8),
	}, nil
}

// Add schedules new entries appended after existing ones; Commit fails on a path collision.
func (e *Editor) Add(inputs ...Input) error {
	return e.stageInputs(editOperationAdd, inputs)
}

// Replace schedules new payloads for existing entries; Commit fails on a missing path.
func (e *Editor) Replace(inputs ...Input) error {
	return e.stageInputs(editOperationReplace, inputs)
}

// Delete schedules exact-path removal.
func (e *Editor) Delete(paths ...string) error {
	return e.stagePaths(editOperationDelete, paths)
}

// DeleteDir schedules removal of every entry under the given directories.
func (e *Editor) DeleteDir(prefixes ...string) error {
	return e.stagePaths(editOperationDeleteDir, prefixes)
}

// stageInputs validates inputs and records one operation.
func (e *Editor) stageInputs(kind editOperationKind, inputs []Input) error {
	if e == nil {
		return ErrNilWriter
	}
	if len(inputs) == 0 {
		return nil
	}

	normalized := make([]Input, 0, len(inputs))
	for i := range inputs {
		canonical, err := normalizeInputPath(inputs[i].Path)
		if err != nil {
			return err
		}

		item := inputs[i]
		item.Path = canonical
		normalized = append(normalized, item)
	}

	e.ops = append(e.ops, editOperation{kind: kind, inputs: normalized})
	return nil
}

// stagePaths validates paths and records one operation.
func (e *Editor) stagePaths(kind editOperationKind, paths []string) error {
	if e == nil {
		return ErrNilWriter
	}
	if len(paths) == 0 {
		return nil
	}

	normalized := make([]string, 0, len(paths))
	for _, raw := range paths {
		canonical, err := normalizeInputPath(raw)
		if err != nil {
			return err
		}

		normalized = append(normalized, canonical)
	}

	e.ops = append(e.ops, editOperation{kind: kind, paths: normalized})
	return nil
}

// Commit applies all staged operations in one rewrite.
// The source is moved to "<path>.bak" first and restored if the rewrite fails.
func (e *Editor) Commit(ctx context.Context) (*PackResult, error) {
	if e == nil {
		return nil, ErrNilWriter
	}

	if ctx == nil {
		ctx = context.Background()
	}

	backupPath := e.path + ".bak"
	if err := prepareBackupSlot(backupPath, e.opts.BackupKeep); err != nil {
		return nil, err
	}

	if err := os.Rename(e.path, backupPath); err != nil {
		return nil, ioError("move archive to backup", err)
	}

	res, err := e.commitFromBackup(ctx, backupPath)
	if err != nil {
		if rollbackErr := rollbackFromBackup(e.path, backupPath); rollbackErr != nil {
			return nil, fmt.Errorf("%w (rollback failed: %w)", err, rollbackErr)
		}

		return nil, err
	}

	if e.opts.BackupKeep == 0 {
		if err := removeIfExists(backupPath); err != nil {
			return nil, err
		}
	}

	return res, nil
}

// commitFromBackup rewrites the archive at e.path from the backup copy.
func (e *Editor) commitFromBackup(ctx context.Context, backupPath string) (*PackResult, error) {
	src, err := Open(backupPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = src.Close() }()

	plan, err := buildEditPlan(src.entries, e.ops, e.opts.PackOptions.CaseSensitivePaths)
	if err != nil {
		return nil, err
	}

	packOpts := e.opts.PackOptions
	if packOpts.Version == 0 {
		packOpts.Version = Version6
		if src.Version().Writable() {
			packOpts.Version = src.Version()
		}
	}

	return PackFile(ctx, e.path, planInputs(src, plan), packOpts)
}

// planInputs turns a rewrite plan into pack inputs. Source entries are
// streamed back in plaintext and re-encoded by the writer.
func planInputs(src *Reader, plan []editEntry) []Input {
	inputs := make([]Input, 0, len(plan))
	for _, item := range plan {
		if item.input != nil {
			inputs = append(inputs, *item.input)
			continue
		}

		info := *item.source
		inputs = append(inputs, Input{
			Path: item.path,
			Size: int64(info.Size),
			Open: func() (io.ReadCloser, error) {
				return src.OpenEntryInfo(info)
			},
		})
	}

	return inputs
}

// buildEditPlan applies staged operations to source entries, keeping index order.
// Replaced entries stay in place and added entries go to the end.
func buildEditPlan(sourceEntries []EntryInfo, ops []editOperation, caseSensitive bool) ([]editEntry, error) {
	plan := make([]editEntry, 0, len(sourceEntries))
	index := make(map[string]int, len(sourceEntries))

	for i := range sourceEntries {
		if !sourceEntries[i].HasPayload() {
			continue
		}

		path := NormalizePath(sourceEntries[i].Path)
		key := entryPathKey(path, caseSensitive)
		if _, exists := index[key]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateEntryPath, path)
		}

		index[key] = len(plan)
		plan = append(plan, editEntry{path: path, source: &sourceEntries[i]})
	}

	for _, op := range ops {
		switch op.kind {
		case editOperationAdd:
			for _, in := range op.inputs {
				key := entryPathKey(in.Path, caseSensitive)
				if i, exists := index[key]; exists && plan[i].path != "" {
					return nil, fmt.Errorf("%w: %q", ErrDuplicateEntryPath, in.Path)
				}

				item := in
				index[key] = len(plan)
				plan = append(plan, editEntry{path: item.Path, input: &item})
			}
		case editOperationReplace:
			for _, in := range op.inputs {
				i, exists := index[entryPathKey(in.Path, caseSensitive)]
				if !exists || plan[i].path == "" {
					return nil, fmt.Errorf("%w: %q", ErrEntryNotFound, in.Path)
				}

				item := in
				item.Path = plan[i].path
				plan[i] = editEntry{path: item.Path, input: &item}
			}
		case editOperationDelete:
			for _, path := range op.paths {
				if i, exists := index[entryPathKey(path, caseSensitive)]; exists {
					plan[i] = editEntry{}
				}
			}
		case editOperationDeleteDir:
			for i := range plan {
				for _, prefix := range op.paths {
					if plan[i].path != "" && hasEditorDirPrefix(plan[i].path, prefix, caseSensitive) {
						plan[i] = editEntry{}
					}
				}
			}
		default:
			return nil, fmt.Errorf("unknown edit operation kind: %d", op.kind)
		}
	}

	// deleted slots are blanked above so indexes stay valid until here
	out := plan[:0]
	for _, item := range plan {
		if item.path != "" {
			out = append(out, item)
		}
	}

	return out, nil
}

// hasEditorDirPrefix reports whether path equals prefix or lies inside it.
func hasEditorDirPrefix(path string, prefix string, caseSensitive bool) bool {
	pathKey := entryPathKey(path, caseSensitive)
	prefixKey := entryPathKey(prefix, caseSensitive)

	return pathKey == prefixKey || strings.HasPrefix(pathKey, prefixKey+"/")
}

// prepareBackupSlot rotates or removes existing backup generations before a new commit.
func prepareBackupSlot(backupPath string, keep int) error {
	switch keep {
	case 0, 1:
		return removeIfExists(backupPath)
	default:
		oldest := fmt.Sprintf("%s.%d", backupPath, keep-1)
		if err := removeIfExists(oldest); err != nil {
			return err
		}

		for i := keep - 2; i >= 1; i-- {
			from := fmt.Sprintf("%s.%d", backupPath, i)
			to := fmt.Sprintf("%s.%d", backupPath, i+1)
			if err := renameIfExists(from, to); err != nil {
				return err
			}
		}

		return renameIfExists(backupPath, backupPath+".1")
	}
}

// renameIfExists renames source to destination when source exists.
func renameIfExists(from string, to string) error {
	_, err := os.Stat(from)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return ioError("stat "+from, err)
	}

	if err := removeIfExists(to); err != nil {
		return err
	}

	if err := os.Rename(from, to); err != nil {
		return ioError("rename "+from, err)
	}

	return nil
}

// removeIfExists removes file when present.
func removeIfExists(path string) error {
	err := os.Remove(path)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}

	return ioError("remove "+path, err)
}

// rollbackFromBackup restores backup on failed commit.
func rollbackFromBackup(path string, backupPath string) error {
	_ = os.Remove(path)

	if err := os.Rename(backupPath, path); err != nil {
		return ioError("restore backup", err)
	}

	return nil
}
