// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pfs

package pfs

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// DirInputs walks root and returns one Input per regular file, in lexical
// path order. Paths are relative to root in slash form; sizes are taken
// from the walk and files are opened only when packed.
func DirInputs(root string, opts WalkOptions) ([]Input, error) {
	opts.applyDefaults()

	matcher, err := newPathMatcher(opts.Rules, opts.MatcherOptions)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, ioError("stat input dir", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrInvalidEntryPath, root)
	}

	var inputs []Input
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path == root {
			return nil
		}

		// rules apply to file paths only; directories are never pruned
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("relative path of %s: %w", path, err)
		}
		rel = filepath.ToSlash(rel)

		if !matcher.Match(rel, false) {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return err
		}

		inputs = append(inputs, fileInput(path, rel, fi.Size()))
		return nil
	})
	if err != nil {
		return nil, ioError("walk "+root, err)
	}

	return inputs, nil
}

// fileInput builds a lazily opened Input for one file on disk.
func fileInput(fsPath string, rel string, size int64) Input {
	return Input{
		Path: rel,
		Size: size,
		Open: func() (io.ReadCloser, error) {
			return os.Open(fsPath)
		},
	}
}
