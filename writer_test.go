// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/pfs

package pfs

import (
	"bytes"
	"context"
	"crypto/sha1" //nolint:gosec // v8 key check
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func TestPack_MatchesHandBuiltLayout(t *testing.T) {
	t.Parallel()

	for _, version := range []Version{Version6, Version8} {
		t.Run(version.String(), func(t *testing.T) {
			t.Parallel()

			got, res := packBytes(t, version, twoFiles())

			raw := make([]rawEntry, 0, 2)
			for _, f := range twoFiles() {
				raw = append(raw, rawEntry{path: f.path, data: f.data})
			}
			want := buildRawArchive(t, byte(version), raw)

			if !bytes.Equal(got, want) {
				t.Fatalf("packed bytes differ from hand-built archive\n got=%x\nwant=%x", got, want)
			}
			if len(got) != 115 {
				t.Fatalf("archive size=%d, want 115", len(got))
			}
			if res.IndexSize != 78 || res.TablePos != 46 {
				t.Fatalf("index_size=%d table_pos=%d, want 78 and 46", res.IndexSize, res.TablePos)
			}
			if res.WrittenEntries != 2 || res.DataSize != 30 {
				t.Fatalf("written=%d data_size=%d, want 2 and 30", res.WrittenEntries, res.DataSize)
			}
		})
	}
}

func TestPack_EmptyInputs(t *testing.T) {
	t.Parallel()

	data, res := packBytes(t, Version6, nil)

	want := []byte{
		'p', 'f', '6',
		20, 0, 0, 0, // index size
		0, 0, 0, 0, // file count
		1, 0, 0, 0, // file count + 1
		0, 0, 0, 0, 0, 0, 0, 0,
		4, 0, 0, 0, // table pos
	}
	if !bytes.Equal(data, want) {
		t.Fatalf("empty archive=%x, want %x", data, want)
	}
	if res.WrittenEntries != 0 {
		t.Fatalf("written_entries=%d, want 0", res.WrittenEntries)
	}

	r := openBytes(t, data)
	if len(r.Entries()) != 0 {
		t.Fatalf("entries=%d, want 0", len(r.Entries()))
	}
}

func TestPack_V8KeyIsIndexDigest(t *testing.T) {
	t.Parallel()

	data, res := packBytes(t, Version8, twoFiles())

	indexSize := res.IndexSize
	want := sha1.Sum(data[indexStart : indexStart+indexSize]) //nolint:gosec // v8 key check
	if !bytes.Equal(res.Key, want[:]) {
		t.Fatalf("key=%x, want %x", res.Key, want)
	}
	if len(res.Key) != keySize {
		t.Fatalf("key length=%d, want %d", len(res.Key), keySize)
	}

	// each payload restarts the key stream
	for i, f := range twoFiles() {
		e := res.Entries[i]
		stored := bytes.Clone(data[e.Offset : e.Offset+e.Size])
		XORCrypt(stored, res.Key)
		if !bytes.Equal(stored, f.data) {
			t.Fatalf("entry %s payload does not decode with key from position zero", f.path)
		}
	}
}

func TestPack_V6PayloadIsPlain(t *testing.T) {
	t.Parallel()

	data, res := packBytes(t, Version6, twoFiles())
	if res.Key != nil {
		t.Fatalf("key=%x, want nil for v6", res.Key)
	}

	e := res.Entries[1]
	if got := string(data[e.Offset : e.Offset+e.Size]); got != "abcdefghijklmnopqrst" {
		t.Fatalf("payload=%q, want plain bytes", got)
	}
}

func TestPack_Deterministic(t *testing.T) {
	t.Parallel()

	first, _ := packBytes(t, Version8, twoFiles())
	second, _ := packBytes(t, Version8, twoFiles())
	if !bytes.Equal(first, second) {
		t.Fatal("packing identical inputs must produce identical bytes")
	}
}

func TestPack_KeepsInputOrderAndStoresBackslashes(t *testing.T) {
	t.Parallel()

	files := []testFile{
		{path: "z/last.txt", data: []byte("z")},
		{path: `a\first.txt`, data: []byte("a")},
	}
	data, res := packBytes(t, Version6, files)

	if res.Entries[0].Path != "z/last.txt" || res.Entries[1].Path != "a/first.txt" {
		t.Fatalf("entries=%+v, want input order", res.Entries)
	}
	if !bytes.Contains(data, []byte(`z\last.txt`)) || !bytes.Contains(data, []byte(`a\first.txt`)) {
		t.Fatal("stored paths must use backslash separators")
	}
}

func TestPack_RejectsUnsupportedVersion(t *testing.T) {
	t.Parallel()

	for _, v := range []Version{VersionLegacy, Version('7'), Version('x')} {
		_, err := Pack(context.Background(), io.Discard, nil, PackOptions{Version: v})
		if !errors.Is(err, ErrUnsupportedVersion) {
			t.Fatalf("Pack version %s err=%v, want ErrUnsupportedVersion", v, err)
		}
	}
}

func TestPack_RejectsDuplicateEntryPathsCaseInsensitive(t *testing.T) {
	t.Parallel()

	inputs := []Input{
		bytesInput("Script/Main.ast", []byte("a")),
		bytesInput(`script\main.ast`, []byte("b")),
	}

	_, err := Pack(context.Background(), io.Discard, inputs, PackOptions{})
	if !errors.Is(err, ErrDuplicateEntryPath) {
		t.Fatalf("expected ErrDuplicateEntryPath, got %v", err)
	}
}

func TestPack_CaseSensitivePathsOption(t *testing.T) {
	t.Parallel()

	inputs := []Input{
		bytesInput("A.txt", []byte("upper")),
		bytesInput("a.txt", []byte("lower")),
	}

	var buf bytes.Buffer
	if _, err := Pack(context.Background(), &buf, inputs, PackOptions{CaseSensitivePaths: true}); err != nil {
		t.Fatalf("Pack: %v", err)
	}

	r := openBytes(t, buf.Bytes())
	for path, want := range map[string]string{"A.txt": "upper", "a.txt": "lower"} {
		got, err := r.ReadEntry(path)
		if err != nil {
			t.Fatalf("ReadEntry(%q): %v", path, err)
		}
		if string(got) != want {
			t.Fatalf("ReadEntry(%q)=%q, want %q", path, got, want)
		}
	}
}

func TestPack_EdgeSpacesAreDistinctPaths(t *testing.T) {
	t.Parallel()

	inputs := []Input{
		bytesInput("a.txt", []byte("plain")),
		bytesInput("a.txt ", []byte("trailing")),
		bytesInput(" a.txt", []byte("leading")),
	}

	_, res := packInputs(t, inputs, PackOptions{Version: Version8})
	got := make([]string, 0, len(res.Entries))
	for _, e := range res.Entries {
		got = append(got, e.Path)
	}

	want := []string{"a.txt", "a.txt ", " a.txt"}
	if !slices.Equal(got, want) {
		t.Fatalf("entries=%q, want %q", got, want)
	}
}

func TestPack_PathLengthLimit(t *testing.T) {
	t.Parallel()

	longest := strings.Repeat("d/", (MaxPathLen-8)/2) + "f.bin"
	longest += strings.Repeat("x", MaxPathLen-len(longest))

	data, _ := packInputs(t, []Input{bytesInput(longest, []byte("deep"))}, PackOptions{})
	got, err := openBytes(t, data).ReadEntry(longest)
	if err != nil {
		t.Fatalf("ReadEntry: %v", err)
	}
	if string(got) != "deep" {
		t.Fatalf("payload=%q, want deep", got)
	}

	var out bytes.Buffer
	_, err = Pack(context.Background(), &out, []Input{bytesInput(longest+"x", []byte("deep"))}, PackOptions{})
	if !errors.Is(err, ErrInvalidEntryPath) {
		t.Fatalf("err=%v, want ErrInvalidEntryPath", err)
	}
	if out.Len() != 0 {
		t.Fatalf("wrote %d bytes before validation failure", out.Len())
	}
}

// packInputs packs inputs in memory and returns archive bytes and result.
func packInputs(t *testing.T, inputs []Input, opts PackOptions) ([]byte, *PackResult) {
	t.Helper()

	var buf bytes.Buffer
	res, err := Pack(context.Background(), &buf, inputs, opts)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}

	return buf.Bytes(), res
}

func TestPack_RejectsInvalidPaths(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		wantErr error
		name    string
		path    string
	}{
		{name: "empty", path: "./", wantErr: ErrInvalidEntryPath},
		{name: "invalid utf8", path: "bad\xfe.png", wantErr: ErrInvalidEncoding},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var out bytes.Buffer
			_, err := Pack(context.Background(), &out, []Input{bytesInput(tc.path, []byte("x"))}, PackOptions{})
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err=%v, want %v", err, tc.wantErr)
			}
			if out.Len() != 0 {
				t.Fatalf("wrote %d bytes before validation failure", out.Len())
			}
		})
	}
}

func TestPack_SizeMismatch(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		data []byte
		size int64
	}{
		{name: "shorter", data: []byte("abc"), size: 5},
		{name: "longer", data: []byte("abcdef"), size: 3},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			in := bytesInput("a.bin", tc.data)
			in.Size = tc.size

			_, err := Pack(context.Background(), io.Discard, []Input{in}, PackOptions{})
			if !errors.Is(err, ErrSizeMismatch) {
				t.Fatalf("err=%v, want ErrSizeMismatch", err)
			}
		})
	}
}

func TestPack_OpenFailureIsIO(t *testing.T) {
	t.Parallel()

	in := Input{
		Path: "missing.bin",
		Size: 1,
		Open: func() (io.ReadCloser, error) {
			return nil, os.ErrNotExist
		},
	}

	_, err := Pack(context.Background(), io.Discard, []Input{in}, PackOptions{})
	if !errors.Is(err, ErrIO) || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err=%v, want ErrIO wrapping os.ErrNotExist", err)
	}
}

func TestPack_NilWriter(t *testing.T) {
	t.Parallel()

	if _, err := Pack(context.Background(), nil, nil, PackOptions{}); !errors.Is(err, ErrNilWriter) {
		t.Fatalf("err=%v, want ErrNilWriter", err)
	}
}

func TestPack_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Pack(ctx, io.Discard, filesToInputs(twoFiles()), PackOptions{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v, want context.Canceled", err)
	}
}

func TestPack_OnEntryDone(t *testing.T) {
	t.Parallel()

	var progress []PackEntryProgress
	res, err := Pack(context.Background(), io.Discard, filesToInputs(twoFiles()), PackOptions{
		Version: Version8,
		OnEntryDone: func(entry PackEntryProgress) {
			progress = append(progress, entry)
		},
	})
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}

	if len(progress) != 2 {
		t.Fatalf("on_entry_done events=%d, want 2", len(progress))
	}
	if progress[0] != (PackEntryProgress{Path: "a.txt", Offset: 85, Size: 10}) {
		t.Fatalf("progress[0]=%+v", progress[0])
	}
	if res.Duration <= 0 {
		t.Fatalf("duration=%s, want > 0", res.Duration)
	}
	if res.Version != Version8 {
		t.Fatalf("version=%s, want 8", res.Version)
	}
}

func TestPackFile_WritesAndRenames(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	out := filepath.Join(dir, "data.pfs")

	if _, err := PackFile(context.Background(), out, filesToInputs(twoFiles()), PackOptions{Version: Version8}); err != nil {
		t.Fatalf("PackFile: %v", err)
	}

	fi, err := os.Stat(out)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if fi.Size() != 115 {
		t.Fatalf("size=%d, want 115", fi.Size())
	}

	items, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("dir has %d items, want only the archive", len(items))
	}
}

func TestPackFile_FailureLeavesNoFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	out := filepath.Join(dir, "data.pfs")

	in := bytesInput("a.bin", []byte("abc"))
	in.Size = 10

	if _, err := PackFile(context.Background(), out, []Input{in}, PackOptions{}); !errors.Is(err, ErrSizeMismatch) {
		t.Fatalf("err=%v, want ErrSizeMismatch", err)
	}

	items, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("dir has %d items after failed pack, want 0", len(items))
	}
}

func TestCopyPayloadBounded(t *testing.T) {
	t.Parallel()

	t.Run("exact limit", func(t *testing.T) {
		t.Parallel()

		var dst bytes.Buffer
		written, err := copyPayloadBounded(&dst, bytes.NewReader([]byte("abc")), 3, make([]byte, 2))
		if err != nil {
			t.Fatalf("copyPayloadBounded: %v", err)
		}
		if written != 3 || dst.String() != "abc" {
			t.Fatalf("written=%d dst=%q, want 3 and abc", written, dst.String())
		}
	})

	t.Run("longer source", func(t *testing.T) {
		t.Parallel()

		var dst bytes.Buffer
		written, err := copyPayloadBounded(&dst, bytes.NewReader([]byte("abcdef")), 3, make([]byte, 2))
		if !errors.Is(err, ErrSizeMismatch) {
			t.Fatalf("expected ErrSizeMismatch, got %v", err)
		}
		if written != 3 || dst.String() != "abc" {
			t.Fatalf("written=%d dst=%q, want 3 and abc", written, dst.String())
		}
	})

	t.Run("shorter source", func(t *testing.T) {
		t.Parallel()

		var dst bytes.Buffer
		written, err := copyPayloadBounded(&dst, bytes.NewReader([]byte("ab")), 3, nil)
		if err != nil {
			t.Fatalf("copyPayloadBounded: %v", err)
		}
		if written != 2 {
			t.Fatalf("written=%d, want 2", written)
		}
	})
}
