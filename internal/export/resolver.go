// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/eqio/vnote/internal/notebook"
)

// =============================================================================
// SOURCE RESOLVER
// =============================================================================

// Tree lists the notes of a directory. notebook.FSTree implements it.
type Tree interface {
	ListFiles(dir string, recursive bool) ([]notebook.Entry, error)
}

// Handle is the concrete input of a run: *notebook.File,
// *notebook.Directory, *notebook.Notebook or *notebook.Cart, matching the
// run's Source.
type Handle any

// Item is one note to export.
type Item struct {
	// SourcePath is the absolute path of the note
	SourcePath string

	// RelPath is the output path relative to the output root, before the
	// extension is rewritten
	RelPath string
}

// Resolve expands h into the ordered list of notes to export. Notes that
// cannot be read are returned as FileErrors and left out of the list. A
// handle that does not match src, or whose root cannot be listed, is a
// *ConfigError.
func Resolve(tree Tree, src Source, h Handle, processSubfolders bool) ([]Item, []FileError, error) {
	var entries []notebook.Entry

	switch src {
	case SourceCurrentNote:
		f, ok := h.(*notebook.File)
		if !ok || f == nil {
			return nil, nil, handleMismatch(src, h)
		}
		if err := checkNoteRoot(f.Path); err != nil {
			return nil, nil, &ConfigError{Field: "source", Reason: "note is not readable", Err: err}
		}
		entries = []notebook.Entry{{Path: f.Path, RelPath: f.Name()}}

	case SourceCurrentFolder:
		d, ok := h.(*notebook.Directory)
		if !ok || d == nil {
			return nil, nil, handleMismatch(src, h)
		}
		list, err := tree.ListFiles(d.Path, processSubfolders)
		if err != nil {
			return nil, nil, &ConfigError{Field: "source", Reason: "folder cannot be listed", Err: err}
		}
		entries = list

	case SourceCurrentNotebook:
		nb, ok := h.(*notebook.Notebook)
		if !ok || nb == nil {
			return nil, nil, handleMismatch(src, h)
		}
		list, err := tree.ListFiles(nb.Root, true)
		if err != nil {
			return nil, nil, &ConfigError{Field: "source", Reason: "notebook cannot be listed", Err: err}
		}
		entries = list

	case SourceCart:
		c, ok := h.(*notebook.Cart)
		if !ok || c == nil {
			return nil, nil, handleMismatch(src, h)
		}
		if c.Len() == 0 {
			return nil, nil, &ConfigError{Field: "source", Reason: "nothing to export", Err: notebook.ErrEmptyCart}
		}
		for _, p := range c.Files {
			entries = append(entries, notebook.Entry{Path: p, RelPath: filepath.Base(p)})
		}

	default:
		return nil, nil, &ConfigError{Field: "source", Reason: fmt.Sprintf("unknown source %s", src)}
	}

	var items []Item
	var errs []FileError
	for _, e := range entries {
		if e.Err != nil {
			errs = append(errs, newFileError(e.RelPath, e.Err))
			continue
		}
		if err := checkReadable(e.Path); err != nil {
			errs = append(errs, newFileError(e.RelPath, err))
			continue
		}
		items = append(items, Item{SourcePath: e.Path, RelPath: e.RelPath})
	}

	// Notes sharing a stem in one directory (a.md and a.markdown, or two
	// cart notes from different folders) would share an output file
	items = dedupeNames(items)
	return items, errs, nil
}

func handleMismatch(src Source, h Handle) error {
	return &ConfigError{
		Field:  "source",
		Reason: fmt.Sprintf("%s export needs a %s handle, got %T", src, src, h),
	}
}

func checkNoteRoot(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return notebook.ErrNotFile
	}
	return nil
}

// checkReadable opens path to make sure the note can be read.
func checkReadable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot read note: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("cannot read note: %w", notebook.ErrNotFile)
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("cannot read note: %w", err)
	}
	return f.Close()
}

// =============================================================================
// OUTPUT NAME DISAMBIGUATION
// =============================================================================

var foldCase = cases.Fold()

// nameKey is the collision key of an output stem. Names that differ only
// by Unicode normalization or letter case would land on the same file on
// common filesystems, so they collide here too.
func nameKey(stem string) string {
	return foldCase.String(norm.NFC.String(stem))
}

// stemKey is the collision key of an item: its directory plus its stem.
func stemKey(dir, stem string) string {
	return nameKey(filepath.Join(dir, stem))
}

// dedupeNames gives every item a distinct output stem within its output
// directory. The first item keeps its name; later duplicates get _1, _2,
// ... in listing order. A candidate that matches another item's own name is
// skipped so that item keeps its name.
func dedupeNames(items []Item) []Item {
	reserved := make(map[string]bool, len(items))
	for _, it := range items {
		reserved[stemKey(filepath.Dir(it.RelPath), stemOf(it.RelPath))] = true
	}

	used := make(map[string]bool, len(items))
	out := make([]Item, len(items))
	for i, it := range items {
		dir := filepath.Dir(it.RelPath)
		stem := stemOf(it.RelPath)
		ext := filepath.Ext(it.RelPath)
		key := stemKey(dir, stem)

		if !used[key] {
			used[key] = true
			out[i] = it
			continue
		}

		for n := 1; ; n++ {
			candidate := stem + "_" + strconv.Itoa(n)
			ck := stemKey(dir, candidate)
			if used[ck] || reserved[ck] {
				continue
			}
			used[ck] = true
			rel := candidate + ext
			if dir != "." {
				rel = filepath.Join(dir, rel)
			}
			out[i] = Item{SourcePath: it.SourcePath, RelPath: rel}
			break
		}
	}
	return out
}

func stemOf(rel string) string {
	base := filepath.Base(rel)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
