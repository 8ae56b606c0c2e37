// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package notebook

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrNotDirectory = errors.New("not a directory")
	ErrNotFile      = errors.New("not a regular file")
	ErrNotNote      = errors.New("not a note file")
	ErrEmptyCart    = errors.New("cart is empty")
)

// =============================================================================
// HANDLES
// =============================================================================

// Notebook is the root of a note hierarchy on disk.
type Notebook struct {
	// Name is the display name (the root directory's base name by default)
	Name string

	// Root is the absolute path of the notebook directory
	Root string
}

// Directory is a folder inside a notebook.
type Directory struct {
	Path string
}

// Name returns the folder's base name.
func (d *Directory) Name() string {
	return filepath.Base(d.Path)
}

// File is a single note.
type File struct {
	Path string
}

// Name returns the note's file name including its extension.
func (f *File) Name() string {
	return filepath.Base(f.Path)
}

// Entry is one note found while listing a directory.
type Entry struct {
	// Path is the absolute path of the note
	Path string

	// RelPath is the path relative to the listed directory, using the
	// platform separator
	RelPath string

	// Err is set when a subdirectory could not be read. Path and RelPath
	// then name the directory.
	Err error
}

// OpenNotebook validates root and returns a Notebook handle for it.
func OpenNotebook(root string) (*Notebook, error) {
	abs, err := absDir(root)
	if err != nil {
		return nil, fmt.Errorf("open notebook: %w", err)
	}
	return &Notebook{Name: filepath.Base(abs), Root: abs}, nil
}

// OpenDirectory validates path and returns a Directory handle for it.
func OpenDirectory(path string) (*Directory, error) {
	abs, err := absDir(path)
	if err != nil {
		return nil, fmt.Errorf("open folder: %w", err)
	}
	return &Directory{Path: abs}, nil
}

// OpenFile validates path and returns a File handle for it.
func OpenFile(path string) (*File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("open note: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("open note: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("open note %s: %w", abs, ErrNotFile)
	}
	return &File{Path: abs}, nil
}

func absDir(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s: %w", abs, ErrNotDirectory)
	}
	return abs, nil
}

// =============================================================================
// FILESYSTEM TREE
// =============================================================================

// DefaultExtensions are the note extensions recognised when none are
// configured.
var DefaultExtensions = []string{".md", ".markdown", ".mkd"}

// FSTree lists notes straight from the filesystem. It never writes.
type FSTree struct {
	extensions map[string]bool
}

// NewFSTree creates a tree that treats files with the given extensions as
// notes. Extensions are matched case-insensitively; a missing leading dot
// is added.
func NewFSTree(extensions ...string) *FSTree {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	t := &FSTree{extensions: make(map[string]bool, len(extensions))}
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		t.extensions[ext] = true
	}
	return t
}

// IsNote reports whether name has a note extension.
func (t *FSTree) IsNote(name string) bool {
	return t.extensions[strings.ToLower(filepath.Ext(name))]
}

// ListFiles returns the notes under dir. Files of a directory come first in
// lexical order, followed by its subdirectories in lexical order, each
// expanded depth-first when recursive is set. Hidden entries (leading dot)
// are skipped. An unreadable subdirectory is reported as an Entry with Err
// set and does not stop the listing; an unreadable dir is an error.
// Symlinked subdirectories are followed, but every real directory is listed
// at most once, so links back up the tree end the descent.
func (t *FSTree) ListFiles(dir string, recursive bool) ([]Entry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	visited := make(map[string]bool)
	if real, err := filepath.EvalSymlinks(dir); err == nil {
		visited[real] = true
	}

	var out []Entry
	t.collect(dir, "", entries, recursive, visited, &out)
	return out, nil
}

func (t *FSTree) collect(dir, rel string, entries []os.DirEntry, recursive bool, visited map[string]bool, out *[]Entry) {
	var subdirs []string

	// os.ReadDir returns entries sorted by file name
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		full := filepath.Join(dir, name)
		isDir := e.IsDir()
		if e.Type()&os.ModeSymlink != 0 {
			info, err := os.Stat(full)
			if err != nil {
				continue
			}
			isDir = info.IsDir()
		}

		if isDir {
			subdirs = append(subdirs, name)
			continue
		}
		if t.IsNote(name) {
			*out = append(*out, Entry{Path: full, RelPath: filepath.Join(rel, name)})
		}
	}

	if !recursive {
		return
	}

	for _, name := range subdirs {
		full := filepath.Join(dir, name)
		subRel := filepath.Join(rel, name)
		real, err := filepath.EvalSymlinks(full)
		if err != nil {
			*out = append(*out, Entry{Path: full, RelPath: subRel, Err: err})
			continue
		}
		if visited[real] {
			continue
		}
		visited[real] = true

		children, err := os.ReadDir(full)
		if err != nil {
			*out = append(*out, Entry{Path: full, RelPath: subRel, Err: err})
			continue
		}
		t.collect(full, subRel, children, recursive, visited, out)
	}
}
