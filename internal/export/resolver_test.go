// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eqio/vnote/internal/notebook"
)

// makeNotebook lays out:
//
//	a.md
//	b.md
//	empty/
//	sub/c.md
//	sub/deep/d.md
//	sub/image.png
func makeNotebook(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b.md"), "# B\n")
	writeFile(t, filepath.Join(root, "a.md"), "# A\n")
	writeFile(t, filepath.Join(root, "sub", "c.md"), "# C\n")
	writeFile(t, filepath.Join(root, "sub", "deep", "d.md"), "# D\n")
	writeFile(t, filepath.Join(root, "sub", "image.png"), "png")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0755))
	return root
}

func relPaths(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = filepath.ToSlash(it.RelPath)
	}
	return out
}

func TestResolve_FolderWithoutSubfolders(t *testing.T) {
	root := makeNotebook(t)
	dir, err := notebook.OpenDirectory(root)
	require.NoError(t, err)

	items, errs, err := Resolve(notebook.NewFSTree(), SourceCurrentFolder, dir, false)
	require.NoError(t, err)
	assert.Empty(t, errs)
	assert.Equal(t, []string{"a.md", "b.md"}, relPaths(items))
	for _, it := range items {
		assert.Equal(t, root, filepath.Dir(it.SourcePath))
	}
}

func TestResolve_FolderWithSubfolders(t *testing.T) {
	root := makeNotebook(t)
	dir, err := notebook.OpenDirectory(root)
	require.NoError(t, err)

	items, _, err := Resolve(notebook.NewFSTree(), SourceCurrentFolder, dir, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.md", "b.md", "sub/c.md", "sub/deep/d.md"}, relPaths(items))
	for _, it := range items {
		assert.Equal(t, filepath.Join(root, it.RelPath), it.SourcePath)
	}
}

func TestResolve_NotebookAlwaysRecursive(t *testing.T) {
	root := makeNotebook(t)
	nb, err := notebook.OpenNotebook(root)
	require.NoError(t, err)

	items, _, err := Resolve(notebook.NewFSTree(), SourceCurrentNotebook, nb, false)
	require.NoError(t, err)
	assert.Len(t, items, 4)
}

func TestResolve_SingleNote(t *testing.T) {
	root := makeNotebook(t)
	f, err := notebook.OpenFile(filepath.Join(root, "sub", "c.md"))
	require.NoError(t, err)

	items, _, err := Resolve(notebook.NewFSTree(), SourceCurrentNote, f, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"c.md"}, relPaths(items))
}

func TestResolve_CartDisambiguation(t *testing.T) {
	root := t.TempDir()
	paths := []string{
		filepath.Join(root, "x", "note.md"),
		filepath.Join(root, "y", "note.md"),
		filepath.Join(root, "z", "Note.markdown"),
		filepath.Join(root, "w", "note_1.md"),
		filepath.Join(root, "v", "other.md"),
	}
	for _, p := range paths {
		writeFile(t, p, "# "+p+"\n")
	}
	cart, err := notebook.NewCart(paths...)
	require.NoError(t, err)

	items, errs, err := Resolve(notebook.NewFSTree(), SourceCart, cart, false)
	require.NoError(t, err)
	assert.Empty(t, errs)

	// note_1 belongs to the fourth entry, so the duplicates skip over it
	assert.Equal(t, []string{"note.md", "note_2.md", "Note_3.markdown", "note_1.md", "other.md"}, relPaths(items))
	for i, it := range items {
		assert.Equal(t, paths[i], it.SourcePath)
	}
}

func TestResolve_CartNormalizationCollision(t *testing.T) {
	root := t.TempDir()
	composed := filepath.Join(root, "a", "caf\u00e9.md")
	decomposed := filepath.Join(root, "b", "CAFE\u0301.md")
	writeFile(t, composed, "1")
	writeFile(t, decomposed, "2")

	cart, err := notebook.NewCart(composed, decomposed)
	require.NoError(t, err)
	items, _, err := Resolve(notebook.NewFSTree(), SourceCart, cart, false)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "caf\u00e9.md", items[0].RelPath)
	assert.Equal(t, "CAFE\u0301_1.md", items[1].RelPath)
}

func TestResolve_SameStemInOneFolder(t *testing.T) {
	root := makeNotebook(t)
	writeFile(t, filepath.Join(root, "a.markdown"), "# A again\n")
	writeFile(t, filepath.Join(root, "sub", "C.md"), "# C again\n")
	nb, err := notebook.OpenNotebook(root)
	require.NoError(t, err)

	items, errs, err := Resolve(notebook.NewFSTree(), SourceCurrentNotebook, nb, false)
	require.NoError(t, err)
	assert.Empty(t, errs)

	rels := relPaths(items)
	assert.Contains(t, rels, "a.markdown")
	assert.Contains(t, rels, "a_1.md")
	assert.Contains(t, rels, "b.md")
	assert.Contains(t, rels, "sub/deep/d.md")
	// case-only differences collide too, and the suffix stays in the folder
	assert.Contains(t, rels, "sub/c_1.md")
	assert.Len(t, rels, 6)

	seen := map[string]bool{}
	for _, it := range items {
		key := OutputRel(it.RelPath, HTMLOptions{CompleteHTML: true})
		assert.False(t, seen[key], key)
		seen[key] = true
	}
}

func TestResolve_UnreadableExcluded(t *testing.T) {
	root := t.TempDir()
	good := filepath.Join(root, "good.md")
	writeFile(t, good, "ok")
	missing := filepath.Join(root, "gone.md")

	cart, err := notebook.NewCart(missing, good)
	require.NoError(t, err)

	items, errs, err := Resolve(notebook.NewFSTree(), SourceCart, cart, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"good.md"}, relPaths(items))
	require.Len(t, errs, 1)
	assert.Equal(t, "gone.md", errs[0].RelPath)
	assert.ErrorIs(t, errs[0], os.ErrNotExist)
}

func TestResolve_InvalidHandles(t *testing.T) {
	root := makeNotebook(t)
	dir, err := notebook.OpenDirectory(root)
	require.NoError(t, err)

	_, _, err = Resolve(notebook.NewFSTree(), SourceCurrentNote, dir, false)
	assert.True(t, IsConfigError(err))

	_, _, err = Resolve(notebook.NewFSTree(), SourceCart, &notebook.Cart{}, false)
	assert.ErrorIs(t, err, notebook.ErrEmptyCart)

	gone := &notebook.Directory{Path: filepath.Join(root, "nope")}
	_, _, err = Resolve(notebook.NewFSTree(), SourceCurrentFolder, gone, false)
	assert.True(t, IsConfigError(err))
}
