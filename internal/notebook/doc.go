// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package notebook provides read-only access to notes stored on disk.
//
// A notebook is a directory tree of Markdown files. Folders nest arbitrarily;
// a cart is an ordered selection of notes taken from anywhere.
//
// # Key Types
//
//   - Notebook, Directory, File: validated handles to a scope on disk
//   - Cart: ordered ad-hoc selection, persisted as a YAML manifest
//   - FSTree: lists notes of a directory in a stable order
//
// # Usage
//
//	tree := notebook.NewFSTree(".md", ".markdown")
//	entries, err := tree.ListFiles(dir.Path, true)
//	for _, e := range entries {
//	    fmt.Println(e.RelPath)
//	}
package notebook
