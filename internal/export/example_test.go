// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/eqio/vnote/internal/export"
	"github.com/eqio/vnote/internal/notebook"
)

// ExampleExporter_Export exports a folder of notes to standalone HTML files.
func ExampleExporter_Export() {
	notes, _ := os.MkdirTemp("", "notes")
	out, _ := os.MkdirTemp("", "out")
	defer os.RemoveAll(notes)
	defer os.RemoveAll(out)

	os.WriteFile(filepath.Join(notes, "alpha.md"), []byte("# Alpha\n\nFirst note.\n"), 0644)
	os.WriteFile(filepath.Join(notes, "beta.md"), []byte("---\ntitle: Beta\n---\nSecond note.\n"), 0644)

	folder, err := notebook.OpenDirectory(notes)
	if err != nil {
		fmt.Println(err)
		return
	}

	opts := export.DefaultOptions()
	opts.Source = export.SourceCurrentFolder
	opts.Target = export.HTMLOptions{EmbedCSSStyle: true, CompleteHTML: true}

	exporter := export.New(export.Config{})
	sum, err := exporter.Export(context.Background(), opts, folder, out, nil)
	if err != nil {
		fmt.Println(err)
		return
	}

	fmt.Println(sum.State, sum.FilesSucceeded, sum.FilesFailed())
	entries, _ := os.ReadDir(out)
	for _, e := range entries {
		fmt.Println(e.Name())
	}
	// Output:
	// Completed 2 0
	// alpha.html
	// beta.html
}

// ExampleOutputRel shows how note paths map to output paths.
func ExampleOutputRel() {
	fmt.Println(export.OutputRel("sub/note.md", export.MarkdownTarget{}))
	fmt.Println(export.OutputRel("sub/note.md", export.HTMLOptions{CompleteHTML: true}))
	fmt.Println(export.OutputRel("sub/note.md", export.HTMLOptions{MIMEHTML: true}))
	fmt.Println(export.OutputRel("sub/note.markdown", export.PDFOptions{}))
	// Output:
	// sub/note.md
	// sub/note.html
	// sub/note.mht
	// sub/note.pdf
}
