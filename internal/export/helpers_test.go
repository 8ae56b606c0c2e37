// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeFile creates path (and its parents) with content.
func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// listTree returns every file and directory under root as slash paths,
// directories with a trailing slash.
func listTree(t *testing.T, root string) []string {
	t.Helper()
	var out []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, _ := filepath.Rel(root, path)
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			rel += "/"
		}
		out = append(out, rel)
		return nil
	})
	require.NoError(t, err)
	return out
}

// minimalPDF builds a valid one-page PDF with a correct xref table.
func minimalPDF() []byte {
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << >> >>",
	}

	var sb strings.Builder
	sb.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = sb.Len()
		fmt.Fprintf(&sb, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := sb.Len()
	fmt.Fprintf(&sb, "xref\n0 %d\n", len(objects)+1)
	sb.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&sb, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&sb, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return []byte(sb.String())
}

// fakeTool creates an executable file usable as an external tool path.
func fakeTool(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wkhtmltopdf")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0755))
	return path
}

// fakeRunner stands in for the external tool. By default it writes a valid
// PDF to the output argument and exits 0.
type fakeRunner struct {
	mu    sync.Mutex
	calls [][]string

	// exitCode is returned for every call
	exitCode int

	// block makes call number block (1-based) wait for ctx; started is
	// closed when that call begins
	block   int
	started chan struct{}
}

func (r *fakeRunner) Run(ctx context.Context, name string, args []string) (ProcessResult, error) {
	r.mu.Lock()
	r.calls = append(r.calls, append([]string{name}, args...))
	n := len(r.calls)
	r.mu.Unlock()

	if r.block == n {
		close(r.started)
		<-ctx.Done()
		return ProcessResult{ExitCode: -1}, fmt.Errorf("%s interrupted: %w", name, ctx.Err())
	}
	if r.exitCode != 0 {
		return ProcessResult{ExitCode: r.exitCode, Stderr: []byte("Error: failed to load page")}, nil
	}
	out := args[len(args)-1]
	if err := os.WriteFile(out, minimalPDF(), 0644); err != nil {
		return ProcessResult{}, err
	}
	return ProcessResult{}, nil
}

func (r *fakeRunner) Calls() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.calls...)
}

// fakePrinter returns a fixed PDF and records its arguments.
type fakePrinter struct {
	mu         sync.Mutex
	urls       []string
	layouts    []*PageLayout
	background []bool
	closed     bool
	data       []byte
}

func (p *fakePrinter) PrintPDF(_ context.Context, url string, layout *PageLayout, background bool) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.urls = append(p.urls, url)
	p.layouts = append(p.layouts, layout)
	p.background = append(p.background, background)
	if p.data != nil {
		return p.data, nil
	}
	return minimalPDF(), nil
}

func (p *fakePrinter) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

func (p *fakePrinter) factory() PrinterFactory {
	return func(context.Context) (Printer, error) { return p, nil }
}
