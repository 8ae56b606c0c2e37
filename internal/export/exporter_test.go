// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eqio/vnote/internal/notebook"
)

func newTestExporter(runner ProcessRunner, printer *fakePrinter) *Exporter {
	cfg := Config{Runner: runner}
	if printer != nil {
		cfg.Printers = printer.factory()
	} else {
		cfg.Printers = func(context.Context) (Printer, error) {
			return nil, errors.New("no browser in tests")
		}
	}
	return New(cfg)
}

func openFolder(t *testing.T, root string) *notebook.Directory {
	t.Helper()
	d, err := notebook.OpenDirectory(root)
	require.NoError(t, err)
	return d
}

func TestExport_MarkdownRoundTrip(t *testing.T) {
	root := makeNotebook(t)
	content := "---\ntitle: x\n---\n# Über\r\n\n![img](image.png)\n\ttabs & <b>html</b>\n"
	writeFile(t, filepath.Join(root, "sub", "c.md"), content)
	out := t.TempDir()

	opts := DefaultOptions()
	opts.Source = SourceCurrentFolder
	opts.ProcessSubfolders = true

	sum, err := newTestExporter(nil, nil).Export(context.Background(), opts, openFolder(t, root), out, nil)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, sum.State)
	assert.Equal(t, 4, sum.FilesAttempted)
	assert.Equal(t, 4, sum.FilesSucceeded)
	assert.Empty(t, sum.Errors)

	data, err := os.ReadFile(filepath.Join(out, "sub", "c.md"))
	require.NoError(t, err)
	assert.Equal(t, content, string(data))

	// the referenced image travels with the note
	_, err = os.Stat(filepath.Join(out, "sub", "image.png"))
	assert.NoError(t, err)

	assert.Equal(t, []string{"a.md", "b.md", "sub/", "sub/c.md", "sub/deep/", "sub/deep/d.md", "sub/image.png"}, listTree(t, out))
}

func TestExport_Idempotent(t *testing.T) {
	root := makeNotebook(t)
	writeFile(t, filepath.Join(root, "code.md"), "# Code\n\n```go\nfunc main() {}\n```\n\n| a | b |\n|---|---|\n| 1 | 2 |\n")
	nb, err := notebook.OpenNotebook(root)
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.Source = SourceCurrentNotebook
	opts.Target = DefaultHTMLOptions()

	var outputs [2]string
	for i := range outputs {
		outputs[i] = t.TempDir()
		sum, err := newTestExporter(nil, nil).Export(context.Background(), opts, nb, outputs[i], nil)
		require.NoError(t, err)
		require.Equal(t, StateCompleted, sum.State)
	}

	files := listTree(t, outputs[0])
	assert.Equal(t, files, listTree(t, outputs[1]))
	for _, f := range files {
		if filepath.Ext(f) == "" {
			continue
		}
		a, err := os.ReadFile(filepath.Join(outputs[0], f))
		require.NoError(t, err)
		b, err := os.ReadFile(filepath.Join(outputs[1], f))
		require.NoError(t, err)
		assert.Equal(t, a, b, f)
	}
}

func TestExport_CartHTMLDisambiguation(t *testing.T) {
	src := t.TempDir()
	first := filepath.Join(src, "one", "note.md")
	second := filepath.Join(src, "two", "note.md")
	writeFile(t, first, "# First\n")
	writeFile(t, second, "# Second\n")
	cart, err := notebook.NewCart(first, second)
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.Source = SourceCart
	opts.Target = HTMLOptions{EmbedCSSStyle: true, CompleteHTML: true}
	out := t.TempDir()

	sum, err := newTestExporter(nil, nil).Export(context.Background(), opts, cart, out, nil)
	require.NoError(t, err)
	assert.Empty(t, sum.Errors)
	assert.Equal(t, 2, sum.FilesSucceeded)
	assert.Equal(t, []string{"note.html", "note_1.html"}, listTree(t, out))

	a, err := os.ReadFile(filepath.Join(out, "note.html"))
	require.NoError(t, err)
	b, err := os.ReadFile(filepath.Join(out, "note_1.html"))
	require.NoError(t, err)
	assert.Contains(t, string(a), "First")
	assert.Contains(t, string(b), "Second")
	assert.Contains(t, string(a), "<!DOCTYPE html>")
	assert.Contains(t, string(a), "<style")
}

func TestExport_NotebookWithEmptyFolder(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "only.md"), "# Only\n")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0755))
	nb, err := notebook.OpenNotebook(root)
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.Source = SourceCurrentNotebook
	opts.Target = DefaultHTMLOptions()
	out := t.TempDir()

	sum, err := newTestExporter(nil, nil).Export(context.Background(), opts, nb, out, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.FilesSucceeded)
	assert.Equal(t, []string{"only.html"}, listTree(t, out))
}

func TestExport_MissingToolFailsFast(t *testing.T) {
	root := makeNotebook(t)
	out := filepath.Join(t.TempDir(), "out")

	opts := DefaultOptions()
	opts.Source = SourceCurrentFolder
	opts.Target = PDFOptions{UseExternalTool: true, ExternalToolPath: filepath.Join(root, "no-such-tool")}
	runner := &fakeRunner{}
	sink := &MemorySink{}

	run, err := newTestExporter(runner, nil).Start(context.Background(), opts, openFolder(t, root), out, sink)
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "pdf.tool_path", ce.Field)

	require.NotNil(t, run)
	assert.Equal(t, StateFailed, run.State())
	sum, err := run.Result()
	require.NoError(t, err)
	assert.Equal(t, 0, sum.FilesAttempted)
	assert.Same(t, ce, sum.Err)

	assert.Empty(t, runner.Calls())
	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
	require.Len(t, sink.Lines(), 1)
	assert.Contains(t, sink.Lines()[0], "Export failed")
}

func TestExport_BrowserFailureFailsFast(t *testing.T) {
	root := makeNotebook(t)
	out := filepath.Join(t.TempDir(), "out")
	opts := DefaultOptions()
	opts.Source = SourceCurrentFolder
	opts.Target = DefaultPDFOptions()

	_, err := newTestExporter(nil, nil).Export(context.Background(), opts, openFolder(t, root), out, nil)
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "browser", ce.Field)
	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
}

func TestExport_UnwritableOutputRoot(t *testing.T) {
	root := makeNotebook(t)
	file := filepath.Join(t.TempDir(), "file")
	writeFile(t, file, "x")

	_, err := newTestExporter(nil, nil).Export(context.Background(), DefaultOptions(), &notebook.File{Path: filepath.Join(root, "a.md")}, file, nil)
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "output", ce.Field)
}

func TestExport_RefusesToOverwriteSource(t *testing.T) {
	root := makeNotebook(t)
	_, err := newTestExporter(nil, nil).Export(context.Background(), DefaultOptions(), &notebook.File{Path: filepath.Join(root, "a.md")}, root, nil)
	assert.True(t, IsConfigError(err))

	data, readErr := os.ReadFile(filepath.Join(root, "a.md"))
	require.NoError(t, readErr)
	assert.Equal(t, "# A\n", string(data))
}

func TestExport_UnknownRenderer(t *testing.T) {
	root := makeNotebook(t)
	opts := DefaultOptions()
	opts.Target = DefaultHTMLOptions()
	opts.Render.Renderer = "markdown-it"

	_, err := newTestExporter(nil, nil).Export(context.Background(), opts, &notebook.File{Path: filepath.Join(root, "a.md")}, t.TempDir(), nil)
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "render.renderer", ce.Field)
}

func TestExport_BestEffort(t *testing.T) {
	root := makeNotebook(t)
	out := t.TempDir()
	opts := DefaultOptions()
	opts.Source = SourceCurrentFolder
	opts.ProcessSubfolders = true
	opts.Target = PDFOptions{UseExternalTool: true, ExternalToolPath: fakeTool(t)}
	sink := &MemorySink{}

	sum, err := newTestExporter(&fakeRunner{exitCode: 2}, nil).Export(context.Background(), opts, openFolder(t, root), out, sink)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, sum.State)
	assert.Equal(t, 4, sum.FilesAttempted)
	assert.Equal(t, 0, sum.FilesSucceeded)
	require.Len(t, sum.Errors, 4)
	assert.Equal(t, "a.md", sum.Errors[0].RelPath)
	assert.ErrorIs(t, sum.Errors[0], ErrToolFailed)

	// failed notes leave no folders behind
	assert.Empty(t, listTree(t, out))
	assert.Len(t, sink.Lines(), 6)
}

func TestExport_ExternalToolPDF(t *testing.T) {
	root := makeNotebook(t)
	out := t.TempDir()
	opts := DefaultOptions()
	opts.Source = SourceCurrentNotebook
	tool := fakeTool(t)
	opts.Target = PDFOptions{UseExternalTool: true, ExternalToolPath: tool, EnableTableOfContents: true}
	runner := &fakeRunner{}
	nb, err := notebook.OpenNotebook(root)
	require.NoError(t, err)

	sum, err := newTestExporter(runner, nil).Export(context.Background(), opts, nb, out, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, sum.FilesSucceeded)
	assert.Equal(t, []string{"a.pdf", "b.pdf", "sub/", "sub/c.pdf", "sub/deep/", "sub/deep/d.pdf"}, listTree(t, out))
	for _, call := range runner.Calls() {
		assert.Equal(t, tool, call[0])
		assert.Equal(t, "toc", call[len(call)-3])
	}
}

func TestExport_BuiltinPDF(t *testing.T) {
	root := makeNotebook(t)
	printer := &fakePrinter{}
	opts := DefaultOptions()
	opts.Source = SourceCurrentFolder
	opts.Target = DefaultPDFOptions()
	out := t.TempDir()

	sum, err := newTestExporter(nil, printer).Export(context.Background(), opts, openFolder(t, root), out, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.FilesSucceeded)
	assert.Equal(t, []string{"a.pdf", "b.pdf"}, listTree(t, out))
	assert.True(t, printer.closed)
}

func TestExport_CancelInterruptsTool(t *testing.T) {
	root := makeNotebook(t)
	out := t.TempDir()
	opts := DefaultOptions()
	opts.Source = SourceCurrentFolder
	opts.ProcessSubfolders = true
	opts.Target = PDFOptions{UseExternalTool: true, ExternalToolPath: fakeTool(t)}
	runner := &fakeRunner{block: 2, started: make(chan struct{})}

	run, err := newTestExporter(runner, nil).Start(context.Background(), opts, openFolder(t, root), out, nil)
	require.NoError(t, err)

	select {
	case <-runner.started:
	case <-time.After(10 * time.Second):
		t.Fatal("second conversion never started")
	}
	run.Cancel()
	run.Cancel()

	sum := run.Wait()
	assert.Equal(t, StateCancelled, sum.State)
	assert.Equal(t, 2, sum.FilesAttempted)
	assert.Equal(t, 1, sum.FilesSucceeded)
	assert.Empty(t, sum.Errors)
	assert.Len(t, runner.Calls(), 2)
	assert.Equal(t, []string{"a.pdf"}, listTree(t, out))

	// no effect once finished
	run.Cancel()
	assert.Equal(t, StateCancelled, run.State())
}

func TestExport_ContextCancelBeforeFirstNote(t *testing.T) {
	root := makeNotebook(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opts := DefaultOptions()
	opts.Source = SourceCurrentFolder
	sum, err := newTestExporter(nil, nil).Export(ctx, opts, openFolder(t, root), t.TempDir(), nil)
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, sum.State)
	assert.Equal(t, 0, sum.FilesAttempted)
	assert.Equal(t, 2, sum.FilesTotal)
}

func TestExporter_OneRunAtATime(t *testing.T) {
	root := makeNotebook(t)
	opts := DefaultOptions()
	opts.Source = SourceCurrentFolder
	opts.Target = PDFOptions{UseExternalTool: true, ExternalToolPath: fakeTool(t)}
	runner := &fakeRunner{block: 1, started: make(chan struct{})}
	e := newTestExporter(runner, nil)

	run, err := e.Start(context.Background(), opts, openFolder(t, root), t.TempDir(), nil)
	require.NoError(t, err)
	<-runner.started

	_, err = run.Result()
	assert.ErrorIs(t, err, ErrRunNotFinished)
	assert.Equal(t, StateRunning, run.Snapshot().State)
	assert.Equal(t, 2, run.Snapshot().Total)

	second, err := e.Start(context.Background(), DefaultOptions(), &notebook.File{Path: filepath.Join(root, "a.md")}, t.TempDir(), nil)
	assert.Nil(t, second)
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	run.Cancel()
	<-run.Done()
	assert.Same(t, run, e.Active())

	// a new run may start once the previous one ended
	_, err = e.Export(context.Background(), DefaultOptions(), &notebook.File{Path: filepath.Join(root, "a.md")}, t.TempDir(), nil)
	assert.NoError(t, err)
}

type progressRecorder struct {
	MemorySink
	snapshots []Progress
}

func (p *progressRecorder) Progress(s Progress) {
	p.snapshots = append(p.snapshots, s)
}

func TestExport_ProgressMonotonic(t *testing.T) {
	root := makeNotebook(t)
	opts := DefaultOptions()
	opts.Source = SourceCurrentNotebook
	nb, err := notebook.OpenNotebook(root)
	require.NoError(t, err)
	rec := &progressRecorder{}

	_, err = newTestExporter(nil, nil).Export(context.Background(), opts, nb, t.TempDir(), rec)
	require.NoError(t, err)

	require.NotEmpty(t, rec.snapshots)
	for i := 1; i < len(rec.snapshots); i++ {
		assert.GreaterOrEqual(t, rec.snapshots[i].Attempted, rec.snapshots[i-1].Attempted)
		assert.GreaterOrEqual(t, rec.snapshots[i].Succeeded, rec.snapshots[i-1].Succeeded)
	}
	last := rec.snapshots[len(rec.snapshots)-1]
	assert.Equal(t, StateCompleted, last.State)
	assert.Equal(t, 1.0, last.Fraction())
}

func TestExport_MalformedExtraArgsFailEachNote(t *testing.T) {
	root := makeNotebook(t)
	out := t.TempDir()
	opts := DefaultOptions()
	opts.Source = SourceCurrentFolder
	opts.Target = PDFOptions{
		UseExternalTool:  true,
		ExternalToolPath: fakeTool(t),
		ExtraArguments:   `--title "unterminated`,
	}
	runner := &fakeRunner{}

	sum, err := newTestExporter(runner, nil).Export(context.Background(), opts, openFolder(t, root), out, nil)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, sum.State)
	assert.Equal(t, 2, sum.FilesAttempted)
	assert.Equal(t, 0, sum.FilesSucceeded)
	require.Len(t, sum.Errors, 2)
	for _, fe := range sum.Errors {
		assert.ErrorIs(t, fe, ErrToolFailed)
	}
	assert.Empty(t, runner.Calls())
	assert.Empty(t, listTree(t, out))
}

func TestExport_CancelThroughActiveDuringStart(t *testing.T) {
	root := makeNotebook(t)
	opts := DefaultOptions()
	opts.Source = SourceCurrentFolder
	folder := openFolder(t, root)

	for i := 0; i < 200; i++ {
		e := newTestExporter(nil, nil)
		cancelled := make(chan struct{})
		go func() {
			defer close(cancelled)
			for {
				if run := e.Active(); run != nil {
					run.Cancel()
					return
				}
			}
		}()

		run, err := e.Start(context.Background(), opts, folder, t.TempDir(), nil)
		require.NoError(t, err)
		<-cancelled
		sum := run.Wait()
		assert.True(t, sum.State.Terminal(), "iteration %d: %s", i, sum.State)
	}
}

func TestExport_LateCancelStillCompletes(t *testing.T) {
	root := makeNotebook(t)
	opts := DefaultOptions()
	opts.Source = SourceCurrentFolder
	e := newTestExporter(nil, nil)

	sink := SinkFunc(func(line string) {
		if strings.HasPrefix(line, "Exported b.md") {
			e.Active().Cancel()
		}
	})
	sum, err := e.Export(context.Background(), opts, openFolder(t, root), t.TempDir(), sink)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, sum.State)
	assert.Equal(t, 2, sum.FilesAttempted)
	assert.Equal(t, 2, sum.FilesSucceeded)
}

func TestExport_SameStemInFolderHTML(t *testing.T) {
	root := makeNotebook(t)
	writeFile(t, filepath.Join(root, "a.markdown"), "# Other A\n")
	out := t.TempDir()
	opts := DefaultOptions()
	opts.Source = SourceCurrentFolder
	opts.Target = HTMLOptions{EmbedCSSStyle: true, CompleteHTML: true}

	sum, err := newTestExporter(nil, nil).Export(context.Background(), opts, openFolder(t, root), out, nil)
	require.NoError(t, err)
	assert.Empty(t, sum.Errors)
	assert.Equal(t, 3, sum.FilesSucceeded)
	assert.Equal(t, []string{"a.html", "a_1.html", "b.html"}, listTree(t, out))

	first, err := os.ReadFile(filepath.Join(out, "a.html"))
	require.NoError(t, err)
	second, err := os.ReadFile(filepath.Join(out, "a_1.html"))
	require.NoError(t, err)
	assert.Contains(t, string(first), "Other A")
	assert.NotContains(t, string(second), "Other A")
}

func TestExport_CartMarkdownImageConflict(t *testing.T) {
	src := t.TempDir()
	one := filepath.Join(src, "d1", "one.md")
	two := filepath.Join(src, "d2", "two.md")
	three := filepath.Join(src, "d3", "three.md")
	for _, note := range []string{one, two, three} {
		writeFile(t, note, "![pic](img.png)\n")
	}
	writeFile(t, filepath.Join(src, "d1", "img.png"), "first image")
	writeFile(t, filepath.Join(src, "d2", "img.png"), "second image")
	writeFile(t, filepath.Join(src, "d3", "img.png"), "first image")
	cart, err := notebook.NewCart(one, two, three)
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.Source = SourceCart
	out := t.TempDir()

	sum, err := newTestExporter(nil, nil).Export(context.Background(), opts, cart, out, nil)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, sum.State)
	assert.Equal(t, 2, sum.FilesSucceeded)
	require.Len(t, sum.Errors, 1)
	assert.Equal(t, "two.md", sum.Errors[0].RelPath)
	assert.ErrorIs(t, sum.Errors[0], ErrImageConflict)
	assert.Contains(t, sum.Errors[0].Message, "one.md")

	// identical images may share the copy, a different one never replaces it
	assert.Equal(t, []string{"img.png", "one.md", "three.md"}, listTree(t, out))
	data, err := os.ReadFile(filepath.Join(out, "img.png"))
	require.NoError(t, err)
	assert.Equal(t, "first image", string(data))
}
