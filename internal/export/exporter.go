// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eqio/vnote/internal/notebook"
	"github.com/eqio/vnote/internal/render"
	"github.com/eqio/vnote/internal/util"
)

// =============================================================================
// EXPORTER
// =============================================================================

// Config wires the collaborators of an Exporter. Zero fields get defaults:
// the built-in renderers, a filesystem tree, os/exec processes, headless
// Chrome and a no-op logger.
type Config struct {
	Registry *render.Registry
	Tree     Tree
	Runner   ProcessRunner
	Printers PrinterFactory
	Logger   *zap.Logger

	// Now is the clock used for run timestamps
	Now func() time.Time
}

// Exporter starts export runs, one at a time.
type Exporter struct {
	registry *render.Registry
	tree     Tree
	runner   ProcessRunner
	printers PrinterFactory
	logger   *zap.Logger
	now      func() time.Time

	html *HTMLPackager

	mu     sync.Mutex
	active *Run
}

// New creates an Exporter.
func New(cfg Config) *Exporter {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Registry == nil {
		cfg.Registry = render.NewRegistry(render.Options{})
	}
	if cfg.Tree == nil {
		cfg.Tree = notebook.NewFSTree()
	}
	if cfg.Runner == nil {
		cfg.Runner = NewExecRunner(cfg.Logger)
	}
	if cfg.Printers == nil {
		cfg.Printers = ChromeFactory(BrowserOptions{Logger: cfg.Logger})
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Exporter{
		registry: cfg.Registry,
		tree:     cfg.Tree,
		runner:   cfg.Runner,
		printers: cfg.Printers,
		logger:   cfg.Logger,
		now:      cfg.Now,
		html:     NewHTMLPackager(cfg.Logger),
	}
}

// Active returns the most recent run, or nil if none was started.
func (e *Exporter) Active() *Run {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// job is everything a run needs once preflight has passed.
type job struct {
	opts       Options
	outputRoot string
	renderer   render.Renderer
	items      []Item
	unreadable []FileError
	pdf        *PDFGenerator
	printer    Printer
	images     imageClaims
}

// Start validates the configuration and starts a run in the background.
//
// It returns ErrAlreadyRunning while another run of this Exporter has not
// ended. Configuration problems (unknown renderer or style, missing or
// non-executable tool, invalid source handle, unwritable output root,
// browser that does not start) are detected before any note is touched:
// the returned Run is already Failed and the error is a *ConfigError.
//
// Cancelling ctx has the same effect as Run.Cancel.
func (e *Exporter) Start(ctx context.Context, opts Options, h Handle, outputRoot string, sink Sink) (*Run, error) {
	if sink == nil {
		sink = NopSink{}
	}

	e.mu.Lock()
	if e.active != nil && !e.active.State().Terminal() {
		e.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	// The run is visible through Active from here on, so everything Cancel
	// touches exists before it is published
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	run := newRun(opts, outputRoot, e.now(), cancel)
	e.active = run
	e.mu.Unlock()

	if err := run.setState(StateRunning); err != nil {
		cancel()
		return nil, err
	}

	logger := e.logger.With(zap.String("run_id", run.ID))
	j, err := e.preflight(ctx, opts, h, outputRoot)
	if err != nil {
		summary := run.finish(StateFailed, err, e.now())
		logger.Warn("export preflight failed", zap.Error(err))
		sink.LogLine(summary.Line())
		run.markDone()
		return run, err
	}
	run.setOutputRoot(j.outputRoot)

	stop := context.AfterFunc(ctx, run.Cancel)
	if ctx.Err() != nil {
		run.Cancel()
	}

	logger.Info("export started",
		zap.Stringer("source", opts.Source),
		zap.Stringer("format", opts.Format()),
		zap.String("output", j.outputRoot),
		zap.Int("notes", len(j.items)),
	)

	go func() {
		defer stop()
		e.execute(runCtx, run, j, sink, logger)
	}()
	return run, nil
}

// Export runs to completion and returns the summary. The error is the
// configuration error of a failed run or ErrAlreadyRunning.
func (e *Exporter) Export(ctx context.Context, opts Options, h Handle, outputRoot string, sink Sink) (Summary, error) {
	run, err := e.Start(ctx, opts, h, outputRoot, sink)
	if run == nil {
		return Summary{}, err
	}
	return run.Wait(), err
}

// =============================================================================
// PREFLIGHT
// =============================================================================

func (e *Exporter) preflight(ctx context.Context, opts Options, h Handle, outputRoot string) (*job, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	j := &job{opts: opts, images: imageClaims{}}

	if opts.Format() != FormatMarkdown {
		r, err := e.registry.Get(opts.Render.Renderer)
		if err != nil {
			return nil, &ConfigError{Field: "render.renderer", Reason: "unknown renderer", Err: err}
		}
		if err := e.registry.Theme().Check(opts.Render.Style, opts.Render.CodeBlockStyle, opts.Render.Background); err != nil {
			return nil, &ConfigError{Field: "render.style", Reason: "unknown style", Err: err}
		}
		j.renderer = r
	}

	pdfOpts, isPDF := opts.Target.(PDFOptions)
	if isPDF {
		j.pdf = NewPDFGenerator(e.runner, nil, e.logger)
		if pdfOpts.UseExternalTool {
			tool, err := LookupTool(pdfOpts.ExternalToolPath)
			if err != nil {
				return nil, &ConfigError{
					Field:  "pdf.tool_path",
					Reason: fmt.Sprintf("%q is not an executable file", pdfOpts.ExternalToolPath),
					Err:    err,
				}
			}
			j.pdf.toolPath = tool
		}
	}

	items, unreadable, err := Resolve(e.tree, opts.Source, h, opts.ProcessSubfolders)
	if err != nil {
		return nil, err
	}
	j.items, j.unreadable = items, unreadable

	root, created, err := prepareOutputRoot(outputRoot)
	if err != nil {
		return nil, err
	}
	j.outputRoot = root

	for _, it := range items {
		if filepath.Join(root, OutputRel(it.RelPath, opts.Target)) == filepath.Clean(it.SourcePath) {
			removeIfCreated(root, created)
			return nil, &ConfigError{Field: "output", Reason: fmt.Sprintf("export would overwrite the note %s", it.RelPath)}
		}
	}

	if isPDF && !pdfOpts.UseExternalTool && len(items) > 0 {
		printer, err := e.printers(ctx)
		if err != nil {
			removeIfCreated(root, created)
			return nil, &ConfigError{Field: "browser", Reason: "cannot start the built-in printer", Err: err}
		}
		j.printer = printer
		j.pdf.printer = printer
	}
	return j, nil
}

// prepareOutputRoot makes sure root is a writable directory, creating it if
// needed. created reports whether the directory did not exist before.
func prepareOutputRoot(root string) (string, bool, error) {
	if root == "" {
		return "", false, &ConfigError{Field: "output", Reason: "no output folder given"}
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", false, &ConfigError{Field: "output", Reason: "invalid path", Err: err}
	}

	created := false
	info, err := os.Stat(abs)
	switch {
	case err == nil && !info.IsDir():
		return "", false, &ConfigError{Field: "output", Reason: fmt.Sprintf("%s is not a folder", abs), Err: notebook.ErrNotDirectory}
	case errors.Is(err, os.ErrNotExist):
		created = true
	case err != nil:
		return "", false, &ConfigError{Field: "output", Reason: "cannot access folder", Err: err}
	}

	probe, err := util.TempSibling(filepath.Join(abs, "probe"), "")
	if err != nil {
		return "", false, &ConfigError{Field: "output", Reason: fmt.Sprintf("%s is not writable", abs), Err: err}
	}
	os.Remove(probe)
	return abs, created, nil
}

func removeIfCreated(root string, created bool) {
	if created {
		os.Remove(root)
	}
}

// =============================================================================
// RUN LOOP
// =============================================================================

func (e *Exporter) execute(ctx context.Context, run *Run, j *job, sink Sink, logger *zap.Logger) {
	defer run.markDone()
	if j.printer != nil {
		defer j.printer.Close()
	}

	run.total.Store(int64(len(j.items)))
	sink.LogLine(fmt.Sprintf("Exporting %d note(s) from %s as %s to %s",
		len(j.items), j.opts.Source, j.opts.Format(), j.outputRoot))
	for _, fe := range j.unreadable {
		run.addError(fe)
		sink.LogLine(fmt.Sprintf("Failed to read %s: %s", fe.RelPath, fe.Message))
	}
	reportProgress(sink, run)

	interrupted := false
	for _, item := range j.items {
		if run.CancelRequested() {
			interrupted = true
			break
		}

		run.setCurrent(item.RelPath)
		run.attempted.Add(1)
		outRel := OutputRel(item.RelPath, j.opts.Target)
		dest := filepath.Join(j.outputRoot, outRel)

		detail, err := e.exportItem(ctx, j, item, dest, sink)
		switch {
		case err == nil:
			run.succeeded.Add(1)
			sink.LogLine(fmt.Sprintf("Exported %s -> %s%s", item.RelPath, outRel, detail))
		case run.CancelRequested() && errors.Is(err, context.Canceled):
			interrupted = true
			sink.LogLine(fmt.Sprintf("Cancelled while exporting %s", item.RelPath))
		default:
			run.addError(newFileError(item.RelPath, err))
			sink.LogLine(fmt.Sprintf("Failed to export %s: %v", item.RelPath, err))
			logger.Debug("note export failed", zap.String("note", item.SourcePath), zap.Error(err))
			pruneEmptyDirs(filepath.Dir(dest), j.outputRoot)
		}
		reportProgress(sink, run)
	}

	// A cancel that arrives after the last note was attempted changes nothing
	state := StateCompleted
	if interrupted {
		state = StateCancelled
	}
	summary := run.finish(state, nil, e.now())
	reportProgress(sink, run)
	sink.LogLine(summary.Line())
	logger.Info("export finished",
		zap.Stringer("state", summary.State),
		zap.Int("attempted", summary.FilesAttempted),
		zap.Int("succeeded", summary.FilesSucceeded),
		zap.Int("failed", summary.FilesFailed()),
		zap.Duration("duration", summary.Duration()),
	)
}

// exportItem converts one note and returns a suffix for its log line.
func (e *Exporter) exportItem(ctx context.Context, j *job, item Item, dest string, sink Sink) (string, error) {
	src, err := os.ReadFile(item.SourcePath)
	if err != nil {
		return "", fmt.Errorf("read note: %w", err)
	}

	switch t := j.opts.Target.(type) {
	case MarkdownTarget:
		n, err := exportMarkdown(src, item, dest, j.images, sink)
		if err != nil {
			return "", err
		}
		if n > 0 {
			return fmt.Sprintf(" (%d image(s))", n), nil
		}
		return "", nil

	case HTMLOptions:
		doc, err := j.render(ctx, item, src)
		if err != nil {
			return "", err
		}
		return "", e.html.Package(doc, t, dest, sink)

	case PDFOptions:
		doc, err := j.render(ctx, item, src)
		if err != nil {
			return "", err
		}
		pages, err := j.pdf.Generate(ctx, doc, t, dest, sink)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf(" (%d page(s))", pages), nil

	default:
		return "", fmt.Errorf("unsupported target %T", t)
	}
}

// render converts a note. Rendering is never interrupted by cancellation.
func (j *job) render(ctx context.Context, item Item, src []byte) (*render.Result, error) {
	doc, err := j.renderer.Render(context.WithoutCancel(ctx), render.Request{
		Source:         src,
		SourcePath:     item.SourcePath,
		Style:          j.opts.Render.Style,
		CodeBlockStyle: j.opts.Render.CodeBlockStyle,
		Background:     j.opts.Render.Background,
	})
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return doc, nil
}

func reportProgress(sink Sink, run *Run) {
	if ps, ok := sink.(ProgressSink); ok {
		ps.Progress(run.Snapshot())
	}
}

// pruneEmptyDirs removes dir and its parents up to, not including, root
// while they are empty, so a failed note leaves no empty folder behind.
func pruneEmptyDirs(dir, root string) {
	for dir != root && len(dir) > len(root) {
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}
