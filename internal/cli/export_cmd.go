// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// export_cmd.go - The export command.
//
// Command: export [flags] [PATH]
// Short:   Export a note, folder, notebook or cart
// Aliases: x
//
// Examples:
//   vnote-export export --file ~/notes/todo.md -f html -o /tmp/out
//   vnote-export export --folder ~/notes/work -r -f pdf -o /tmp/pdf
//   vnote-export export --source notebook ~/notes -f md -o /tmp/copy
//   vnote-export export --cart reading.yaml --json
//
// Flags default to the [export], [html] and [pdf] sections of the config
// file. With export.remember_last the options of every run that got past
// its checks become the new defaults.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/eqio/vnote/internal/config"
	"github.com/eqio/vnote/internal/export"
	"github.com/eqio/vnote/internal/history"
	"github.com/eqio/vnote/internal/notebook"
	"github.com/eqio/vnote/internal/render"
	"github.com/eqio/vnote/internal/ui/exportview"
	"github.com/eqio/vnote/internal/ui/styles"
)

// =============================================================================
// REQUEST
// =============================================================================

// exportRequest is a fully resolved export invocation.
type exportRequest struct {
	Config     *config.Config // effective config: file + env + flags
	Options    export.Options
	Handle     export.Handle
	SourcePath string // what the user named: note, folder, notebook or cart manifest
	OutputRoot string
}

// sourceFlags maps the handle flags to their scope.
var sourceFlags = []struct {
	flag   string
	source export.Source
}{
	{"file", export.SourceCurrentNote},
	{"folder", export.SourceCurrentFolder},
	{"notebook", export.SourceCurrentNotebook},
	{"cart", export.SourceCart},
}

// buildExportRequest turns flags and configured defaults into a request.
// Bad flag values are *ValidationErrors; a source that does not exist is
// a *NotFoundError.
func buildExportRequest(base *config.Config, p *ArgParser) (*exportRequest, error) {
	cfg := base.Clone()

	sourcePath, err := applySourceFlags(cfg, p)
	if err != nil {
		return nil, err
	}
	if err := applyOptionFlags(cfg, p); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, flagValidationError(err)
	}

	opts, err := cfg.ExportOptions()
	if err != nil {
		return nil, NewValidationError("options", "", err.Error())
	}

	output := p.FirstFlag("output", "o")
	if output == "" {
		output = cfg.Export.OutputDir
	}
	if output == "" {
		return nil, ErrMissingArgument("output", "vnote-export export --folder notes -o /tmp/out")
	}
	output, err = filepath.Abs(output)
	if err != nil {
		return nil, NewValidationError("output", output, err.Error())
	}

	handle, err := openHandle(opts.Source, sourcePath)
	if err != nil {
		return nil, err
	}

	return &exportRequest{
		Config:     cfg,
		Options:    opts,
		Handle:     handle,
		SourcePath: sourcePath,
		OutputRoot: output,
	}, nil
}

// applySourceFlags picks the scope and its path. Exactly one of --file,
// --folder, --notebook and --cart may be given; otherwise the path is the
// first positional and the scope comes from --source or the config.
func applySourceFlags(cfg *config.Config, p *ArgParser) (string, error) {
	var (
		path  string
		given []string
	)
	for _, sf := range sourceFlags {
		if v := p.Flag(sf.flag); v != "" {
			given = append(given, "--"+sf.flag)
			path = v
			cfg.Export.Source = sf.source.String()
		}
	}
	if len(given) > 1 {
		return "", NewValidationErrorWithExample("source", fmt.Sprint(given), "only one source may be given", "--folder notes")
	}

	if name := p.Flag("source"); name != "" {
		src, err := export.ParseSource(name)
		if err != nil {
			return "", NewValidationErrorWithExample("source", name, "unknown source", "note, folder, notebook or cart")
		}
		if len(given) == 1 && src.String() != cfg.Export.Source {
			return "", NewValidationError("source", name, "conflicts with "+given[0])
		}
		cfg.Export.Source = src.String()
	}

	if path == "" {
		path = p.Positional(0)
	}
	if path == "" {
		return "", ErrMissingArgument("source", "vnote-export export --file note.md -o out")
	}
	return path, nil
}

// applyOptionFlags overrides configured defaults with flags.
func applyOptionFlags(cfg *config.Config, p *ArgParser) error {
	if v := p.FirstFlag("format", "f"); v != "" {
		format, err := export.ParseFormat(v)
		if err != nil {
			return NewValidationErrorWithExample("format", v, "unknown format", "md, html or pdf")
		}
		cfg.Export.Format = format.String()
	}

	setString(&cfg.Export.Renderer, p.Flag("renderer"))
	setString(&cfg.Export.Style, p.Flag("style"))
	setString(&cfg.Export.CodeBlockStyle, p.Flag("code-style"))
	setString(&cfg.Export.Background, p.Flag("background"))

	if v, ok := p.BoolOverride("subfolders"); ok {
		cfg.Export.ProcessSubfolders = v
	} else if v, ok := p.BoolOverride("r"); ok {
		cfg.Export.ProcessSubfolders = v
	}

	// HTML
	setBool(&cfg.HTML.EmbedCSS, p, "embed-css")
	setBool(&cfg.HTML.CompleteHTML, p, "complete")
	setBool(&cfg.HTML.MIMEHTML, p, "mhtml")

	// PDF
	if tool := p.Flag("external-tool"); tool != "" {
		cfg.PDF.UseExternalTool = true
		cfg.PDF.ToolPath = tool
	}
	setBool(&cfg.PDF.TableOfContents, p, "toc")
	if v, ok := p.BoolOverride("no-background"); ok {
		cfg.PDF.EnableBackground = !v
	}
	if v := p.Flag("page-number"); v != "" {
		pn, err := export.ParsePageNumber(v)
		if err != nil {
			return NewValidationErrorWithExample("page-number", v, "unknown position", "none, left, center or right")
		}
		cfg.PDF.PageNumber = pn.String()
	}
	if p.HasFlag("extra-args") {
		cfg.PDF.ExtraArgs = p.Flag("extra-args")
	}
	if v := p.Flag("page-size"); v != "" {
		size, err := export.ParsePageSize(v)
		if err != nil {
			return NewValidationErrorWithExample("page-size", v, "unknown page size", "A4 or Letter")
		}
		cfg.PDF.PageSize = string(size)
	}
	if v, ok := p.BoolOverride("landscape"); ok {
		cfg.PDF.Orientation = "portrait"
		if v {
			cfg.PDF.Orientation = "landscape"
		}
	}
	if p.Flag("margin") != "" {
		mm, err := p.FlagFloat("margin")
		if err != nil || mm < 0 {
			return NewValidationErrorWithExample("margin", p.Flag("margin"), "must be a non-negative number of millimetres", "--margin 15")
		}
		cfg.PDF.MarginMM = mm
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setBool(dst *bool, p *ArgParser, name string) {
	if v, ok := p.BoolOverride(name); ok {
		*dst = v
	}
}

// flagValidationError reports the first invalid value as a usage error.
func flagValidationError(err error) error {
	var verrs config.ValidateErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return NewValidationError(verrs[0].Field, "", verrs[0].Message)
	}
	return NewValidationError("options", "", err.Error())
}

// openHandle builds the notebook handle for src.
func openHandle(src export.Source, path string) (export.Handle, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, NewNotFoundError(sourceNoun(src), path)
	}

	var (
		h   export.Handle
		err error
	)
	switch src {
	case export.SourceCurrentNote:
		h, err = notebook.OpenFile(path)
	case export.SourceCurrentFolder:
		h, err = notebook.OpenDirectory(path)
	case export.SourceCurrentNotebook:
		h, err = notebook.OpenNotebook(path)
	case export.SourceCart:
		h, err = notebook.LoadCart(path)
	default:
		return nil, NewValidationError("source", src.String(), "unknown source")
	}
	if err != nil {
		return nil, NewCommandError("export", "open "+sourceNoun(src), path, err)
	}
	return h, nil
}

func sourceNoun(src export.Source) string {
	switch src {
	case export.SourceCurrentNote:
		return "note"
	case export.SourceCurrentFolder:
		return "folder"
	case export.SourceCurrentNotebook:
		return "notebook"
	default:
		return "cart"
	}
}

// =============================================================================
// EXPORTER WIRING
// =============================================================================

// newExporter wires an Exporter from the effective configuration.
func newExporter(cfg *config.Config, logger *zap.Logger) *export.Exporter {
	registry := render.NewRegistry(render.Options{
		Theme:     render.NewTheme(cfg.Render.StyleDir),
		Sanitize:  cfg.Render.Sanitize,
		HardWraps: cfg.Render.HardWraps,
	})
	return export.New(export.Config{
		Registry: registry,
		Tree:     notebook.NewFSTree(cfg.Notebook.Extensions...),
		Runner:   export.NewExecRunner(logger),
		Printers: export.ChromeFactory(export.BrowserOptions{
			ExecPath: cfg.Browser.ChromePath,
			Timeout:  time.Duration(cfg.Browser.TimeoutSecs) * time.Second,
			Logger:   logger,
		}),
		Logger: logger,
	})
}

// =============================================================================
// COMMAND HANDLER
// =============================================================================

// HandleExport handles the "export" command.
func HandleExport(ctx context.Context, app *App, args Args) error {
	req, err := buildExportRequest(app.Config, args.Parser)
	if err != nil {
		return err
	}

	exporter := newExporter(req.Config, app.Logger)
	view := chooseView(args)
	summary, err := runExport(ctx, app, exporter, req, view, args.JSON)
	if summary.ID == "" {
		// Rejected before a run existed
		return err
	}

	recordRun(ctx, app, summary)
	if summary.State != export.StateFailed {
		rememberOptions(app, req)
	}

	if args.JSON {
		resp := NewJSONResponse("export", newSummaryJSON(summary))
		if summary.State != export.StateCompleted || summary.FilesFailed() > 0 {
			resp = NewJSONErrorResponse("export", &ExportResultError{Summary: summary}, newSummaryJSON(summary))
		}
		if perr := resp.Encode(app.Stdout); perr != nil {
			return perr
		}
	}

	if summary.State == export.StateCompleted && summary.FilesFailed() == 0 {
		return nil
	}
	return &ExportResultError{Summary: summary}
}

// viewMode selects how a run is shown.
type viewMode int

const (
	viewProgress viewMode = iota // bubbletea progress view
	viewPlain                    // one styled line per log line
	viewQuiet                    // summary line only
)

func chooseView(args Args) viewMode {
	switch {
	case args.Quiet:
		return viewQuiet
	case args.JSON, args.Parser.BoolFlag("plain"), !CanShowProgressView():
		return viewPlain
	default:
		return viewProgress
	}
}

// runExport starts the run and shows it until it ends. The returned
// summary has an empty ID only when no run was started.
func runExport(ctx context.Context, app *App, exporter *export.Exporter, req *exportRequest, view viewMode, jsonMode bool) (export.Summary, error) {
	if view == viewProgress {
		return runWithProgressView(ctx, exporter, req)
	}

	// In JSON mode stdout carries only the JSON document
	out := app.Stdout
	if jsonMode {
		out = app.Stderr
	}

	var sink export.Sink = plainSink(out)
	if view == viewQuiet {
		sink = export.NopSink{}
	}

	run, err := exporter.Start(ctx, req.Options, req.Handle, req.OutputRoot, sink)
	if run == nil {
		return export.Summary{}, err
	}
	summary := run.Wait()
	if view == viewQuiet {
		fmt.Fprintln(out, styles.RenderLogLine(summary.Line()))
	}
	return summary, err
}

// plainSink prints each log line, styled by its prefix.
func plainSink(w io.Writer) export.Sink {
	return export.SinkFunc(func(line string) {
		fmt.Fprintln(w, styles.RenderLogLine(line))
	})
}

// runWithProgressView shows the run in the bubbletea progress view. q or
// ctrl+c in the view cancels the run; the view stays until the run ends.
func runWithProgressView(ctx context.Context, exporter *export.Exporter, req *exportRequest) (export.Summary, error) {
	model := exportview.New(progressTitle(req), styles.NewTheme())
	program := tea.NewProgram(model, tea.WithContext(ctx))
	sink := exportview.NewSink(program)

	run, startErr := exporter.Start(ctx, req.Options, req.Handle, req.OutputRoot, sink)
	if run == nil {
		// Never started; Kill releases the sink's pending sends
		program.Kill()
		sink.Finish(export.Summary{})
		return export.Summary{}, startErr
	}
	model.Attach(run)

	go func() {
		sink.Finish(run.Wait())
	}()

	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		run.Cancel()
		summary := run.Wait()
		return summary, fmt.Errorf("progress view: %w", err)
	}

	return run.Wait(), startErr
}

func progressTitle(req *exportRequest) string {
	return fmt.Sprintf("Exporting %s %s as %s",
		sourceNoun(req.Options.Source), filepath.Base(req.SourcePath), req.Options.Format())
}

// recordRun stores the run in the history database. Failures are logged,
// never returned: the export itself already happened.
func recordRun(ctx context.Context, app *App, summary export.Summary) {
	store, err := app.OpenHistory()
	if err != nil {
		app.Logger.Warn("run history unavailable", zap.Error(err))
		return
	}
	if store == nil {
		return
	}
	defer store.Close()

	// Record even when ctx was cancelled; a cancelled run is history too
	if err := store.Record(context.WithoutCancel(ctx), summary); err != nil {
		app.Logger.Warn("failed to record run", zap.String("run_id", summary.ID), zap.Error(err))
	}
	if _, err := store.Prune(context.WithoutCancel(ctx), history.DefaultKeep); err != nil {
		app.Logger.Debug("history prune failed", zap.Error(err))
	}
}

// rememberOptions makes the options of this run the new defaults.
func rememberOptions(app *App, req *exportRequest) {
	if !req.Config.Export.RememberLast {
		return
	}
	app.Config.Remember(req.Options, req.OutputRoot)
	if err := app.SaveConfig(); err != nil {
		app.Logger.Warn("failed to remember export options", zap.Error(err))
	}
}
