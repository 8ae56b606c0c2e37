// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// watch_cmd.go - The watch command.
//
// Command: watch [flags] [PATH]
// Short:   Export, then export again whenever a note changes
// Aliases: w
//
// Takes the same flags as export, plus:
//   --debounce MS    Quiet period before a batch of changes triggers a run
//
// A change while a run is in flight cancels that run and starts a new one.
// Stop with ctrl+c.
package cli

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eqio/vnote/internal/export"
	"github.com/eqio/vnote/internal/notebook"
	"github.com/eqio/vnote/internal/watch"
)

// HandleWatch handles the "watch" command.
func HandleWatch(ctx context.Context, app *App, args Args) error {
	req, err := buildExportRequest(app.Config, args.Parser)
	if err != nil {
		return err
	}

	debounce := watch.DefaultDebounce
	if args.Parser.Flag("debounce") != "" {
		ms, err := ParseIntWithValidation(args.Parser.Flag("debounce"), "debounce")
		if err != nil {
			return NewValidationError("debounce", args.Parser.Flag("debounce"), err.Error())
		}
		debounce = time.Duration(ms) * time.Millisecond
	}

	paths, recursive := watchPaths(req)
	tree := notebook.NewFSTree(req.Config.Notebook.Extensions...)
	w, err := watch.New(watch.Config{
		Paths:     paths,
		Recursive: recursive,
		IsNote:    tree.IsNote,
		Ignore:    []string{req.OutputRoot},
		Debounce:  debounce,
		Logger:    app.Logger,
	})
	if err != nil {
		return NewCommandError("watch", "start watcher", "cannot watch "+req.SourcePath, err)
	}
	defer w.Close()

	exporter := newExporter(req.Config, app.Logger)
	out := app.Stdout
	if args.JSON {
		out = app.Stderr
	}
	sink := plainSink(out)

	var pending sync.WaitGroup
	start := func(ctx context.Context) (*export.Run, error) {
		run, err := exporter.Start(ctx, req.Options, req.Handle, req.OutputRoot, sink)
		if run != nil {
			pending.Add(1)
			go func() {
				defer pending.Done()
				recordRun(ctx, app, run.Wait())
			}()
		}
		return run, err
	}
	rerunner := watch.NewRerunner(start, app.Logger)

	fmt.Fprintln(out, TitleStyle.Render(fmt.Sprintf("Watching %s (ctrl+c to stop)", req.SourcePath)))
	// A configuration error will not fix itself by editing notes
	if _, err := rerunner.Trigger(ctx, nil); err != nil {
		pending.Wait()
		return err
	}

	err = w.Run(ctx, func(ctx context.Context, changed []string) {
		app.Logger.Info("notes changed", zap.Int("count", len(changed)))
		fmt.Fprintln(out, DimStyle.Render(fmt.Sprintf("%d note(s) changed, exporting again", len(changed))))
		if _, err := rerunner.Trigger(ctx, changed); err != nil {
			app.Logger.Warn("export did not start", zap.Error(err))
		}
	})

	rerunner.Stop()
	pending.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// watchPaths returns what to watch for the request's scope.
func watchPaths(req *exportRequest) (paths []string, recursive bool) {
	switch h := req.Handle.(type) {
	case *notebook.File:
		return []string{h.Path}, false
	case *notebook.Directory:
		return []string{h.Path}, req.Options.ProcessSubfolders
	case *notebook.Notebook:
		return []string{h.Root}, true
	case *notebook.Cart:
		return append([]string(nil), h.Files...), false
	default:
		return []string{req.SourcePath}, false
	}
}
