// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export converts notes to Markdown, HTML, MIME HTML or PDF.
//
// A run resolves a source scope (one note, a folder, a whole notebook or
// the cart) to a list of notes, checks the configuration before touching
// any of them, and then exports each note in turn. A note that fails is
// recorded and the run moves on; a configuration problem fails the run
// before any output is written.
//
// # Key Types
//
//   - Options: source scope, render settings and the format Target
//   - Exporter: starts runs, one at a time
//   - Run: Idle -> Running -> Completed, Cancelled or Failed
//   - Summary: counters and per-note errors of a finished run
//   - Sink, ProgressSink: receive log lines and progress snapshots
//   - HTMLPackager, PDFGenerator: write one rendered note
//
// # PDF
//
// PDFs are printed by headless Chrome through chromedp, or by an external
// wkhtmltopdf-compatible tool when PDFOptions.UseExternalTool is set. The
// external tool is interrupted when the run is cancelled. Every PDF is
// validated with pdfcpu before it is moved into place.
//
// # Usage
//
//	e := export.New(export.Config{Logger: logger})
//	opts := export.DefaultOptions()
//	opts.Source = export.SourceCurrentFolder
//	opts.Target = export.DefaultHTMLOptions()
//	run, err := e.Start(ctx, opts, folder, "/tmp/out", sink)
//	if err != nil {
//	    return err
//	}
//	summary := run.Wait()
package export
