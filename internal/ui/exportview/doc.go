// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package exportview is the bubbletea progress view of an export run.
//
// # Usage
//
//	view := exportview.New("Exporting notes", nil)
//	p := tea.NewProgram(view)
//	sink := exportview.NewSink(p)
//	run, err := exporter.Start(ctx, opts, h, out, sink)
//	view.Attach(run)
//	go func() { sink.Finish(run.Wait()) }()
//	_, err = p.Run()
package exportview
