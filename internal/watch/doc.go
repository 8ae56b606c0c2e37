// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package watch re-exports notes when they change.
//
// Watcher turns fsnotify events into debounced batches of changed notes.
// Rerunner keeps one export in flight: a new batch cancels the running
// export, waits for it to end and starts a fresh one.
//
// # Usage
//
//	w, err := watch.New(watch.Config{Paths: []string{folder}, Recursive: true})
//	if err != nil {
//	    return err
//	}
//	defer w.Close()
//	rr := watch.NewRerunner(start, logger)
//	err = w.Run(ctx, func(ctx context.Context, changed []string) {
//	    rr.Trigger(ctx, changed)
//	})
package watch
