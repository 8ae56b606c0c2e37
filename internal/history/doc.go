// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package history stores finished export runs in SQLite.
//
// Every run, including one that failed its configuration check, is written
// with its counters and per-note errors so `vnote-export history` can list
// what happened after the terminal is gone.
//
// # Key Types
//
//   - Store: the database handle
//   - Record: one stored run
//
// # Usage
//
//	store, err := history.Open(cfg.History.Path, logger)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//	err = store.Record(ctx, run.Wait())
package history
