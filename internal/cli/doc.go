// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and the command handlers of
// vnote-export.
//
// # Key Types
//
//   - Command: Enumeration of the CLI commands
//   - Args: Global flags plus an ArgParser for the command's own flags
//   - App: Loaded configuration, logger and output streams of one invocation
//   - ExportResultError: an export that ended with failed notes or was cancelled
//
// # Usage
//
//	cmd, args := cli.Parse()
//	if err := cli.Run(ctx, cmd, args); err != nil {
//	    cli.HandleErrorAndExit(err, args.JSON)
//	}
//
// # Commands Overview
//
//   - export: run an export, with a progress view on a terminal
//   - preview: print the export plan without writing anything
//   - watch: export again whenever a note in the scope changes
//   - history: list and inspect recorded runs
//   - config: show, initialise and edit the defaults
//
// Every command accepts --json and then writes one JSON document to stdout.
package cli
