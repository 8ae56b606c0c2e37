// vnote-export - export notes, folders, notebooks and carts to Markdown,
// HTML or PDF.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/eqio/vnote/internal/cli"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	// Sync version info with cli package
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	// ctrl+c cancels the running export; the command decides the exit code
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, args := cli.Parse()
	if err := cli.Run(ctx, cmd, args); err != nil {
		stop()
		cli.HandleErrorAndExit(err, args.JSON)
	}
}
