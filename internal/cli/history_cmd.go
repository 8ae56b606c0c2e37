// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// history_cmd.go - The history command.
//
// Command: history [subcommand]
// Short:   Show past export runs
// Aliases: runs
//
// Subcommands:
//   list (default)     List recent runs
//   show <id>          Show one run with its failed notes
//   prune              Delete all but the newest runs
//
// Flags:
//   --limit N          Runs to list (default: 20)
//   --keep N           Runs to keep when pruning (default: 500)
//   --json             Output in JSON format
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/eqio/vnote/internal/history"
	"github.com/eqio/vnote/internal/util"
)

// HandleHistory handles the "history" command.
func HandleHistory(ctx context.Context, app *App, args Args) error {
	store, err := app.OpenHistory()
	if err != nil {
		return NewCommandError("history", "open", "cannot open run history", err)
	}
	if store == nil {
		return NewCommandError("history", "open", "run history is disabled (history.enabled = false)", nil)
	}
	defer store.Close()

	p := args.Parser
	switch sub := strings.ToLower(p.Subcommand()); sub {
	case "", "list", "ls":
		return historyList(ctx, app, store, p.FlagIntOrDefault("limit", 20), args.JSON)
	case "show":
		id := p.Positional(1)
		if id == "" {
			return ErrMissingArgument("id", "vnote-export history show 3f2c9a1e-...")
		}
		return historyShow(ctx, app, store, id, args.JSON)
	case "prune":
		keep := p.FlagIntOrDefault("keep", history.DefaultKeep)
		n, err := store.Prune(ctx, keep)
		if err != nil {
			return err
		}
		if args.JSON {
			return NewJSONResponse("history", map[string]int64{"deleted": n}).Encode(app.Stdout)
		}
		fmt.Fprintln(app.Stdout, SuccessStyle.Render(fmt.Sprintf("Deleted %d run(s)", n)))
		return nil
	default:
		// "history <id>" is short for "history show <id>"
		return historyShow(ctx, app, store, p.Subcommand(), args.JSON)
	}
}

func historyList(ctx context.Context, app *App, store *history.Store, limit int, jsonMode bool) error {
	records, err := store.Recent(ctx, limit)
	if err != nil {
		return err
	}

	if jsonMode {
		entries := make([]HistoryEntryJSON, 0, len(records))
		for _, r := range records {
			entries = append(entries, historyEntryJSON(r))
		}
		return NewJSONResponse("history", entries).Encode(app.Stdout)
	}

	if len(records) == 0 {
		fmt.Fprintln(app.Stdout, DimStyle.Render("No exports recorded yet."))
		return nil
	}
	writeHistoryTable(app.Stdout, records, time.Now())
	return nil
}

// writeHistoryTable prints one line per run.
func writeHistoryTable(w io.Writer, records []history.Record, now time.Time) {
	fmt.Fprintln(w, TitleStyle.Render("Recent exports"))
	for _, r := range records {
		counts := fmt.Sprintf("%d/%d ok", r.Succeeded, r.Total)
		if r.Failed > 0 {
			counts += fmt.Sprintf(", %d failed", r.Failed)
		}
		fmt.Fprintf(w, "%s  %s  %-8s %-4s %-22s %s  %s\n",
			DimStyle.Render(shortID(r.ID)),
			util.PadRight(formatAge(r.FinishedAt, now), 8),
			r.Source,
			r.Format,
			counts,
			RenderState(util.PadRight(string(r.State), 9)),
			util.TruncatePathLeft(r.OutputRoot, 40),
		)
	}
}

func historyShow(ctx context.Context, app *App, store *history.Store, id string, jsonMode bool) error {
	rec, err := findRecord(ctx, store, id)
	if err != nil {
		return err
	}

	if jsonMode {
		return NewJSONResponse("history", struct {
			HistoryEntryJSON
			Errors interface{} `json:"errors"`
		}{historyEntryJSON(rec), rec.Errors}).Encode(app.Stdout)
	}

	w := app.Stdout
	fmt.Fprintln(w, TitleStyle.Render("Export "+rec.ID))
	fmt.Fprintf(w, "%s %s\n", RenderLabel("State:"), RenderState(string(rec.State)))
	fmt.Fprintf(w, "%s %s as %s\n", RenderLabel("Source:"), rec.Source, rec.Format)
	fmt.Fprintf(w, "%s %s\n", RenderLabel("Output:"), rec.OutputRoot)
	fmt.Fprintf(w, "%s %s (%s)\n", RenderLabel("Started:"), rec.StartedAt.Format(time.RFC3339), formatDurationShort(rec.Duration()))
	fmt.Fprintf(w, "%s %d of %d attempted, %d exported, %d failed\n", RenderLabel("Notes:"),
		rec.Attempted, rec.Total, rec.Succeeded, rec.Failed)
	if rec.Error != "" {
		fmt.Fprintf(w, "%s %s\n", RenderLabel("Error:"), ErrorStyle.Render(rec.Error))
	}
	if len(rec.Errors) > 0 {
		fmt.Fprintln(w, SectionStyle.Render("Failed notes"))
		for _, fe := range rec.Errors {
			fmt.Fprintf(w, "  %s %s\n", ErrorStyle.Render("[X]"), fe.Error())
		}
	}
	return nil
}

// findRecord accepts a full run ID or a unique prefix of one.
func findRecord(ctx context.Context, store *history.Store, id string) (history.Record, error) {
	rec, err := store.Get(ctx, id)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, history.ErrNotFound) {
		return rec, err
	}

	recent, rerr := store.Recent(ctx, history.DefaultKeep)
	if rerr != nil {
		return rec, rerr
	}
	var match string
	for _, r := range recent {
		if strings.HasPrefix(r.ID, id) {
			if match != "" {
				return rec, NewValidationError("id", id, "matches more than one run")
			}
			match = r.ID
		}
	}
	if match == "" {
		return rec, NewNotFoundError("run", id)
	}
	return store.Get(ctx, match)
}

func historyEntryJSON(r history.Record) HistoryEntryJSON {
	return HistoryEntryJSON{
		ID:         r.ID,
		State:      string(r.State),
		Source:     r.Source,
		Format:     r.Format,
		OutputRoot: r.OutputRoot,
		Total:      r.Total,
		Succeeded:  r.Succeeded,
		Failed:     r.Failed,
		Error:      r.Error,
		StartedAt:  r.StartedAt,
		DurationMS: r.Duration().Milliseconds(),
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
