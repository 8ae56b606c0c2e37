// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// preview_cmd.go - The preview command.
//
// Command: preview [flags] [PATH]
// Short:   Show what an export would write, without writing anything
// Aliases: plan, dry-run
//
// Takes the same flags as export. The plan is a Markdown table rendered
// with glamour on a terminal and printed as plain Markdown otherwise.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/eqio/vnote/internal/export"
	"github.com/eqio/vnote/internal/notebook"
)

// planEntry is one note of the plan.
type planEntry struct {
	Source string // absolute note path
	Output string // path relative to the output root
	Exists bool   // the output file is already there
}

// exportPlan is what an export would do.
type exportPlan struct {
	Source     export.Source
	Format     export.Format
	OutputRoot string
	Entries    []planEntry
	Skipped    []export.FileError
}

// HandlePreview handles the "preview" command.
func HandlePreview(ctx context.Context, app *App, args Args) error {
	req, err := buildExportRequest(app.Config, args.Parser)
	if err != nil {
		return err
	}

	plan, err := buildPlan(req)
	if err != nil {
		return err
	}

	if args.JSON {
		return NewJSONResponse("preview", plan.toJSON()).Encode(app.Stdout)
	}

	md := plan.Markdown()
	if !IsStdoutTTY() {
		_, err := io.WriteString(app.Stdout, md)
		return err
	}
	fmt.Fprint(app.Stdout, renderMarkdown(md, GetTerminalWidth()))
	return nil
}

// buildPlan resolves the scope the way a run would.
func buildPlan(req *exportRequest) (*exportPlan, error) {
	tree := notebook.NewFSTree(req.Config.Notebook.Extensions...)
	items, skipped, err := export.Resolve(tree, req.Options.Source, req.Handle, req.Options.ProcessSubfolders)
	if err != nil {
		return nil, err
	}

	plan := &exportPlan{
		Source:     req.Options.Source,
		Format:     req.Options.Format(),
		OutputRoot: req.OutputRoot,
		Skipped:    skipped,
	}
	for _, item := range items {
		rel := export.OutputRel(item.RelPath, req.Options.Target)
		_, statErr := os.Stat(filepath.Join(req.OutputRoot, rel))
		plan.Entries = append(plan.Entries, planEntry{
			Source: item.SourcePath,
			Output: rel,
			Exists: statErr == nil,
		})
	}
	return plan, nil
}

// Markdown renders the plan as a Markdown document.
func (p *exportPlan) Markdown() string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Export plan\n\n")
	fmt.Fprintf(&b, "%d note(s) from the %s, as %s, into `%s`.\n\n",
		len(p.Entries), p.Source, p.Format, p.OutputRoot)

	if len(p.Entries) > 0 {
		b.WriteString("| # | Note | Output | |\n")
		b.WriteString("|---|------|--------|---|\n")
		for i, e := range p.Entries {
			status := "new"
			if e.Exists {
				status = "overwrite"
			}
			fmt.Fprintf(&b, "| %d | %s | %s | %s |\n", i+1, mdCell(e.Source), mdCell(filepath.ToSlash(e.Output)), status)
		}
		b.WriteString("\n")
	}

	if len(p.Skipped) > 0 {
		b.WriteString("## Skipped\n\n")
		for _, fe := range p.Skipped {
			fmt.Fprintf(&b, "- %s: %s\n", mdCell(fe.RelPath), mdCell(fe.Message))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (p *exportPlan) toJSON() PlanJSON {
	out := PlanJSON{
		Source:     p.Source.String(),
		Format:     p.Format.String(),
		OutputRoot: p.OutputRoot,
		Entries:    make([]PlanEntryJSON, 0, len(p.Entries)),
	}
	for _, e := range p.Entries {
		out.Entries = append(out.Entries, PlanEntryJSON{Source: e.Source, Output: filepath.ToSlash(e.Output)})
	}
	for _, fe := range p.Skipped {
		out.Skipped = append(out.Skipped, PlanEntryJSON{Source: fe.RelPath, Output: fe.Message})
	}
	return out
}

// mdCell escapes text for a table cell.
func mdCell(s string) string {
	return strings.NewReplacer("|", `\|`, "\n", " ").Replace(s)
}

// renderMarkdown renders markdown for terminal display, returning it
// unchanged if glamour cannot.
func renderMarkdown(content string, width int) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return content
	}
	rendered, err := r.Render(content)
	if err != nil {
		return content
	}
	return rendered
}
