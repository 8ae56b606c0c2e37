// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eqio/vnote/internal/config"
	"github.com/eqio/vnote/internal/export"
	"github.com/eqio/vnote/internal/history"
	"github.com/eqio/vnote/internal/notebook"
)

// =============================================================================
// HELPERS
// =============================================================================

func writeNote(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// isolateHome points HOME at a temp dir and clears the env overrides.
func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, key := range []string{"VNOTE_EXPORT_OUTPUT", "VNOTE_EXPORT_FORMAT", "VNOTE_EXPORT_TOOL", "VNOTE_EXPORT_LOG_LEVEL", "CHROME_PATH"} {
		t.Setenv(key, "")
	}
	return home
}

func defaultConfig() *config.Config {
	cfg := config.Default()
	cfg.SetDefaults()
	return cfg
}

func parser(args ...string) *ArgParser {
	return NewArgParser(args, boolFlags...)
}

func testApp(t *testing.T, cfg *config.Config) (*App, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	return &App{
		Config:     cfg,
		ConfigPath: filepath.Join(t.TempDir(), "config.toml"),
		Logger:     zap.NewNop(),
		Stdout:     &out,
		Stderr:     &out,
	}, &out
}

// =============================================================================
// ARG PARSER
// =============================================================================

func TestArgParser_Basics(t *testing.T) {
	p := NewArgParser([]string{"show", "--limit", "5", "--json", "extra"}, "json")

	assert.Equal(t, "show", p.Subcommand())
	assert.Equal(t, "5", p.Flag("limit"))
	assert.True(t, p.BoolFlag("json"))
	assert.Equal(t, []string{"show", "extra"}, p.PositionalFrom(0))
	assert.Equal(t, 2, p.PositionalCount())
	assert.Equal(t, 5, p.FlagIntOrDefault("limit", 20))
	assert.Equal(t, 20, p.FlagIntOrDefault("keep", 20))
	assert.Equal(t, "fallback", p.FlagOrDefault("missing", "fallback"))
}

func TestArgParser_EqualsForm(t *testing.T) {
	p := parser("--format=pdf", "--toc=false", "--margin=12.5")

	assert.Equal(t, "pdf", p.Flag("format"))
	v, ok := p.BoolOverride("toc")
	assert.True(t, ok)
	assert.False(t, v)

	mm, err := p.FlagFloat("margin")
	require.NoError(t, err)
	assert.InDelta(t, 12.5, mm, 1e-9)
}

func TestArgParser_KnownBoolsTakeNoValue(t *testing.T) {
	// "--subfolders notes" must not swallow the path
	p := parser("--subfolders", "notes", "-o", "out")

	assert.True(t, p.BoolFlag("subfolders"))
	assert.Equal(t, "notes", p.Positional(0))
	assert.Equal(t, "out", p.Flag("o"))
}

func TestArgParser_ValueMayStartWithDash(t *testing.T) {
	p := parser("--extra-args", "--dpi 300", "note.md")

	assert.Equal(t, "--dpi 300", p.Flag("extra-args"))
	assert.Equal(t, "note.md", p.Positional(0))
}

func TestArgParser_DoubleDashEndsFlags(t *testing.T) {
	p := parser("--json", "--", "--weird-name.md", "-")

	assert.True(t, p.BoolFlag("json"))
	assert.Equal(t, []string{"--weird-name.md", "-"}, p.PositionalFrom(0))
}

func TestArgParser_FirstFlag(t *testing.T) {
	assert.Equal(t, "a", parser("-o", "a").FirstFlag("output", "o"))
	assert.Equal(t, "b", parser("--output", "b", "-o", "a").FirstFlag("output", "o"))
	assert.Empty(t, parser().FirstFlag("output", "o"))
}

func TestArgParser_BoolOverrideUnset(t *testing.T) {
	_, ok := parser("note.md").BoolOverride("toc")
	assert.False(t, ok)
	assert.False(t, parser("note.md").HasFlag("toc"))
}

func TestArgParser_EmptyValueIsStillGiven(t *testing.T) {
	p := parser("--extra-args=")
	assert.True(t, p.HasFlag("extra-args"))
	assert.Empty(t, p.Flag("extra-args"))
}

func TestParseIntWithValidation(t *testing.T) {
	n, err := ParseIntWithValidation(" 42 ", "limit")
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	_, err = ParseIntWithValidation("four", "limit")
	assert.Error(t, err)
}

func TestParseBoolString(t *testing.T) {
	for _, s := range []string{"true", "yes", "on", "1"} {
		v, err := ParseBoolString(s)
		require.NoError(t, err, s)
		assert.True(t, v, s)
	}
	v, err := ParseBoolString("off")
	require.NoError(t, err)
	assert.False(t, v)

	_, err = ParseBoolString("maybe")
	assert.Error(t, err)
}

// =============================================================================
// COMMAND PARSING
// =============================================================================

func TestParseArgs_Commands(t *testing.T) {
	tests := []struct {
		argv []string
		want Command
	}{
		{nil, CmdHelp},
		{[]string{"export", "note.md"}, CmdExport},
		{[]string{"x", "note.md"}, CmdExport},
		{[]string{"plan", "note.md"}, CmdPreview},
		{[]string{"dry-run", "note.md"}, CmdPreview},
		{[]string{"w", "notes"}, CmdWatch},
		{[]string{"runs"}, CmdHistory},
		{[]string{"cfg", "show"}, CmdConfig},
		{[]string{"--version"}, CmdVersion},
		{[]string{"-h"}, CmdHelp},
		{[]string{"export", "--help"}, CmdHelp},
		{[]string{"EXPORT", "note.md"}, CmdExport},
		{[]string{"publish"}, CmdUnknown},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.argv), func(t *testing.T) {
			got, _ := ParseArgs(tt.argv)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseArgs_GlobalFlags(t *testing.T) {
	cmd, args := ParseArgs([]string{"--json", "-v", "--config=/tmp/c.toml", "history", "list"})

	assert.Equal(t, CmdHistory, cmd)
	assert.True(t, args.JSON)
	assert.True(t, args.Verbose)
	assert.Equal(t, "/tmp/c.toml", args.ConfigPath)
	assert.Equal(t, "history", args.Name)
	assert.Equal(t, "list", args.Parser.Subcommand())
}

func TestParseArgs_GlobalFlagsAfterCommand(t *testing.T) {
	_, args := ParseArgs([]string{"export", "note.md", "--json", "-q", "--config", "/tmp/c.toml"})

	assert.True(t, args.JSON)
	assert.True(t, args.Quiet)
	assert.Equal(t, "/tmp/c.toml", args.ConfigPath)
	assert.Equal(t, "note.md", args.Parser.Positional(0))
}

func TestCommand_String(t *testing.T) {
	assert.Equal(t, "export", CmdExport.String())
	assert.Equal(t, "preview", CmdPreview.String())
	assert.Equal(t, "unknown", CmdUnknown.String())
}

func TestFprintUsage_ListsCommands(t *testing.T) {
	var buf bytes.Buffer
	FprintUsage(&buf)
	for _, name := range []string{"export", "preview", "watch", "history", "config"} {
		assert.Contains(t, buf.String(), name)
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	cmd, args := ParseArgs([]string{"publish"})
	err := Run(context.Background(), cmd, args)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

// =============================================================================
// ERRORS AND EXIT CODES
// =============================================================================

func TestGetExitCode(t *testing.T) {
	failedRun := export.Summary{State: export.StateCompleted, Errors: []export.FileError{{RelPath: "a.md", Message: "boom"}}}

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"validation", NewValidationError("format", "doc", "unknown format"), ExitUsageError},
		{"export config", &export.ConfigError{Field: "tool", Reason: "missing"}, ExitConfigError},
		{"config file", fmt.Errorf("config: %w", config.ValidateErrors{{Field: "log.level", Message: "bad"}}), ExitConfigError},
		{"not found", NewNotFoundError("note", "a.md"), ExitNotFoundError},
		{"missing file", fmt.Errorf("open: %w", os.ErrNotExist), ExitNotFoundError},
		{"missing run", history.ErrNotFound, ExitNotFoundError},
		{"not a note", notebook.ErrNotNote, ExitNotFoundError},
		{"timeout", errors.New("browser: context deadline exceeded"), ExitTimeoutError},
		{"other", errors.New("boom"), ExitGeneralError},
		{"completed", &ExportResultError{Summary: export.Summary{State: export.StateCompleted}}, ExitSuccess},
		{"partial", &ExportResultError{Summary: failedRun}, ExitPartialFailure},
		{"cancelled", &ExportResultError{Summary: export.Summary{State: export.StateCancelled}}, ExitCancelled},
		{"failed", &ExportResultError{Summary: export.Summary{State: export.StateFailed}}, ExitConfigError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestCommandError_Unwrap(t *testing.T) {
	err := NewCommandError("export", "open note", "a.md", os.ErrPermission)
	assert.ErrorIs(t, err, os.ErrPermission)
	assert.Contains(t, err.Error(), "open note")
}

func TestWrapError(t *testing.T) {
	assert.NoError(t, WrapError(nil, "ctx"))
	err := WrapError(os.ErrNotExist, "load cart")
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, "load cart: "+os.ErrNotExist.Error(), err.Error())
}

func TestJSONErrorResponse(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONErrorResponse("export", errors.New("boom"), nil).Encode(&buf))
	assert.Contains(t, buf.String(), `"success": false`)
	assert.Contains(t, buf.String(), `"error": "boom"`)
	assert.Contains(t, buf.String(), `"command": "export"`)
}

// =============================================================================
// EXPORT REQUEST
// =============================================================================

func TestBuildExportRequest_Defaults(t *testing.T) {
	dir := t.TempDir()
	note := filepath.Join(dir, "a.md")
	writeNote(t, note, "# A\n")

	req, err := buildExportRequest(defaultConfig(), parser(note, "-o", filepath.Join(dir, "out")))
	require.NoError(t, err)

	assert.Equal(t, export.SourceCurrentNote, req.Options.Source)
	assert.Equal(t, export.FormatMarkdown, req.Options.Format())
	assert.IsType(t, &notebook.File{}, req.Handle)
	assert.True(t, filepath.IsAbs(req.OutputRoot))
}

func TestBuildExportRequest_FlagOverrides(t *testing.T) {
	dir := t.TempDir()
	writeNote(t, filepath.Join(dir, "notes", "a.md"), "# A\n")
	base := defaultConfig()

	req, err := buildExportRequest(base, parser(
		"--folder", filepath.Join(dir, "notes"),
		"-f", "pdf",
		"-r",
		"--toc",
		"--no-background",
		"--page-size", "letter",
		"--landscape",
		"--margin", "10",
		"--page-number", "center",
		"--extra-args", "--dpi 300",
		"--external-tool", "/usr/bin/wkhtmltopdf",
		"-o", filepath.Join(dir, "out"),
	))
	require.NoError(t, err)

	assert.Equal(t, export.SourceCurrentFolder, req.Options.Source)
	assert.True(t, req.Options.ProcessSubfolders)
	assert.IsType(t, &notebook.Directory{}, req.Handle)

	pdf, ok := req.Options.Target.(export.PDFOptions)
	require.True(t, ok)
	assert.True(t, pdf.EnableTableOfContents)
	assert.False(t, pdf.EnableBackground)
	assert.True(t, pdf.UseExternalTool)
	assert.Equal(t, "/usr/bin/wkhtmltopdf", pdf.ExternalToolPath)
	assert.Equal(t, "--dpi 300", pdf.ExtraArguments)
	assert.Equal(t, export.PageLetter, pdf.Layout.PageSize)
	assert.Equal(t, export.Landscape, pdf.Layout.Orientation)
	assert.InDelta(t, 10, pdf.Layout.MarginLeft, 1e-9)

	// The caller's config is left alone
	assert.Equal(t, "markdown", base.Export.Format)
	assert.False(t, base.PDF.TableOfContents)
}

func TestBuildExportRequest_HTMLSwitches(t *testing.T) {
	dir := t.TempDir()
	note := filepath.Join(dir, "a.md")
	writeNote(t, note, "# A\n")

	req, err := buildExportRequest(defaultConfig(), parser(note, "-f", "html", "--mhtml", "--embed-css=false", "-o", dir+"/out"))
	require.NoError(t, err)

	html, ok := req.Options.Target.(export.HTMLOptions)
	require.True(t, ok)
	assert.True(t, html.MIMEHTML)
	assert.False(t, html.EmbedCSSStyle)
	assert.True(t, html.CompleteHTML)
}

func TestBuildExportRequest_SourceConflicts(t *testing.T) {
	dir := t.TempDir()
	writeNote(t, filepath.Join(dir, "a.md"), "# A\n")

	_, err := buildExportRequest(defaultConfig(), parser("--file", dir+"/a.md", "--folder", dir, "-o", dir+"/out"))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = buildExportRequest(defaultConfig(), parser("--file", dir+"/a.md", "--source", "notebook", "-o", dir+"/out"))
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Reason, "--file")
}

func TestBuildExportRequest_BadValues(t *testing.T) {
	dir := t.TempDir()
	note := filepath.Join(dir, "a.md")
	writeNote(t, note, "# A\n")

	for _, flags := range [][]string{
		{"-f", "docx"},
		{"--source", "everything"},
		{"--page-size", "B9"},
		{"--page-number", "top"},
		{"--margin", "-3"},
		{"--extra-args", `"unterminated`},
	} {
		t.Run(strings.Join(flags, " "), func(t *testing.T) {
			args := append([]string{note, "-o", dir + "/out"}, flags...)
			_, err := buildExportRequest(defaultConfig(), parser(args...))
			require.Error(t, err)
			assert.Equal(t, ExitUsageError, GetExitCode(err))
		})
	}
}

func TestBuildExportRequest_MissingSource(t *testing.T) {
	dir := t.TempDir()

	_, err := buildExportRequest(defaultConfig(), parser(filepath.Join(dir, "nope.md"), "-o", dir))
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "note", nf.Resource)
	assert.Equal(t, ExitNotFoundError, GetExitCode(err))

	_, err = buildExportRequest(defaultConfig(), parser("-o", dir))
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

func TestBuildExportRequest_OutputFromConfig(t *testing.T) {
	dir := t.TempDir()
	note := filepath.Join(dir, "a.md")
	writeNote(t, note, "# A\n")

	cfg := defaultConfig()
	_, err := buildExportRequest(cfg, parser(note))
	assert.Equal(t, ExitUsageError, GetExitCode(err))

	cfg.Export.OutputDir = filepath.Join(dir, "last")
	req, err := buildExportRequest(cfg, parser(note))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "last"), req.OutputRoot)
}

func TestChooseView(t *testing.T) {
	assert.Equal(t, viewQuiet, chooseView(Args{Quiet: true, Parser: parser()}))
	assert.Equal(t, viewPlain, chooseView(Args{JSON: true, Parser: parser()}))
	assert.Equal(t, viewPlain, chooseView(Args{Parser: parser("--plain")}))
}

func TestWatchPaths(t *testing.T) {
	dir := t.TempDir()
	writeNote(t, filepath.Join(dir, "a.md"), "# A\n")

	req, err := buildExportRequest(defaultConfig(), parser("--folder", dir, "-o", dir+"/out"))
	require.NoError(t, err)
	paths, recursive := watchPaths(req)
	assert.Equal(t, []string{req.Handle.(*notebook.Directory).Path}, paths)
	assert.False(t, recursive)

	req, err = buildExportRequest(defaultConfig(), parser("--folder", dir, "-r", "-o", dir+"/out"))
	require.NoError(t, err)
	_, recursive = watchPaths(req)
	assert.True(t, recursive)
}

// =============================================================================
// PREVIEW
// =============================================================================

func TestBuildPlan(t *testing.T) {
	dir := t.TempDir()
	notes := filepath.Join(dir, "notes")
	out := filepath.Join(dir, "out")
	writeNote(t, filepath.Join(notes, "a.md"), "# A\n")
	writeNote(t, filepath.Join(notes, "sub", "b.md"), "# B\n")
	writeNote(t, filepath.Join(notes, "image.png"), "png")
	writeNote(t, filepath.Join(out, "a.html"), "old")

	req, err := buildExportRequest(defaultConfig(), parser("--folder", notes, "-r", "-f", "html", "-o", out))
	require.NoError(t, err)

	plan, err := buildPlan(req)
	require.NoError(t, err)
	require.Len(t, plan.Entries, 2)

	outputs := map[string]bool{}
	for _, e := range plan.Entries {
		outputs[filepath.ToSlash(e.Output)] = e.Exists
	}
	assert.Equal(t, map[string]bool{"a.html": true, "sub/b.html": false}, outputs)

	md := plan.Markdown()
	assert.Contains(t, md, "# Export plan")
	assert.Contains(t, md, "2 note(s)")
	assert.Contains(t, md, "| overwrite |")
	assert.Contains(t, md, "| new |")
	assert.NotContains(t, md, "## Skipped")

	js := plan.toJSON()
	assert.Equal(t, "html", js.Format)
	assert.Len(t, js.Entries, 2)
}

func TestExportPlan_MarkdownSkipped(t *testing.T) {
	plan := &exportPlan{
		Source:     export.SourceCart,
		Format:     export.FormatMarkdown,
		OutputRoot: "/tmp/out",
		Skipped:    []export.FileError{{RelPath: "gone|1.md", Message: "cannot read note"}},
	}
	md := plan.Markdown()
	assert.Contains(t, md, "0 note(s)")
	assert.Contains(t, md, "## Skipped")
	assert.Contains(t, md, `gone\|1.md`)
}

// =============================================================================
// CONFIG COMMAND
// =============================================================================

func TestSetArgs(t *testing.T) {
	key, words := setArgs([]string{"set", "pdf.extra_args", "--dpi", "300"})
	assert.Equal(t, "pdf.extra_args", key)
	assert.Equal(t, []string{"--dpi", "300"}, words)

	key, words = setArgs([]string{"set"})
	assert.Empty(t, key)
	assert.Nil(t, words)

	key, _ = setArgs([]string{"get", "pdf.tool_path"})
	assert.Empty(t, key)
}

func TestHandleConfig_SetAndGet(t *testing.T) {
	isolateHome(t)
	app, out := testApp(t, defaultConfig())

	_, args := ParseArgs([]string{"config", "set", "pdf.extra_args", "--dpi", "300"})
	require.NoError(t, HandleConfig(app, args))
	assert.Contains(t, out.String(), "pdf.extra_args = --dpi 300")

	saved, err := config.LoadFromPath(app.ConfigPath)
	require.NoError(t, err)
	assert.Equal(t, "--dpi 300", saved.PDF.ExtraArgs)

	out.Reset()
	_, args = ParseArgs([]string{"config", "get", "pdf.extra_args"})
	require.NoError(t, HandleConfig(app, args))
	assert.Equal(t, "--dpi 300\n", out.String())
}

func TestHandleConfig_SetList(t *testing.T) {
	isolateHome(t)
	app, out := testApp(t, defaultConfig())

	_, args := ParseArgs([]string{"config", "set", "notebook.extensions", ".md,.txt"})
	require.NoError(t, HandleConfig(app, args))
	assert.Equal(t, []string{".md", ".txt"}, app.Config.Notebook.Extensions)

	out.Reset()
	_, args = ParseArgs([]string{"config", "get", "notebook.extensions"})
	require.NoError(t, HandleConfig(app, args))
	assert.Equal(t, ".md,.txt\n", out.String())
}

func TestHandleConfig_SetRejectsInvalid(t *testing.T) {
	isolateHome(t)
	app, _ := testApp(t, defaultConfig())

	_, args := ParseArgs([]string{"config", "set", "export.format", "docx"})
	err := HandleConfig(app, args)
	assert.Equal(t, ExitUsageError, GetExitCode(err))
	assert.Equal(t, "markdown", app.Config.Export.Format)
	assert.NoFileExists(t, app.ConfigPath)

	_, args = ParseArgs([]string{"config", "set", "export.nope", "1"})
	assert.Equal(t, ExitUsageError, GetExitCode(HandleConfig(app, args)))
}

func TestHandleConfig_RefusesBrokenFile(t *testing.T) {
	isolateHome(t)
	app, _ := testApp(t, defaultConfig())
	app.brokenFile = errors.New("toml: line 3: bad")

	_, args := ParseArgs([]string{"config", "set", "export.format", "html"})
	err := HandleConfig(app, args)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not overwriting")
	assert.NoFileExists(t, app.ConfigPath)
}

func TestHandleConfig_InitNeedsForce(t *testing.T) {
	isolateHome(t)
	app, _ := testApp(t, defaultConfig())
	writeNote(t, app.ConfigPath, "version = \"1.0.0\"\n")

	_, args := ParseArgs([]string{"config", "init"})
	assert.Equal(t, ExitUsageError, GetExitCode(HandleConfig(app, args)))

	_, args = ParseArgs([]string{"config", "init", "--force"})
	require.NoError(t, HandleConfig(app, args))
	saved, err := config.LoadFromPath(app.ConfigPath)
	require.NoError(t, err)
	assert.Equal(t, "markdown", saved.Export.Format)
}

func TestHandleConfig_KeysJSON(t *testing.T) {
	isolateHome(t)
	app, out := testApp(t, defaultConfig())

	_, args := ParseArgs([]string{"config", "keys", "--json"})
	require.NoError(t, HandleConfig(app, args))
	assert.Contains(t, out.String(), `"pdf.extra_args"`)
	assert.Contains(t, out.String(), `"success": true`)
}

// =============================================================================
// HISTORY COMMAND
// =============================================================================

func seedHistory(t *testing.T) *history.Store {
	t.Helper()
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	now := time.Now()
	ctx := context.Background()
	for i, id := range []string{"aaaa1111-run", "aaaa2222-run", "bbbb3333-run"} {
		sum := export.Summary{
			ID:             id,
			State:          export.StateCompleted,
			Source:         export.SourceCurrentFolder,
			Format:         export.FormatHTML,
			OutputRoot:     "/tmp/out",
			FilesTotal:     2,
			FilesAttempted: 2,
			FilesSucceeded: 2,
			StartedAt:      now.Add(-time.Duration(i+1) * time.Hour),
			FinishedAt:     now.Add(-time.Duration(i+1)*time.Hour + time.Second),
		}
		require.NoError(t, store.Record(ctx, sum))
	}
	return store
}

func TestFindRecord(t *testing.T) {
	store := seedHistory(t)
	ctx := context.Background()

	rec, err := findRecord(ctx, store, "bbbb3333-run")
	require.NoError(t, err)
	assert.Equal(t, "bbbb3333-run", rec.ID)

	rec, err = findRecord(ctx, store, "bbbb")
	require.NoError(t, err)
	assert.Equal(t, "bbbb3333-run", rec.ID)

	_, err = findRecord(ctx, store, "aaaa")
	assert.Equal(t, ExitUsageError, GetExitCode(err))

	_, err = findRecord(ctx, store, "cccc")
	assert.Equal(t, ExitNotFoundError, GetExitCode(err))
}

func TestWriteHistoryTable(t *testing.T) {
	store := seedHistory(t)
	records, err := store.Recent(context.Background(), 10)
	require.NoError(t, err)

	var buf bytes.Buffer
	writeHistoryTable(&buf, records, time.Now())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Contains(t, buf.String(), "aaaa1111")
	assert.Contains(t, buf.String(), "2/2 ok")
	assert.Contains(t, buf.String(), "59m ago")
	assert.GreaterOrEqual(t, len(lines), 4)
}

// =============================================================================
// FORMATTING
// =============================================================================

func TestFormatAge(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "just now", formatAge(now.Add(-10*time.Second), now))
	assert.Equal(t, "5m ago", formatAge(now.Add(-5*time.Minute), now))
	assert.Equal(t, "3h ago", formatAge(now.Add(-3*time.Hour), now))
	assert.Equal(t, "2d ago", formatAge(now.Add(-49*time.Hour), now))
}

func TestFormatDurationShort(t *testing.T) {
	assert.Equal(t, "1h5m", formatDurationShort(65*time.Minute))
}

func TestNewSummaryJSON(t *testing.T) {
	start := time.Now()
	sum := export.Summary{
		ID:             "run-1",
		State:          export.StateCompleted,
		Source:         export.SourceCurrentNote,
		Format:         export.FormatPDF,
		FilesTotal:     1,
		FilesAttempted: 1,
		Errors:         []export.FileError{{RelPath: "a.md", Message: "boom"}},
		StartedAt:      start,
		FinishedAt:     start.Add(1500 * time.Millisecond),
	}
	js := newSummaryJSON(sum)
	assert.Equal(t, "run-1", js.ID)
	assert.Equal(t, int64(1500), js.DurationMS)
	assert.Len(t, js.Errors, 1)
}
