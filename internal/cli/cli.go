// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - CLI parsing for vnote-export.
package cli

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdHelp Command = iota
	CmdExport
	CmdPreview
	CmdWatch
	CmdHistory
	CmdConfig
	CmdVersion
	CmdUnknown
)

// String returns the command name.
func (c Command) String() string {
	switch c {
	case CmdExport:
		return "export"
	case CmdPreview:
		return "preview"
	case CmdWatch:
		return "watch"
	case CmdHistory:
		return "history"
	case CmdConfig:
		return "config"
	case CmdVersion:
		return "version"
	case CmdHelp:
		return "help"
	default:
		return "unknown"
	}
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Quiet      bool
	Verbose    bool
	JSON       bool   // Output in JSON format
	ConfigPath string // --config: load this file instead of ~/.vnote-export

	// Name is the command as typed, kept for error messages
	Name string

	// Raw args (remaining after global flag parsing)
	Raw []string

	// Parser holds the command's own flags and positionals
	Parser *ArgParser
}

// boolFlags are the flags that never take a value. Every other flag takes
// the next argument as its value.
var boolFlags = []string{
	"subfolders", "r",
	"embed-css", "complete", "mhtml",
	"toc", "no-background", "landscape",
	"plain", "json", "help", "h", "errors",
	"verbose", "v", "quiet", "q", "force",
}

const usageText = `vnote-export - export notes to Markdown, HTML or PDF

Usage:
  vnote-export export [flags]        Export a note, folder, notebook or cart
  vnote-export preview [flags]       Show what an export would write
  vnote-export watch [flags]         Export again whenever a note changes
  vnote-export history [id]          List recent runs, or show one run
  vnote-export config [subcommand]   Show or change the defaults
  vnote-export version               Show version information
  vnote-export help                  Show this help

Source (one of):
  --file PATH                 A single note (source: note)
  --folder PATH               A folder of notes (source: folder)
  --notebook PATH             A whole notebook, always recursive (source: notebook)
  --cart PATH                 A YAML cart manifest (source: cart)
  --source note|folder|notebook|cart
                              Scope to use with a positional PATH
  -r, --subfolders            Include subfolders of --folder

Output:
  -o, --output DIR            Output folder (default: last used)
  -f, --format md|html|pdf    Output format (default: from config)
  --renderer NAME             goldmark or commonmark
  --style NAME                Document style (default, github, dark, or a user style)
  --code-style NAME           Code block style (any chroma style)
  --background NAME           none, white, transparent, sepia, dark or a CSS color

HTML:
  --embed-css[=false]         Inline the stylesheet
  --complete[=false]          Write a complete document instead of a fragment
  --mhtml                     Write one .mht archive per note

PDF:
  --external-tool PATH        Print with a wkhtmltopdf-compatible tool
  --toc                       Add a table of contents (external tool)
  --page-number none|left|center|right
                              Page number footer (external tool)
  --no-background             Do not print backgrounds
  --extra-args "ARGS"         Extra arguments for the external tool
  --page-size A4|Letter|...   Page size
  --landscape                 Landscape orientation
  --margin MM                 Margin on every side, in millimetres

Display:
  --plain                     Print log lines instead of the progress view
  --json                      Print the summary as JSON
  -v, --verbose               Debug logging on stderr
  -q, --quiet                 Only print the summary
  --config PATH               Use this config file

Config Commands:
  vnote-export config show          Print the effective configuration
  vnote-export config init          Write the defaults to ~/.vnote-export/config.toml
  vnote-export config path          Print the config file path
  vnote-export config get KEY       Print one value (e.g. pdf.tool_path)
  vnote-export config set KEY VALUE Change one value and save
  vnote-export config keys          List every key

Examples:
  vnote-export export --folder ~/notes/work -r -f html -o /tmp/work-html
  vnote-export export --notebook ~/notes -f pdf --external-tool /usr/bin/wkhtmltopdf --toc
  vnote-export export --cart reading.yaml -f pdf --page-size Letter --landscape
  vnote-export preview --notebook ~/notes -f html -o /tmp/site
  vnote-export watch --folder ~/notes/drafts -f html -o /tmp/drafts

Exit codes:
  0 success, 1 error, 2 usage, 3 configuration, 7 not found,
  9 some notes failed, 130 cancelled

Version: %s
`

// PrintUsage prints the usage/help text.
func PrintUsage() {
	FprintUsage(os.Stdout)
}

// FprintUsage prints the usage/help text to w.
func FprintUsage(w io.Writer) {
	fmt.Fprintf(w, usageText, Version)
}

// PrintVersion prints version information.
func PrintVersion() {
	fmt.Printf("vnote-export version %s\n", Version)
	fmt.Printf("  Git commit: %s\n", GitCommit)
	fmt.Printf("  Build date: %s\n", BuildDate)
	fmt.Printf("  Go:         %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Parse parses os.Args and returns the command and args.
func Parse() (Command, Args) {
	return ParseArgs(os.Args[1:])
}

// ParseArgs parses args (without the program name).
func ParseArgs(argv []string) (Command, Args) {
	remaining, parsedArgs := parseGlobalFlags(argv)

	if len(remaining) == 0 {
		parsedArgs.Parser = NewArgParser(nil, boolFlags...)
		return CmdHelp, parsedArgs
	}

	name := strings.ToLower(remaining[0])
	remaining = remaining[1:]
	parsedArgs.Name = name
	parsedArgs.Raw = remaining
	parsedArgs.Parser = NewArgParser(remaining, boolFlags...)

	// Global flags may also follow the command
	p := parsedArgs.Parser
	parsedArgs.JSON = parsedArgs.JSON || p.BoolFlag("json")
	parsedArgs.Verbose = parsedArgs.Verbose || p.BoolFlag("verbose") || p.BoolFlag("v")
	parsedArgs.Quiet = parsedArgs.Quiet || p.BoolFlag("quiet") || p.BoolFlag("q")
	if path := p.Flag("config"); path != "" {
		parsedArgs.ConfigPath = path
	}
	if p.BoolFlag("help") || p.BoolFlag("h") {
		return CmdHelp, parsedArgs
	}

	switch name {
	case "export", "x":
		return CmdExport, parsedArgs
	case "preview", "plan", "dry-run":
		return CmdPreview, parsedArgs
	case "watch", "w":
		return CmdWatch, parsedArgs
	case "history", "runs":
		return CmdHistory, parsedArgs
	case "config", "cfg":
		return CmdConfig, parsedArgs
	case "version", "--version":
		return CmdVersion, parsedArgs
	case "help", "--help", "-h":
		return CmdHelp, parsedArgs
	default:
		return CmdUnknown, parsedArgs
	}
}

// parseGlobalFlags extracts global flags that appear before the command.
func parseGlobalFlags(args []string) ([]string, Args) {
	var parsedArgs Args

	i := 0
	for i < len(args) {
		arg := args[i]

		switch {
		case arg == "-q" || arg == "--quiet":
			parsedArgs.Quiet = true
		case arg == "-v" || arg == "--verbose":
			parsedArgs.Verbose = true
		case arg == "--json":
			parsedArgs.JSON = true
		case arg == "--config":
			if i+1 < len(args) {
				i++
				parsedArgs.ConfigPath = args[i]
			}
		case strings.HasPrefix(arg, "--config="):
			parsedArgs.ConfigPath = strings.TrimPrefix(arg, "--config=")
		default:
			// First non-global argument starts the command
			return args[i:], parsedArgs
		}
		i++
	}

	return nil, parsedArgs
}

// UnknownCommandError reports a command name that Parse did not recognize.
func UnknownCommandError(args Args) error {
	return NewValidationErrorWithExample("command", args.Name, "unknown command", "vnote-export help")
}
