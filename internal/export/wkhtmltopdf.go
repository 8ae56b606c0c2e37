// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// =============================================================================
// EXTERNAL TOOL ARGUMENTS
// =============================================================================

// ToolArgs builds the wkhtmltopdf command line for one conversion. The
// generated options come first, then the extra arguments verbatim, then the
// optional toc object and finally the input and output paths.
func ToolArgs(opts PDFOptions, inputPath, outputPath string) ([]string, error) {
	args := []string{"--quiet"}

	if l := opts.Layout; l != nil {
		args = append(args,
			"--page-size", string(l.PageSize),
			"--orientation", l.Orientation.String(),
			"--margin-top", mm(l.MarginTop),
			"--margin-bottom", mm(l.MarginBottom),
			"--margin-left", mm(l.MarginLeft),
			"--margin-right", mm(l.MarginRight),
		)
	}

	if opts.EnableBackground {
		args = append(args, "--background")
	} else {
		args = append(args, "--no-background")
	}

	switch opts.PageNumber {
	case PageNumberLeft:
		args = append(args, "--footer-left", "[page]")
	case PageNumberCenter:
		args = append(args, "--footer-center", "[page]")
	case PageNumberRight:
		args = append(args, "--footer-right", "[page]")
	}

	args = append(args, "--enable-local-file-access", "--encoding", "utf-8")

	extra, err := SplitArgs(opts.ExtraArguments)
	if err != nil {
		return nil, fmt.Errorf("extra arguments: %w", err)
	}
	args = append(args, extra...)

	if opts.EnableTableOfContents {
		args = append(args, "toc")
	}

	return append(args, inputPath, outputPath), nil
}

func mm(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "mm"
}

// errUnterminatedQuote is returned by SplitArgs for an open quote.
var errUnterminatedQuote = errors.New("unterminated quote")

// SplitArgs splits s into words the way a POSIX shell does for plain
// words: whitespace separates, single quotes are literal, double quotes
// allow backslash escapes of \ and ", and a backslash outside quotes
// escapes the next character. No expansion of any kind happens.
func SplitArgs(s string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		inWord  bool
		quote   rune
		escaped bool
	)

	for _, r := range s {
		switch {
		case escaped:
			if quote == '"' && r != '"' && r != '\\' {
				cur.WriteRune('\\')
			}
			cur.WriteRune(r)
			escaped = false
		case quote == '\'':
			if r == '\'' {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case quote == '"':
			switch r {
			case '"':
				quote = 0
			case '\\':
				escaped = true
			default:
				cur.WriteRune(r)
			}
		case r == '\\':
			escaped = true
			inWord = true
		case r == '\'' || r == '"':
			quote = r
			inWord = true
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			if inWord {
				args = append(args, cur.String())
				cur.Reset()
				inWord = false
			}
		default:
			cur.WriteRune(r)
			inWord = true
		}
	}

	if quote != 0 || escaped {
		return nil, errUnterminatedQuote
	}
	if inWord {
		args = append(args, cur.String())
	}
	return args, nil
}

// =============================================================================
// TOOL LOOKUP
// =============================================================================

// LookupTool resolves the external tool path and checks it is an
// executable regular file. A bare command name is searched in PATH.
func LookupTool(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", errors.New("no tool path given")
	}

	resolved, err := exec.LookPath(path)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%s is not a regular file", resolved)
	}
	return resolved, nil
}
