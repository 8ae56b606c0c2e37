// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// UNICODE: Width-aware truncation keeps CJK file names aligned in the
// terminal. Widths come from go-runewidth, not from rune counts.

// TruncateWidth truncates s to at most maxWidth display columns, appending
// "..." when something was cut.
func TruncateWidth(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	if maxWidth <= 3 {
		return runewidth.Truncate(s, maxWidth, "")
	}
	return runewidth.Truncate(s, maxWidth, "...")
}

// TruncatePathLeft shortens a path from the left so the file name stays
// visible: "notes/deep/folder/name.md" -> ".../folder/name.md".
func TruncatePathLeft(p string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if runewidth.StringWidth(p) <= maxWidth {
		return p
	}
	if maxWidth <= 3 {
		return TruncateWidth(p, maxWidth)
	}

	budget := maxWidth - 3
	runes := []rune(p)
	width := 0
	i := len(runes)
	for i > 0 {
		w := runewidth.RuneWidth(runes[i-1])
		if width+w > budget {
			break
		}
		width += w
		i--
	}
	tail := string(runes[i:])
	// Prefer cutting at a separator when one is in reach
	if idx := strings.IndexAny(tail, `/\`); idx > 0 && idx < len(tail)-1 {
		tail = tail[idx:]
	}
	return "..." + tail
}

// PadRight pads s with spaces to exactly width display columns, truncating
// when s is wider.
func PadRight(s string, width int) string {
	s = TruncateWidth(s, width)
	return runewidth.FillRight(s, width)
}
