// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the colors and lipgloss styles of the vnote-export
terminal output.

All colors use Lip Gloss AdaptiveColor for automatic light/dark terminal
detection. Status messages always carry an ASCII shape ([OK], [X], [!], [i])
so they stay readable without color.

# Usage

	theme := styles.NewTheme()
	fmt.Println(theme.Title.Render("Export"))
	fmt.Println(styles.RenderLogLine("Exported a.md -> a.html"))
*/
package styles
