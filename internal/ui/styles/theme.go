// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds the styles of the export progress view.
// It detects the terminal's color capability and adjusts accordingly.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	// Layout dimensions
	Width  int
	Height int

	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Label    lipgloss.Style
	Value    lipgloss.Style
	Path     lipgloss.Style
	Hint     lipgloss.Style
	Box      lipgloss.Style

	Completed lipgloss.Style
	Cancelled lipgloss.Style
	Failed    lipgloss.Style
}

// NewTheme creates a new theme with all styles configured.
func NewTheme() *Theme {
	colorProfile := termenv.ColorProfile()
	t := &Theme{
		IsDark:       termenv.HasDarkBackground(),
		HasTrueColor: colorProfile == termenv.TrueColor,
		ColorProfile: colorProfile,
		Width:        80,
	}
	t.initStyles()
	return t
}

func (t *Theme) initStyles() {
	t.Title = lipgloss.NewStyle().Bold(true).Foreground(Purple)
	t.Subtitle = lipgloss.NewStyle().Foreground(TextSecondary).Italic(true)
	t.Label = lipgloss.NewStyle().Foreground(TextSecondary).Width(10)
	t.Value = lipgloss.NewStyle().Foreground(TextPrimary)
	t.Path = lipgloss.NewStyle().Foreground(Cyan)
	t.Hint = lipgloss.NewStyle().Foreground(TextMuted)
	t.Box = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.Completed = lipgloss.NewStyle().Bold(true).Foreground(Emerald)
	t.Cancelled = lipgloss.NewStyle().Bold(true).Foreground(Amber)
	t.Failed = lipgloss.NewStyle().Bold(true).Foreground(Rose)
}

// SetSize updates the terminal dimensions.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}
