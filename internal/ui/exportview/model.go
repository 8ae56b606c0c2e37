// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package exportview

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/eqio/vnote/internal/export"
	"github.com/eqio/vnote/internal/ui/styles"
	"github.com/eqio/vnote/internal/util"
)

// maxLines is how many log lines stay on screen.
const maxLines = 8

// =============================================================================
// MESSAGES
// =============================================================================

// LineMsg carries one log line of the run.
type LineMsg string

// ProgressMsg carries a progress snapshot.
type ProgressMsg export.Progress

// DoneMsg is sent once the run has ended.
type DoneMsg export.Summary

// Canceller is the part of a run the view can act on.
type Canceller interface {
	Cancel()
}

// =============================================================================
// MODEL
// =============================================================================

// Model shows a running export: a progress bar, the note being exported
// and the latest log lines. q or ctrl+c cancels the run; the view quits
// when the run has ended.
type Model struct {
	title string
	theme *styles.Theme

	spinner spinner.Model
	bar     progress.Model

	run        Canceller
	progress   export.Progress
	lines      []string
	summary    *export.Summary
	cancelling bool
	started    time.Time
}

// New creates the view. Attach must be called before the program runs.
func New(title string, theme *styles.Theme) *Model {
	if theme == nil {
		theme = styles.NewTheme()
	}
	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = theme.Path
	return &Model{
		title:   title,
		theme:   theme,
		spinner: sp,
		bar:     progress.New(progress.WithGradient(styles.GradientStart, styles.GradientEnd), progress.WithWidth(40)),
		started: time.Now(),
	}
}

// Attach connects the run that q/ctrl+c cancels.
func (m *Model) Attach(run Canceller) {
	m.run = run
}

// Summary returns the final summary once DoneMsg was received.
func (m *Model) Summary() (export.Summary, bool) {
	if m.summary == nil {
		return export.Summary{}, false
	}
	return *m.summary, true
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if m.summary != nil {
				return m, tea.Quit
			}
			if !m.cancelling && m.run != nil {
				m.cancelling = true
				m.run.Cancel()
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.theme.SetSize(msg.Width, msg.Height)
		w := msg.Width - 30
		if w > 60 {
			w = 60
		}
		if w < 10 {
			w = 10
		}
		m.bar.Width = w
		return m, nil

	case LineMsg:
		m.lines = append(m.lines, string(msg))
		if len(m.lines) > maxLines {
			m.lines = m.lines[len(m.lines)-maxLines:]
		}
		return m, nil

	case ProgressMsg:
		p := export.Progress(msg)
		// Snapshots can arrive out of order; counters only grow
		if p.Attempted >= m.progress.Attempted {
			m.progress = p
		}
		return m, nil

	case DoneMsg:
		s := export.Summary(msg)
		m.summary = &s
		m.progress.State = s.State
		m.progress.Total = s.FilesTotal
		m.progress.Attempted = s.FilesAttempted
		m.progress.Succeeded = s.FilesSucceeded
		m.progress.Failed = s.FilesFailed()
		m.progress.Current = ""
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	t := m.theme
	var b strings.Builder

	b.WriteString(t.Title.Render(m.title))
	b.WriteString("\n\n")

	p := m.progress
	indicator := m.spinner.View()
	if m.summary != nil {
		indicator = " "
	}
	fmt.Fprintf(&b, "%s %s %d/%d  %s %d  %s %d\n",
		indicator,
		m.bar.ViewAs(p.Fraction()),
		p.Attempted, p.Total,
		t.Label.UnsetWidth().Render("exported"), p.Succeeded,
		t.Label.UnsetWidth().Render("failed"), p.Failed,
	)

	if p.Current != "" {
		width := t.Width - 12
		if width < 20 {
			width = 20
		}
		b.WriteString(t.Label.Render("current"))
		b.WriteString(t.Path.Render(util.TruncatePathLeft(p.Current, width)))
		b.WriteString("\n")
	}

	if len(m.lines) > 0 {
		b.WriteString("\n")
		for _, line := range m.lines {
			b.WriteString(styles.RenderLogLine(util.TruncateWidth(line, max(t.Width-6, 20))))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	switch {
	case m.summary != nil:
		b.WriteString(m.stateStyle(m.summary.State).Render(m.summary.Line()))
		b.WriteString("\n")
	case m.cancelling:
		b.WriteString(t.Hint.Render("Cancelling..."))
		b.WriteString("\n")
	default:
		b.WriteString(t.Hint.Render(fmt.Sprintf("q cancel  %s", time.Since(m.started).Round(time.Second))))
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) stateStyle(state export.State) lipgloss.Style {
	switch state {
	case export.StateCompleted:
		return m.theme.Completed
	case export.StateCancelled:
		return m.theme.Cancelled
	default:
		return m.theme.Failed
	}
}
