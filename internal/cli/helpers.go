// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// helpers.go - Shared helpers used across the CLI commands.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/eqio/vnote/internal/export"
)

// formatDurationShort formats a short duration string.
func formatDurationShort(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}

// formatAge formats how long ago t was, for listings.
func formatAge(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

// writeJSON writes data as indented JSON.
func writeJSON(w io.Writer, data interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// summaryJSON is the machine-readable form of a finished run.
type summaryJSON struct {
	ID             string             `json:"id"`
	State          string             `json:"state"`
	Source         string             `json:"source"`
	Format         string             `json:"format"`
	OutputRoot     string             `json:"output_root"`
	FilesTotal     int                `json:"files_total"`
	FilesAttempted int                `json:"files_attempted"`
	FilesSucceeded int                `json:"files_succeeded"`
	FilesFailed    int                `json:"files_failed"`
	Errors         []export.FileError `json:"errors,omitempty"`
	Error          string             `json:"error,omitempty"`
	StartedAt      time.Time          `json:"started_at"`
	DurationMS     int64              `json:"duration_ms"`
}

func newSummaryJSON(s export.Summary) summaryJSON {
	out := summaryJSON{
		ID:             s.ID,
		State:          s.State.String(),
		Source:         s.Source.String(),
		Format:         s.Format.String(),
		OutputRoot:     s.OutputRoot,
		FilesTotal:     s.FilesTotal,
		FilesAttempted: s.FilesAttempted,
		FilesSucceeded: s.FilesSucceeded,
		FilesFailed:    s.FilesFailed(),
		Errors:         s.Errors,
		StartedAt:      s.StartedAt,
		DurationMS:     s.Duration().Milliseconds(),
	}
	if s.Err != nil {
		out.Error = s.Err.Error()
	}
	return out
}
