// json_output.go - JSON output for scripts driving vnote-export.
//
// Every command that accepts --json writes exactly one JSONResponse to
// stdout; human-readable progress goes to stderr in that mode.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package cli

import (
	"fmt"
	"io"
	"os"
	"time"
)

// JSONResponse is the response envelope of every command.
type JSONResponse struct {
	// Success indicates whether the command completed successfully
	Success bool `json:"success"`

	// Data contains the command-specific response data
	Data interface{} `json:"data"`

	// Error contains the error message if Success is false, null otherwise
	Error *string `json:"error"`

	// Timestamp is the ISO8601 timestamp when the response was generated
	Timestamp string `json:"timestamp"`

	Command string `json:"command,omitempty"`
}

// NewJSONResponse creates a new successful JSON response.
func NewJSONResponse(command string, data interface{}) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates a new error JSON response. data may carry a
// partial result, such as the summary of a run with failed notes.
func NewJSONErrorResponse(command string, err error, data interface{}) *JSONResponse {
	errStr := err.Error()
	return &JSONResponse{
		Success:   false,
		Data:      data,
		Error:     &errStr,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Encode writes the response to w.
func (r *JSONResponse) Encode(w io.Writer) error {
	return writeJSON(w, r)
}

// Print outputs the JSON response to stdout.
func (r *JSONResponse) Print() error {
	return r.Encode(os.Stdout)
}

// StderrPrint prints a message to stderr (for human-readable output in JSON mode).
func StderrPrint(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
}

// =============================================================================
// COMMAND-SPECIFIC DATA STRUCTURES
// =============================================================================

// PlanEntryJSON is one row of the preview command's plan.
type PlanEntryJSON struct {
	Source string `json:"source"`
	Output string `json:"output"`
}

// PlanJSON is the data of the preview command.
type PlanJSON struct {
	Source     string          `json:"source"`
	Format     string          `json:"format"`
	OutputRoot string          `json:"output_root"`
	Entries    []PlanEntryJSON `json:"entries"`
	Skipped    []PlanEntryJSON `json:"skipped,omitempty"`
}

// HistoryEntryJSON is one row of the history command.
type HistoryEntryJSON struct {
	ID         string    `json:"id"`
	State      string    `json:"state"`
	Source     string    `json:"source"`
	Format     string    `json:"format"`
	OutputRoot string    `json:"output_root"`
	Total      int       `json:"files_total"`
	Succeeded  int       `json:"files_succeeded"`
	Failed     int       `json:"files_failed"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
}
