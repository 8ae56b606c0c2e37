// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrAlreadyRunning is returned by Start while another run is active.
	ErrAlreadyRunning = errors.New("an export is already running")

	// ErrRunNotFinished is returned by Result before the run has ended.
	ErrRunNotFinished = errors.New("export has not finished")

	// ErrToolFailed wraps a non-zero exit of the external PDF tool.
	ErrToolFailed = errors.New("external tool failed")

	// ErrInvalidPDF is returned when generated bytes are not a valid PDF.
	ErrInvalidPDF = errors.New("invalid PDF output")

	// ErrImageConflict is returned when a note's image would replace a
	// different image already copied for another note of the same run.
	ErrImageConflict = errors.New("image conflicts with another note's image")
)

// ConfigError is a run-level failure found before any file is processed.
type ConfigError struct {
	// Field names the offending option (e.g. "output", "pdf.tool_path")
	Field string

	// Reason is a short human readable explanation
	Reason string

	// Err is the underlying cause, if any
	Err error
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// IsConfigError reports whether err is or wraps a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// FileError records the failure of a single note. It never stops a run.
type FileError struct {
	// RelPath is the note's path relative to the resolution root
	RelPath string `json:"rel_path"`

	// Message is the error text shown to the user
	Message string `json:"message"`

	// Err is the original error; nil once loaded from history
	Err error `json:"-"`
}

func (e FileError) Error() string {
	return e.RelPath + ": " + e.Message
}

func (e FileError) Unwrap() error {
	return e.Err
}

func newFileError(rel string, err error) FileError {
	return FileError{RelPath: rel, Message: err.Error(), Err: err}
}
