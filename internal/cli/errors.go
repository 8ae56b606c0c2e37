// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error types and exit codes for the vnote-export commands.
//
// STANDARDIZED PATTERN:
//   - Command handlers return errors, they never print and return nil
//   - main displays the error once and exits with GetExitCode(err)
//   - A run that finished with failed notes is an *ExportResultError
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/eqio/vnote/internal/config"
	"github.com/eqio/vnote/internal/export"
	"github.com/eqio/vnote/internal/history"
	"github.com/eqio/vnote/internal/notebook"
)

// =============================================================================
// EXIT CODES - Specific codes for different error categories
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates configuration file or settings error,
	// including an export that failed its preflight
	ExitConfigError = 3
	// ExitNotFoundError indicates a note, folder or history entry was not found
	ExitNotFoundError = 7
	// ExitTimeoutError indicates an operation timed out
	ExitTimeoutError = 8
	// ExitPartialFailure indicates an export finished with failed notes
	ExitPartialFailure = 9
	// ExitCancelled indicates the run was cancelled (SIGINT convention)
	ExitCancelled = 130
)

// =============================================================================
// ERROR TYPES FOR STRUCTURED ERROR HANDLING
// =============================================================================

// CommandError represents a CLI command error with context.
type CommandError struct {
	Command string // e.g., "export"
	Action  string // e.g., "open cart"
	Reason  string // Human-readable reason
	Err     error  // Underlying error (optional)
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s failed: %s: %v", e.Command, e.Action, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %s", e.Command, e.Action, e.Reason)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ValidationError represents invalid command input.
type ValidationError struct {
	Field   string // Field name that failed validation
	Value   string // Invalid value provided
	Reason  string // Why it's invalid
	Example string // Example of valid input (optional)
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s", e.Field)
	if e.Value != "" {
		msg += fmt.Sprintf(" %q", e.Value)
	}
	msg += ": " + e.Reason
	if e.Example != "" {
		msg += fmt.Sprintf(" (example: %s)", e.Example)
	}
	return msg
}

// NotFoundError represents a resource that doesn't exist.
type NotFoundError struct {
	Resource string // Resource type (e.g., "note", "run")
	ID       string // Path or identifier
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ExportResultError is returned by the export command when the run ended
// without exporting every note. The summary has already been shown.
type ExportResultError struct {
	Summary export.Summary
}

func (e *ExportResultError) Error() string {
	return e.Summary.Line()
}

// =============================================================================
// ERROR CONSTRUCTION HELPERS
// =============================================================================

// NewCommandError creates a new command error.
func NewCommandError(command, action, reason string, err error) error {
	return &CommandError{
		Command: command,
		Action:  action,
		Reason:  reason,
		Err:     err,
	}
}

// NewValidationError creates a new validation error.
func NewValidationError(field, value, reason string) error {
	return &ValidationError{
		Field:  field,
		Value:  value,
		Reason: reason,
	}
}

// NewValidationErrorWithExample creates a validation error with an example.
func NewValidationErrorWithExample(field, value, reason, example string) error {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Reason:  reason,
		Example: example,
	}
}

// NewNotFoundError creates a new not found error.
func NewNotFoundError(resource, id string) error {
	return &NotFoundError{
		Resource: resource,
		ID:       id,
	}
}

// ErrMissingArgument creates an error for missing required arguments.
func ErrMissingArgument(argName, usage string) error {
	return NewValidationErrorWithExample(argName, "", "required argument missing", usage)
}

// =============================================================================
// ERROR DISPLAY HELPERS
// =============================================================================

// DisplayError displays an error in a consistent format on stderr.
//
// In JSON mode, outputs structured JSON error on stdout.
func DisplayError(err error, jsonMode bool) {
	if err == nil {
		return
	}

	// The export command has already printed the summary
	var result *ExportResultError
	if errors.As(err, &result) {
		return
	}

	if jsonMode {
		DisplayErrorJSON(err)
		return
	}

	fmt.Fprintf(os.Stderr, "%s %s\n", ErrorStyle.Render("[ERROR]"), err.Error())
}

// DisplayErrorJSON outputs an error as JSON.
func DisplayErrorJSON(err error) {
	output := map[string]interface{}{
		"error":   err.Error(),
		"success": false,
	}

	var (
		cmdErr *CommandError
		valErr *ValidationError
		nfErr  *NotFoundError
		cfgErr *export.ConfigError
	)
	switch {
	case errors.As(err, &cfgErr):
		output["error_type"] = "config_error"
		output["field"] = cfgErr.Field
		output["reason"] = cfgErr.Reason
	case errors.As(err, &valErr):
		output["error_type"] = "validation_error"
		output["field"] = valErr.Field
		output["value"] = valErr.Value
		output["reason"] = valErr.Reason
		if valErr.Example != "" {
			output["example"] = valErr.Example
		}
	case errors.As(err, &nfErr):
		output["error_type"] = "not_found_error"
		output["resource"] = nfErr.Resource
		output["id"] = nfErr.ID
	case errors.As(err, &cmdErr):
		output["error_type"] = "command_error"
		output["command"] = cmdErr.Command
		output["action"] = cmdErr.Action
		output["reason"] = cmdErr.Reason
	default:
		output["error_type"] = "generic_error"
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	encoder.Encode(output)
}

// HandleErrorAndExit displays an error and exits with an appropriate exit code.
func HandleErrorAndExit(err error, jsonMode bool) {
	if err == nil {
		return
	}

	DisplayError(err, jsonMode)
	os.Exit(GetExitCode(err))
}

// GetExitCode determines the appropriate exit code for an error:
//   - ExitPartialFailure (9) / ExitCancelled (130): ExportResultError
//   - ExitUsageError (2): ValidationError
//   - ExitConfigError (3): export.ConfigError, config.ValidateErrors
//   - ExitNotFoundError (7): NotFoundError, missing notes and runs
//   - ExitGeneralError (1): all other errors
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var result *ExportResultError
	if errors.As(err, &result) {
		switch result.Summary.State {
		case export.StateCancelled:
			return ExitCancelled
		case export.StateFailed:
			return ExitConfigError
		}
		if result.Summary.FilesFailed() > 0 {
			return ExitPartialFailure
		}
		return ExitSuccess
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return ExitUsageError
	}

	if export.IsConfigError(err) {
		return ExitConfigError
	}
	var cfgErrs config.ValidateErrors
	if errors.As(err, &cfgErrs) {
		return ExitConfigError
	}

	var notFoundErr *NotFoundError
	if errors.As(err, &notFoundErr) ||
		errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, history.ErrNotFound) ||
		errors.Is(err, notebook.ErrNotNote) {
		return ExitNotFoundError
	}

	errMsg := strings.ToLower(err.Error())
	if strings.Contains(errMsg, "timed out") ||
		strings.Contains(errMsg, "deadline exceeded") {
		return ExitTimeoutError
	}

	return ExitGeneralError
}

// WrapError wraps an error with additional context.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
