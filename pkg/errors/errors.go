// Package errors provides structured error types for drain-swamp.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the CLI and library packages
//   - Machine-readable error codes for programmatic handling
//   - A stable mapping from error category to process exit code
//
// # Error Codes
//
// Error codes follow a hierarchical naming convention:
//   - INVALID_*: Input validation failures
//   - CONFIG_*: pyproject.toml loading and parsing failures
//   - MISSING_*: Declared folders or requirement files absent on disk
//   - COMPILER_*: External dependency compiler failures
//
// # Usage
//
//	err := errors.New(errors.ErrCodeConfigParse, "malformed [[tool.venvs]] entry: %s", key)
//	if errors.Is(err, errors.ErrCodeConfigParse) {
//	    // Handle config error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeCompilerFailed, origErr, "compiling %s", path)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidPath Code = "INVALID_PATH"
	ErrCodeInvalidVenv Code = "INVALID_VENV"

	// Configuration errors (pyproject.toml)
	ErrCodeConfigNotFound Code = "CONFIG_NOT_FOUND"
	ErrCodeConfigParse    Code = "CONFIG_PARSE_ERROR"

	// Requirement file structure errors
	ErrCodeMissingRequirements Code = "MISSING_REQUIREMENTS"
	ErrCodeRequirementsCycle   Code = "REQUIREMENTS_CYCLE"

	// External compiler errors
	ErrCodeCompilerNotFound Code = "COMPILER_NOT_FOUND"
	ErrCodeCompilerFailed   Code = "COMPILER_FAILED"
	ErrCodeTimeout          Code = "TIMEOUT"

	// Filesystem errors during fix application
	ErrCodeWriteFailed Code = "WRITE_FAILED"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// ExitCode maps an error code to the process exit code surfaced by the CLI.
//
// The contract: 0 success, 2 bad path argument, 3 config file unreadable,
// 4 config parse error, 6 missing requirement folders/files, 7 external
// compiler not installed, 8 malformed requirements-file structure
// (e.g. unresolvable include cycle). Anything unrecognized exits 1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch GetCode(err) {
	case ErrCodeInvalidPath, ErrCodeInvalidVenv:
		return 2
	case ErrCodeConfigNotFound:
		return 3
	case ErrCodeConfigParse:
		return 4
	case ErrCodeMissingRequirements:
		return 6
	case ErrCodeCompilerNotFound:
		return 7
	case ErrCodeRequirementsCycle:
		return 8
	default:
		return 1
	}
}

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
