// Package errors provides structured error handling for mmdesk.
// It defines sentinel errors, exit codes, and helpers for adding
// context, details, and suggestions to errors.
//
//nolint:revive // Package name intentionally shadows stdlib for domain-specific error handling
package errors

import (
	"errors"
	"fmt"
	"sort"
)

// Exit codes returned by the CLI.
const (
	ExitSuccess    = 0 // Successful execution
	ExitGeneral    = 1 // General/unknown error
	ExitInput      = 2 // Invalid input
	ExitAuth       = 3 // Authentication failed
	ExitNotFound   = 4 // Resource not found
	ExitPermission = 5 // Permission denied
)

// DeskError is the structured error type for mmdesk.
type DeskError struct {
	Code       string            // Machine-readable error code
	Message    string            // Human-readable message
	Details    map[string]string // Additional context
	Suggestion string            // Actionable suggestion for user
	Cause      error             // Underlying error
	ExitCode   int               // Exit code for CLI
}

func (e *DeskError) Error() string {
	msg := e.Message

	// Include details in error message (sorted for deterministic output)
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			msg = fmt.Sprintf("%s (%s: %s)", msg, k, e.Details[k])
		}
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *DeskError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is for DeskError. Two errors match when their codes match.
func (e *DeskError) Is(target error) bool {
	var t *DeskError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Sentinel errors.
var (
	ErrGeneral = &DeskError{
		Code:     "GENERAL_ERROR",
		Message:  "an error occurred",
		ExitCode: ExitGeneral,
	}

	ErrInvalidInput = &DeskError{
		Code:     "INVALID_INPUT",
		Message:  "invalid input",
		ExitCode: ExitInput,
	}

	ErrNotFound = &DeskError{
		Code:     "NOT_FOUND",
		Message:  "resource not found",
		ExitCode: ExitNotFound,
	}

	ErrPermission = &DeskError{
		Code:     "PERMISSION_DENIED",
		Message:  "permission denied",
		ExitCode: ExitPermission,
	}

	// Transport errors raised by the API client.
	ErrNetworkTimeout = &DeskError{
		Code:       "NETWORK_TIMEOUT",
		Message:    "connection timed out",
		Suggestion: "check your internet connection and try again",
		ExitCode:   ExitGeneral,
	}

	ErrConnectionFailure = &DeskError{
		Code:       "CONNECTION_FAILURE",
		Message:    "unable to reach the server",
		Suggestion: "check your internet connection and try again",
		ExitCode:   ExitGeneral,
	}

	ErrServerRejected = &DeskError{
		Code:     "SERVER_REJECTED",
		Message:  "request rejected by server",
		ExitCode: ExitAuth,
	}

	ErrMalformedResponse = &DeskError{
		Code:     "MALFORMED_RESPONSE",
		Message:  "unexpected response from server",
		ExitCode: ExitGeneral,
	}

	// Session errors.
	ErrDecryptionFailed = &DeskError{
		Code:     "DECRYPTION_FAILED",
		Message:  "decryption failed - wrong key or corrupted data",
		ExitCode: ExitAuth,
	}

	ErrSessionExpired = &DeskError{
		Code:     "SESSION_EXPIRED",
		Message:  "session expired",
		ExitCode: ExitAuth,
	}

	ErrNotAuthenticated = &DeskError{
		Code:       "NOT_AUTHENTICATED",
		Message:    "not logged in",
		Suggestion: "run 'mmdesk login' first",
		ExitCode:   ExitAuth,
	}

	// Config-specific errors.
	ErrConfigInvalid = &DeskError{
		Code:     "CONFIG_INVALID",
		Message:  "configuration file is invalid",
		ExitCode: ExitInput,
	}

	ErrUnknownConfigKey = &DeskError{
		Code:     "UNKNOWN_CONFIG_KEY",
		Message:  "unknown configuration key",
		ExitCode: ExitInput,
	}

	ErrInvalidFormat = &DeskError{
		Code:     "INVALID_FORMAT",
		Message:  "invalid value format",
		ExitCode: ExitInput,
	}
)

// New creates a new DeskError with the given code and message.
func New(code, message string) *DeskError {
	return &DeskError{
		Code:     code,
		Message:  message,
		ExitCode: ExitGeneral,
	}
}

// Rejected returns an ErrServerRejected carrying the server-supplied message.
// An empty message falls back to fallback.
func Rejected(message, fallback string) *DeskError {
	if message == "" {
		message = fallback
	}
	return &DeskError{
		Code:     ErrServerRejected.Code,
		Message:  message,
		ExitCode: ErrServerRejected.ExitCode,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}

	msg := fmt.Sprintf(format, args...)

	var de *DeskError
	if errors.As(err, &de) {
		return &DeskError{
			Code:       de.Code,
			Message:    fmt.Sprintf("%s: %s", msg, de.Message),
			Details:    de.Details,
			Suggestion: de.Suggestion,
			Cause:      err,
			ExitCode:   de.ExitCode,
		}
	}

	return &DeskError{
		Code:     "GENERAL_ERROR",
		Message:  msg,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// WithCause returns a copy of err with cause attached as the underlying error.
func WithCause(err *DeskError, cause error) error {
	return &DeskError{
		Code:       err.Code,
		Message:    err.Message,
		Details:    err.Details,
		Suggestion: err.Suggestion,
		Cause:      cause,
		ExitCode:   err.ExitCode,
	}
}

// WithDetails adds details to an error.
func WithDetails(err error, details map[string]string) error {
	if err == nil {
		return nil
	}

	var de *DeskError
	if errors.As(err, &de) {
		return &DeskError{
			Code:       de.Code,
			Message:    de.Message,
			Details:    details,
			Suggestion: de.Suggestion,
			Cause:      de.Cause,
			ExitCode:   de.ExitCode,
		}
	}

	return &DeskError{
		Code:     "GENERAL_ERROR",
		Message:  err.Error(),
		Details:  details,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// WithSuggestion adds a suggestion to an error.
func WithSuggestion(err error, suggestion string) error {
	if err == nil {
		return nil
	}

	var de *DeskError
	if errors.As(err, &de) {
		return &DeskError{
			Code:       de.Code,
			Message:    de.Message,
			Details:    de.Details,
			Suggestion: suggestion,
			Cause:      de.Cause,
			ExitCode:   de.ExitCode,
		}
	}

	return &DeskError{
		Code:       "GENERAL_ERROR",
		Message:    err.Error(),
		Suggestion: suggestion,
		Cause:      err,
		ExitCode:   ExitGeneral,
	}
}

// UserMessage returns the message intended for end-user display.
// Causes and details are omitted; they belong in the log.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var de *DeskError
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}

// ExitCode returns the appropriate exit code for an error.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var de *DeskError
	if errors.As(err, &de) {
		return de.ExitCode
	}

	return ExitGeneral
}

// Code returns the error code for an error.
func Code(err error) string {
	var de *DeskError
	if errors.As(err, &de) {
		return de.Code
	}
	return "GENERAL_ERROR"
}

// Is wraps errors.Is for convenience.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience.
func As(err error, target any) bool {
	return errors.As(err, target)
}
