// Package cliutil provides structured error reporting and the Execute
// entrypoint shared by every cmd/yoyo command. Grounded on the teacher's
// cli/errors.go (CommandError/wrapError/formatSuggestion) and
// cli/root.go's Execute, generalized to spec.md §7's error taxonomy:
// distinct exit codes for load (2), lock (3), and execution (4) errors
// instead of the teacher's flat default-to-1 scheme.
package cliutil

import "fmt"

// Exit codes per spec.md §7's error taxonomy. Code 1 is the generic
// fallback for anything not classified into one of the other three.
const (
	ExitGeneric   = 1
	ExitLoad      = 2
	ExitLock      = 3
	ExitExecution = 4
)

// CommandError provides structured error reporting for CLI commands: a
// user-facing Message, the underlying Cause, an optional Suggestion hint,
// and the process exit code this failure should produce.
type CommandError struct {
	Message    string
	Cause      error
	Suggestion string
	ExitCode   int
}

// Error implements the error interface.
func (e CommandError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return "command failed"
}

// Unwrap exposes the wrapped error for errors.Is/errors.As.
func (e CommandError) Unwrap() error {
	return e.Cause
}

// ExitStatus returns the process exit code associated with the error,
// defaulting to ExitGeneric when none was set.
func (e CommandError) ExitStatus() int {
	if e.ExitCode != 0 {
		return e.ExitCode
	}
	return ExitGeneric
}

// WrapError builds a CommandError as an error interface. cause may be nil.
func WrapError(message string, cause error, suggestion string, exitCode int) error {
	if cause == nil {
		return CommandError{Message: message, Suggestion: suggestion, ExitCode: exitCode}
	}
	msg := message
	if msg == "" {
		msg = cause.Error()
	}
	return CommandError{Message: msg, Cause: cause, Suggestion: suggestion, ExitCode: exitCode}
}

// LoadError wraps cause with ExitLoad (§7 load errors: missing id in
// depends, cycle, duplicate id, malformed directive, unreadable source).
func LoadError(message string, cause error, suggestion string) error {
	return WrapError(message, cause, suggestion, ExitLoad)
}

// LockError wraps cause with ExitLock (§7 lock errors: timeout or
// unexpected holder).
func LockError(message string, cause error, suggestion string) error {
	return WrapError(message, cause, suggestion, ExitLock)
}

// ExecutionError wraps cause with ExitExecution (§7 execution errors and
// non-transactional failures).
func ExecutionError(message string, cause error, suggestion string) error {
	return WrapError(message, cause, suggestion, ExitExecution)
}

// FormatSuggestion formats a hint for display when a Suggestion is set.
func FormatSuggestion(hint string) string {
	if hint == "" {
		return ""
	}
	return fmt.Sprintf("hint: %s", hint)
}
