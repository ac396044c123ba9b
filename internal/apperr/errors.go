// Package apperr defines the stable error codes surfaced by Othala.
//
// Every failure that crosses a component boundary is a value of type *Error;
// nothing in the core signals failure by panicking. Errors render as
// "[code] message" so callers and the API layer can branch on Code while
// keeping the human-readable message intact.
package apperr

import (
	"errors"
	"fmt"
)

// Code identifies a failure class.
type Code string

// Validation errors, rejected before any I/O.
const (
	CodeInvalidParentNodeID Code = "invalid_parent_node_id"
	CodeInvalidDisplayName  Code = "invalid_display_name"
	CodeInvalidNodeID       Code = "invalid_node_id"
	CodeInvalidDocumentID   Code = "invalid_document_id"
)

// Concurrency-guard errors, resolved locally with no state mutated.
const (
	// CodeBusy means a conflicting mutation is already in flight for the resource.
	CodeBusy Code = "busy"
	// CodeSaveBlocked means an operation was refused because flushing the
	// active draft failed.
	CodeSaveBlocked Code = "save_blocked"
)

// Pane layout errors.
const (
	CodePaneNotFound      Code = "pane_not_found"
	CodeMaxPanesReached   Code = "max_panes_reached"
	CodeDirectionLocked   Code = "direction_locked"
	CodeMinSizeBlocked    Code = "min_size_blocked"
	CodeSinglePaneBlocked Code = "single_pane_blocked"
)

// Store errors.
const (
	CodeNotFound      Code = "not_found"
	CodeAlreadyExists Code = "already_exists"
	CodeConflict      Code = "conflict"
	CodeInternal      Code = "internal_error"
)

// Error is a coded error value.
type Error struct {
	Code    Code
	Message string
	cause   error
}

// New creates an Error with the given code and message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code to an underlying error, preserving it for errors.Is/As.
func Wrap(code Code, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: err.Error(), cause: err}
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is makes errors.Is match any *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// CodeOf returns the code of err, or CodeInternal for uncoded errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}
