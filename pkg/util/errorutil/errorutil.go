package errorutil

import (
	"errors"
	"fmt"
	"io/fs"
)

// Error codes shared by every layer. The shell renders them into short,
// non-technical messages.
const (
	CodeValidation         = "VALIDATION_FAILED"
	CodeAuthentication     = "AUTHENTICATION_FAILED"
	CodeForbidden          = "FORBIDDEN"
	CodeNotFound           = "NOT_FOUND"
	CodeInvalidTransition  = "INVALID_TRANSITION"
	CodeTerminalState      = "TERMINAL_STATE"
	CodeInvalidAssignee    = "INVALID_ASSIGNEE"
	CodeDeletionNotAllowed = "DELETION_NOT_ALLOWED"
	CodeDuplicateUsername  = "DUPLICATE_USERNAME"
	CodeStorage            = "STORAGE_ERROR"
	CodeInternal           = "INTERNAL_ERROR"
)

// Sentinels for errors.Is. Any DomainError with the same code matches.
var (
	ErrValidation         = &DomainError{Code: CodeValidation}
	ErrAuthentication     = &DomainError{Code: CodeAuthentication}
	ErrForbidden          = &DomainError{Code: CodeForbidden}
	ErrNotFound           = &DomainError{Code: CodeNotFound}
	ErrInvalidTransition  = &DomainError{Code: CodeInvalidTransition}
	ErrTerminalState      = &DomainError{Code: CodeTerminalState}
	ErrInvalidAssignee    = &DomainError{Code: CodeInvalidAssignee}
	ErrDeletionNotAllowed = &DomainError{Code: CodeDeletionNotAllowed}
	ErrDuplicateUsername  = &DomainError{Code: CodeDuplicateUsername}
	ErrStorage            = &DomainError{Code: CodeStorage}
	ErrInternal           = &DomainError{Code: CodeInternal}
)

// DomainError standardizes application errors.
type DomainError struct {
	Code    string
	Message string
	Details map[string]any
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a DomainError carrying the same code.
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, details)
}

func NewAuthenticationError() error {
	return NewDomainError(CodeAuthentication, "invalid username or password", nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, nil)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Details: details,
	}
}

func NewInvalidTransition(from, to string) error {
	return NewDomainError(CodeInvalidTransition,
		fmt.Sprintf("cannot change status from %s to %s", from, to),
		map[string]any{"from": from, "to": to})
}

func NewTerminalState(message string) error {
	return NewDomainError(CodeTerminalState, message, nil)
}

func NewInvalidAssignee(message string, details map[string]any) error {
	return NewDomainError(CodeInvalidAssignee, message, details)
}

func NewDeletionNotAllowed(message string) error {
	return NewDomainError(CodeDeletionNotAllowed, message, nil)
}

func NewDuplicateUsername(username string) error {
	return NewDomainError(CodeDuplicateUsername, "username already taken",
		map[string]any{"username": username})
}

// NewStorageError wraps an I/O failure. The wrapped error is kept for logs
// and never shown to the user.
func NewStorageError(op string, err error) error {
	return &DomainError{
		Code:    CodeStorage,
		Message: op,
		Err:     err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:    CodeInternal,
		Message: "internal error",
		Err:     err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return &DomainError{Code: CodeStorage, Message: "file access failed", Err: err}
	}
	return &DomainError{
		Code:    CodeInternal,
		Message: "internal error",
		Err:     err,
	}
}

// HasCode reports whether err maps to a DomainError with the given code.
func HasCode(err error, code string) bool {
	de := ToDomainError(err)
	return de != nil && de.Code == code
}

// UserMessage renders err as a short message that is safe to show at the
// prompt. Wrapped causes never reach the user.
func UserMessage(err error) string {
	de := ToDomainError(err)
	if de == nil {
		return ""
	}
	switch de.Code {
	case CodeStorage:
		return "something went wrong while accessing stored data; please try again"
	case CodeInternal:
		return "an unexpected error occurred; please try again"
	case CodeForbidden:
		if de.Message == "" {
			return "you do not have permission to do that"
		}
		return "permission denied: " + de.Message
	case CodeAuthentication:
		return "invalid username or password"
	}
	if de.Message == "" {
		return "request failed"
	}
	return de.Message
}
