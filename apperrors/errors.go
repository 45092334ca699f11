// Package apperrors defines the error shape shared by every service in the
// invoicing core. Each error carries a stable kind that boundaries (HTTP,
// CLI, dashboard) can map to their own status codes without string matching.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind is a stable error category.
type Kind string

const (
	KindValidation          Kind = "VALIDATION"
	KindNotFound            Kind = "NOT_FOUND"
	KindConflict            Kind = "CONFLICT"
	KindReferenceInUse      Kind = "REFERENCE_IN_USE"
	KindFA3ValidationFailed Kind = "FA3_VALIDATION_FAILED"
	KindIO                  Kind = "IO_ERROR"
	KindInternal            Kind = "INTERNAL"
)

// FieldIssue describes a single invalid input field. Validation errors carry
// a list of these in their details under the "issues" key.
type FieldIssue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the single error object crossing service boundaries.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// WithDetail attaches a structured detail and returns the error for chaining.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates an error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an error that keeps its cause reachable via errors.Unwrap.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Validation builds a VALIDATION error carrying the given field issues.
func Validation(message string, issues ...FieldIssue) *Error {
	e := New(KindValidation, message)
	if len(issues) > 0 {
		e.WithDetail("issues", issues)
	}
	return e
}

// NotFound builds a NOT_FOUND error for a resource looked up by id.
func NotFound(resource string, id any) *Error {
	return Newf(KindNotFound, "%s not found", resource).WithDetail("id", id)
}

// KindOf classifies err. A nil error has no kind; errors that did not
// originate from this package are invariant violations by definition and
// classify as INTERNAL.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsKind reports whether err (or anything it wraps) is an *Error of the
// given kind.
func IsKind(err error, kind Kind) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == kind
}
