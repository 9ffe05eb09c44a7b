package core

import (
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

type ErrorKind string

const (
	KindValidation      ErrorKind = "validation_error"
	KindNotFound        ErrorKind = "not_found"
	KindForbidden       ErrorKind = "forbidden"
	KindNotAssigned     ErrorKind = "not_assigned"
	KindConflict        ErrorKind = "schedule_conflict"
	KindAlreadyApproved ErrorKind = "already_approved"
	KindUnauthorized    ErrorKind = "unauthorized"
	KindExternal        ErrorKind = "external_dependency_failure"
)

// Error is a business-rule error carrying its ErrorKind.
type Error struct {
	Kind ErrorKind
	Msg  string
}

func NewError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func (err *Error) Error() string {
	return err.Msg
}

// KindOf returns the ErrorKind of the first typed error in err's chain.
// Untyped errors come from repositories or gateways and are reported as KindExternal.
func KindOf(err error) ErrorKind {
	var kErr *Error
	if errors.As(err, &kErr) {
		return kErr.Kind
	}
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return KindValidation
	}
	var fErrs validator.ValidationErrors
	if errors.As(err, &fErrs) {
		return KindValidation
	}
	return KindExternal
}

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return "invalid data"
	}
	return err.Err.Error()
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
