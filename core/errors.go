package core

import (
	"fmt"

	"github.com/pkg/errors"
)

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
		return ""
	}
	return err.Err.Error()
}

// NotFoundError is returned when a referenced row does not exist.
type NotFoundError struct {
	Resource string
}

func NewNotFoundError(resource string) error {
	return &NotFoundError{Resource: resource}
}

func (err NotFoundError) Error() string {
	return err.Resource + " not found"
}

// PersistenceError reports a failed transactional write. The transaction has been rolled back.
type PersistenceError struct {
	Op  string
	Err error
}

func NewPersistenceError(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}

func (err PersistenceError) Error() string {
	return err.Op + ": " + err.Err.Error()
}

func (err PersistenceError) Unwrap() error { return err.Err }

// InvalidOperationError is returned when a well-formed request asks for a forbidden state change.
type InvalidOperationError struct {
	Reason string
}

func NewInvalidOperationError(reason string) error {
	return &InvalidOperationError{Reason: reason}
}

func (err InvalidOperationError) Error() string {
	return err.Reason
}

type UnsupportedFileTypeError struct {
	Field       string
	ContentType string
}

func (err UnsupportedFileTypeError) Error() string {
	return fmt.Sprintf("%s: unsupported file type %q", err.Field, err.ContentType)
}

type FileTooLargeError struct {
	Field string
	Limit int64
}

func (err FileTooLargeError) Error() string {
	return fmt.Sprintf("%s: file exceeds the %d bytes limit", err.Field, err.Limit)
}

// IsNotFound reports whether the cause of err is a *NotFoundError.
func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*NotFoundError)
	return ok
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
