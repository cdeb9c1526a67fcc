// Package errs defines the coded error kinds returned by the task lifecycle,
// the reward ledger and the store.
package errs

import (
	"errors"
	"fmt"
)

// Standard error codes for the application.
const (
	CodeUnknown          = "UNKNOWN"
	CodePermissionDenied = "PERMISSION_DENIED"
	CodeInvalidArgument  = "INVALID_ARGUMENT"
	CodeNotFound         = "NOT_FOUND"
	CodeNoActiveTask     = "NO_ACTIVE_TASK"
	CodeActiveTaskExists = "ACTIVE_TASK_EXISTS"
	CodeStoreUnavailable = "STORE_UNAVAILABLE"
)

// Sentinels for errors.Is. Any *Error with the same code matches.
var (
	ErrPermissionDenied = &Error{code: CodePermissionDenied, message: "permission denied"}
	ErrInvalidArgument  = &Error{code: CodeInvalidArgument, message: "invalid argument"}
	ErrNotFound         = &Error{code: CodeNotFound, message: "not found"}
	ErrNoActiveTask     = &Error{code: CodeNoActiveTask, message: "no active task"}
	ErrActiveTaskExists = &Error{code: CodeActiveTaskExists, message: "user already has an active task"}
	ErrStoreUnavailable = &Error{code: CodeStoreUnavailable, message: "store unavailable"}
)

// ApplicationError is the interface that all our custom errors implement.
type ApplicationError interface {
	error
	Code() string
	Unwrap() error
}

// Error represents a coded application error with an optional cause.
type Error struct {
	code    string
	message string
	err     error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.message, e.err)
	}

	return e.message
}

func (e *Error) Code() string {
	return e.code
}

func (e *Error) Unwrap() error {
	return e.err
}

// Is reports whether target is an *Error carrying the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}

	return t.code == e.code
}

// Code returns the code of the first ApplicationError in err's chain,
// or CodeUnknown if it doesn't carry one.
func Code(err error) string {
	var appErr ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Code()
	}

	return CodeUnknown
}

// New builds an error of the given code.
func New(code, message string, cause error) error {
	return &Error{
		code:    code,
		message: message,
		err:     cause,
	}
}

func PermissionDenied(message string) error {
	return New(CodePermissionDenied, message, nil)
}

func InvalidArgument(message string, cause error) error {
	return New(CodeInvalidArgument, message, cause)
}

func InvalidArgumentf(format string, args ...any) error {
	return New(CodeInvalidArgument, fmt.Sprintf(format, args...), nil)
}

func NotFound(message string) error {
	return New(CodeNotFound, message, nil)
}

func NoActiveTask(message string) error {
	return New(CodeNoActiveTask, message, nil)
}

func ActiveTaskExists(message string) error {
	return New(CodeActiveTaskExists, message, nil)
}

func StoreUnavailable(message string, cause error) error {
	return New(CodeStoreUnavailable, message, cause)
}

// IsBusiness reports whether err is one of the rule violations a caller is
// expected to handle, as opposed to an infrastructure failure.
func IsBusiness(err error) bool {
	switch Code(err) {
	case CodePermissionDenied, CodeInvalidArgument, CodeNotFound, CodeNoActiveTask, CodeActiveTaskExists:
		return true
	default:
		return false
	}
}

// Message returns the message of the first *Error in err's chain without its
// cause, or err.Error() if there is none.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
