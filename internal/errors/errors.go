// Package errors provides standardized domain errors with numeric codes for the books-manager API.
//
// Every failure surfaced to a client carries one of the codes below inside the
// response envelope. Codes are stable and shared with the web front-end.
//
// Usage:
//
//	// In services - return typed errors
//	if exists {
//	    return errors.ErrBookAlreadyExists
//	}
//
//	// In handlers - check with errors.Is
//	if errors.Is(err, errors.ErrBookNotFound) {
//	    ...
//	}
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)

// Code is the machine-readable numeric code written into the response envelope.
type Code int

// CodeSuccess is the envelope code of every successful response.
const CodeSuccess Code = 20000

// Error codes used throughout the application.
const (
	CodeRegisterFailed     Code = 10000
	CodeUserAlreadyExists  Code = 30000
	CodeUserNotFound       Code = 30001
	CodeInvalidCredentials Code = 40000
	CodeTokenCreation      Code = 50011
	CodeInvalidToken       Code = 50012
	CodeInternal           Code = 60000
	CodeAccountDisabled    Code = 700000
	CodeBookAlreadyExists  Code = 80000
	CodeAddBookFailed      Code = 80001
	CodeBookNotFound       Code = 80002
	CodeDeleteBookFailed   Code = 80003
	CodeInvalidRequest     Code = 90000
	CodeNotAdmin           Code = 100000
	CodeEmptyBookList      Code = 110000
	CodeInvalidData        Code = 120000
	CodeInvalidISBN        Code = 130000
	CodeNoRemain           Code = 140000
	CodeStorage            Code = 150000
	CodeNotBorrowed        Code = 160000
	CodeAlreadyBorrowed    Code = 160001
	CodeStockTooLow        Code = 170000
	CodeWrongPassword      Code = 180000
	CodeRateLimited        Code = 190000
)

// HTTPStatus returns the appropriate HTTP status code for an error code.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeSuccess:
		return http.StatusOK
	case CodeUserNotFound, CodeBookNotFound:
		return http.StatusNotFound
	case CodeUserAlreadyExists, CodeBookAlreadyExists, CodeNoRemain,
		CodeNotBorrowed, CodeAlreadyBorrowed, CodeStockTooLow:
		return http.StatusConflict
	case CodeInvalidCredentials, CodeInvalidToken, CodeWrongPassword:
		return http.StatusUnauthorized
	case CodeAccountDisabled, CodeNotAdmin:
		return http.StatusForbidden
	case CodeInvalidRequest, CodeEmptyBookList, CodeInvalidData, CodeInvalidISBN, CodeRegisterFailed:
		return http.StatusBadRequest
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain error with a code, message, and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error  // unexported, for wrapping
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target matches this error.
// Matches if target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// HTTPStatus returns the HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a new error with additional details.
func (e *Error) WithDetails(details any) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		cause:   e.cause,
	}
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		cause:   err,
	}
}

// Sentinel errors for use with errors.Is().
var (
	ErrRegisterFailed     = &Error{Code: CodeRegisterFailed, Message: "register failed"}
	ErrUserAlreadyExists  = &Error{Code: CodeUserAlreadyExists, Message: "user already exists"}
	ErrUserNotFound       = &Error{Code: CodeUserNotFound, Message: "user does not exist"}
	ErrInvalidCredentials = &Error{Code: CodeInvalidCredentials, Message: "invalid email or password"}
	ErrTokenCreation      = &Error{Code: CodeTokenCreation, Message: "failed to create token"}
	ErrInvalidToken       = &Error{Code: CodeInvalidToken, Message: "invalid token"}
	ErrInternal           = &Error{Code: CodeInternal, Message: "internal error"}
	ErrAccountDisabled    = &Error{Code: CodeAccountDisabled, Message: "account was disabled"}
	ErrBookAlreadyExists  = &Error{Code: CodeBookAlreadyExists, Message: "book already exists"}
	ErrAddBookFailed      = &Error{Code: CodeAddBookFailed, Message: "failed to add book"}
	ErrBookNotFound       = &Error{Code: CodeBookNotFound, Message: "book does not exist"}
	ErrDeleteBookFailed   = &Error{Code: CodeDeleteBookFailed, Message: "failed to delete book"}
	ErrInvalidRequest     = &Error{Code: CodeInvalidRequest, Message: "invalid request"}
	ErrNotAdmin           = &Error{Code: CodeNotAdmin, Message: "current user is not an admin"}
	ErrEmptyBookList      = &Error{Code: CodeEmptyBookList, Message: "book list is empty"}
	ErrInvalidData        = &Error{Code: CodeInvalidData, Message: "invalid data"}
	ErrInvalidISBN        = &Error{Code: CodeInvalidISBN, Message: "invalid isbn"}
	ErrNoRemain           = &Error{Code: CodeNoRemain, Message: "no remaining copies"}
	ErrStorage            = &Error{Code: CodeStorage, Message: "database error"}
	ErrNotBorrowed        = &Error{Code: CodeNotBorrowed, Message: "book is not borrowed"}
	ErrAlreadyBorrowed    = &Error{Code: CodeAlreadyBorrowed, Message: "book is already borrowed"}
	ErrStockTooLow        = &Error{Code: CodeStockTooLow, Message: "stock is not enough"}
	ErrWrongPassword      = &Error{Code: CodeWrongPassword, Message: "wrong password"}
	ErrRateLimited        = &Error{Code: CodeRateLimited, Message: "too many requests"}
)

// New creates an error with the given code and message.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Newf creates an error with the given code and a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// InvalidData creates an invalid data error naming the offending input.
func InvalidData(msg string) *Error {
	return &Error{Code: CodeInvalidData, Message: msg}
}

// InvalidDataf creates an invalid data error with formatted message.
func InvalidDataf(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidData, Message: fmt.Sprintf(format, args...)}
}

// InvalidDataWithDetails creates an invalid data error with per-field details.
func InvalidDataWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeInvalidData, Message: msg, Details: details}
}

// Storage wraps an unexpected persistence failure.
func Storage(err error) *Error {
	return &Error{Code: CodeStorage, Message: ErrStorage.Message, cause: err}
}

// Internal creates an internal error.
func Internal(msg string) *Error {
	return &Error{Code: CodeInternal, Message: msg}
}

// Wrap wraps an error with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// Wrapf wraps an error with a code and formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: err}
}

// CodeOf extracts the code of a domain error, or CodeInternal if err is not one.
func CodeOf(err error) Code {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return CodeInternal
}
