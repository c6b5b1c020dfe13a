// Package errors defines the coded errors surfaced by the API client and the session layer.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a category of application error.
type ErrorCode string

const (
	// ErrCodeTransport means no response was received (DNS, refused connection).
	ErrCodeTransport ErrorCode = "transport"
	// ErrCodeAPI means the backend answered with a non-2xx status other than 401.
	ErrCodeAPI ErrorCode = "api"
	// ErrCodeUnauthorized means the backend answered 401.
	ErrCodeUnauthorized ErrorCode = "unauthorized"
	// ErrCodeDecode means a response body did not match any known shape.
	ErrCodeDecode     ErrorCode = "decode"
	ErrCodeNotFound   ErrorCode = "not_found"
	ErrCodeValidation ErrorCode = "validation"
	ErrCodeInternal   ErrorCode = "internal"
	ErrCodeTimeout    ErrorCode = "timeout"
	ErrCodeCanceled   ErrorCode = "canceled"
)

// AppError is a coded error. The message is what a user sees; Cause is kept for errors.Is/As.
type AppError struct {
	Code    ErrorCode
	Message string
	Cause   error
	// Field names the offending input for validation errors.
	Field string
	// Status is the HTTP status that produced the error, or 0 when no response arrived.
	Status int
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

func newError(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// API creates the error for a non-2xx response carrying message.
func API(status int, message string) *AppError {
	e := newError(ErrCodeAPI, message)
	if status == http.StatusUnauthorized {
		e.Code = ErrCodeUnauthorized
	}
	e.Status = status
	return e
}

// Transport wraps a round trip that produced no response. A nil err yields nil.
func Transport(err error, message string) *AppError {
	return Wrap(err, ErrCodeTransport, message)
}

func Decode(message string) *AppError { return newError(ErrCodeDecode, message) }
func NotFound(message string) *AppError { return newError(ErrCodeNotFound, message) }
func Validation(message string) *AppError { return newError(ErrCodeValidation, message) }
func Internal(message string) *AppError { return newError(ErrCodeInternal, message) }

// ValidationField reports invalid input for field.
func ValidationField(field, message string) *AppError {
	e := newError(ErrCodeValidation, message)
	e.Field = field
	return e
}

// Wrap attaches code and message to err. A nil err yields nil.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	e := newError(code, message)
	e.Cause = err
	return e
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

func asAppError(err error) (*AppError, bool) {
	var appErr *AppError
	ok := errors.As(err, &appErr)
	return appErr, ok
}

// Is reports whether any AppError in err's chain carries code.
func Is(err error, code ErrorCode) bool {
	appErr, ok := asAppError(err)
	return ok && appErr.Code == code
}

func IsTransport(err error) bool { return Is(err, ErrCodeTransport) }
func IsAPI(err error) bool { return Is(err, ErrCodeAPI) }
func IsUnauthorized(err error) bool { return Is(err, ErrCodeUnauthorized) }
func IsDecode(err error) bool { return Is(err, ErrCodeDecode) }
func IsNotFound(err error) bool { return Is(err, ErrCodeNotFound) }
func IsValidation(err error) bool { return Is(err, ErrCodeValidation) }

// GetCode returns the outermost AppError code in err's chain, or "".
func GetCode(err error) ErrorCode {
	if appErr, ok := asAppError(err); ok {
		return appErr.Code
	}
	return ""
}

// GetStatus returns the HTTP status carried by err, or 0.
func GetStatus(err error) int {
	if appErr, ok := asAppError(err); ok {
		return appErr.Status
	}
	return 0
}

// GetField returns the offending field of a validation error, or "".
func GetField(err error) string {
	if appErr, ok := asAppError(err); ok {
		return appErr.Field
	}
	return ""
}
