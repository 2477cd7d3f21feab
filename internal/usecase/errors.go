package usecase

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrorValidation    ErrorCode = "VALIDATION"
	ErrorNotFound      ErrorCode = "NOT_FOUND"
	ErrorConflict      ErrorCode = "CONFLICT"
	ErrorNotConfigured ErrorCode = "NOT_CONFIGURED"
	ErrorStorage       ErrorCode = "STORAGE_ERROR"
	ErrorInternal      ErrorCode = "INTERNAL_ERROR"
)

type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("journal: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("journal: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

// CodeOf extracts the ErrorCode from an error chain, defaulting to internal.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrorInternal
}

// HTTPStatus maps an error to the status the API surface reports.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case ErrorValidation:
		return http.StatusBadRequest
	case ErrorNotFound:
		return http.StatusNotFound
	case ErrorConflict:
		return http.StatusConflict
	case ErrorNotConfigured:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
