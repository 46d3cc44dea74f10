package usecase

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	ErrorInvalidInput ErrorCode = "INVALID_INPUT"
	ErrorUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrorUpstream     ErrorCode = "UPSTREAM_ERROR"
	ErrorInternal     ErrorCode = "INTERNAL_ERROR"
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
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
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

// NewError is used by the transport layer for failures it detects itself.
func NewError(code ErrorCode, reason string, err error) *Error {
	return newError(code, reason, err)
}

// Describe returns the code and reason carried by err, falling back to
// INTERNAL_ERROR for errors that are not *Error.
func Describe(err error) (ErrorCode, string) {
	var ue *Error
	if errors.As(err, &ue) && ue != nil {
		return ue.Code, ue.Reason
	}
	return ErrorInternal, "unexpected_error"
}
