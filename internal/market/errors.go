package market

import (
	"errors"
	"fmt"
)

// Code classifies a protocol failure. Every failed operation surfaces exactly
// one code; callers may retry the whole operation but the core never retries
// internally.
type Code string

const (
	CodeAuthorization Code = "authorization"
	CodeValidation    Code = "validation"
	CodeNotFound      Code = "not_found"
	CodeConflict      Code = "conflict"
)

// Error is a coded protocol failure.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func Authorizationf(format string, args ...interface{}) *Error {
	return &Error{Code: CodeAuthorization, Message: fmt.Sprintf(format, args...)}
}

func Validationf(format string, args ...interface{}) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFoundf(format string, args ...interface{}) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

func Conflictf(format string, args ...interface{}) *Error {
	return &Error{Code: CodeConflict, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the protocol code from err, unwrapping as needed. It
// returns "" for errors that did not originate in the protocol core.
func CodeOf(err error) Code {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

var (
	ErrNotAdmin             = Authorizationf("caller is not the admin")
	ErrProductNotFound      = NotFoundf("product not found")
	ErrRequestNotFound      = NotFoundf("request not found")
	ErrDuplicateRequest     = Conflictf("an active request already exists for this product and publisher")
	ErrRequestNotPending    = Conflictf("request is not pending")
	ErrRequestNotAccepted   = Conflictf("request is not accepted")
	ErrInsufficientFunds    = Conflictf("insufficient funds")
	ErrInsufficientHoldings = Conflictf("insufficient holdings")
)
