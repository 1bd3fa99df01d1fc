package errors

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-readable error type mapped to process exit codes.
type Code int

const (
	CodeSuccess          Code = 0
	CodeInternal         Code = 1
	CodeUsage            Code = 2
	CodeAuth             Code = 10
	CodeRateLimited      Code = 11
	CodeUnavailable      Code = 12
	CodeUnsupported      Code = 13
	CodeTimeout          Code = 14
	CodeParse            Code = 15
	CodeNotFound         Code = 16
	CodeInsufficientData Code = 17
	CodeStageFailed      Code = 18
	CodeCancelled        Code = 19
	CodeBlocked          Code = 20
)

// Error is a typed error that carries a stable error code.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// CodeOf returns the code of the outermost typed error, CodeInternal for
// untyped errors and CodeSuccess for nil.
func CodeOf(err error) Code {
	if err == nil {
		return CodeSuccess
	}
	if e, ok := As(err); ok {
		return e.Code
	}
	return CodeInternal
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// IsFetch reports whether err is a provider round-trip failure: transport
// error, non-success status or deadline exceeded.
func IsFetch(err error) bool {
	switch CodeOf(err) {
	case CodeAuth, CodeRateLimited, CodeUnavailable, CodeTimeout:
		return true
	default:
		return false
	}
}

func ExitCode(err error) int {
	return int(CodeOf(err))
}

// TypeName is the envelope error type for a code.
func TypeName(code Code) string {
	switch code {
	case CodeUsage:
		return "usage_error"
	case CodeAuth:
		return "auth_error"
	case CodeRateLimited:
		return "rate_limited"
	case CodeUnavailable:
		return "unavailable"
	case CodeUnsupported:
		return "unsupported"
	case CodeTimeout:
		return "timeout"
	case CodeParse:
		return "parse_error"
	case CodeNotFound:
		return "not_found"
	case CodeInsufficientData:
		return "insufficient_data"
	case CodeStageFailed:
		return "stage_failed"
	case CodeCancelled:
		return "cancelled"
	case CodeBlocked:
		return "command_blocked"
	default:
		return "internal_error"
	}
}
