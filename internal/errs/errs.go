package errs

import (
	"errors"
)

// Code is a scenario failure code.
type Code string

const (
	AssertionTimeout  Code = "assertion_timeout"
	ElementNotFound   Code = "element_not_found"
	NavigationTimeout Code = "navigation_timeout"
	NavigationFailed  Code = "navigation_failed"
	SuiteTimeout      Code = "suite_timeout"
	Internal          Code = "internal"
)

// Error is a coded scenario error.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		if e.Err != nil {
			return e.Message + ": " + e.Err.Error()
		}
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a coded error with message.
func New(code Code, message string) error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a coded error with message and cause.
func Wrap(code Code, message string, cause error) error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     cause,
	}
}

// CodeOf returns the outermost error code, defaulting to internal.
func CodeOf(err error) Code {
	if err == nil {
		return Internal
	}
	var coded *Error
	if errors.As(err, &coded) {
		if coded.Code == "" {
			return Internal
		}
		return coded.Code
	}
	return Internal
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// MessageOf returns the short failure message without the cause chain.
func MessageOf(err error) string {
	if err == nil {
		return string(Internal)
	}
	var coded *Error
	if errors.As(err, &coded) && coded.Message != "" {
		return coded.Message
	}
	return "internal error"
}

// IsTimeout reports whether the code describes a bounded wait that expired.
func IsTimeout(code Code) bool {
	switch code {
	case AssertionTimeout, ElementNotFound, NavigationTimeout, SuiteTimeout:
		return true
	default:
		return false
	}
}
