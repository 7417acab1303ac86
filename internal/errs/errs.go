package errs

import (
	"errors"
	"fmt"
)

// Code is a suite error code.
type Code string

const (
	// Timeout means an awaited page condition did not occur within its bound.
	Timeout Code = "timeout"
	// AssertionFailure means the page was reached but its state is wrong.
	AssertionFailure Code = "assertion_failure"
	// NavigationFailure means the target page could not be reached.
	NavigationFailure Code = "navigation_failure"
	// NotFound means no locator strategy matched.
	NotFound Code = "not_found"
	// InvalidArgument covers bad configuration and caller input.
	InvalidArgument Code = "invalid_argument"
	Internal        Code = "internal"
)

// Error is a coded suite error.
type Error struct {
	Code    Code
	Message string
	// Expected names the state that was being awaited, if any.
	Expected string
	Err      error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Expected != "" {
		msg = fmt.Sprintf("%s (expected %s)", msg, e.Expected)
	}
	if e.Message != "" && e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
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

// Timeoutf creates a Timeout error naming the expected state.
func Timeoutf(expected, format string, args ...any) error {
	return &Error{
		Code:     Timeout,
		Message:  fmt.Sprintf(format, args...),
		Expected: expected,
	}
}

// CodeOf returns the error code, defaulting to internal.
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

// ExpectedOf returns the awaited state carried by err, or "".
func ExpectedOf(err error) string {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Expected
	}
	return ""
}

// MessageOf returns the error's message without its cause chain.
func MessageOf(err error) string {
	if err == nil {
		return string(Internal)
	}
	var coded *Error
	if errors.As(err, &coded) && coded.Message != "" {
		return coded.Message
	}
	return err.Error()
}

// Is reports whether err carries code anywhere in its chain.
func Is(err error, code Code) bool {
	for err != nil {
		var coded *Error
		if !errors.As(err, &coded) {
			return false
		}
		if coded.Code == code {
			return true
		}
		err = coded.Err
	}
	return false
}

// ExitCode maps an error to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch CodeOf(err) {
	case InvalidArgument:
		return 2
	case Timeout:
		return 3
	default:
		return 1
	}
}
