// Package errors augments the standard errors
// provided by fmt (https://golang.org/src/fmt/errors.go)
// with a Wrap() method to wrap errors without resorting
// to fmt.Errorf("%w", err), and with a machine status code.
package errors

import (
	stderr "errors"
)

// DefaultCode is the status code reported for errors that don't carry any.
const DefaultCode = 500

var _ error = New("")

// New Error
func New(msg string) *Error {
	return &Error{msg: msg}
}

// Error augments the standard error interface with a Wrap method and a status code.
//
// The main difference with github.com/pkg/errors is that we are wrapping
// errors from errors, not from text.
//
// Wrapping never alters the receiver: sentinel errors may be wrapped safely
// from concurrent goroutines.
type Error struct {
	msg      string
	code     int
	err      error
	sentinel *Error
}

// Error message, followed by the wrapped error if any
func (e *Error) Error() string {
	if e.err == nil {
		return e.msg
	}
	return e.msg + ": " + e.err.Error()
}

// Message returns the error message, without the wrapped error
func (e *Error) Message() string {
	return e.msg
}

// Code returns the status code carried by this error, if any (0 otherwise)
func (e *Error) Code() int {
	return e.code
}

// Unwrap nested error
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// Wrap a nested error into a copy of this error
func (e *Error) Wrap(err error) *Error {
	return &Error{
		msg:      e.msg,
		code:     e.code,
		err:      err,
		sentinel: e.root(),
	}
}

// WithCode sets the status code on this error. It is intended to be used on sentinel declarations.
func (e *Error) WithCode(code int) *Error {
	e.code = code
	return e
}

// Is of some error type?
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e == t || e.sentinel == t
}

func (e *Error) root() *Error {
	if e.sentinel != nil {
		return e.sentinel
	}
	return e
}

// Code returns the first status code found in err's chain, or DefaultCode
func Code(err error) int {
	for err != nil {
		var e *Error
		if !stderr.As(err, &e) {
			break
		}
		if e.code != 0 {
			return e.code
		}
		err = e.err
	}
	return DefaultCode
}

// As finds the first error in err's chain that matches target, and if so, sets target to that error value and returns true.
// (a shortcut to standard lib errors.As)
func As(err error, target interface{}) bool {
	return stderr.As(err, target)
}

// Is reports whether any error in err's chain matches target
// (a shortcut to standard lib errors.As)
func Is(err, target error) bool {
	return stderr.Is(err, target)
}
