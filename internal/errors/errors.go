// Package errors provides the error handling used throughout this module. It
// re-exports selected functions from github.com/pkg/errors so that callers
// have a single import for creating, wrapping and inspecting errors.
package errors

import (
	stderrors "errors"

	"github.com/pkg/errors"
)

// New creates a new error based on message. Wrapped so that this package
// doesn't appear in the stack trace.
var New = errors.New

// Errorf creates an error based on a format string. Wrapped so that this
// package doesn't appear in the stack trace.
var Errorf = errors.Errorf

// Wrap wraps the error err with the message msg. Wrapped so that this package
// doesn't appear in the stack trace.
var Wrap = errors.Wrap

// Wrapf returns an error annotating err with the format specifier. If err is
// nil, Wrapf returns nil.
var Wrapf = errors.Wrapf

// WithStack annotates err with a stack trace at the point WithStack was
// called. If err is nil, WithStack returns nil.
var WithStack = errors.WithStack

func Is(x, y error) bool { return stderrors.Is(x, y) }

func As(err error, tgt interface{}) bool { return stderrors.As(err, tgt) }

func Unwrap(err error) error { return stderrors.Unwrap(err) }

// CombineErrors combines multiple errors into a single error after filtering
// out nil values.
func CombineErrors(errs ...error) error {
	return stderrors.Join(errs...)
}
