package query

import (
	"errors"
	"fmt"
)

// Client-facing failure categories. Every error returned by ParseSpec and
// Compile wraps one of these and satisfies IsClientError.
var (
	ErrInvalidFilter   = errors.New("invalid filter")
	ErrUnknownField    = errors.New("unknown field")
	ErrInvalidOrdering = errors.New("invalid ordering")
	ErrInvalidPage     = errors.New("invalid pagination")
)

// Error is a query specification failure that should be reported to the caller.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Kind }

// IsClientError reports whether err came from a bad query specification.
func IsClientError(err error) bool {
	var qe *Error
	return errors.As(err, &qe)
}

func newError(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}
