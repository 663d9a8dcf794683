package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers that need to map it onto an
// HTTP status or decide whether a retry makes sense.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindAlreadyExists
	KindInvalid
	KindInvalidOperator
	KindTransport
)

// String returns a short stable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindAlreadyExists:
		return "already_exists"
	case KindInvalid:
		return "invalid"
	case KindInvalidOperator:
		return "invalid_operator"
	case KindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// Error is the single error type used across the task engine. It carries
// a kind instead of relying on a hierarchy of error types.
type Error struct {
	Kind Kind
	Msg  string
	Err  error // wrapped cause, may be nil
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a tagged error with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap tags an underlying error with a kind and context message.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, format, args...)
}

func AlreadyExists(format string, args ...any) *Error {
	return New(KindAlreadyExists, format, args...)
}

func Invalid(format string, args ...any) *Error {
	return New(KindInvalid, format, args...)
}

func InvalidOperator(format string, args ...any) *Error {
	return New(KindInvalidOperator, format, args...)
}

func Transport(err error, format string, args ...any) *Error {
	return Wrap(KindTransport, err, format, args...)
}

// KindOf extracts the kind from err, walking the wrap chain.
// Errors that are not *Error report KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
