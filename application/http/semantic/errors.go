package semantic

import (
	"fmt"

	iolib "webstack/lib/io"

	"github.com/pkg/errors"
)

// Kind classifies errors raised while a request is being handled.
type Kind uint8

const (
	// KindUncaught is any error outside of the known kinds.
	KindUncaught Kind = iota
	KindNotFound
	KindPermissionDenied
	KindRequestParse
	// KindViewContract reports a view that broke its contract, such as returning no response.
	KindViewContract
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindPermissionDenied:
		return "permission_denied"
	case KindRequestParse:
		return "request_parse"
	case KindViewContract:
		return "view_contract"
	default:
		return "uncaught"
	}
}

// Error is an error of a known Kind.
type Error struct {
	Kind  Kind
	msg   string
	cause error
}

// Sentinels for errors.Is checks by kind.
var (
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrPermissionDenied = &Error{Kind: KindPermissionDenied}
	ErrRequestParse     = &Error{Kind: KindRequestParse}
	ErrViewContract     = &Error{Kind: KindViewContract}
)

func (e *Error) Error() string {
	msg := e.msg
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.cause != nil {
		return msg + ": " + e.cause.Error()
	}
	return msg
}

func (e *Error) Cause() error  { return e.cause }
func (e *Error) Unwrap() error { return e.cause }

// Is matches a bare sentinel of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.msg == "" && t.cause == nil && t.Kind == e.Kind
}

func newError(kind Kind, cause error, format string, args ...any) error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...), cause: cause}
}

func NotFound(format string, args ...any) error {
	return newError(KindNotFound, nil, format, args...)
}

func PermissionDenied(format string, args ...any) error {
	return newError(KindPermissionDenied, nil, format, args...)
}

func ViewContract(format string, args ...any) error {
	return newError(KindViewContract, nil, format, args...)
}

// RequestParse wraps err as a malformed request. A nil err makes a plain one.
func RequestParse(err error, format string, args ...any) error {
	return newError(KindRequestParse, err, format, args...)
}

// KindOf classifies err. Failures of a bounded body stream count as malformed requests.
func KindOf(err error) Kind {
	if err == nil {
		return KindUncaught
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	var se *iolib.StreamError
	if errors.As(err, &se) {
		return KindRequestParse
	}

	return KindUncaught
}
