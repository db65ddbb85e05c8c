// Package protoerr defines the shared error taxonomy used across the frame,
// codec and command-engine layers of the Plugwise stick driver.
package protoerr

import "fmt"

// Kind classifies a protocol error without pinning callers to a concrete
// Go error type.
type Kind int

const (
	// Transport is an underlying I/O failure, including a read timeout.
	Transport Kind = iota
	// NotOnline means Initialize returned with the online flag clear.
	NotOnline
	// Framing covers a missing footer or a truncated payload.
	Framing
	// CRC means the recomputed CRC disagreed with the trailing field.
	CRC
	// Codec covers unconsumed bytes, bad UTF-8, non-hex digits or an
	// unknown message identifier.
	Codec
	// UnexpectedResponse means the awaited identifier arrived but carried
	// a variant inconsistent with the requested operation.
	UnexpectedResponse
	// InvalidTimestamp means a DateTime decoded out of range when the
	// caller required a calendar value.
	InvalidTimestamp
)

func (k Kind) String() string {
	switch k {
	case Transport:
		return "transport"
	case NotOnline:
		return "not online"
	case Framing:
		return "framing"
	case CRC:
		return "crc"
	case Codec:
		return "codec"
	case UnexpectedResponse:
		return "unexpected response"
	case InvalidTimestamp:
		return "invalid timestamp"
	default:
		return "unknown"
	}
}

// Error is the single error value surfaced to callers of this module; the
// underlying cause chain is preserved so errors.Is/errors.As keep working
// against, e.g., context.DeadlineExceeded or io.EOF.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an Error with no wrapped cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf creates an Error with a formatted message and no wrapped cause.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error carrying a wrapped cause.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Is reports whether target is a *Error with the same Kind, so callers can
// do errors.Is(err, protoerr.New(protoerr.CRC, "")) style checks if they
// only care about the kind. Most callers should type-assert with
// errors.As instead and inspect Kind directly.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}
