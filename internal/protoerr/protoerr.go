// Package protoerr implements the stable error taxonomy shared by the
// transport, broker, session, and reconciler layers. The Kind names are
// the stable contract; callers should compare Kind, not formatted text.
package protoerr

import (
	"errors"
	"fmt"
)

// Kind enumerates the taxonomy of §7.
type Kind int

const (
	KindInvalidMessage Kind = iota
	KindInvalidResponse
	KindTransportFailure
	KindAdapterUnavailable
	KindUnsupportedFeature
	KindSessionNotActive
	KindProcessLaunchFailed
	KindConfigurationInvalid
	KindConfigurationNotFound
	KindPersistenceFailure
)

func (k Kind) String() string {
	switch k {
	case KindInvalidMessage:
		return "InvalidMessage"
	case KindInvalidResponse:
		return "InvalidResponse"
	case KindTransportFailure:
		return "TransportFailure"
	case KindAdapterUnavailable:
		return "AdapterUnavailable"
	case KindUnsupportedFeature:
		return "UnsupportedFeature"
	case KindSessionNotActive:
		return "SessionNotActive"
	case KindProcessLaunchFailed:
		return "ProcessLaunchFailed"
	case KindConfigurationInvalid:
		return "ConfigurationInvalid"
	case KindConfigurationNotFound:
		return "ConfigurationNotFound"
	case KindPersistenceFailure:
		return "PersistenceFailure"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type for every Kind in the taxonomy.
type Error struct {
	kind   Kind
	reason string
	cause  error
}

// New constructs an Error with no wrapped cause.
func New(kind Kind, reason string) *Error {
	return &Error{kind: kind, reason: reason}
}

// Wrap constructs an Error that wraps cause.
func Wrap(kind Kind, reason string, cause error) *Error {
	return &Error{kind: kind, reason: reason, cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.kind, e.reason, e.cause.Error())
	}
	return fmt.Sprintf("%s: %s", e.kind, e.reason)
}

// Unwrap exposes the wrapped cause, if any, for errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.cause }

// Kind reports the taxonomy kind of e.
func (e *Error) Kind() Kind { return e.kind }

// Is supports errors.Is(err, protoerr.New(KindX, "")) by comparing Kind
// alone, ignoring reason and cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.kind == t.kind
}

// KindOf returns the Kind of err if it is (or wraps) a *Error, and false
// otherwise.
func KindOf(err error) (Kind, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.kind, true
	}
	return 0, false
}
