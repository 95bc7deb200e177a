// Package apperr defines the closed error taxonomy shared by the booking
// services and HTTP handlers. Every rule violation raised by the admission
// and transfer logic is one of the kinds below, carrying a machine-readable
// kind plus a human message. Unexpected storage failures use KindInternal so
// callers can distinguish "this action is illegal" from "the system is
// unavailable".
package apperr

import (
	"errors"
	"fmt"
)

// Kind enumerates every failure category the core can produce.
type Kind int

const (
	// KindInternal marks unexpected failures (storage, broker) that are not
	// rule violations. Handlers translate it to a generic 500.
	KindInternal Kind = iota
	// KindValidation marks malformed input or a business-rule violation such
	// as a consecutive-day breach.
	KindValidation
	// KindCapacityExceeded marks a date whose bookable capacity is exhausted.
	KindCapacityExceeded
	// KindAuthentication marks a request with no usable identity.
	KindAuthentication
	// KindAuthorization marks an identity lacking permission on the resource.
	KindAuthorization
	// KindConflict marks duplicate or overlapping state, e.g. a second
	// pending transfer for the same reservation/target pair.
	KindConflict
	// KindTransferExpired marks any action on a transfer past its deadline.
	KindTransferExpired
	// KindRateLimited marks an exhausted request budget.
	KindRateLimited
)

// String returns the stable machine-readable name of the kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation_error"
	case KindCapacityExceeded:
		return "capacity_exceeded"
	case KindAuthentication:
		return "authentication_error"
	case KindAuthorization:
		return "authorization_error"
	case KindConflict:
		return "conflict_error"
	case KindTransferExpired:
		return "transfer_expired"
	case KindRateLimited:
		return "rate_limit_exceeded"
	default:
		return "internal_error"
	}
}

// Error is the single error type surfaced by the booking services. Message is
// safe to show to end users; Err optionally wraps an underlying cause for
// logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As chains.
func (e *Error) Unwrap() error { return e.Err }

// New builds an Error of the given kind with a user-displayable message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error of the given kind around an underlying cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the kind from any error. Errors outside the taxonomy are
// reported as KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
