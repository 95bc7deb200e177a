// Package repository implements data access against MySQL with raw SQL. The
// sentinel errors below let the service layer distinguish failure scenarios
// without parsing driver errors.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own, e.g. cancelling another user's reservation.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an operation cannot proceed because of
// conflicting state: a duplicate pending transfer, a response to an
// already-decided transfer, or cancelling a non-active reservation.
var ErrConflict = errors.New("conflict")

// ErrCapacityFull is returned when the conditional capacity increment
// affects no rows, i.e. total_bookings already equals max_capacity.
var ErrCapacityFull = errors.New("capacity full")

// ErrReservationNotFound is returned when no reservation row matches.
var ErrReservationNotFound = errors.New("reservation not found")

// ErrTransferNotFound is returned when no transfer request row matches.
var ErrTransferNotFound = errors.New("transfer not found")

// ErrEmailExists is returned when registering with an already-taken email.
var ErrEmailExists = errors.New("email already exists")
