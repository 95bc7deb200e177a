package model

import "time"

// Reservation lifecycle states. A reservation is either counted against its
// date's capacity (ACTIVE) or released (CANCELLED).
const (
	ReservationActive    = "ACTIVE"
	ReservationCancelled = "CANCELLED"
)

// Occupant lifecycle states mirror the reservation states; an occupant row
// is cancelled either with its reservation or when its slot is transferred
// away.
const (
	OccupantActive    = "ACTIVE"
	OccupantCancelled = "CANCELLED"
)

// Reservation records one booking for one calendar date. The owning user is
// the primary occupant; additional people attach through ReservationOccupant
// rows. AllowTransfer controls whether occupant slots may later be offered
// to other users.
//
// Fields:
//  ID            – primary key identifier.
//  UserID        – owning (primary) user.
//  Date          – calendar date of the visit, stored at UTC midnight.
//  Status        – ACTIVE or CANCELLED.
//  AllowTransfer – whether occupant slots may be transferred.
//  CreatedAt     – creation timestamp.
//  UpdatedAt     – last update timestamp.
type Reservation struct {
	ID            uint64    // reservations.id
	UserID        uint64    // reservations.user_id
	Date          time.Time // reservations.visit_date
	Status        string    // reservations.status
	AllowTransfer bool      // reservations.allow_transfer
	CreatedAt     time.Time // reservations.created_at
	UpdatedAt     time.Time // reservations.updated_at
}

// ReservationOccupant links one person to a reservation, either as the
// primary owner or as an additional slot. The set of ACTIVE occupant rows
// for a user, projected onto the reservation dates, feeds the
// consecutive-day check.
//
// Fields:
//  ID            – primary key identifier.
//  ReservationID – reservation the occupant belongs to.
//  UserID        – occupying user.
//  IsPrimary     – true for the owner's row.
//  Status        – ACTIVE or CANCELLED.
//  AddedAt       – when the occupant was attached.
//  CancelledAt   – when the occupant was detached (nullable).
type ReservationOccupant struct {
	ID            uint64     // reservation_occupants.id
	ReservationID uint64     // reservation_occupants.reservation_id
	UserID        uint64     // reservation_occupants.user_id
	IsPrimary     bool       // reservation_occupants.is_primary
	Status        string     // reservation_occupants.status
	AddedAt       time.Time  // reservation_occupants.added_at
	CancelledAt   *time.Time // reservation_occupants.cancelled_at (nullable)
}
