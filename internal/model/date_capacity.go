package model

import "time"

// DateCapacity holds the bookable capacity for one calendar date. It is the
// shared mutable row every admission for that date contends on, so all
// mutations go through conditional updates in the repository layer.
// Invariant: 0 <= TotalBookings <= MaxCapacity at all times.
//
// Fields:
//  ID            – primary key identifier.
//  Date          – calendar date, stored at UTC midnight.
//  MaxCapacity   – maximum number of reservations for the date.
//  TotalBookings – counter incremented on admission and decremented on
//                  cancellation.
//  CreatedAt     – creation timestamp.
//  UpdatedAt     – last update timestamp.
type DateCapacity struct {
	ID            uint64    // date_capacities.id
	Date          time.Time // date_capacities.visit_date
	MaxCapacity   uint32    // date_capacities.max_capacity
	TotalBookings uint32    // date_capacities.total_bookings
	CreatedAt     time.Time // date_capacities.created_at
	UpdatedAt     time.Time // date_capacities.updated_at
}

// RemainingSpots returns the number of still-bookable slots. The conditional
// update in the repository guarantees this never goes negative.
func (d *DateCapacity) RemainingSpots() uint32 {
	if d.TotalBookings >= d.MaxCapacity {
		return 0
	}
	return d.MaxCapacity - d.TotalBookings
}
