package model

import "time"

// Transfer request states. PENDING is the only non-terminal state; EXPIRED
// is reached lazily once the deadline has passed, whether or not the stored
// row has been rewritten yet.
const (
	TransferPending  = "PENDING"
	TransferAccepted = "ACCEPTED"
	TransferDeclined = "DECLINED"
	TransferExpired  = "EXPIRED"
)

// TransferRequest is a time-boxed proposal to move an occupant slot on a
// reservation from the initiating user to a target user. It references but
// does not own the reservation or the users.
//
// Fields:
//  ID            – primary key identifier.
//  ReservationID – reservation whose occupant slot is offered.
//  InitiatorID   – user giving up the slot.
//  TargetUserID  – user the slot is offered to.
//  Status        – PENDING, ACCEPTED, DECLINED or EXPIRED.
//  ExpiresAt     – created_at + configured TTL; past this instant the
//                  request is never actionable.
//  DecidedAt     – when the target responded (nullable).
//  CreatedAt     – creation timestamp.
type TransferRequest struct {
	ID            uint64     // transfer_requests.id
	ReservationID uint64     // transfer_requests.reservation_id
	InitiatorID   uint64     // transfer_requests.initiator_id
	TargetUserID  uint64     // transfer_requests.target_user_id
	Status        string     // transfer_requests.status
	ExpiresAt     time.Time  // transfer_requests.expires_at
	DecidedAt     *time.Time // transfer_requests.decided_at (nullable)
	CreatedAt     time.Time  // transfer_requests.created_at
}

// EffectiveStatus computes the state of the transfer as of now. A stored
// PENDING past its deadline reads as EXPIRED; the persisted column is only
// rewritten when the row is actually touched (lazy expiry). Readers must use
// this instead of trusting the Status field while it reads PENDING.
func (t *TransferRequest) EffectiveStatus(now time.Time) string {
	if t.Status == TransferPending && !now.Before(t.ExpiresAt) {
		return TransferExpired
	}
	return t.Status
}
