// Package queue defines the message payloads exchanged over the broker and
// the background consumer that turns them into user-facing notification log
// lines.
package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/facility-reservation/internal/model"
)

// Transfer event types carried in TransferEvent.Type.
const (
	TransferCreated       = "transfer.created"
	TransferAcceptedEvent = "transfer.accepted"
	TransferDeclinedEvent = "transfer.declined"
	TransferExpiredEvent  = "transfer.expired"
)

// ReservationConfirmedEvent is published when an admission succeeds. It
// carries enough for downstream consumers to notify or run analytics without
// querying the primary database.
type ReservationConfirmedEvent struct {
	EventID        string `json:"event_id"`
	ReservationID  uint64 `json:"reservation_id"`
	UserID         uint64 `json:"user_id"`
	VisitDate      string `json:"visit_date"`
	RemainingSpots uint32 `json:"remaining_spots"`
	ConfirmedAt    string `json:"confirmed_at"`
}

// TransferEvent is published on every transfer state change. The external
// notification collaborator renders it as a message to the affected users;
// this system does not format or deliver messages itself.
type TransferEvent struct {
	EventID       string `json:"event_id"`
	Type          string `json:"type"`
	TransferID    uint64 `json:"transfer_id"`
	ReservationID uint64 `json:"reservation_id"`
	InitiatorID   uint64 `json:"initiator_id"`
	TargetUserID  uint64 `json:"target_user_id"`
	OccurredAt    string `json:"occurred_at"`
}

// NewReservationConfirmedEvent builds the payload for a freshly admitted
// reservation.
func NewReservationConfirmedEvent(res *model.Reservation, remaining uint32) ReservationConfirmedEvent {
	return ReservationConfirmedEvent{
		EventID:        uuid.NewString(),
		ReservationID:  res.ID,
		UserID:         res.UserID,
		VisitDate:      res.Date.UTC().Format("2006-01-02"),
		RemainingSpots: remaining,
		ConfirmedAt:    time.Now().UTC().Format(time.RFC3339),
	}
}

// NewTransferEvent builds the payload for a transfer state change.
func NewTransferEvent(typ string, t *model.TransferRequest) TransferEvent {
	return TransferEvent{
		EventID:       uuid.NewString(),
		Type:          typ,
		TransferID:    t.ID,
		ReservationID: t.ReservationID,
		InitiatorID:   t.InitiatorID,
		TargetUserID:  t.TargetUserID,
		OccurredAt:    time.Now().UTC().Format(time.RFC3339),
	}
}
