package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/facility-reservation/internal/model"
)

// Store composes the repositories behind the capability interfaces the
// booking services consume. Multi-row operations run inside one transaction
// here so the services stay free of *sql.Tx and can be exercised against
// in-memory fakes.
type Store struct {
	db           *sql.DB
	Capacity     *CapacityRepo
	Reservations *ReservationRepo
	Transfers    *TransferRepo
}

// NewStore wires the repositories over a shared database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:           db,
		Capacity:     NewCapacityRepo(db),
		Reservations: NewReservationRepo(db),
		Transfers:    NewTransferRepo(db),
	}
}

// withTx runs fn inside a transaction, rolling back on error or panic.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// ActiveDates implements booking.AdmissionStore.
func (s *Store) ActiveDates(ctx context.Context, userID uint64) ([]time.Time, error) {
	return s.Reservations.ActiveDates(ctx, userID)
}

// AdmitAndCreate implements booking.AdmissionStore: the conditional capacity
// increment, the reservation insert and the primary occupant insert commit
// together or not at all. A full date aborts before any insert happens.
func (s *Store) AdmitAndCreate(ctx context.Context, userID uint64, date time.Time, allowTransfer bool, defaultCapacity uint32) (*model.Reservation, uint32, error) {
	res := &model.Reservation{
		UserID:        userID,
		Date:          date,
		Status:        model.ReservationActive,
		AllowTransfer: allowTransfer,
	}
	var remaining uint32
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		remaining, err = s.Capacity.TryAdmitTx(ctx, tx, date, defaultCapacity)
		if err != nil {
			return err
		}
		if err := s.Reservations.CreateTx(ctx, tx, res); err != nil {
			return err
		}
		occ := &model.ReservationOccupant{
			ReservationID: res.ID,
			UserID:        userID,
			IsPrimary:     true,
			Status:        model.OccupantActive,
		}
		return s.Reservations.CreateOccupantTx(ctx, tx, occ)
	})
	if err != nil {
		return nil, 0, err
	}
	return res, remaining, nil
}

// CancelAndRelease implements booking.AdmissionStore. Only the owning user
// may cancel; the row lock serializes against a concurrent cancel or
// transfer on the same reservation.
func (s *Store) CancelAndRelease(ctx context.Context, reservationID, userID uint64) (*model.Reservation, error) {
	var res *model.Reservation
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		res, err = s.Reservations.GetForUpdateTx(ctx, tx, reservationID)
		if err != nil {
			return err
		}
		if res.UserID != userID {
			return ErrForbidden
		}
		if res.Status != model.ReservationActive {
			return ErrConflict
		}
		if err := s.Reservations.CancelReservationTx(ctx, tx, reservationID); err != nil {
			return err
		}
		return s.Capacity.ReleaseTx(ctx, tx, res.Date)
	})
	if err != nil {
		return nil, err
	}
	res.Status = model.ReservationCancelled
	return res, nil
}

// ReservationsByUser implements booking.AdmissionStore.
func (s *Store) ReservationsByUser(ctx context.Context, userID uint64) ([]model.Reservation, error) {
	return s.Reservations.ListByUser(ctx, userID)
}

// CapacityFor implements booking.AdmissionStore.
func (s *Store) CapacityFor(ctx context.Context, date time.Time, defaultCapacity uint32) (*model.DateCapacity, error) {
	return s.Capacity.GetOrDefault(ctx, date, defaultCapacity)
}

// Reservation implements booking.TransferStore.
func (s *Store) Reservation(ctx context.Context, id uint64) (*model.Reservation, error) {
	return s.Reservations.GetByID(ctx, id)
}

// IsActiveOccupant implements booking.TransferStore.
func (s *Store) IsActiveOccupant(ctx context.Context, reservationID, userID uint64) (bool, error) {
	return s.Reservations.IsActiveOccupant(ctx, reservationID, userID)
}

// CreatePending implements booking.TransferStore.
func (s *Store) CreatePending(ctx context.Context, t *model.TransferRequest) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.Transfers.CreateTx(ctx, tx, t)
	})
}

// Transfer implements booking.TransferStore.
func (s *Store) Transfer(ctx context.Context, id uint64) (*model.TransferRequest, error) {
	return s.Transfers.GetByID(ctx, id)
}

// MarkExpired implements booking.TransferStore.
func (s *Store) MarkExpired(ctx context.Context, id uint64) error {
	return s.Transfers.MarkExpired(ctx, id)
}

// Decline implements booking.TransferStore. Declining mutates only the
// transfer row; the reservation stays untouched.
func (s *Store) Decline(ctx context.Context, id uint64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.Transfers.DecideTx(ctx, tx, id, model.TransferDeclined)
	})
}

// AcceptAndReassign implements booking.TransferStore. The three steps —
// close the transfer, cancel the initiator's occupant row, activate the
// target's row — commit together. Closing the transfer first (conditional on
// PENDING and unexpired) makes it the single winner election for concurrent
// responses; everything after runs only in the winning transaction. When the
// transferred slot was the primary one, reservation ownership follows it.
func (s *Store) AcceptAndReassign(ctx context.Context, t *model.TransferRequest) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.Transfers.DecideTx(ctx, tx, t.ID, model.TransferAccepted); err != nil {
			return err
		}
		wasPrimary, err := s.Reservations.CancelOccupantTx(ctx, tx, t.ReservationID, t.InitiatorID)
		if err != nil {
			return err
		}
		if err := s.Reservations.ActivateOccupantTx(ctx, tx, t.ReservationID, t.TargetUserID, wasPrimary); err != nil {
			return err
		}
		if wasPrimary {
			return s.Reservations.ReassignOwnerTx(ctx, tx, t.ReservationID, t.TargetUserID)
		}
		return nil
	})
}

// PendingFor implements booking.TransferStore.
func (s *Store) PendingFor(ctx context.Context, userID uint64, now time.Time) ([]model.TransferRequest, error) {
	return s.Transfers.ListPendingByTarget(ctx, userID, now)
}
