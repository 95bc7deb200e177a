package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/facility-reservation/internal/model"
)

// ReservationRepo provides CRUD operations for reservations and their
// occupant rows. A reservation owns its reservation_occupants rows:
// cancelling the reservation cascades to them. All timestamps are stored in
// UTC.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// DB exposes the underlying handle so callers can open transactions that
// span repositories.
func (r *ReservationRepo) DB() *sql.DB { return r.db }

// CreateTx inserts a new reservation within the given transaction and
// populates the generated ID and timestamps on the passed record.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	const q = `INSERT INTO reservations (user_id, visit_date, status, allow_transfer) VALUES (?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, q, res.UserID, res.Date.UTC().Format(dateLayout), res.Status, res.AllowTransfer)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	const sel = `SELECT created_at, updated_at FROM reservations WHERE id = ?`
	return tx.QueryRowContext(ctx, sel, res.ID).Scan(&res.CreatedAt, &res.UpdatedAt)
}

// CreateOccupantTx inserts one occupant row for the reservation.
func (r *ReservationRepo) CreateOccupantTx(ctx context.Context, tx *sql.Tx, occ *model.ReservationOccupant) error {
	const q = `INSERT INTO reservation_occupants (reservation_id, user_id, is_primary, status) VALUES (?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, q, occ.ReservationID, occ.UserID, occ.IsPrimary, occ.Status)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	occ.ID = uint64(id)
	return nil
}

// GetByID loads one reservation. Returns ErrReservationNotFound when no row
// matches.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	const q = `SELECT id, user_id, visit_date, status, allow_transfer, created_at, updated_at
	           FROM reservations WHERE id = ?`
	var res model.Reservation
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&res.ID, &res.UserID, &res.Date, &res.Status, &res.AllowTransfer, &res.CreatedAt, &res.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrReservationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// GetForUpdateTx loads one reservation with a row lock so the caller can
// mutate it without interleaving with a concurrent cancellation.
func (r *ReservationRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Reservation, error) {
	const q = `SELECT id, user_id, visit_date, status, allow_transfer, created_at, updated_at
	           FROM reservations WHERE id = ? FOR UPDATE`
	var res model.Reservation
	err := tx.QueryRowContext(ctx, q, id).Scan(
		&res.ID, &res.UserID, &res.Date, &res.Status, &res.AllowTransfer, &res.CreatedAt, &res.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrReservationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// ActiveDates returns the visit dates of every ACTIVE reservation on which
// the user is an ACTIVE occupant. This projection is the input to the
// consecutive-day check.
func (r *ReservationRepo) ActiveDates(ctx context.Context, userID uint64) ([]time.Time, error) {
	const q = `SELECT r.visit_date
	           FROM reservations r
	           JOIN reservation_occupants o ON o.reservation_id = r.id
	           WHERE o.user_id = ? AND o.status = 'ACTIVE' AND r.status = 'ACTIVE'`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var dates []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

// ListByUser returns the user's reservations, newest first.
func (r *ReservationRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Reservation, error) {
	const q = `SELECT id, user_id, visit_date, status, allow_transfer, created_at, updated_at
	           FROM reservations WHERE user_id = ? ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := make([]model.Reservation, 0)
	for rows.Next() {
		var res model.Reservation
		if err := rows.Scan(&res.ID, &res.UserID, &res.Date, &res.Status, &res.AllowTransfer, &res.CreatedAt, &res.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, res)
	}
	return list, rows.Err()
}

// IsActiveOccupant reports whether the user currently holds an ACTIVE
// occupant row on the reservation.
func (r *ReservationRepo) IsActiveOccupant(ctx context.Context, reservationID, userID uint64) (bool, error) {
	const q = `SELECT COUNT(*) FROM reservation_occupants
	           WHERE reservation_id = ? AND user_id = ? AND status = 'ACTIVE'`
	var n int
	if err := r.db.QueryRowContext(ctx, q, reservationID, userID).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// CancelReservationTx marks the reservation CANCELLED and cascades the
// cancellation to all of its ACTIVE occupant rows.
func (r *ReservationRepo) CancelReservationTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	const resQ = `UPDATE reservations SET status = 'CANCELLED' WHERE id = ?`
	if _, err := tx.ExecContext(ctx, resQ, id); err != nil {
		return err
	}
	const occQ = `UPDATE reservation_occupants
	              SET status = 'CANCELLED', cancelled_at = UTC_TIMESTAMP()
	              WHERE reservation_id = ? AND status = 'ACTIVE'`
	_, err := tx.ExecContext(ctx, occQ, id)
	return err
}

// CancelOccupantTx cancels the user's ACTIVE occupant row on the reservation
// and reports whether that row was the primary one. The conditional WHERE
// makes a concurrent double-cancel visible as zero affected rows, returned
// as ErrConflict.
func (r *ReservationRepo) CancelOccupantTx(ctx context.Context, tx *sql.Tx, reservationID, userID uint64) (bool, error) {
	const sel = `SELECT is_primary FROM reservation_occupants
	             WHERE reservation_id = ? AND user_id = ? AND status = 'ACTIVE' FOR UPDATE`
	var isPrimary bool
	err := tx.QueryRowContext(ctx, sel, reservationID, userID).Scan(&isPrimary)
	if err == sql.ErrNoRows {
		return false, ErrConflict
	}
	if err != nil {
		return false, err
	}
	const upd = `UPDATE reservation_occupants
	             SET status = 'CANCELLED', cancelled_at = UTC_TIMESTAMP()
	             WHERE reservation_id = ? AND user_id = ? AND status = 'ACTIVE'`
	result, err := tx.ExecContext(ctx, upd, reservationID, userID)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 0 {
		return false, ErrConflict
	}
	return isPrimary, nil
}

// ActivateOccupantTx attaches the user to the reservation, reviving a
// previously cancelled row when one exists. The unique key on
// (reservation_id, user_id) makes this an upsert.
func (r *ReservationRepo) ActivateOccupantTx(ctx context.Context, tx *sql.Tx, reservationID, userID uint64, isPrimary bool) error {
	const q = `INSERT INTO reservation_occupants (reservation_id, user_id, is_primary, status)
	           VALUES (?, ?, ?, 'ACTIVE')
	           ON DUPLICATE KEY UPDATE status = 'ACTIVE', is_primary = VALUES(is_primary), cancelled_at = NULL`
	_, err := tx.ExecContext(ctx, q, reservationID, userID, isPrimary)
	return err
}

// ReassignOwnerTx points the reservation's owning user at the transfer
// target. Used when a primary occupant slot is transferred so the owner
// column stays consistent with the primary occupant row.
func (r *ReservationRepo) ReassignOwnerTx(ctx context.Context, tx *sql.Tx, reservationID, newOwnerID uint64) error {
	const q = `UPDATE reservations SET user_id = ? WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, newOwnerID, reservationID)
	return err
}
