package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/facility-reservation/internal/model"
)

const dateLayout = "2006-01-02"

// CapacityRepo provides access to the date_capacities table, the shared
// mutable row every admission for a date contends on. The admit path is a
// single conditional UPDATE so that two concurrent admissions can never both
// consume the last spot: a plain read-then-write would let both see the same
// remaining count before either writes.
type CapacityRepo struct {
	db *sql.DB
}

// NewCapacityRepo returns a CapacityRepo bound to the given database.
func NewCapacityRepo(db *sql.DB) *CapacityRepo { return &CapacityRepo{db: db} }

// ensureRowTx lazily creates the capacity row for a date with the configured
// default maximum and zero bookings. INSERT IGNORE makes concurrent creation
// attempts harmless.
func (r *CapacityRepo) ensureRowTx(ctx context.Context, tx *sql.Tx, date time.Time, defaultMax uint32) error {
	const q = `INSERT IGNORE INTO date_capacities (visit_date, max_capacity, total_bookings) VALUES (?, ?, 0)`
	_, err := tx.ExecContext(ctx, q, date.UTC().Format(dateLayout), defaultMax)
	return err
}

// TryAdmitTx performs the atomic check-and-increment for one admission. The
// capacity row is created lazily when missing. When the date is fully booked
// the update affects zero rows and ErrCapacityFull is returned without any
// mutation. On success it returns the number of spots remaining after this
// admission. The caller owns the transaction.
func (r *CapacityRepo) TryAdmitTx(ctx context.Context, tx *sql.Tx, date time.Time, defaultMax uint32) (uint32, error) {
	if err := r.ensureRowTx(ctx, tx, date, defaultMax); err != nil {
		return 0, err
	}
	day := date.UTC().Format(dateLayout)
	const upd = `UPDATE date_capacities
	             SET total_bookings = total_bookings + 1
	             WHERE visit_date = ? AND total_bookings < max_capacity`
	result, err := tx.ExecContext(ctx, upd, day)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if affected == 0 {
		return 0, ErrCapacityFull
	}
	const sel = `SELECT max_capacity, total_bookings FROM date_capacities WHERE visit_date = ?`
	var maxCap, total uint32
	if err := tx.QueryRowContext(ctx, sel, day).Scan(&maxCap, &total); err != nil {
		return 0, err
	}
	if total >= maxCap {
		return 0, nil
	}
	return maxCap - total, nil
}

// ReleaseTx decrements the booking counter for a date, floored at zero as a
// defence against double-release. Releasing a date that has no row is a
// no-op.
func (r *CapacityRepo) ReleaseTx(ctx context.Context, tx *sql.Tx, date time.Time) error {
	const q = `UPDATE date_capacities
	           SET total_bookings = total_bookings - 1
	           WHERE visit_date = ? AND total_bookings > 0`
	_, err := tx.ExecContext(ctx, q, date.UTC().Format(dateLayout))
	return err
}

// GetOrDefault reads the capacity row for a date. A date without a row reads
// as zero bookings against the configured default maximum; the row itself is
// only created on first admission.
func (r *CapacityRepo) GetOrDefault(ctx context.Context, date time.Time, defaultMax uint32) (*model.DateCapacity, error) {
	day := date.UTC()
	const q = `SELECT id, visit_date, max_capacity, total_bookings, created_at, updated_at
	           FROM date_capacities WHERE visit_date = ?`
	var cap model.DateCapacity
	err := r.db.QueryRowContext(ctx, q, day.Format(dateLayout)).Scan(
		&cap.ID, &cap.Date, &cap.MaxCapacity, &cap.TotalBookings, &cap.CreatedAt, &cap.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return &model.DateCapacity{Date: day, MaxCapacity: defaultMax, TotalBookings: 0}, nil
	}
	if err != nil {
		return nil, err
	}
	return &cap, nil
}
