package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/facility-reservation/internal/model"
)

// TransferRepo provides access to the transfer_requests table. State
// transitions out of PENDING go through conditional updates (WHERE status =
// 'PENDING' AND expires_at > now) so that two concurrent responses to the
// same transfer can never both succeed.
type TransferRepo struct {
	db *sql.DB
}

// NewTransferRepo returns a TransferRepo bound to the given database.
func NewTransferRepo(db *sql.DB) *TransferRepo { return &TransferRepo{db: db} }

const transferColumns = `id, reservation_id, initiator_id, target_user_id, status, expires_at, decided_at, created_at`

func scanTransfer(row interface {
	Scan(dest ...interface{}) error
}) (*model.TransferRequest, error) {
	var t model.TransferRequest
	var decided sql.NullTime
	err := row.Scan(&t.ID, &t.ReservationID, &t.InitiatorID, &t.TargetUserID, &t.Status, &t.ExpiresAt, &decided, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	if decided.Valid {
		d := decided.Time
		t.DecidedAt = &d
	}
	return &t, nil
}

// CreateTx inserts a PENDING transfer after verifying that no live PENDING
// transfer exists for the same (reservation, target) pair. Expired-but-
// unprocessed rows do not count as duplicates. Returns ErrConflict on a
// duplicate. The caller owns the transaction.
func (r *TransferRepo) CreateTx(ctx context.Context, tx *sql.Tx, t *model.TransferRequest) error {
	const dup = `SELECT COUNT(*) FROM transfer_requests
	             WHERE reservation_id = ? AND target_user_id = ?
	               AND status = 'PENDING' AND expires_at > UTC_TIMESTAMP()
	             FOR UPDATE`
	var n int
	if err := tx.QueryRowContext(ctx, dup, t.ReservationID, t.TargetUserID).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return ErrConflict
	}
	const ins = `INSERT INTO transfer_requests (reservation_id, initiator_id, target_user_id, status, expires_at)
	             VALUES (?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, ins,
		t.ReservationID, t.InitiatorID, t.TargetUserID, t.Status,
		t.ExpiresAt.UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	const sel = `SELECT created_at FROM transfer_requests WHERE id = ?`
	return tx.QueryRowContext(ctx, sel, t.ID).Scan(&t.CreatedAt)
}

// GetByID loads one transfer. Returns ErrTransferNotFound when no row
// matches.
func (r *TransferRepo) GetByID(ctx context.Context, id uint64) (*model.TransferRequest, error) {
	const q = `SELECT ` + transferColumns + ` FROM transfer_requests WHERE id = ?`
	t, err := scanTransfer(r.db.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return nil, ErrTransferNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// DecideTx moves a transfer out of PENDING into the given terminal status.
// The conditional WHERE is the linearizability guard: when the row has
// already been decided, or its deadline passed between the caller's read and
// this write, zero rows are affected and ErrConflict is returned.
func (r *TransferRepo) DecideTx(ctx context.Context, tx *sql.Tx, id uint64, status string) error {
	const q = `UPDATE transfer_requests
	           SET status = ?, decided_at = UTC_TIMESTAMP()
	           WHERE id = ? AND status = 'PENDING' AND expires_at > UTC_TIMESTAMP()`
	result, err := tx.ExecContext(ctx, q, status, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrConflict
	}
	return nil
}

// MarkExpired rewrites a PENDING row past its deadline to EXPIRED. This is
// the lazy transition: it only runs when the row is touched, never from a
// background sweeper. Idempotent; rows already out of PENDING are left
// alone.
func (r *TransferRepo) MarkExpired(ctx context.Context, id uint64) error {
	const q = `UPDATE transfer_requests
	           SET status = 'EXPIRED', decided_at = UTC_TIMESTAMP()
	           WHERE id = ? AND status = 'PENDING' AND expires_at <= UTC_TIMESTAMP()`
	_, err := r.db.ExecContext(ctx, q, id)
	return err
}

// ListPendingByTarget returns all live PENDING transfers aimed at the user.
// Expired-but-unprocessed rows are excluded from the view but not rewritten.
func (r *TransferRepo) ListPendingByTarget(ctx context.Context, userID uint64, now time.Time) ([]model.TransferRequest, error) {
	const q = `SELECT ` + transferColumns + ` FROM transfer_requests
	           WHERE target_user_id = ? AND status = 'PENDING' AND expires_at > ?
	           ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, userID, now.UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := make([]model.TransferRequest, 0)
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *t)
	}
	return list, rows.Err()
}
