package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/spacebook/internal/model"
)

const paymentColumns = `id, reservation_id, guest_id, amount_cents, currency, method, status, transaction_ref, failure_reason, requested_at, completed_at, failed_at, refunded_at`

// PaymentRepo reads and writes the payments table.
type PaymentRepo struct {
	db *sqlx.DB
}

// NewPaymentRepo returns a new PaymentRepo bound to the given database.
func NewPaymentRepo(db *sqlx.DB) *PaymentRepo { return &PaymentRepo{db: db} }

// GetByID returns a payment without locking it.
func (r *PaymentRepo) GetByID(ctx context.Context, id uint64) (*model.Payment, error) {
	var p model.Payment
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE id = ?`
	if err := r.db.GetContext(ctx, &p, q, id); err != nil {
		return nil, classify(err, fmt.Sprintf("payment %d", id))
	}
	return &p, nil
}

// CreateTx inserts a REQUESTED payment and populates its ID.
func (r *PaymentRepo) CreateTx(ctx context.Context, tx *sqlx.Tx, p *model.Payment) error {
	const q = `INSERT INTO payments (reservation_id, guest_id, amount_cents, currency, method, status, requested_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, p.ReservationID, p.GuestID, p.AmountCents, p.Currency, p.Method, string(p.Status), p.RequestedAt.UTC())
	if err != nil {
		return classify(err, fmt.Sprintf("payment for reservation %d", p.ReservationID))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return nil
}

// LockTx loads a payment and holds its row lock until the transaction ends.
func (r *PaymentRepo) LockTx(ctx context.Context, tx *sqlx.Tx, id uint64) (*model.Payment, error) {
	var p model.Payment
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE id = ? FOR UPDATE`
	if err := tx.GetContext(ctx, &p, q, id); err != nil {
		return nil, classify(err, fmt.Sprintf("payment %d", id))
	}
	return &p, nil
}

// UpdateTx writes the status and settlement columns.  A second COMPLETED
// payment for the same reservation violates payments.completed_reservation_key
// and surfaces as ErrConflict.
func (r *PaymentRepo) UpdateTx(ctx context.Context, tx *sqlx.Tx, p *model.Payment) error {
	const q = `UPDATE payments SET status = ?, transaction_ref = ?, failure_reason = ?, completed_at = ?, failed_at = ?, refunded_at = ? WHERE id = ?`
	res, err := tx.ExecContext(ctx, q, string(p.Status), p.TransactionRef, p.FailureReason,
		utcPtr(p.CompletedAt), utcPtr(p.FailedAt), utcPtr(p.RefundedAt), p.ID)
	if err != nil {
		return classify(err, fmt.Sprintf("payment %d", p.ID))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return classify(sql.ErrNoRows, fmt.Sprintf("payment %d", p.ID))
	}
	return nil
}

// CountLiveTx counts REQUESTED or COMPLETED payments of a reservation other
// than excludeID.
func (r *PaymentRepo) CountLiveTx(ctx context.Context, tx *sqlx.Tx, reservationID, excludeID uint64) (int, error) {
	const q = `SELECT COUNT(*) FROM payments WHERE reservation_id = ? AND id <> ? AND status IN ('REQUESTED','COMPLETED')`
	var n int
	if err := tx.GetContext(ctx, &n, q, reservationID, excludeID); err != nil {
		return 0, err
	}
	return n, nil
}

// CompletedExistsTx reports whether another payment of the reservation is
// COMPLETED.
func (r *PaymentRepo) CompletedExistsTx(ctx context.Context, tx *sqlx.Tx, reservationID, excludeID uint64) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM payments WHERE reservation_id = ? AND id <> ? AND status = 'COMPLETED')`
	var ok bool
	if err := tx.GetContext(ctx, &ok, q, reservationID, excludeID); err != nil {
		return false, err
	}
	return ok, nil
}
