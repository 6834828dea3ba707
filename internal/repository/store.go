package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/spacebook/internal/booking"
	"github.com/iliyamo/spacebook/internal/model"
)

// Store implements booking.Store on MySQL.  Every InTx unit runs at
// SERIALIZABLE so that InnoDB turns plain reads into locking reads and the
// gap between an overlap check and the following insert cannot be filled
// by another transaction.
type Store struct {
	db           *sqlx.DB
	spaces       *SpaceRepo
	reservations *ReservationRepo
	payments     *PaymentRepo
}

// NewStore wires the repositories over one connection pool.
func NewStore(db *sqlx.DB) *Store {
	return &Store{
		db:           db,
		spaces:       NewSpaceRepo(db),
		reservations: NewReservationRepo(db),
		payments:     NewPaymentRepo(db),
	}
}

// InTx runs fn inside one serializable transaction.  Any error from fn, or
// a panic, rolls the transaction back.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx booking.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(ctx, &sqlTx{tx: tx, s: s}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return classify(err, "commit")
	}
	committed = true
	return nil
}

func (s *Store) Reservation(ctx context.Context, id uint64) (*model.Reservation, error) {
	return s.reservations.GetByID(ctx, id)
}

func (s *Store) Payment(ctx context.Context, id uint64) (*model.Payment, error) {
	return s.payments.GetByID(ctx, id)
}

func (s *Store) ListReservationsByGuest(ctx context.Context, guestID uint64, limit, offset int) ([]model.Reservation, error) {
	return s.reservations.ListByGuest(ctx, guestID, limit, offset)
}

func (s *Store) ListReservationsBySpace(ctx context.Context, spaceID uint64, limit, offset int) ([]model.Reservation, error) {
	return s.reservations.ListBySpace(ctx, spaceID, limit, offset)
}

func (s *Store) LiveSlots(ctx context.Context, spaceID uint64, from, to time.Time) ([]model.Slot, error) {
	return s.reservations.LiveSlots(ctx, spaceID, from, to)
}

// sqlTx adapts the repositories' Tx methods to booking.Tx.
type sqlTx struct {
	tx *sqlx.Tx
	s  *Store
}

func (t *sqlTx) CountOverlapping(ctx context.Context, spaceID uint64, slot model.Slot, excludeID uint64) (int, error) {
	return t.s.reservations.CountOverlappingTx(ctx, t.tx, spaceID, slot, excludeID)
}

func (t *sqlTx) LockSpace(ctx context.Context, spaceID uint64) error {
	return t.s.spaces.LockTx(ctx, t.tx, spaceID)
}

func (t *sqlTx) InsertReservation(ctx context.Context, r *model.Reservation) error {
	return t.s.reservations.CreateTx(ctx, t.tx, r)
}

func (t *sqlTx) LockReservation(ctx context.Context, id uint64) (*model.Reservation, error) {
	return t.s.reservations.LockTx(ctx, t.tx, id)
}

func (t *sqlTx) UpdateReservation(ctx context.Context, r *model.Reservation) error {
	return t.s.reservations.UpdateTx(ctx, t.tx, r)
}

func (t *sqlTx) InsertPayment(ctx context.Context, p *model.Payment) error {
	return t.s.payments.CreateTx(ctx, t.tx, p)
}

func (t *sqlTx) LockPayment(ctx context.Context, id uint64) (*model.Payment, error) {
	return t.s.payments.LockTx(ctx, t.tx, id)
}

func (t *sqlTx) UpdatePayment(ctx context.Context, p *model.Payment) error {
	return t.s.payments.UpdateTx(ctx, t.tx, p)
}

func (t *sqlTx) CountLivePayments(ctx context.Context, reservationID, excludeID uint64) (int, error) {
	return t.s.payments.CountLiveTx(ctx, t.tx, reservationID, excludeID)
}

func (t *sqlTx) CompletedPaymentExists(ctx context.Context, reservationID, excludeID uint64) (bool, error) {
	return t.s.payments.CompletedExistsTx(ctx, t.tx, reservationID, excludeID)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
